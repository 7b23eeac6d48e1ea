// Package logutil wires structured logging for the planner. It mirrors the
// global-logger pattern matrixone's pkg/logutil uses, trimmed to the handful
// of levels the planner's pipeline stages actually emit.
package logutil

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var globalLogger atomic.Value

func init() {
	SetLogger(defaultLogger())
}

func defaultLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// A broken zap config is a programming error, not a runtime one.
		panic(err)
	}
	return logger
}

// SetLogger replaces the package-level logger, e.g. with a *zaptest.Logger
// or an observer core. Within this module only init calls it.
func SetLogger(l *zap.Logger) {
	globalLogger.Store(l)
}

// GetLogger returns the current package-level logger.
func GetLogger() *zap.Logger {
	return globalLogger.Load().(*zap.Logger)
}

func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }
