// Package gerr defines the planner's error codes, following the
// code-block-per-concern layout of matrixone's pkg/common/moerr. A *gerr.Error
// is the single-message exception the spec calls GraphViewException for
// validator failures, and the carrier for wrapped infrastructure errors
// (catalog I/O) that must propagate unchanged in shape but retain a cause.
package gerr

import (
	"fmt"

	"github.com/pkg/errors"
)

type Code uint16

const (
	// Group 1: validator / user errors. These surface verbatim to the
	// caller as a single English sentence naming the offending alias,
	// edge, or table (spec.md §7).
	ErrNotANodeTable       Code = 100
	ErrUnknownEdgeColumn   Code = 101
	ErrNoBindableEdge      Code = 102
	ErrInvalidPathLength   Code = 103
	ErrUnknownSinkTable    Code = 104
	ErrSinkNotReachable    Code = 105
	ErrAmbiguousEdgeAlias  Code = 106
	ErrDuplicateAlias      Code = 107
	ErrNonNodeInMatch      Code = 108

	// Group 2: pattern-construction / internal consistency errors. These
	// indicate the validated pattern could not be lowered, which spec.md §7
	// treats as "logically impossible given a non-empty validated pattern" —
	// raised as a diagnostic, not recovered.
	ErrDisconnectedComponent Code = 200
	ErrNoAdmissibleStartState Code = 201

	// Group 3: infrastructure errors. Catalog I/O failures propagate
	// unchanged in shape (wrapping the underlying error), per spec.md §7.
	ErrCatalogLoadFailed Code = 300
	ErrCatalogProbeFailed Code = 301
)

// Error is the planner's single exception type. It never carries a
// machine-readable payload beyond its Code; spec.md §6 specifies the error
// surface as "a single message string".
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() Code { return e.code }

func newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func NewNotANodeTable(alias string) *Error {
	return newf(ErrNotANodeTable, "alias %q in MATCH is not bound to a node table", alias)
}

func NewUnknownEdgeColumn(sourceTable, edgeColumn string) *Error {
	return newf(ErrUnknownEdgeColumn, "edge column %q is not declared on node table %q", edgeColumn, sourceTable)
}

func NewNoBindableEdge(sourceAlias, edgeColumn string) *Error {
	return newf(ErrNoBindableEdge, "edge %q on %q cannot bind any concrete source/sink table pair", edgeColumn, sourceAlias)
}

func NewInvalidPathLength(edgeAlias string, min int, max int, bounded bool) *Error {
	if !bounded {
		return newf(ErrInvalidPathLength, "path %q has invalid length range [%d, unbounded)", edgeAlias, min)
	}
	return newf(ErrInvalidPathLength, "path %q has invalid length range [%d, %d]", edgeAlias, min, max)
}

func NewUnknownSinkTable(edgeAlias, table string) *Error {
	return newf(ErrUnknownSinkTable, "edge %q declares a sink table %q that does not exist", edgeAlias, table)
}

func NewSinkNotReachable(edgeAlias, nextAlias string) *Error {
	return newf(ErrSinkNotReachable, "node %q's concrete table set is disjoint from edge %q's declared sinks", nextAlias, edgeAlias)
}

func NewAmbiguousEdgeAlias(column string) *Error {
	return newf(ErrAmbiguousEdgeAlias, "column reference %q is ambiguous among more than one edge alias", column)
}

func NewDuplicateAlias(alias string) *Error {
	return newf(ErrDuplicateAlias, "alias %q is declared more than once in this query block", alias)
}

func NewNonNodeInMatch(alias string) *Error {
	return newf(ErrNonNodeInMatch, "MATCH references %q, which is not a node", alias)
}

func NewDisconnectedComponent(alias string) *Error {
	return newf(ErrDisconnectedComponent, "internal error: node %q did not join any connected component", alias)
}

func NewNoAdmissibleStartState(componentIndex int) *Error {
	return newf(ErrNoAdmissibleStartState, "internal error: connected component %d has no admissible initial DP state", componentIndex)
}

func NewCatalogLoadFailed(cause error) *Error {
	return &Error{code: ErrCatalogLoadFailed, message: "failed to load graph catalog metadata", cause: errors.WithStack(cause)}
}

func NewCatalogProbeFailed(probe string, cause error) *Error {
	return &Error{code: ErrCatalogProbeFailed, message: fmt.Sprintf("catalog probe %q failed", probe), cause: errors.WithStack(cause)}
}

// IsCode reports whether err is a *Error carrying the given code.
func IsCode(err error, code Code) bool {
	ge, ok := err.(*Error)
	if !ok {
		return false
	}
	return ge.code == code
}
