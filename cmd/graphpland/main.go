// Command graphpland is a demonstration driver for the graph-pattern join
// planner: it wires a canned two-hop MATCH pattern against an in-memory
// FakeProbe and prints the resulting FROM/WHERE tree, the way matrixone's
// cmd/mo-service exercises a single service against a config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/catalog"
	"github.com/graphview/planner/internal/graphmatch"
	"github.com/graphview/planner/internal/logutil"
	"github.com/graphview/planner/internal/planner"
)

// Config is the demo command's tunable knobs, loaded from a TOML file.
type Config struct {
	MaxStates       int     `toml:"max_states"`
	LowerBoundSlack float64 `toml:"lower_bound_slack"`
	DefaultDensity  float64 `toml:"default_density"`
}

func main() {
	cfgPath := flag.String("cfg", "", "path to a graphpland TOML config file")
	flag.Parse()

	cfg := Config{MaxStates: 100}
	if *cfgPath != "" {
		if _, err := toml.DecodeFile(*cfgPath, &cfg); err != nil {
			logutil.Error("failed to read config", zap.Error(err))
			os.Exit(1)
		}
	}

	probe := demoProbe()
	p := planner.New(probe, graphmatch.Options{
		MaxStates:       cfg.MaxStates,
		LowerBoundSlack: cfg.LowerBoundSlack,
	}, cfg.DefaultDensity)

	qb := demoQueryBlock()
	bindings := graphmatch.AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
		"c": ast.NewObjectName("dbo", "Person"),
	}

	if err := p.Plan(context.Background(), bindings, qb); err != nil {
		fmt.Fprintln(os.Stderr, "plan failed:", err)
		os.Exit(1)
	}

	fmt.Println("FROM:", describeTableRef(qb.From))
	fmt.Println("WHERE:", describeExpr(qb.Where))
}

// demoQueryBlock builds the pattern
// MATCH (a)-[Knows]->(b)-[Knows]->(c) WHERE a.Age > 30. The edges carry no
// alias, so the constructor synthesizes a_Knows_b and b_Knows_c.
func demoQueryBlock() *ast.QueryBlock {
	return &ast.QueryBlock{
		Select: []ast.SelectItem{{Expr: &ast.ColumnRef{Alias: "a", Column: "Name"}}},
		Where: &ast.BinaryExpr{
			Op:   ">",
			Left: &ast.ColumnRef{Alias: "a", Column: "Age"},
			Right: &ast.Literal{Value: 30},
		},
		Match: &ast.MatchClause{
			Paths: []ast.MatchPath{{
				Steps: []*ast.MatchStep{
					{SourceAlias: "a", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "b"},
					{SourceAlias: "b", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "c"},
				},
			}},
		},
	}
}

func demoProbe() *catalog.FakeProbe {
	probe := catalog.NewFakeProbe()
	probe.Rows = []catalog.MetadataRow{
		{RoleTag: 0, TableSchema: "dbo", TableName: "Person", ColumnName: "GlobalNodeId", ColumnRole: catalog.RoleNodeID, ColumnID: 1},
		{RoleTag: 0, TableSchema: "dbo", TableName: "Person", ColumnName: "Age", ColumnRole: catalog.RoleProperty, ColumnID: 2},
		{RoleTag: 0, TableSchema: "dbo", TableName: "Person", ColumnName: "Knows", ColumnRole: catalog.RoleEdge, Reference: "Person", ColumnID: 3},
	}
	probe.NodeRowsByTable["dbo.person"] = catalog.NodeRowResult{EstimatedRows: 10000, TableRowCount: 10000}
	probe.EdgeDegrees["dbo.person.knows"] = catalog.EdgeDegreeResult{
		SampleRowCount: 1000,
		BlobSize:       1000,
		AverageDegree:  5,
		Histogram:      map[string]catalog.HistogramBucket{"Person": {Frequency: 1000}},
	}
	probe.Densities["dbo.person"] = catalog.DensityResult{Density: 0.0002, Present: true}
	return probe
}

func describeTableRef(t ast.TableRef) string {
	switch v := t.(type) {
	case nil:
		return "<empty>"
	case *ast.NamedTableRef:
		return fmt.Sprintf("%s.%s AS %s", v.Schema, v.Table, v.Alias)
	case *ast.JoinRef:
		return fmt.Sprintf("(%s JOIN %s ON %s)", describeTableRef(v.Left), describeTableRef(v.Right), describeExpr(v.On))
	default:
		return "<unknown>"
	}
}

func describeExpr(e ast.Expr) string {
	switch v := e.(type) {
	case nil:
		return "<none>"
	case *ast.ColumnRef:
		return fmt.Sprintf("%s.%s", v.Alias, v.Column)
	case *ast.Literal:
		return fmt.Sprintf("%v", v.Value)
	case *ast.BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", describeExpr(v.Left), v.Op, describeExpr(v.Right))
	case *ast.FuncCall:
		args := ""
		for i, a := range v.Args {
			if i > 0 {
				args += ", "
			}
			args += describeExpr(a)
		}
		return fmt.Sprintf("%s.%s(%s)", v.Schema, v.Name, args)
	default:
		return "<unknown>"
	}
}
