package graphmatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/catalog"
)

func TestEstimateFillsNodeAndEdgeStatistics(t *testing.T) {
	meta := buildMeta(t)
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
	}
	qb := &ast.QueryBlock{
		Match: &ast.MatchClause{Paths: []ast.MatchPath{{
			Steps: []*ast.MatchStep{{SourceAlias: "a", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "b"}},
		}}},
	}
	graph, err := Build(meta, bindings, qb)
	require.NoError(t, err)

	probe := catalog.NewFakeProbe()
	probe.NodeRowsByTable["dbo.person"] = catalog.NodeRowResult{EstimatedRows: 500, TableRowCount: 500}
	probe.EdgeDegrees["dbo.person.knows"] = catalog.EdgeDegreeResult{
		SampleRowCount: 100,
		BlobSize:       200,
		AverageDegree:  4,
		Histogram:      map[string]catalog.HistogramBucket{"Person": {Frequency: 100}},
	}
	probe.Densities["dbo.person"] = catalog.DensityResult{Density: 0.001, Present: true}

	require.NoError(t, Estimate(context.Background(), probe, graph, 0.0001))

	a, _ := graph.NodeByAlias("a")
	require.Equal(t, 500.0, a.EstimatedRows)
	require.Equal(t, 0.001, a.GlobalNodeIDDensity)

	edge, _ := graph.EdgeByAlias("a_Knows_b")
	require.Equal(t, 4.0*200/100, edge.Stats.AverageDegree)
	require.Equal(t, "Person", edge.Stats.MaxValue)
	require.Equal(t, 1.0, edge.Stats.Selectivity)
}

func TestEstimateFallsBackToDefaultDensityWhenAbsent(t *testing.T) {
	meta := buildMeta(t)
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
	}
	qb := &ast.QueryBlock{
		Match: &ast.MatchClause{Paths: []ast.MatchPath{{
			Steps: []*ast.MatchStep{{SourceAlias: "a", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "b"}},
		}}},
	}
	graph, err := Build(meta, bindings, qb)
	require.NoError(t, err)

	probe := catalog.NewFakeProbe()
	probe.NodeRowsByTable["dbo.person"] = catalog.NodeRowResult{EstimatedRows: 10, TableRowCount: 10}
	probe.EdgeDegrees["dbo.person.knows"] = catalog.EdgeDegreeResult{AverageDegree: 2}
	// Densities left empty: Present will be false.

	require.NoError(t, Estimate(context.Background(), probe, graph, 0.25))

	a, _ := graph.NodeByAlias("a")
	require.Equal(t, 0.25, a.GlobalNodeIDDensity)
}

func TestEdgeDegreeScalesForVariableLengthPath(t *testing.T) {
	e := &MatchEdge{
		Stats: EdgeStatistics{AverageDegree: 2},
		Path:  &PathInfo{MinLength: 1, MaxLength: 3},
	}
	// degree^3 - degree^0 = 8 - 1 = 7
	require.Equal(t, 7.0, e.Degree())
}

func TestEdgeDegreeIsUnboundedWhenDegreeExceedsOne(t *testing.T) {
	e := &MatchEdge{
		Stats: EdgeStatistics{AverageDegree: 2},
		Path:  &PathInfo{MinLength: 1, MaxUnbounded: true},
	}
	require.Equal(t, posInf, e.Degree())
}
