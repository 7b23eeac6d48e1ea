package graphmatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/catalog"
)

func planFixtureProbe() *catalog.FakeProbe {
	probe := catalog.NewFakeProbe()
	probe.NodeRowsByTable["dbo.person"] = catalog.NodeRowResult{EstimatedRows: 1000, TableRowCount: 1000}
	probe.EdgeDegrees["dbo.person.knows"] = catalog.EdgeDegreeResult{
		SampleRowCount: 100,
		BlobSize:       100,
		AverageDegree:  3,
		Histogram:      map[string]catalog.HistogramBucket{"Person": {Frequency: 100}},
	}
	probe.Densities["dbo.person"] = catalog.DensityResult{Density: 0.001, Present: true}
	return probe
}

func buildAndEstimate(t *testing.T, bindings AliasBinding, qb *ast.QueryBlock) *MatchGraph {
	t.Helper()
	meta := buildMeta(t)
	graph, err := Build(meta, bindings, qb)
	require.NoError(t, err)
	require.NoError(t, Estimate(context.Background(), planFixtureProbe(), graph, 0.0001))
	return graph
}

func TestPlanComponentSingletonNode(t *testing.T) {
	node := &MatchNode{Alias: "solo", JoinAlias: "solo", Table: ast.NewObjectName("dbo", "Person"), EstimatedRows: 42}
	comp := newConnectedComponent()
	comp.addNode(node)
	comp.IsTail[node] = true

	plan, err := PlanComponent(comp, 0, Options{})
	require.NoError(t, err)
	require.True(t, plan.isComplete())
	require.Equal(t, 1, plan.nodeCount())
	require.Equal(t, 0, plan.edgeCount())
	require.Equal(t, 42.0, plan.cost)
}

func TestBuildWithNoPathsProducesNoComponents(t *testing.T) {
	meta := buildMeta(t)
	soloBindings := AliasBinding{"solo": ast.NewObjectName("dbo", "Person")}
	soloQB := &ast.QueryBlock{Match: &ast.MatchClause{Paths: []ast.MatchPath{}}}
	soloGraph, err := Build(meta, soloBindings, soloQB)
	require.NoError(t, err)
	require.Empty(t, soloGraph.Components)
}

func TestPlanComponentTwoHopChainIsComplete(t *testing.T) {
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
		"c": ast.NewObjectName("dbo", "Person"),
	}
	graph := buildAndEstimate(t, bindings, twoHopQueryBlock())
	require.Len(t, graph.Components, 1)

	plan, err := PlanComponent(graph.Components[0], 0, Options{})
	require.NoError(t, err)
	require.True(t, plan.isComplete())
	require.Equal(t, 3, plan.nodeCount())
	require.Equal(t, 2, plan.edgeCount())
	require.NotNil(t, plan.tableRef)
	require.Greater(t, plan.cost, 0.0)
}

func TestPlanComponentClosesTriangleCycle(t *testing.T) {
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
		"c": ast.NewObjectName("dbo", "Person"),
	}
	qb := &ast.QueryBlock{
		Match: &ast.MatchClause{Paths: []ast.MatchPath{{
			Steps: []*ast.MatchStep{
				{SourceAlias: "a", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "b"},
				{SourceAlias: "b", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "c"},
				{SourceAlias: "c", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "a"},
			},
		}}},
	}
	graph := buildAndEstimate(t, bindings, qb)
	require.Len(t, graph.Components, 1)

	plan, err := PlanComponent(graph.Components[0], 0, Options{})
	require.NoError(t, err)
	require.True(t, plan.isComplete())
	require.Equal(t, 3, plan.nodeCount())
	// A triangle's three nodes can be fully joined through only two of its
	// three edges (the third pairs two already-materialized nodes); since
	// termination is defined by "no admissible extension" rather than full
	// edge coverage, a cheaper two-edge completion is a legitimate winner.
	require.GreaterOrEqual(t, plan.edgeCount(), 2)
	require.NotNil(t, plan.tableRef)
}

// splitTriggeringGraph builds a-[e1]->b-[e2]->c-[e3]->a (a cycle through a)
// plus a-[e4]->d (a fresh neighbor hanging off a), with a materialized
// component of {a,b,c} and only e1/e2 joined — the shape spec.md §8
// scenario 6 describes: node a must be split to close e3 back to c while
// still reaching the brand-new node d.
func splitTriggeringGraph(t *testing.T) (*ConnectedComponent, *componentIndex, *MatchComponent, *MatchNode) {
	t.Helper()
	nodeA := &MatchNode{
		Alias: "a", JoinAlias: "a", Table: ast.NewObjectName("dbo", "Person"), EstimatedRows: 500,
		Predicates: []ast.Expr{&ast.BinaryExpr{Op: ">", Left: &ast.ColumnRef{Alias: "a", Column: "Age"}, Right: &ast.Literal{Value: 30}}},
	}
	nodeB := &MatchNode{Alias: "b", JoinAlias: "b", Table: ast.NewObjectName("dbo", "Person"), EstimatedRows: 500}
	nodeC := &MatchNode{Alias: "c", JoinAlias: "c", Table: ast.NewObjectName("dbo", "Person"), EstimatedRows: 500}
	nodeD := &MatchNode{Alias: "d", JoinAlias: "d", Table: ast.NewObjectName("dbo", "Person"), EstimatedRows: 500}

	mkEdge := func(alias string, source, sink *MatchNode) *MatchEdge {
		return &MatchEdge{
			Source: source, SinkNode: sink, EdgeColumn: "Knows", Alias: alias,
			BoundTable: ast.NewObjectName("dbo", "Person"),
			Stats:      EdgeStatistics{AverageDegree: 2},
		}
	}
	e1 := mkEdge("e1", nodeA, nodeB)
	e2 := mkEdge("e2", nodeB, nodeC)
	e3 := mkEdge("e3", nodeC, nodeA)
	e4 := mkEdge("e4", nodeA, nodeD)

	comp := newConnectedComponent()
	for _, n := range []*MatchNode{nodeA, nodeB, nodeC, nodeD} {
		comp.addNode(n)
	}
	for _, e := range []*MatchEdge{e1, e2, e3, e4} {
		comp.addEdge(e)
	}

	idx := buildComponentIndex(comp)

	state := newMatchComponent(idx)
	state.addNode("a")
	state.addNode("b")
	state.addNode("c")
	state.addEdge("e1", DirOutgoing)
	state.addEdge("e2", DirOutgoing)
	state.tableRef = &ast.JoinRef{
		Left:  &ast.JoinRef{Left: scanRef(nodeA), Right: scanRef(nodeB), Type: ast.JoinInner, On: edgeCondition(e1, "a", "b")},
		Right: scanRef(nodeC),
		Type:  ast.JoinInner,
		On:    edgeCondition(e2, "b", "c"),
	}
	state.size = 500
	state.cost = 500

	return comp, idx, state, nodeA
}

func TestGraftSplitEntersThroughMaterializedEdgeAndCompletesTheComponent(t *testing.T) {
	_, idx, state, _ := splitTriggeringGraph(t)

	candidates := extend(idx, state)
	require.Len(t, candidates, 1)

	plan := candidates[0]
	require.True(t, plan.isComplete())
	require.Equal(t, 4, plan.nodeCount())
	require.Equal(t, 4, plan.edgeCount())
	require.Equal(t, 2, plan.splitCountOf("a"))

	// The split copy's entry join (one level below the final join, which
	// grafts d on afterward) carries both the edge-decode condition and
	// the DOWNSIZE guard (spec.md §4.7 step 2).
	outer, ok := plan.tableRef.(*ast.JoinRef)
	require.True(t, ok)
	entryJoin, ok := outer.Left.(*ast.JoinRef)
	require.True(t, ok)
	guard, ok := entryJoin.On.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "AND", guard.Op)
	downsize, ok := guard.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "OR", downsize.Op)
}

func TestPlanComponentRespectsMaxStatesBeamWidth(t *testing.T) {
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
		"c": ast.NewObjectName("dbo", "Person"),
	}
	graph := buildAndEstimate(t, bindings, twoHopQueryBlock())

	plan, err := PlanComponent(graph.Components[0], 0, Options{MaxStates: 1})
	require.NoError(t, err)
	require.True(t, plan.isComplete())
}
