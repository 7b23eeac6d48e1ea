package graphmatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphview/planner/internal/ast"
)

func TestEmitAppendsFromAndResidualPredicates(t *testing.T) {
	comp := newConnectedComponent()
	node := &MatchNode{
		Alias:     "a",
		JoinAlias: "a",
		Table:     ast.NewObjectName("dbo", "Person"),
		Predicates: []ast.Expr{&ast.BinaryExpr{Op: ">", Left: &ast.ColumnRef{Alias: "a", Column: "Age"}, Right: &ast.Literal{Value: 30}}},
	}
	comp.addNode(node)

	graph := newMatchGraph()
	graph.Components = append(graph.Components, comp)
	graph.nodesByAlias["a"] = node

	plan := newMatchComponent(buildComponentIndex(comp))
	plan.tableRef = &ast.NamedTableRef{Schema: "dbo", Table: "Person", Alias: "a"}

	qb := &ast.QueryBlock{Match: &ast.MatchClause{Paths: []ast.MatchPath{{}}}}
	Emit(qb, graph, map[*ConnectedComponent]*MatchComponent{comp: plan})

	require.Nil(t, qb.Match)
	_, ok := qb.From.(*ast.NamedTableRef)
	require.True(t, ok)
	require.NotNil(t, qb.Where)
}

func TestEmitRelocatesPredicateForExternalAlias(t *testing.T) {
	comp := newConnectedComponent()
	node := &MatchNode{
		Alias:      "a",
		JoinAlias:  "a_inner",
		External:   true,
		Table:      ast.NewObjectName("dbo", "Person"),
		Predicates: []ast.Expr{&ast.ColumnRef{Alias: "a", Column: "Age"}},
	}
	comp.addNode(node)

	graph := newMatchGraph()
	graph.Components = append(graph.Components, comp)
	graph.nodesByAlias["a"] = node

	plan := newMatchComponent(buildComponentIndex(comp))
	plan.tableRef = &ast.NamedTableRef{Schema: "dbo", Table: "Person", Alias: "a_inner"}

	qb := &ast.QueryBlock{}
	Emit(qb, graph, map[*ConnectedComponent]*MatchComponent{comp: plan})

	conjuncts := ast.SplitConjuncts(qb.Where)
	require.Len(t, conjuncts, 1)
	ref := conjuncts[0].(*ast.ColumnRef)
	require.Equal(t, "a_inner", ref.Alias)
}

// TestEmitReplicatesSplitNodePredicateWithNumberedAliases drives a real
// split through the DP (splitTriggeringGraph, dp_test.go) rather than
// fabricating plan state, and checks the emitted WHERE clause matches
// spec.md §8 scenario 6: the predicate on the split node appears exactly
// split_count times, suffixed _1.._n, with no bare alias left over.
func TestEmitReplicatesSplitNodePredicateWithNumberedAliases(t *testing.T) {
	comp, idx, state, _ := splitTriggeringGraph(t)
	candidates := extend(idx, state)
	require.Len(t, candidates, 1)
	plan := candidates[0]
	require.Equal(t, 2, plan.splitCountOf("a"))

	graph := newMatchGraph()
	graph.Components = append(graph.Components, comp)

	qb := &ast.QueryBlock{}
	Emit(qb, graph, map[*ConnectedComponent]*MatchComponent{comp: plan})

	var ageChecks []*ast.ColumnRef
	for _, c := range ast.SplitConjuncts(qb.Where) {
		b, ok := c.(*ast.BinaryExpr)
		if !ok || b.Op != ">" {
			continue
		}
		if ref, ok := b.Left.(*ast.ColumnRef); ok && ref.Column == "Age" {
			ageChecks = append(ageChecks, ref)
		}
	}
	require.Len(t, ageChecks, 2)
	require.Equal(t, "a_1", ageChecks[0].Alias)
	require.Equal(t, "a_2", ageChecks[1].Alias)

	for _, c := range ast.SplitConjuncts(qb.Where) {
		require.False(t, ast.CollectAliases(c)["a"], "bare alias \"a\" must not survive once split")
	}
	require.False(t, collectTableRefAliases(qb.From)["a"], "FROM must rename the original scan to a_1")
	require.True(t, collectTableRefAliases(qb.From)["a_1"], "FROM must scan the original node under a_1")
}

func collectTableRefAliases(ref ast.TableRef) map[string]bool {
	out := make(map[string]bool)
	var walk func(ast.TableRef)
	walk = func(r ast.TableRef) {
		switch v := r.(type) {
		case *ast.NamedTableRef:
			out[v.Alias] = true
		case *ast.JoinRef:
			walk(v.Left)
			walk(v.Right)
		}
	}
	walk(ref)
	return out
}
