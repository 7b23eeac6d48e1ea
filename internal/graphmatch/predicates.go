package graphmatch

import "github.com/graphview/planner/internal/ast"

// AttachPredicates implements spec.md §4.4: every conjunct of the WHERE
// clause whose referenced aliases fall entirely under one node or edge
// alias is moved onto that node's/edge's Predicates list; everything else
// remains in the residual WHERE clause.
func AttachPredicates(qb *ast.QueryBlock, graph *MatchGraph) {
	conjuncts := ast.SplitConjuncts(qb.Where)
	residual := make([]ast.Expr, 0, len(conjuncts))

	for _, pred := range conjuncts {
		if !attachSingleAliasPredicate(pred, graph) {
			residual = append(residual, pred)
		}
	}

	qb.Where = ast.ConjoinAll(residual)
	recomputeTailFlags(graph)
}

func attachSingleAliasPredicate(pred ast.Expr, graph *MatchGraph) bool {
	aliases := ast.CollectAliases(pred)
	if len(aliases) != 1 {
		return false
	}
	var alias string
	for a := range aliases {
		alias = a
	}
	if node, ok := graph.NodeByAlias(alias); ok {
		node.Predicates = append(node.Predicates, pred)
		return true
	}
	if edge, ok := graph.EdgeByAlias(alias); ok {
		edge.Predicates = append(edge.Predicates, pred)
		return true
	}
	return false
}

// recomputeTailFlags refreshes each component's tail-node marks now that
// predicates are known: a node that carries a predicate contributes a
// usable column and is never a tail, even with no outgoing edges (spec.md
// §GLOSSARY: "Tail node").
func recomputeTailFlags(graph *MatchGraph) {
	for _, comp := range graph.Components {
		for _, node := range comp.OrderedNodes() {
			comp.IsTail[node] = len(node.Neighbors) == 0 && len(node.Predicates) == 0
		}
	}
}
