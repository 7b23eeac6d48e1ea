package graphmatch

import (
	"strconv"

	"github.com/graphview/planner/internal/ast"
)

// Emit folds a completed DP plan per component into the query block's FROM
// and WHERE clauses and clears the MATCH clause, per spec.md §4.7. plans
// must have exactly one entry per entry of graph.Components.
func Emit(qb *ast.QueryBlock, graph *MatchGraph, plans map[*ConnectedComponent]*MatchComponent) {
	for _, comp := range graph.Components {
		plan := plans[comp]
		if plan == nil {
			continue
		}

		// A split node's original occurrence was scanned under its bare
		// alias before the DP could know it would later be split, so the
		// physical scan alias in tableRef and any extraCondition that
		// references it is renamed to _1 up front, keeping FROM and WHERE
		// consistent; the later replica copies were already scanned under
		// their own _2.._n aliases by graftSplit.
		for _, node := range comp.OrderedNodes() {
			if plan.splitCountOf(node.Alias) == 0 {
				continue
			}
			firstAlias := node.Alias + "_1"
			plan.tableRef = renameTableRefAlias(plan.tableRef, node.Alias, firstAlias)
			for i, cond := range plan.extraConditions {
				plan.extraConditions[i] = ast.RenameAlias(cond, node.Alias, firstAlias)
			}
		}

		qb.AppendFrom(plan.tableRef)

		for _, cond := range plan.extraConditions {
			qb.AppendWhere(cond)
		}

		for _, node := range comp.OrderedNodes() {
			if n := plan.splitCountOf(node.Alias); n > 0 {
				appendSplitNodePredicates(qb, node, n)
				continue
			}
			for _, pred := range node.Predicates {
				qb.AppendWhere(relocatePredicate(pred, node))
			}
		}
		for _, edge := range comp.OrderedEdges() {
			for _, pred := range edge.Predicates {
				qb.AppendWhere(pred)
			}
		}
	}

	qb.Match = nil
}

// appendSplitNodePredicates implements spec.md §4.7 step 3 for a node with
// materialized_node_split_count = n > 0: the node's own filters are rewritten
// into exactly n copies, aliased _1.._n, with no bare/unsuffixed occurrence
// left over (spec.md §8 scenario 6).
func appendSplitNodePredicates(qb *ast.QueryBlock, node *MatchNode, n int) {
	for k := 1; k <= n; k++ {
		replicaAlias := node.Alias + "_" + strconv.Itoa(k)
		for _, pred := range node.Predicates {
			qb.AppendWhere(ast.RenameAlias(pred, node.Alias, replicaAlias))
		}
	}
}

// renameTableRefAlias returns a copy of ref with every NamedTableRef.Alias
// and join condition referencing oldAlias rewritten to newAlias.
func renameTableRefAlias(ref ast.TableRef, oldAlias, newAlias string) ast.TableRef {
	switch r := ref.(type) {
	case nil:
		return nil
	case *ast.NamedTableRef:
		if r.Alias != oldAlias {
			return r
		}
		return &ast.NamedTableRef{Schema: r.Schema, Table: r.Table, Alias: newAlias}
	case *ast.JoinRef:
		return &ast.JoinRef{
			Left:  renameTableRefAlias(r.Left, oldAlias, newAlias),
			Right: renameTableRefAlias(r.Right, oldAlias, newAlias),
			Type:  r.Type,
			On:    ast.RenameAlias(r.On, oldAlias, newAlias),
		}
	default:
		return ref
	}
}

// relocatePredicate rewrites a node predicate onto the node's physical scan
// alias: for an ordinary node this is a no-op, but an externally
// rematerialized node is scanned under "<alias>_inner" while its own
// predicate was written against the original alias (spec.md §4.3
// "rematerialize-external", §8 scenario 5).
func relocatePredicate(pred ast.Expr, node *MatchNode) ast.Expr {
	if node.JoinAlias == node.Alias {
		return pred
	}
	return ast.RenameAlias(pred, node.Alias, node.JoinAlias)
}

// downsizeGuard builds the DOWNSIZE-guard disjunction that graftSplit (dp.go)
// ANDs into a split copy's entry join: DownSizeFunction(alias.LocalNodeId) = '1'
// OR ... = '2', the guard the source system uses to break the tie between
// two physical join orders that would otherwise double-count the same
// underlying graph node reached through two different alias paths
// (spec.md §3 father_list_of_down_size_table, §4.7 step 2).
func downsizeGuard(alias string) ast.Expr {
	call := func(value string) ast.Expr {
		return &ast.BinaryExpr{
			Op: "=",
			Left: &ast.FuncCall{
				Schema: "dbo",
				Name:   "DownSizeFunction",
				Args:   []ast.Expr{&ast.ColumnRef{Alias: alias, Column: "LocalNodeId"}},
			},
			Right: &ast.Literal{Value: value},
		}
	}
	return &ast.BinaryExpr{Op: "OR", Left: call("1"), Right: call("2")}
}
