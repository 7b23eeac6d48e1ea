package graphmatch

import (
	"fmt"

	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/catalog"
	"github.com/graphview/planner/internal/gerr"
	"github.com/graphview/planner/internal/logutil"
	"go.uber.org/zap"
)

// builder holds the working state of one pattern-construction pass
// (spec.md §4.3). It is discarded once Build returns.
type builder struct {
	meta     *catalog.GraphMetaData
	bindings AliasBinding
	uf       *unionFind
	nodes     map[string]*MatchNode
	nodeOrder []string
	edges     map[string]*MatchEdge
	edgeOrder []string

	// edgeColumnToAliases records, per edge-column name, every edge alias
	// assigned to an edge declaring that column, so the alias-replacement
	// pass can resolve unqualified references (spec.md §4.3 step 2).
	edgeColumnToAliases map[string][]string
}

// Build lowers a validated MATCH clause into a MatchGraph, per spec.md §4.3.
// qb is mutated in place: ambiguous edge-column references in WHERE/SELECT
// are rewritten to their resolved edge alias, externally-scoped aliases are
// rematerialized, and alias.* projections over paths are expanded.
func Build(meta *catalog.GraphMetaData, bindings AliasBinding, qb *ast.QueryBlock) (*MatchGraph, error) {
	b := &builder{
		meta:                meta,
		bindings:             bindings,
		uf:                   newUnionFind(),
		nodes:                make(map[string]*MatchNode),
		edges:                make(map[string]*MatchEdge),
		edgeColumnToAliases:  make(map[string][]string),
	}

	for _, path := range qb.Match.Paths {
		if err := b.buildPath(path); err != nil {
			return nil, err
		}
	}

	graph := b.partitionComponents()

	if err := b.rewriteAmbiguousReferences(qb); err != nil {
		return nil, err
	}

	b.rematerializeExternal(qb, graph)

	if err := rewriteStarProjections(qb, graph); err != nil {
		return nil, err
	}

	return graph, nil
}

func (b *builder) getOrCreateNode(alias string) *MatchNode {
	if n, ok := b.nodes[alias]; ok {
		return n
	}
	table := b.bindings[alias]
	n := &MatchNode{
		Alias:          alias,
		JoinAlias:      alias,
		Table:          table,
		ConcreteTables: b.meta.ConcreteTablesOf(table.Schema, table.Base),
	}
	b.nodes[alias] = n
	b.nodeOrder = append(b.nodeOrder, alias)
	b.uf.add(alias)
	return n
}

func (b *builder) buildPath(path ast.MatchPath) error {
	var previousEdge *MatchEdge

	for _, step := range path.Steps {
		source := b.getOrCreateNode(step.SourceAlias)
		b.getOrCreateNode(step.NextAlias)

		if step.EdgeAlias == "" {
			step.EdgeAlias = fmt.Sprintf("%s_%s_%s", step.SourceAlias, step.EdgeColumn, step.NextAlias)
		}
		b.edgeColumnToAliases[step.EdgeColumn] = append(b.edgeColumnToAliases[step.EdgeColumn], step.EdgeAlias)

		boundTable, err := b.resolveBoundTable(source.Table, step)
		if err != nil {
			return err
		}

		edge := &MatchEdge{
			Source:     source,
			EdgeColumn: step.EdgeColumn,
			Alias:      step.EdgeAlias,
			BoundTable: boundTable,
		}
		if !step.IsSimpleEdge() {
			edge.Path = &PathInfo{
				MinLength:    step.MinLength,
				MaxLength:    step.MaxLength,
				MaxUnbounded: step.MaxUnbounded,
				Attributes:   make(map[string]any),
			}
		}

		if _, exists := b.edges[edge.Alias]; exists {
			return gerr.NewDuplicateAlias(edge.Alias)
		}
		b.edges[edge.Alias] = edge
		b.edgeOrder = append(b.edgeOrder, edge.Alias)

		if previousEdge != nil {
			previousEdge.SinkNode = source
		}
		previousEdge = edge

		b.uf.union(step.SourceAlias, step.NextAlias)
		source.Neighbors = append(source.Neighbors, edge)
	}

	if previousEdge != nil {
		lastStep := path.Steps[len(path.Steps)-1]
		previousEdge.SinkNode = b.nodes[lastStep.NextAlias]
	}

	return nil
}

// resolveBoundTable finds the concrete node table on whose schema the edge
// column is declared, resolving view indirection (spec.md §3 invariants).
func (b *builder) resolveBoundTable(sourceTable ast.ObjectName, step *ast.MatchStep) (ast.ObjectName, error) {
	for _, concreteTable := range b.meta.ConcreteTablesOf(sourceTable.Schema, sourceTable.Base) {
		if _, ok := b.meta.EdgeColumnOnTable(sourceTable.Schema, concreteTable, step.EdgeColumn); ok {
			return ast.NewObjectName(sourceTable.Schema, concreteTable), nil
		}
	}
	return ast.ObjectName{}, gerr.NewNoBindableEdge(step.SourceAlias, step.EdgeColumn)
}

// partitionComponents scans every node and assigns it to the
// ConnectedComponent indexed by its union-find root (spec.md §4.3).
func (b *builder) partitionComponents() *MatchGraph {
	graph := newMatchGraph()
	componentByRoot := make(map[string]*ConnectedComponent)

	for _, alias := range b.nodeOrder {
		node := b.nodes[alias]
		root := b.uf.find(alias)
		comp, ok := componentByRoot[root]
		if !ok {
			comp = newConnectedComponent()
			componentByRoot[root] = comp
			graph.Components = append(graph.Components, comp)
		}
		comp.addNode(node)
		graph.nodesByAlias[alias] = node
		comp.IsTail[node] = len(node.Neighbors) == 0
	}

	for _, alias := range b.edgeOrder {
		edge := b.edges[alias]
		root := b.uf.find(edge.Source.Alias)
		comp := componentByRoot[root]
		comp.addEdge(edge)
		graph.edgesByAlias[alias] = edge
		// An edge's source necessarily has at least one neighbor, so it
		// is never a tail; its sink may still end up a tail if it has no
		// outgoing edges of its own.
		comp.IsTail[edge.Source] = false
	}

	return graph
}

// rewriteAmbiguousReferences rewrites unqualified edge-column references in
// WHERE/SELECT to the (now unique) assigned edge alias (spec.md §4.3).
func (b *builder) rewriteAmbiguousReferences(qb *ast.QueryBlock) error {
	rewrite := func(e ast.Expr) (ast.Expr, error) { return b.rewriteExpr(e) }

	if qb.Where != nil {
		rewritten, err := rewrite(qb.Where)
		if err != nil {
			return err
		}
		qb.Where = rewritten
	}
	for i, item := range qb.Select {
		if item.Expr == nil {
			continue
		}
		rewritten, err := rewrite(item.Expr)
		if err != nil {
			return err
		}
		qb.Select[i].Expr = rewritten
	}
	return nil
}

func (b *builder) rewriteExpr(expr ast.Expr) (ast.Expr, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case *ast.ColumnRef:
		if e.Alias != "" {
			return e, nil
		}
		candidates := b.edgeColumnToAliases[e.Column]
		switch len(candidates) {
		case 0:
			return e, nil
		case 1:
			return &ast.ColumnRef{Alias: candidates[0], Column: e.Column}, nil
		default:
			return nil, gerr.NewAmbiguousEdgeAlias(e.Column)
		}
	case *ast.BinaryExpr:
		left, err := b.rewriteExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.rewriteExpr(e.Right)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: e.Op, Left: left, Right: right}, nil
	case *ast.FuncCall:
		args := make([]ast.Expr, len(e.Args))
		for i, a := range e.Args {
			rewritten, err := b.rewriteExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = rewritten
		}
		return &ast.FuncCall{Schema: e.Schema, Name: e.Name, Args: args}, nil
	default:
		return expr, nil
	}
}

// rematerializeExternal marks nodes inherited from an outer scope and
// arranges for the emitter to scan them under a fresh join alias, tying the
// two together via a WHERE-clause identity join (spec.md §4.3, §8 scenario
// 5).
func (b *builder) rematerializeExternal(qb *ast.QueryBlock, graph *MatchGraph) {
	if qb.Outer == nil {
		return
	}
	for _, node := range graph.AllNodes() {
		if !qb.Outer.Contains(node.Alias) {
			continue
		}
		node.External = true
		node.JoinAlias = node.Alias + "_inner"
		qb.AppendWhere(&ast.BinaryExpr{
			Op:   "=",
			Left: &ast.ColumnRef{Alias: node.Alias, Column: "GlobalNodeId"},
			Right: &ast.ColumnRef{Alias: node.JoinAlias, Column: "GlobalNodeId"},
		})
		logutil.Info("rematerialized external alias", zap.String("alias", node.Alias), zap.String("joinAlias", node.JoinAlias))
	}
}

// rewriteStarProjections expands `alias.*` projections over a MatchPath
// into a decoder-function call (spec.md §4.3 final step, §8 scenario 3).
func rewriteStarProjections(qb *ast.QueryBlock, graph *MatchGraph) error {
	for i, item := range qb.Select {
		star, ok := item.Expr.(*ast.StarRef)
		if !ok {
			continue
		}
		edge, ok := graph.EdgeByAlias(star.Alias)
		if !ok || !edge.IsPath() {
			continue
		}
		edge.Path.ReferencePathInfo = true
		sinkAlias := star.Alias
		if edge.SinkNode != nil {
			sinkAlias = edge.SinkNode.JoinAlias
		}
		decoderName := fmt.Sprintf("%s_%s_%s_PathMessageDecoder", edge.BoundTable.Schema, edge.BoundTable.Base, edge.EdgeColumn)
		qb.Select[i].Expr = &ast.FuncCall{
			Schema: "dbo",
			Name:   decoderName,
			Args: []ast.Expr{
				&ast.ColumnRef{Alias: star.Alias, Column: "PathMessage"},
				&ast.ColumnRef{Alias: sinkAlias, Column: "_NodeType"},
				&ast.ColumnRef{Alias: sinkAlias, Column: "_NodeId"},
			},
		}
	}
	return nil
}
