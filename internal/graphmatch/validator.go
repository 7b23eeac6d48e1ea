package graphmatch

import (
	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/catalog"
	"github.com/graphview/planner/internal/ci"
	"github.com/graphview/planner/internal/gerr"
)

// AliasBinding is the alias -> table-object map the validator and
// constructor consult for every alias appearing in the MATCH clause. A
// real host engine derives this from the FROM clause and from table
// defaults it assigns to otherwise-unbound path aliases; building that
// binding is the "alias assignment" collaborator spec.md §1 keeps out of
// scope, so callers of this package supply it directly.
type AliasBinding map[string]ast.ObjectName

// Validate walks every (source-node, edge, next-node) triple in every path
// and checks the conditions spec.md §4.2 lists. It returns the first
// violation found as a *gerr.Error.
func Validate(meta *catalog.GraphMetaData, bindings AliasBinding, match *ast.MatchClause) error {
	for _, path := range match.Paths {
		for _, step := range path.Steps {
			if err := validateStep(meta, bindings, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateStep(meta *catalog.GraphMetaData, bindings AliasBinding, step *ast.MatchStep) error {
	sourceTable, ok := bindings[step.SourceAlias]
	if !ok {
		return gerr.NewNotANodeTable(step.SourceAlias)
	}
	if !meta.IsNodeTable(sourceTable.Schema, sourceTable.Base) && !meta.IsNodeView(sourceTable.Schema, sourceTable.Base) {
		return gerr.NewNotANodeTable(step.SourceAlias)
	}

	edgeInfo, err := resolveEdgeInfo(meta, sourceTable, step)
	if err != nil {
		return err
	}

	if step.MinLength < 0 {
		return gerr.NewInvalidPathLength(step.EdgeAlias, step.MinLength, step.MaxLength, !step.MaxUnbounded)
	}
	if !step.MaxUnbounded && step.MinLength > step.MaxLength {
		return gerr.NewInvalidPathLength(step.EdgeAlias, step.MinLength, step.MaxLength, true)
	}

	for _, sink := range edgeInfo.SinkNodes {
		if !meta.IsNodeTable(sourceTable.Schema, sink) && !meta.IsNodeView(sourceTable.Schema, sink) {
			return gerr.NewUnknownSinkTable(step.EdgeAlias, sink)
		}
	}

	if nextTable, ok := bindings[step.NextAlias]; ok {
		if !meta.IsNodeTable(nextTable.Schema, nextTable.Base) && !meta.IsNodeView(nextTable.Schema, nextTable.Base) {
			return gerr.NewNotANodeTable(step.NextAlias)
		}
		candidates := meta.ConcreteTablesOf(nextTable.Schema, nextTable.Base)
		if !intersects(candidates, edgeInfo.SinkNodes) {
			return gerr.NewSinkNotReachable(step.EdgeAlias, step.NextAlias)
		}
	}

	return nil
}

// resolveEdgeInfo resolves the edge column's declared sink set, checking
// view indirection: if sourceTable is a node view, the edge column must
// bind on at least one concrete member table (spec.md §4.2: "the edge
// cannot bind any concrete source/sink pair (view indirection resolved)").
func resolveEdgeInfo(meta *catalog.GraphMetaData, sourceTable ast.ObjectName, step *ast.MatchStep) (*catalog.EdgeInfo, error) {
	for _, concreteTable := range meta.ConcreteTablesOf(sourceTable.Schema, sourceTable.Base) {
		nc, ok := meta.EdgeColumnOnTable(sourceTable.Schema, concreteTable, step.EdgeColumn)
		if ok {
			return nc.EdgeInfo, nil
		}
	}
	if meta.IsNodeTable(sourceTable.Schema, sourceTable.Base) {
		return nil, gerr.NewUnknownEdgeColumn(sourceTable.Base, step.EdgeColumn)
	}
	return nil, gerr.NewNoBindableEdge(step.SourceAlias, step.EdgeColumn)
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[ci.Key(x)] = true
	}
	for _, y := range b {
		if set[ci.Key(y)] {
			return true
		}
	}
	return false
}
