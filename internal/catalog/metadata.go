// Package catalog loads and holds GraphMetaData (spec.md §3, §4.1): the
// process-scoped, read-only description of node tables, edge columns, node
// views, and edge views that the validator and pattern constructor consult.
package catalog

import (
	"github.com/graphview/planner/internal/ci"
)

// Role classifies a column found on a node table (spec.md §3, §4.1).
type Role int

const (
	RoleProperty Role = iota
	RoleEdge
	RoleEdgeView
	RoleNodeID
)

// EdgeColumnRef names one concrete (source-table, edge-column) pair behind
// an edge view.
type EdgeColumnRef struct {
	SourceTable string
	EdgeColumn  string
}

// EdgeInfo describes an edge or edge-view column (spec.md §3).
type EdgeInfo struct {
	// SinkNodes is the declared set of sink node tables, in first-seen
	// (insertion) order, kept as a slice rather than an unordered set so
	// FirstSinkNode is deterministic. Edge-view loading does not pick a
	// single sink: it unions the sinks of every member edge.
	SinkNodes []string

	// EdgeColumns is populated for edge views: the concrete edges unioned
	// together, in column_id order (spec.md §4.1).
	EdgeColumns []EdgeColumnRef

	ColumnAttributes []string
}

func (e *EdgeInfo) hasSinkNode(table string) bool {
	for _, s := range e.SinkNodes {
		if ci.Equal(s, table) {
			return true
		}
	}
	return false
}

func (e *EdgeInfo) addSinkNode(table string) {
	if !e.hasSinkNode(table) {
		e.SinkNodes = append(e.SinkNodes, table)
	}
}

// FirstSinkNode returns the sink table a single-sink edge column binds to.
// Per spec.md §9, when an edge declares more than one sink this is
// order-dependent by design; callers that need a unique bound table should
// instead check len(SinkNodes) and handle ambiguity explicitly.
func (e *EdgeInfo) FirstSinkNode() (string, bool) {
	if len(e.SinkNodes) == 0 {
		return "", false
	}
	return e.SinkNodes[0], true
}

// NodeColumns is one entry of columns_of_node_tables (spec.md §3).
type NodeColumns struct {
	Role     Role
	EdgeInfo *EdgeInfo // non-nil when Role is RoleEdge or RoleEdgeView
}

type tableKey struct {
	schema string
	table  string
}

func newTableKey(schema, table string) tableKey {
	return tableKey{schema: ci.Key(schema), table: ci.Key(table)}
}

// GraphMetaData is process-scoped and immutable after Load (spec.md §3, §5:
// "read-only after loading and may be freely shared across concurrent
// planner instances").
type GraphMetaData struct {
	columnsOfNodeTables map[tableKey]map[string]*NodeColumns
	nodeViewMapping     map[tableKey][]string // schema+view -> concrete table names, insertion order
}

func newGraphMetaData() *GraphMetaData {
	return &GraphMetaData{
		columnsOfNodeTables: make(map[tableKey]map[string]*NodeColumns),
		nodeViewMapping:     make(map[tableKey][]string),
	}
}

// IsNodeTable reports whether (schema, table) is a known concrete node
// table (i.e. has column metadata loaded directly, as opposed to being a
// view name that only appears in nodeViewMapping).
func (g *GraphMetaData) IsNodeTable(schema, table string) bool {
	_, ok := g.columnsOfNodeTables[newTableKey(schema, table)]
	return ok
}

// IsNodeView reports whether (schema, table) names a node view.
func (g *GraphMetaData) IsNodeView(schema, table string) bool {
	_, ok := g.nodeViewMapping[newTableKey(schema, table)]
	return ok
}

// ConcreteTablesOf resolves a node table or node view to its concrete node
// table set. A plain node table resolves to itself.
func (g *GraphMetaData) ConcreteTablesOf(schema, table string) []string {
	if tables, ok := g.nodeViewMapping[newTableKey(schema, table)]; ok {
		return tables
	}
	return []string{table}
}

// Column looks up a single column's metadata on a node table.
func (g *GraphMetaData) Column(schema, table, column string) (*NodeColumns, bool) {
	cols, ok := g.columnsOfNodeTables[newTableKey(schema, table)]
	if !ok {
		return nil, false
	}
	nc, ok := cols[ci.Key(column)]
	return nc, ok
}

// Columns returns every column known for a node table.
func (g *GraphMetaData) Columns(schema, table string) map[string]*NodeColumns {
	return g.columnsOfNodeTables[newTableKey(schema, table)]
}

func (g *GraphMetaData) setColumn(schema, table, column string, nc *NodeColumns) {
	k := newTableKey(schema, table)
	cols, ok := g.columnsOfNodeTables[k]
	if !ok {
		cols = make(map[string]*NodeColumns)
		g.columnsOfNodeTables[k] = cols
	}
	cols[ci.Key(column)] = nc
}

func (g *GraphMetaData) addNodeViewMember(schema, view, concreteTable string) {
	k := newTableKey(schema, view)
	for _, t := range g.nodeViewMapping[k] {
		if ci.Equal(t, concreteTable) {
			return
		}
	}
	g.nodeViewMapping[k] = append(g.nodeViewMapping[k], concreteTable)
}

// EdgeColumnOnTable returns the EdgeInfo for an edge or edge-view column
// declared on (schema, table), resolving the column-role check the
// validator needs (spec.md §4.2).
func (g *GraphMetaData) EdgeColumnOnTable(schema, table, edgeColumn string) (*NodeColumns, bool) {
	nc, ok := g.Column(schema, table, edgeColumn)
	if !ok {
		return nil, false
	}
	if nc.Role != RoleEdge && nc.Role != RoleEdgeView {
		return nil, false
	}
	return nc, true
}
