// Package graphmatch implements the three coupled subsystems the spec calls
// the planner's core: pattern construction, statistics-driven cardinality
// estimation, and dynamic-programming join-order enumeration (spec.md §1).
package graphmatch

import (
	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/catalog"
)

// MatchNode is a pattern node (spec.md §3).
type MatchNode struct {
	Alias    string
	Table    ast.ObjectName
	External bool // true if the alias is inherited from an outer scope

	// JoinAlias is the physical alias the emitter scans under. It equals
	// Alias except for externally-rematerialized nodes, which are scanned
	// under a fresh "<alias>_inner" alias while the correlation to the
	// outer alias is preserved via a WHERE-clause join (spec.md §4.3
	// "rematerialize-external").
	JoinAlias string

	// Neighbors holds exactly the edges where this node is the source
	// (spec.md §8 invariant).
	Neighbors []*MatchEdge

	Predicates []ast.Expr

	EstimatedRows       float64
	TableRowCount       int64
	GlobalNodeIDDensity float64

	// ConcreteTables is the node's view resolution: itself for a plain
	// node table, or the member tables for a node view.
	ConcreteTables []string
}

// PathInfo extends a MatchEdge into a MatchPath (spec.md §3): a
// variable-length edge carrying a min/max length range.
type PathInfo struct {
	MinLength         int
	MaxLength         int
	MaxUnbounded      bool
	ReferencePathInfo bool
	Attributes        map[string]any
}

// EdgeStatistics is the back-annotated cardinality data for one edge
// (spec.md §3, §4.5).
type EdgeStatistics struct {
	Density       float64
	Histogram     map[string]catalog.HistogramBucket
	RowCount      int64
	MaxValue      string
	Selectivity   float64
	AverageDegree float64
}

// MatchEdge is a pattern edge, or (when Path is non-nil) a MatchPath
// (spec.md §3).
type MatchEdge struct {
	Source     *MatchNode
	EdgeColumn string
	Alias      string
	BoundTable ast.ObjectName // the concrete table declaring EdgeColumn
	SinkNode   *MatchNode     // set in the constructor's chaining pass

	Predicates []ast.Expr
	Stats      EdgeStatistics

	// Path is non-nil exactly when this edge is a variable-length path
	// (min_length/max_length not both 1), per spec.md §4.3 step 4.
	Path *PathInfo
}

func (e *MatchEdge) IsPath() bool { return e.Path != nil }

// Degree returns the edge's effective average degree, accounting for
// variable-length scaling (spec.md §4.5, §8 invariant).
func (e *MatchEdge) Degree() float64 {
	if e.Path == nil {
		return e.Stats.AverageDegree
	}
	d := e.Stats.AverageDegree
	if e.Path.MaxUnbounded {
		if d > 1 {
			return posInf
		}
		return e.Stats.AverageDegree
	}
	if d <= 1 {
		return d
	}
	hi := pow(d, e.Path.MaxLength)
	if e.Path.MinLength > 0 {
		hi -= pow(d, e.Path.MinLength-1)
	}
	return hi
}

const posInf = float64(1 << 62)

func pow(base float64, exp int) float64 {
	if exp <= 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// ConnectedComponent is a maximal set of pattern nodes transitively linked
// by pattern edges (spec.md §3, §GLOSSARY).
type ConnectedComponent struct {
	Nodes  map[string]*MatchNode
	Edges  map[string]*MatchEdge
	IsTail map[*MatchNode]bool

	// NodeOrder/EdgeOrder record first-seen order, since map iteration
	// order is not stable and the DP's iteration must be deterministic
	// given the input (spec.md §5).
	NodeOrder []string
	EdgeOrder []string
}

func newConnectedComponent() *ConnectedComponent {
	return &ConnectedComponent{
		Nodes:  make(map[string]*MatchNode),
		Edges:  make(map[string]*MatchEdge),
		IsTail: make(map[*MatchNode]bool),
	}
}

func (c *ConnectedComponent) addNode(n *MatchNode) {
	if _, exists := c.Nodes[n.Alias]; exists {
		return
	}
	c.Nodes[n.Alias] = n
	c.NodeOrder = append(c.NodeOrder, n.Alias)
}

func (c *ConnectedComponent) addEdge(e *MatchEdge) {
	if _, exists := c.Edges[e.Alias]; exists {
		return
	}
	c.Edges[e.Alias] = e
	c.EdgeOrder = append(c.EdgeOrder, e.Alias)
}

// OrderedNodes returns the component's nodes in first-seen order.
func (c *ConnectedComponent) OrderedNodes() []*MatchNode {
	out := make([]*MatchNode, len(c.NodeOrder))
	for i, alias := range c.NodeOrder {
		out[i] = c.Nodes[alias]
	}
	return out
}

// OrderedEdges returns the component's edges in first-seen order.
func (c *ConnectedComponent) OrderedEdges() []*MatchEdge {
	out := make([]*MatchEdge, len(c.EdgeOrder))
	for i, alias := range c.EdgeOrder {
		out[i] = c.Edges[alias]
	}
	return out
}

// MatchGraph is the full lowered pattern: one or more connected components
// (spec.md §3).
type MatchGraph struct {
	Components []*ConnectedComponent

	nodesByAlias map[string]*MatchNode
	edgesByAlias map[string]*MatchEdge
}

func newMatchGraph() *MatchGraph {
	return &MatchGraph{
		nodesByAlias: make(map[string]*MatchNode),
		edgesByAlias: make(map[string]*MatchEdge),
	}
}

func (g *MatchGraph) NodeByAlias(alias string) (*MatchNode, bool) {
	n, ok := g.nodesByAlias[alias]
	return n, ok
}

func (g *MatchGraph) EdgeByAlias(alias string) (*MatchEdge, bool) {
	e, ok := g.edgesByAlias[alias]
	return e, ok
}

// AllNodes returns every node across every component, in stable insertion
// order (spec.md §5: "stable insertion order of nodes and edges").
func (g *MatchGraph) AllNodes() []*MatchNode {
	out := make([]*MatchNode, 0, len(g.nodesByAlias))
	for _, c := range g.Components {
		out = append(out, c.OrderedNodes()...)
	}
	return out
}

// AllEdges returns every edge across every component.
func (g *MatchGraph) AllEdges() []*MatchEdge {
	out := make([]*MatchEdge, 0, len(g.edgesByAlias))
	for _, c := range g.Components {
		out = append(out, c.OrderedEdges()...)
	}
	return out
}
