package graphmatch

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/graphview/planner/internal/ast"
)

// MatchComponent is one candidate partial join tree the DP is building for
// a ConnectedComponent (spec.md §3, §4.6). Node and edge membership is
// tracked with roaring bitmaps over the component's dense indices rather
// than Go maps: states are cloned on every extension, and a join-order
// search over a pattern with a couple dozen edges churns through many
// thousands of them, so membership tests and clones need to be cheap.
type MatchComponent struct {
	idx *componentIndex

	materializedNodes *roaring.Bitmap
	materializedEdges *roaring.Bitmap
	edgeDir           map[uint32]edgeDirection

	// unmaterializedTargets holds nodes reachable from a materialized node
	// through an edge that has not itself been joined yet — the DP's
	// frontier (spec.md §3: "nodes on the far side of a materialized edge
	// but not yet joined").
	unmaterializedTargets *roaring.Bitmap

	size float64
	cost float64

	tableRef ast.TableRef

	// splitCount tracks, per node index, the total number of physical
	// replicas of that node present in the finished plan: 0 means the node
	// was never split and keeps its bare alias; n > 0 means the emitter
	// must rewrite every predicate on that node into n copies suffixed
	// _1.._n, with no bare occurrence left over (spec.md §3
	// materialized_node_split_count, §4.6 admissibility rule (c), §4.7
	// step 3, §8 scenario 6).
	splitCount map[uint32]int

	// extraConditions holds cycle-closing join predicates that reference
	// two already-scanned aliases and therefore add no new table to
	// tableRef — the emitter ANDs these into the residual WHERE clause.
	extraConditions []ast.Expr
}

func newMatchComponent(idx *componentIndex) *MatchComponent {
	return &MatchComponent{
		idx:                    idx,
		materializedNodes:      roaring.New(),
		materializedEdges:      roaring.New(),
		edgeDir:                make(map[uint32]edgeDirection),
		unmaterializedTargets:  roaring.New(),
		splitCount:             make(map[uint32]int),
	}
}

// clone deep-copies the state so a DP extension step never mutates a
// sibling candidate still under consideration.
func (m *MatchComponent) clone() *MatchComponent {
	c := &MatchComponent{
		idx:                   m.idx,
		materializedNodes:     m.materializedNodes.Clone(),
		materializedEdges:     m.materializedEdges.Clone(),
		edgeDir:               make(map[uint32]edgeDirection, len(m.edgeDir)),
		unmaterializedTargets: m.unmaterializedTargets.Clone(),
		size:                  m.size,
		cost:                  m.cost,
		tableRef:              m.tableRef,
		splitCount:            make(map[uint32]int, len(m.splitCount)),
		extraConditions:       append([]ast.Expr(nil), m.extraConditions...),
	}
	for k, v := range m.edgeDir {
		c.edgeDir[k] = v
	}
	for k, v := range m.splitCount {
		c.splitCount[k] = v
	}
	return c
}

func (m *MatchComponent) hasNode(alias string) bool {
	i, ok := m.idx.nodeIndex[alias]
	return ok && m.materializedNodes.Contains(i)
}

func (m *MatchComponent) hasEdge(alias string) bool {
	i, ok := m.idx.edgeIndex[alias]
	return ok && m.materializedEdges.Contains(i)
}

func (m *MatchComponent) isTarget(alias string) bool {
	i, ok := m.idx.nodeIndex[alias]
	return ok && m.unmaterializedTargets.Contains(i)
}

// splitCountOf returns how many physical replicas of the node named alias
// appear in the finished plan (spec.md §3 materialized_node_split_count);
// 0 means the node was never split.
func (m *MatchComponent) splitCountOf(alias string) int {
	i, ok := m.idx.nodeIndex[alias]
	if !ok {
		return 0
	}
	return m.splitCount[i]
}

func (m *MatchComponent) addNode(alias string) {
	m.materializedNodes.Add(m.idx.nodeIndex[alias])
	m.unmaterializedTargets.Remove(m.idx.nodeIndex[alias])
}

func (m *MatchComponent) addEdge(alias string, dir edgeDirection) {
	i := m.idx.edgeIndex[alias]
	m.materializedEdges.Add(i)
	m.edgeDir[i] = dir
}

func (m *MatchComponent) addTarget(alias string) {
	i := m.idx.nodeIndex[alias]
	if !m.materializedNodes.Contains(i) {
		m.unmaterializedTargets.Add(i)
	}
}

// edgeCount is the number of edges joined so far, used as the beam's
// "per-edge cost" ranking denominator (spec.md §4.6).
func (m *MatchComponent) edgeCount() int {
	return int(m.materializedEdges.GetCardinality())
}

func (m *MatchComponent) nodeCount() int {
	return int(m.materializedNodes.GetCardinality())
}

// isComplete reports whether every node in the component has been joined.
func (m *MatchComponent) isComplete() bool {
	return int(m.materializedNodes.GetCardinality()) == len(m.idx.nodeAlias)
}

// costPerEdge is the beam eviction ranking key (spec.md §4.6: "comparing
// cost/max(edge_count,1)").
func (m *MatchComponent) costPerEdge() float64 {
	d := m.edgeCount()
	if d < 1 {
		d = 1
	}
	return m.cost / float64(d)
}
