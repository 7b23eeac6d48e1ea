package graphmatch

// edgeDirection records which endpoint of a materialized edge the DP
// joined from, the "direction (incoming/outgoing)" spec.md §3 lists on
// MatchComponent.
type edgeDirection int

const (
	DirOutgoing edgeDirection = iota
	DirIncoming
)

// componentIndex precomputes the per-component adjacency the DP's
// one-height-tree enumeration repeatedly needs: every edge incident on a
// node regardless of direction, and a dense index for roaring-bitmap
// membership tests (spec.md §9 design note: "use a freelist or arena
// allocator" for the DP's heavily-churned states; the dense index is the
// analogous move for its membership tests).
type componentIndex struct {
	comp *ConnectedComponent

	nodeIndex map[string]uint32
	nodeAlias []string

	edgeIndex map[string]uint32
	edgeAlias []string

	// incident[nodeAlias] lists every edge touching that node, in a
	// stable order, regardless of whether the node is the edge's source
	// or sink.
	incident map[string][]*MatchEdge
}

func buildComponentIndex(comp *ConnectedComponent) *componentIndex {
	idx := &componentIndex{
		comp:      comp,
		nodeIndex: make(map[string]uint32),
		edgeIndex: make(map[string]uint32),
		incident:  make(map[string][]*MatchEdge),
	}
	for _, node := range comp.OrderedNodes() {
		idx.nodeIndex[node.Alias] = uint32(len(idx.nodeAlias))
		idx.nodeAlias = append(idx.nodeAlias, node.Alias)
	}
	for _, edge := range comp.OrderedEdges() {
		idx.edgeIndex[edge.Alias] = uint32(len(idx.edgeAlias))
		idx.edgeAlias = append(idx.edgeAlias, edge.Alias)

		idx.incident[edge.Source.Alias] = append(idx.incident[edge.Source.Alias], edge)
		if edge.SinkNode != nil && edge.SinkNode.Alias != edge.Source.Alias {
			idx.incident[edge.SinkNode.Alias] = append(idx.incident[edge.SinkNode.Alias], edge)
		}
	}
	return idx
}

// otherEndpoint returns the node on the far side of edge e from the
// perspective of node alias v, and the direction v joins through.
func (idx *componentIndex) otherEndpoint(e *MatchEdge, v string) (*MatchNode, edgeDirection) {
	if e.Source.Alias == v {
		return e.SinkNode, DirOutgoing
	}
	return e.Source, DirIncoming
}

func (idx *componentIndex) node(alias string) *MatchNode {
	return idx.comp.Nodes[alias]
}
