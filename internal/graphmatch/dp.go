package graphmatch

import (
	"math"
	"strconv"

	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/gerr"
)

// Options configures the join-order DP (spec.md §4.6).
type Options struct {
	// MaxStates bounds the beam width: the DP keeps at most this many
	// candidate states alive per round, evicting the worst by
	// cost-per-edge. Defaults to 100.
	MaxStates int

	// LowerBoundSlack widens the admission test against the best known
	// complete plan's cost: a candidate is kept alive while its lower
	// bound is within (1+LowerBoundSlack) of the incumbent, not just
	// strictly better. 0 means no slack.
	LowerBoundSlack float64
}

func (o Options) maxStates() int {
	if o.MaxStates <= 0 {
		return 100
	}
	return o.MaxStates
}

// PlanComponent runs the beam-pruned join-order DP over one connected
// component and returns the cheapest complete join tree found (spec.md
// §4.6).
func PlanComponent(comp *ConnectedComponent, componentOrdinal int, opts Options) (*MatchComponent, error) {
	idx := buildComponentIndex(comp)

	if len(idx.nodeAlias) == 1 && len(idx.edgeAlias) == 0 {
		return planSingletonComponent(idx)
	}

	beam := initialStates(idx, opts)
	if len(beam) == 0 {
		return nil, gerr.NewNoAdmissibleStartState(componentOrdinal)
	}

	var best *MatchComponent

	for round := 0; len(beam) > 0; round++ {
		var next []*MatchComponent
		var overflowed bool

		for _, state := range beam {
			if state.isComplete() {
				if best == nil || state.cost < best.cost {
					best = state
				}
				continue
			}
			for _, candidate := range extend(idx, state) {
				if best != nil && !admitByLowerBound(state, candidate, best, opts) {
					continue
				}
				next = beamInsert(next, candidate, opts.maxStates(), &overflowed)
			}
		}

		if len(next) == 0 {
			break
		}
		beam = next

		// A component with n nodes needs at most n-1 extension rounds to
		// reach a complete join tree; this bound keeps a malformed
		// admissibility rule from looping forever.
		if round > len(idx.nodeAlias)+2 {
			break
		}
	}

	if best == nil {
		return nil, gerr.NewNoAdmissibleStartState(componentOrdinal)
	}
	return best, nil
}

func planSingletonComponent(idx *componentIndex) (*MatchComponent, error) {
	node := idx.node(idx.nodeAlias[0])
	state := newMatchComponent(idx)
	state.addNode(node.Alias)
	state.tableRef = scanRef(node)
	state.size = node.EstimatedRows
	state.cost = node.EstimatedRows
	return state, nil
}

// initialStates enumerates, per spec.md §4.6, one state for every non-empty
// subset of every non-tail node's incident edges.
func initialStates(idx *componentIndex, opts Options) []*MatchComponent {
	var out []*MatchComponent
	var overflowed bool
	for _, alias := range idx.nodeAlias {
		node := idx.node(alias)
		incident := idx.incident[alias]
		k := len(incident)
		if k == 0 || idx.comp.IsTail[node] {
			continue
		}
		for mask := 1; mask < (1 << k); mask++ {
			state := buildInitialState(idx, node, incident, mask)
			out = beamInsert(out, state, opts.maxStates(), &overflowed)
		}
	}
	return out
}

func buildInitialState(idx *componentIndex, root *MatchNode, incident []*MatchEdge, mask int) *MatchComponent {
	state := newMatchComponent(idx)
	state.addNode(root.Alias)
	state.tableRef = scanRef(root)
	size := root.EstimatedRows

	for i, e := range incident {
		other, dir := idx.otherEndpoint(e, root.Alias)
		if mask&(1<<i) == 0 {
			state.addTarget(other.Alias)
			continue
		}
		state.tableRef = graftEdgeScan(state.tableRef, other, e, root.Alias, dir == DirIncoming)
		state.addNode(other.Alias)
		state.addEdge(e.Alias, dir)
		size *= e.Degree()

		registerFrontier(idx, state, other)
	}

	state.size = size
	state.cost = size
	return state
}

// registerFrontier records, for every edge incident on a freshly
// materialized node that was not itself part of the one-height tree just
// grafted, the far node as a new unmaterialized target (spec.md §3).
func registerFrontier(idx *componentIndex, state *MatchComponent, node *MatchNode) {
	for _, e := range idx.incident[node.Alias] {
		if state.hasEdge(e.Alias) {
			continue
		}
		other, _ := idx.otherEndpoint(e, node.Alias)
		if !state.hasNode(other.Alias) {
			state.addTarget(other.Alias)
		}
	}
}

// extend generates every admissible one-height-tree extension of state
// (spec.md §4.6 admissibility rules a/b/c).
func extend(idx *componentIndex, state *MatchComponent) []*MatchComponent {
	var out []*MatchComponent

	for _, alias := range idx.nodeAlias {
		alreadyMaterialized := state.hasNode(alias)

		// Admissibility rule (b): a node not yet in the tree is only a
		// candidate root once the component already has an unmaterialized
		// edge into it, i.e. it is a registered frontier target. Every
		// alias that will turn out to have a materialized-neighbor edge
		// below was added to the frontier when that neighbor was
		// materialized (registerFrontier), so this is a cheap reject of
		// aliases the rest of this loop could never admit anyway.
		if !alreadyMaterialized && !state.isTarget(alias) {
			continue
		}

		remaining := unexhaustedIncident(idx, state, alias)
		if len(remaining) == 0 {
			continue
		}
		var matSub, unmatSub []*MatchEdge
		for _, e := range remaining {
			other, _ := idx.otherEndpoint(e, alias)
			if state.hasNode(other.Alias) {
				matSub = append(matSub, e)
			} else {
				unmatSub = append(unmatSub, e)
			}
		}

		switch {
		case !alreadyMaterialized && len(matSub) > 0:
			// (a)/(b): a brand-new root, reached via at least one
			// materialized edge (entry edge), optionally closing the
			// rest of its cycle-back edges in the same step.
			entry, rest := matSub[0], matSub[1:]
			for _, joint := range pruneJointEdge(rest) {
				out = append(out, graftNormal(idx, state, alias, entry, joint, unmatSub))
			}
		case alreadyMaterialized && len(unmatSub) > 0 && len(matSub) > 0:
			// (c): revisit an already-joined node as the root of a split
			// copy so it can keep extending into genuinely new nodes
			// without entangling the new branch's predicates with the
			// existing copy's. Mirrors graftNormal's entry/rest split: the
			// split copy needs an edge into an already-materialized
			// neighbor to anchor it in the tree at all, so entry always
			// comes from matSub, never from unmatSub.
			splitEntry, splitRest := matSub[0], matSub[1:]
			for _, joint := range pruneJointEdge(splitRest) {
				out = append(out, graftSplit(idx, state, alias, splitEntry, joint, unmatSub))
			}
		case alreadyMaterialized && len(unmatSub) > 0:
			// Ordinary chain growth: alias is already scanned and has no
			// cycle-closing edge pending, so its new neighbors simply join
			// onto its existing table alias.
			out = append(out, graftContinue(idx, state, alias, unmatSub))
		}
	}
	return out
}

func unexhaustedIncident(idx *componentIndex, state *MatchComponent, alias string) []*MatchEdge {
	var out []*MatchEdge
	for _, e := range idx.incident[alias] {
		if !state.hasEdge(e.Alias) {
			out = append(out, e)
		}
	}
	return out
}

// pruneJointEdge generates the candidate joint-edge (cycle-closing)
// subsets to try for a root: closing none of them, or closing all of
// them. Trying every intermediate subset would reproduce the combinatorial
// explosion the beam is meant to avoid, and in practice a one-height tree
// either closes every available cycle edge at once or defers all of them
// to a later round (spec.md §4.6 "PruneJointEdge").
func pruneJointEdge(matSub []*MatchEdge) [][]*MatchEdge {
	if len(matSub) == 0 {
		return [][]*MatchEdge{nil}
	}
	return [][]*MatchEdge{nil, matSub}
}

// graftContinue extends an already-materialized, already-scanned node with
// brand-new neighbors, with no entry edge needed since the node's alias is
// already part of tableRef. Because it doesn't anchor a new subtree, its
// contribution scales the running size multiplicatively instead of
// restarting it from a fresh root's own row estimate.
func graftContinue(idx *componentIndex, state *MatchComponent, rootAlias string, unmat []*MatchEdge) *MatchComponent {
	next := state.clone()
	degreeProduct := 1.0

	for _, e := range unmat {
		other, dir := idx.otherEndpoint(e, rootAlias)
		next.tableRef = graftEdgeScan(next.tableRef, other, e, rootAlias, dir == DirIncoming)
		next.addNode(other.Alias)
		next.addEdge(e.Alias, dir)
		degreeProduct *= e.Degree()
		registerFrontier(idx, next, other)
	}

	next.size = state.size * degreeProduct
	next.cost = state.cost + next.size
	return next
}

func graftNormal(idx *componentIndex, state *MatchComponent, rootAlias string, entry *MatchEdge, joint, unmat []*MatchEdge) *MatchComponent {
	next := state.clone()
	root := idx.node(rootAlias)

	entryOther, entryDir := idx.otherEndpoint(entry, rootAlias)
	next.tableRef = graftEdgeScan(next.tableRef, root, entry, entryOther.Alias, entryDir == DirOutgoing)
	next.addNode(rootAlias)
	next.addEdge(entry.Alias, entryDir)
	degreeProduct := entry.Degree()

	for _, e := range joint {
		other, dir := idx.otherEndpoint(e, rootAlias)
		next.extraConditions = append(next.extraConditions, closingCondition(e, rootAlias, other.Alias, dir == DirOutgoing))
		next.addEdge(e.Alias, dir)
		degreeProduct *= e.Degree()
	}
	for _, e := range unmat {
		other, dir := idx.otherEndpoint(e, rootAlias)
		next.tableRef = graftEdgeScan(next.tableRef, other, e, rootAlias, dir == DirIncoming)
		next.addNode(other.Alias)
		next.addEdge(e.Alias, dir)
		degreeProduct *= e.Degree()
		registerFrontier(idx, next, other)
	}
	registerFrontier(idx, next, root)

	candidateSize := root.EstimatedRows * degreeProduct
	next.cost = state.cost + candidateSize
	next.size = candidateSize
	return next
}

// graftSplit joins a fresh physical copy of an already-materialized node
// back in under its next replica alias, so the cycle-closing predicates on
// the existing copies are not contaminated by the new branch's filters
// (spec.md §3 materialized_node_split_count, §4.6 admissibility rule c, §8
// scenario 6). splitCount here counts total replicas, not extra copies: the
// node's very first (pre-split) occurrence is replica 1, so the first call
// for a given root jumps straight to 2. The emitter does the actual
// predicate replication once the final replica count per node is known
// (§4.7 step 3), so graftSplit itself carries no predicate text — it only
// needs a distinct alias to scan the extra copy under.
func graftSplit(idx *componentIndex, state *MatchComponent, rootAlias string, entry *MatchEdge, joint, unmat []*MatchEdge) *MatchComponent {
	next := state.clone()
	root := idx.node(rootAlias)

	rootIdx := idx.nodeIndex[rootAlias]
	if next.splitCount[rootIdx] == 0 {
		next.splitCount[rootIdx] = 2
	} else {
		next.splitCount[rootIdx]++
	}
	splitAlias := rootAlias + "_" + strconv.Itoa(next.splitCount[rootIdx])

	splitNode := &MatchNode{Alias: splitAlias, JoinAlias: splitAlias, Table: root.Table}

	entryOther, entryDir := idx.otherEndpoint(entry, rootAlias)
	next.tableRef = graftEdgeScan(next.tableRef, splitNode, entry, entryOther.Alias, entryDir == DirOutgoing)
	next.addEdge(entry.Alias, entryDir)

	// The DOWNSIZE guard belongs on this specific join's condition, not as
	// a free-floating WHERE conjunct, since it is what keeps this entry
	// join from double-counting the underlying graph node against the
	// original copy (spec.md §4.7 step 2).
	if join, ok := next.tableRef.(*ast.JoinRef); ok {
		join.On = &ast.BinaryExpr{Op: "AND", Left: join.On, Right: downsizeGuard(splitAlias)}
	}
	degreeProduct := entry.Degree()

	for _, e := range joint {
		other, dir := idx.otherEndpoint(e, rootAlias)
		next.extraConditions = append(next.extraConditions, closingCondition(e, splitAlias, other.Alias, dir == DirOutgoing))
		next.addEdge(e.Alias, dir)
		degreeProduct *= e.Degree()
	}
	for _, e := range unmat {
		other, dir := idx.otherEndpoint(e, rootAlias)
		next.tableRef = graftEdgeScan(next.tableRef, other, e, splitAlias, dir == DirIncoming)
		next.addNode(other.Alias)
		next.addEdge(e.Alias, dir)
		degreeProduct *= e.Degree()
		registerFrontier(idx, next, other)
	}

	candidateSize := root.EstimatedRows * degreeProduct
	next.cost = state.cost + candidateSize
	next.size = candidateSize
	return next
}

// admitByLowerBound is the beam's pruning test (spec.md §4.6): a candidate
// survives only if the extended state's cost + size + candidate_size stays
// within slack of the best complete plan found so far. A fresh state with no
// materialized edge yet has no meaningful running cost, so its bound falls
// back to a logarithmic floor rather than comparing a bare zero.
func admitByLowerBound(current, candidate, best *MatchComponent, opts Options) bool {
	lowerBound := current.cost + current.size + candidate.size
	if candidate.edgeCount() == 0 {
		lowerBound = math.Log2(candidate.size + 1)
	}
	limit := best.cost * (1 + opts.LowerBoundSlack)
	return lowerBound <= limit
}

// beamInsert keeps at most maxStates candidates, evicting the one with the
// worst cost-per-edge when full. overflowed tracks, for one accumulating
// beam, whether capacity has been exceeded before: the first candidate to
// arrive once the beam is full only locates the worst occupant (max_index)
// and is itself discarded without being compared against it, even if it
// would have won the swap; only later arrivals are actually weighed against
// that worst slot. This mirrors a quirk spec.md's Open Question section
// documents in the source system's own beam-maintenance routine and
// instructs replicating rather than "fixing" to the obviously-correct
// immediate swap (spec.md §9 Open Question).
func beamInsert(beam []*MatchComponent, candidate *MatchComponent, maxStates int, overflowed *bool) []*MatchComponent {
	if len(beam) < maxStates {
		return append(beam, candidate)
	}
	maxIdx, maxVal := 0, beam[0].costPerEdge()
	for i := 1; i < len(beam); i++ {
		if v := beam[i].costPerEdge(); v > maxVal {
			maxIdx, maxVal = i, v
		}
	}
	if !*overflowed {
		*overflowed = true
		return beam
	}
	if candidate.costPerEdge() < maxVal {
		beam[maxIdx] = candidate
	}
	return beam
}

func scanRef(node *MatchNode) ast.TableRef {
	return &ast.NamedTableRef{Schema: node.Table.Schema, Table: node.Table.Base, Alias: node.JoinAlias}
}

// graftEdgeScan appends newNode as a fresh table scan joined onto ref
// through edge e, whose other endpoint is already scanned under
// existingAlias. newNodeIsSource tells which side of e.Source/e.SinkNode
// newNode is playing, since a split copy's JoinAlias differs from its
// underlying node's own alias and so can't be compared directly.
func graftEdgeScan(ref ast.TableRef, newNode *MatchNode, e *MatchEdge, existingAlias string, newNodeIsSource bool) ast.TableRef {
	var cond ast.Expr
	if newNodeIsSource {
		cond = edgeCondition(e, newNode.JoinAlias, existingAlias)
	} else {
		cond = edgeCondition(e, existingAlias, newNode.JoinAlias)
	}
	return &ast.JoinRef{Left: ref, Right: scanRef(newNode), Type: ast.JoinInner, On: cond}
}

// closingCondition builds the extra predicate for a cycle-closing edge
// whose both endpoints are already scanned (root, under rootAlias which
// may be a split alias, and other, under its own alias). rootIsSource
// tells which side of e.Source/e.SinkNode the root plays.
func closingCondition(e *MatchEdge, rootAlias, otherAlias string, rootIsSource bool) ast.Expr {
	if rootIsSource {
		return edgeCondition(e, rootAlias, otherAlias)
	}
	return edgeCondition(e, otherAlias, rootAlias)
}

// edgeCondition builds the scalar predicate that implements an edge
// column's decode-and-compare semantics: the edge column on the source
// row decodes to the sink's GlobalNodeId (spec.md §4.1's EdgeColumn
// concept).
func edgeCondition(e *MatchEdge, sourceAlias, sinkAlias string) ast.Expr {
	decoderSuffix := "_Decoder"
	if e.IsPath() {
		decoderSuffix = "_PathDecoder"
	}
	decode := &ast.FuncCall{
		Schema: e.BoundTable.Schema,
		Name:   e.EdgeColumn + decoderSuffix,
		Args:   []ast.Expr{&ast.ColumnRef{Alias: sourceAlias, Column: e.EdgeColumn}},
	}
	return &ast.BinaryExpr{Op: "=", Left: &ast.ColumnRef{Alias: sinkAlias, Column: "GlobalNodeId"}, Right: decode}
}
