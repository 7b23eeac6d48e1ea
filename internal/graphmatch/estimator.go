package graphmatch

import (
	"context"

	"github.com/graphview/planner/internal/catalog"
	"github.com/graphview/planner/internal/gerr"
	"github.com/graphview/planner/internal/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultGlobalNodeIDDensity = 0.0001

// Estimate runs the three catalog probes spec.md §4.5 describes — the
// batched per-node row estimate, the per-edge degree/histogram sample, and
// the per-table density probe — and back-annotates graph. The three probes
// are independent reads against the same transaction snapshot, so they run
// concurrently via errgroup (spec.md §5 allows this: "three [blocking
// calls] per query block", ordering constraints apply only within a single
// probe's own row stream).
func Estimate(ctx context.Context, probe catalog.Probe, graph *MatchGraph, defaultDensity float64) error {
	if defaultDensity <= 0 {
		defaultDensity = defaultGlobalNodeIDDensity
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return estimateNodeRows(gctx, probe, graph) })
	g.Go(func() error { return estimateEdgeStats(gctx, probe, graph) })
	g.Go(func() error { return estimateDensities(gctx, probe, graph, defaultDensity) })

	if err := g.Wait(); err != nil {
		return err
	}

	logutil.Info("cardinality estimation complete", zap.Int("nodes", len(graph.AllNodes())), zap.Int("edges", len(graph.AllEdges())))
	return nil
}

// estimateNodeRows builds the union-all row-estimate probe: one SELECT
// template per node alias (fanned out per concrete table behind a node
// view), per spec.md §4.5 and §8's view-sum invariant.
func estimateNodeRows(ctx context.Context, probe catalog.Probe, graph *MatchGraph) error {
	var requests []catalog.NodeRowRequest
	var owners []*MatchNode // owners[i] is the node that requests[i] belongs to

	for _, node := range graph.AllNodes() {
		for _, concreteTable := range node.ConcreteTables {
			requests = append(requests, catalog.NodeRowRequest{
				Alias:      node.Alias,
				Schema:     node.Table.Schema,
				Table:      concreteTable,
				Predicates: node.Predicates,
			})
			owners = append(owners, node)
		}
	}
	if len(requests) == 0 {
		return nil
	}

	results, err := probe.EstimateNodeRows(ctx, requests)
	if err != nil {
		return gerr.NewCatalogProbeFailed("node-row-estimate", err)
	}
	if len(results) != len(requests) {
		return gerr.NewCatalogProbeFailed("node-row-estimate", errMismatchedResultCount)
	}

	// Reset accumulators before folding in case a node spans multiple
	// concrete tables (node views).
	seen := make(map[*MatchNode]bool)
	for i, res := range results {
		node := owners[i]
		if !seen[node] {
			node.EstimatedRows = 0
			node.TableRowCount = 0
			seen[node] = true
		}
		node.EstimatedRows += res.EstimatedRows
		node.TableRowCount += res.TableRowCount
	}
	return nil
}

// estimateEdgeStats probes the sampling table for each edge and derives its
// histogram and scaled average degree (spec.md §4.5).
func estimateEdgeStats(ctx context.Context, probe catalog.Probe, graph *MatchGraph) error {
	for _, edge := range graph.AllEdges() {
		res, err := probe.EstimateEdgeDegree(ctx, catalog.EdgeDegreeRequest{
			Schema:     edge.BoundTable.Schema,
			Table:      edge.BoundTable.Base,
			EdgeColumn: edge.EdgeColumn,
			Predicates: edge.Predicates,
		})
		if err != nil {
			return gerr.NewCatalogProbeFailed("edge-degree", err)
		}

		scaled := res.AverageDegree
		if res.SampleRowCount > 0 {
			scaled = res.AverageDegree * float64(res.BlobSize) / float64(res.SampleRowCount)
		}

		edge.Stats = EdgeStatistics{
			Histogram:     res.Histogram,
			RowCount:      res.SampleRowCount,
			AverageDegree: scaled,
		}
		edge.Stats.MaxValue, edge.Stats.Selectivity = summarizeHistogram(res.Histogram)
	}
	return nil
}

func summarizeHistogram(hist map[string]catalog.HistogramBucket) (maxValue string, selectivity float64) {
	if len(hist) == 0 {
		return "", 1
	}
	var total int64
	var maxFreq int64
	for sink, bucket := range hist {
		total += bucket.Frequency
		if bucket.Frequency > maxFreq {
			maxFreq = bucket.Frequency
			maxValue = sink
		}
	}
	if total == 0 {
		return maxValue, 1
	}
	return maxValue, float64(maxFreq) / float64(total)
}

// estimateDensities probes DBCC SHOW_STATISTICS-equivalent density per node
// table (spec.md §4.5): "if absent or equal to 1.0, a default density is
// used".
func estimateDensities(ctx context.Context, probe catalog.Probe, graph *MatchGraph, defaultDensity float64) error {
	cache := make(map[string]float64)
	for _, node := range graph.AllNodes() {
		key := node.Table.Schema + "." + node.Table.Base
		if d, ok := cache[key]; ok {
			node.GlobalNodeIDDensity = d
			continue
		}
		res, err := probe.EstimateDensity(ctx, node.Table.Schema, node.Table.Base, "GlobalNodeId")
		if err != nil {
			return gerr.NewCatalogProbeFailed("density", err)
		}
		density := defaultDensity
		if res.Present && res.Density != 1.0 {
			density = res.Density
		}
		cache[key] = density
		node.GlobalNodeIDDensity = density
	}
	return nil
}

var errMismatchedResultCount = mismatchedResultCountErr{}

type mismatchedResultCountErr struct{}

func (mismatchedResultCountErr) Error() string {
	return "catalog probe returned a different number of results than requested"
}
