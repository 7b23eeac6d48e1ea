// Package planner orchestrates the full pipeline spec.md §4 lays out:
// catalog load, validation, pattern construction, predicate attachment,
// cardinality estimation, join-order DP, and emission.
package planner

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/catalog"
	"github.com/graphview/planner/internal/graphmatch"
	"github.com/graphview/planner/internal/logutil"
)

// Planner is the long-lived, reusable entry point: it loads catalog
// metadata once and plans many query blocks against it (spec.md §5:
// "one load per planner lifetime").
type Planner struct {
	probe   catalog.Probe
	opts    graphmatch.Options
	density float64

	meta *catalog.GraphMetaData
}

// New constructs a Planner. Catalog metadata is loaded lazily on the first
// call to Plan and cached for the Planner's lifetime.
func New(probe catalog.Probe, opts graphmatch.Options, defaultDensity float64) *Planner {
	return &Planner{probe: probe, opts: opts, density: defaultDensity}
}

// Plan validates and lowers qb's MATCH clause, estimates cardinalities, runs
// the join-order DP per connected component, and folds the chosen plan back
// into qb's FROM/WHERE, clearing MATCH (spec.md §6 Input/Output contract).
// qb is mutated in place; bindings maps every alias referenced in the MATCH
// clause to the table it is bound against.
func (p *Planner) Plan(ctx context.Context, bindings graphmatch.AliasBinding, qb *ast.QueryBlock) error {
	arena := uuid.New().String()
	logutil.Info("planner arena started", zap.String("arena", arena))

	if p.meta == nil {
		meta, err := catalog.Load(ctx, p.probe)
		if err != nil {
			return err
		}
		p.meta = meta
	}

	if qb.Match == nil || len(qb.Match.Paths) == 0 {
		return nil
	}

	if err := graphmatch.Validate(p.meta, bindings, qb.Match); err != nil {
		return err
	}

	graph, err := graphmatch.Build(p.meta, bindings, qb)
	if err != nil {
		return err
	}

	graphmatch.AttachPredicates(qb, graph)

	if err := graphmatch.Estimate(ctx, p.probe, graph, p.density); err != nil {
		return err
	}

	plans := make(map[*graphmatch.ConnectedComponent]*graphmatch.MatchComponent, len(graph.Components))
	for i, comp := range graph.Components {
		plan, err := graphmatch.PlanComponent(comp, i, p.opts)
		if err != nil {
			return err
		}
		plans[comp] = plan
	}

	graphmatch.Emit(qb, graph, plans)

	logutil.Info("planner arena finished", zap.String("arena", arena), zap.Int("components", len(graph.Components)))
	return nil
}
