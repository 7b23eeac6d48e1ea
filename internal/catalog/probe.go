package catalog

import (
	"context"

	"github.com/graphview/planner/internal/ast"
)

// MetadataRow is one row of the catalog loader's union-all probe (spec.md
// §4.1, §6). RoleTag distinguishes which of the four catalog tables the row
// came from:
//
//	RoleTag >= 0  -- a column of a node table; ColumnRole carries its kind
//	RoleTag == -1 -- an attribute of an edge column (table 2)
//	RoleTag == -2 -- a (view, concrete-table) mapping for node views (table 7)
//	RoleTag == -3 -- an (edge-view, concrete-edge) mapping (table 5)
type MetadataRow struct {
	RoleTag     int32
	TableSchema string
	TableName   string
	ColumnName  string
	ColumnRole  Role
	Reference   string // edge-attribute name, or the concrete table/column the mapping row resolves to
	ColumnID    int64
}

// HistogramBucket is one sink-id -> frequency entry of an edge's degree
// histogram (spec.md §3, §4.5).
type HistogramBucket struct {
	Frequency int64
	IsRange   bool
}

// NodeRowRequest describes one node alias's catalog probe: the concrete
// table to scan and its pushed-down predicates (spec.md §4.5).
type NodeRowRequest struct {
	Alias       string
	Schema      string
	Table       string
	Predicates  []ast.Expr
}

// NodeRowResult is the per-concrete-table answer to one NodeRowRequest.
// A node view fans out into one NodeRowResult per concrete table; the
// estimator sums them (spec.md §4.5, §8 invariant).
type NodeRowResult struct {
	EstimatedRows  float64
	TableRowCount  int64
}

// EdgeDegreeRequest describes the sampling-table probe for one edge
// (spec.md §4.5, §6: "<schema>_<table>_<edge>_Sampling(Sink)").
type EdgeDegreeRequest struct {
	Schema, Table, EdgeColumn string
	Predicates                []ast.Expr
}

// EdgeDegreeResult is the answer: the sampled sink-id histogram plus the
// scaling inputs the estimator needs (spec.md §4.5).
type EdgeDegreeResult struct {
	Histogram      map[string]HistogramBucket
	SampleRowCount int64
	BlobSize       int64
	AverageDegree  float64
}

// DensityResult is the answer to the DBCC SHOW_STATISTICS-equivalent probe
// (spec.md §4.5).
type DensityResult struct {
	Density float64
	Present bool
}

// Probe is the catalog-access collaborator the planner consumes (spec.md
// §1, §6: "a catalog probe interface"). The connection/transaction object
// backing it is out of scope; implementations own retries, timeouts, and
// the mapping to whatever host relational engine they talk to.
type Probe interface {
	// LoadMetadata runs the catalog loader's union-all probe once per
	// planner lifetime (spec.md §4.1). Rows must already be in ascending
	// ColumnID order.
	LoadMetadata(ctx context.Context) ([]MetadataRow, error)

	// EstimateNodeRows answers the batched per-node row-estimate probe.
	// Results are returned in the same order as requests.
	EstimateNodeRows(ctx context.Context, requests []NodeRowRequest) ([]NodeRowResult, error)

	// EstimateEdgeDegree answers the per-edge sampling-table probe.
	EstimateEdgeDegree(ctx context.Context, req EdgeDegreeRequest) (EdgeDegreeResult, error)

	// EstimateDensity answers the per-table density probe.
	EstimateDensity(ctx context.Context, schema, table, pkColumn string) (DensityResult, error)
}
