package catalog

import (
	"context"
	"sort"

	"github.com/graphview/planner/internal/gerr"
	"github.com/graphview/planner/internal/logutil"
	"go.uber.org/zap"
)

// Load runs the catalog loader once per planner lifetime (spec.md §4.1).
// Failure to load is fatal, per spec.md: the returned error is always a
// *gerr.Error wrapping the probe's failure.
func Load(ctx context.Context, probe Probe) (*GraphMetaData, error) {
	rows, err := probe.LoadMetadata(ctx)
	if err != nil {
		return nil, gerr.NewCatalogLoadFailed(err)
	}

	// Rows must be consumed in ascending column_id order so edge-view
	// mapping rows (RoleTag == -3) see their component edges already
	// loaded (spec.md §4.1, §5 "Ordering").
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ColumnID < rows[j].ColumnID })

	meta := newGraphMetaData()

	for _, row := range rows {
		switch {
		case row.RoleTag >= 0:
			// A node/edge column may appear across several rows sharing
			// the same ColumnId when it declares more than one sink
			// table (spec.md §9 open question); fold those into one
			// NodeColumns entry instead of overwriting.
			nc, exists := meta.Column(row.TableSchema, row.TableName, row.ColumnName)
			if !exists {
				nc = &NodeColumns{Role: row.ColumnRole}
				if row.ColumnRole == RoleEdge || row.ColumnRole == RoleEdgeView {
					nc.EdgeInfo = &EdgeInfo{}
				}
				meta.setColumn(row.TableSchema, row.TableName, row.ColumnName, nc)
			}
			if nc.EdgeInfo != nil && row.Reference != "" {
				nc.EdgeInfo.addSinkNode(row.Reference)
			}

		case row.RoleTag == -1:
			// Edge-attribute row: attach to the edge column it describes.
			nc, ok := meta.Column(row.TableSchema, row.TableName, row.ColumnName)
			if !ok || nc.EdgeInfo == nil {
				logutil.Warn("edge attribute row references unknown edge column",
					zap.String("schema", row.TableSchema), zap.String("table", row.TableName), zap.String("column", row.ColumnName))
				continue
			}
			nc.EdgeInfo.ColumnAttributes = append(nc.EdgeInfo.ColumnAttributes, row.Reference)

		case row.RoleTag == -2:
			// Node-view mapping row: row.TableName is the view, Reference
			// is the concrete table behind it.
			meta.addNodeViewMember(row.TableSchema, row.TableName, row.Reference)

		case row.RoleTag == -3:
			// Edge-view mapping row: row.ColumnName is the edge-view
			// column, Reference is "concreteTable.concreteColumn".
			nc, ok := meta.Column(row.TableSchema, row.TableName, row.ColumnName)
			if !ok || nc.EdgeInfo == nil {
				logutil.Warn("edge-view mapping row references unknown edge-view column",
					zap.String("schema", row.TableSchema), zap.String("table", row.TableName), zap.String("column", row.ColumnName))
				continue
			}
			srcTable, edgeCol := splitReference(row.Reference)
			nc.EdgeInfo.EdgeColumns = append(nc.EdgeInfo.EdgeColumns, EdgeColumnRef{SourceTable: srcTable, EdgeColumn: edgeCol})

			// The concrete edge's own sink-node set becomes part of the
			// view's sink-node set, since the view's sinks are the union
			// of its member edges' sinks.
			if concreteNC, ok := meta.Column(row.TableSchema, srcTable, edgeCol); ok && concreteNC.EdgeInfo != nil {
				for _, sink := range concreteNC.EdgeInfo.SinkNodes {
					nc.EdgeInfo.addSinkNode(sink)
				}
			}

		default:
			logutil.Warn("catalog loader: unrecognized role tag", zap.Int32("role", row.RoleTag))
		}
	}

	logutil.Info("graph catalog metadata loaded", zap.Int("rows", len(rows)))
	return meta, nil
}

func splitReference(ref string) (table, column string) {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '.' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, ""
}
