package graphmatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphview/planner/internal/ast"
	"github.com/graphview/planner/internal/catalog"
	"github.com/graphview/planner/internal/gerr"
)

func personMeta(t *testing.T) *catalog.GraphMetaData {
	t.Helper()
	meta, err := catalog.Load(context.Background(), &catalog.FakeProbe{Rows: []catalog.MetadataRow{
		{TableSchema: "dbo", TableName: "Person", ColumnName: "GlobalNodeId", ColumnRole: catalog.RoleNodeID, ColumnID: 1},
		{TableSchema: "dbo", TableName: "Person", ColumnName: "Knows", ColumnRole: catalog.RoleEdge, Reference: "Person", ColumnID: 2},
		{TableSchema: "dbo", TableName: "Company", ColumnName: "GlobalNodeId", ColumnRole: catalog.RoleNodeID, ColumnID: 1},
	}})
	require.NoError(t, err)
	return meta
}

func TestValidateAcceptsSimpleTwoHopPattern(t *testing.T) {
	meta := personMeta(t)
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
	}
	match := &ast.MatchClause{Paths: []ast.MatchPath{{
		Steps: []*ast.MatchStep{{SourceAlias: "a", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "b"}},
	}}}

	require.NoError(t, Validate(meta, bindings, match))
}

func TestValidateRejectsUnboundSourceAlias(t *testing.T) {
	meta := personMeta(t)
	bindings := AliasBinding{}
	match := &ast.MatchClause{Paths: []ast.MatchPath{{
		Steps: []*ast.MatchStep{{SourceAlias: "a", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "b"}},
	}}}

	err := Validate(meta, bindings, match)
	require.Error(t, err)
	require.True(t, gerr.IsCode(err, gerr.ErrNotANodeTable))
}

func TestValidateRejectsUnknownEdgeColumn(t *testing.T) {
	meta := personMeta(t)
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
	}
	match := &ast.MatchClause{Paths: []ast.MatchPath{{
		Steps: []*ast.MatchStep{{SourceAlias: "a", EdgeColumn: "Nope", MinLength: 1, MaxLength: 1, NextAlias: "b"}},
	}}}

	err := Validate(meta, bindings, match)
	require.Error(t, err)
	require.True(t, gerr.IsCode(err, gerr.ErrUnknownEdgeColumn))
}

func TestValidateRejectsInvalidPathLength(t *testing.T) {
	meta := personMeta(t)
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Person"),
	}
	match := &ast.MatchClause{Paths: []ast.MatchPath{{
		Steps: []*ast.MatchStep{{SourceAlias: "a", EdgeColumn: "Knows", MinLength: 5, MaxLength: 2, NextAlias: "b"}},
	}}}

	err := Validate(meta, bindings, match)
	require.Error(t, err)
	require.True(t, gerr.IsCode(err, gerr.ErrInvalidPathLength))
}

func TestValidateRejectsUnreachableSinkBinding(t *testing.T) {
	meta := personMeta(t)
	bindings := AliasBinding{
		"a": ast.NewObjectName("dbo", "Person"),
		"b": ast.NewObjectName("dbo", "Company"), // not declared as a sink of Knows
	}
	match := &ast.MatchClause{Paths: []ast.MatchPath{{
		Steps: []*ast.MatchStep{{SourceAlias: "a", EdgeColumn: "Knows", MinLength: 1, MaxLength: 1, NextAlias: "b"}},
	}}}

	err := Validate(meta, bindings, match)
	require.Error(t, err)
	require.True(t, gerr.IsCode(err, gerr.ErrSinkNotReachable))
}
