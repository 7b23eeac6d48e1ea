package graphmatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnionFindMergesConnectedAliases(t *testing.T) {
	uf := newUnionFind()
	uf.add("a")
	uf.add("b")
	uf.add("c")
	uf.add("d")

	uf.union("a", "b")
	uf.union("b", "c")

	require.Equal(t, uf.find("a"), uf.find("c"))
	require.NotEqual(t, uf.find("a"), uf.find("d"))
}

func TestUnionFindIsIdempotent(t *testing.T) {
	uf := newUnionFind()
	uf.union("x", "y")
	root := uf.find("x")

	uf.union("x", "y")

	require.Equal(t, root, uf.find("x"))
	require.Equal(t, uf.find("x"), uf.find("y"))
}

func TestUnionFindAddIsImplicit(t *testing.T) {
	uf := newUnionFind()
	// find on a never-seen alias should register it as its own root rather
	// than panicking.
	require.Equal(t, "z", uf.find("z"))
}
