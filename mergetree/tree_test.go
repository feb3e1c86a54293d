package mergetree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"
)

func v(i int64) vertex.ID { return vertex.ID{GID: 0, Index: i} }

func TestRootAndMonotonicitySublevel(t *testing.T) {
	require := require.New(t)

	tr := mergetree.New(false) // sublevel: lower is more extreme
	tr.AddNode(v(1), 1.0)
	tr.AddNode(v(2), 2.0)
	tr.AddNode(v(3), 0.5)

	// 1 and 2 merge at saddle 2: since value(1) < value(2), 1 survives.
	survivor := tr.Union(v(1), v(2), v(2))
	require.Equal(v(1), survivor)
	require.Equal(v(1), tr.Root(v(2)))

	// now 3 (deepest) merges the whole thing in via saddle v(3).
	survivor = tr.Union(v(3), v(1), v(3))
	require.Equal(v(3), survivor)
	require.Equal(v(3), tr.Root(v(1)))
	require.Equal(v(3), tr.Root(v(2)))

	// root invariant
	require.Equal(v(3), tr.Parent(v(3)))
	require.Equal(v(3), tr.Saddle(v(3)))
}

func TestUnionTieBreaksByVertexID(t *testing.T) {
	require := require.New(t)

	tr := mergetree.New(false)
	tr.AddNode(v(5), 1.0)
	tr.AddNode(v(2), 1.0) // equal value, smaller id must win

	survivor := tr.Union(v(5), v(2), v(5))
	require.Equal(v(2), survivor)
}

func TestSparsifyRemovesPassThroughKeepsSpecial(t *testing.T) {
	require := require.New(t)

	tr := mergetree.New(false)
	tr.AddNode(v(1), 0.0) // root, will stay
	tr.AddNode(v(2), 1.0) // pass-through, should be dropped
	tr.AddNode(v(3), 2.0) // pass-through but special, should stay
	tr.MarkSpecial(v(3))

	tr.Attach(v(2), v(1), v(2))
	tr.Attach(v(3), v(1), v(3))

	require.Equal(3, tr.Len())
	tr.Sparsify()
	require.Equal(2, tr.Len())
	require.True(tr.Has(v(1)))
	require.True(tr.Has(v(3)))
	require.False(tr.Has(v(2)))
}

func TestPersistencePairsAndRoots(t *testing.T) {
	require := require.New(t)

	tr := mergetree.New(true) // superlevel: higher is more extreme
	tr.AddNode(v(1), 3.0)     // global max, survives -> infinite ray
	tr.AddNode(v(2), 2.0)     // secondary peak
	tr.AddNode(v(3), 0.5)     // saddle/valley

	tr.Union(v(2), v(1), v(3)) // merge at the valley; 1 (3.0) beats 2 (2.0)
	tr.Attach(v(3), v(1), v(3)) // the valley itself joins the merged component

	pairs := tr.Persistence()
	require.Len(pairs, 1)
	require.Equal(v(2), pairs[0].From)
	require.Equal(v(3), pairs[0].Through)
	require.Equal(2.0, tr.Value(pairs[0].From))
	require.Equal(0.5, tr.Value(pairs[0].Through))

	roots := tr.Roots()
	require.ElementsMatch([]vertex.ID{v(1)}, roots)
}

func TestCloneIsIndependent(t *testing.T) {
	require := require.New(t)

	tr := mergetree.New(false)
	tr.AddNode(v(1), 1.0)
	clone := tr.Clone()

	tr.AddNode(v(2), 2.0)
	require.Equal(2, tr.Len())
	require.Equal(1, clone.Len())
}
