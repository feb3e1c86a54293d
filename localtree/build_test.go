package localtree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/localtree"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/mergetree"
)

func buildFlatBlock(t *testing.T, size int, value float64) (*maskedbox.Box, *field.Grid) {
	t.Helper()
	core := field.NewBox3([3]int{0, 0, 0}, [3]int{size - 1, size - 1, size - 1})
	box, err := maskedbox.Build(maskedbox.Config{GID: 0, Core: core, Bounds: core})
	require.NoError(t, err)

	values := field.NewGrid(core)
	for i := range values.Values {
		values.Values[i] = value
	}
	return box, values
}

// S1: 4x4x4 block, constant field 1.0, negate=false, rho=0.
func TestScenarioS1FlatFieldSingleInfiniteRay(t *testing.T) {
	require := require.New(t)

	box, values := buildFlatBlock(t, 4, 1.0)
	tree := localtree.Build(box, values, false)

	require.Len(tree.Roots(), 1)
	// A constant field has no real topological features: every merge
	// event in the raw tree is between cells of equal value (the whole
	// block is one plateau), i.e. zero persistence throughout.
	for _, p := range tree.Persistence() {
		require.Equal(tree.Value(p.From), tree.Value(p.Through))
	}
}

// S5: 1-D-like domain 16x1x1, peaks 2.0@x=3 and 3.0@x=12, valley 0.5@x=7,
// baseline 1.0 elsewhere, negate=true.
func TestScenarioS5PersistencePair(t *testing.T) {
	require := require.New(t)

	core := field.NewBox3([3]int{0, 0, 0}, [3]int{15, 0, 0})
	box, err := maskedbox.Build(maskedbox.Config{GID: 0, Core: core, Bounds: core})
	require.NoError(err)

	values := field.NewGrid(core)
	for i := range values.Values {
		values.Values[i] = 1.0
	}
	values.Set([3]int{3, 0, 0}, 2.0)
	values.Set([3]int{12, 0, 0}, 3.0)
	values.Set([3]int{7, 0, 0}, 0.5)

	tree := localtree.Build(box, values, true)

	roots := tree.Roots()
	require.Len(roots, 1)
	require.Equal(3.0, tree.Value(roots[0]))

	// The raw (unsparsified) tree also carries zero-persistence pairs for
	// the flat baseline plateau, exactly what the optional
	// ignore-zero-persistence output filter (§4.7) exists to drop; only
	// the real topological feature is asserted here.
	var nonTrivial []mergetree.Pair
	for _, p := range tree.Persistence() {
		if tree.Value(p.From) != tree.Value(p.Through) {
			nonTrivial = append(nonTrivial, p)
		}
	}
	require.Len(nonTrivial, 1)
	require.Equal(2.0, tree.Value(nonTrivial[0].From))
	require.Equal(0.5, tree.Value(nonTrivial[0].Through))
}
