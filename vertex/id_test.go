package vertex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/amrtree/vertex"
)

func TestLessOrdersByGIDThenIndex(t *testing.T) {
	require := require.New(t)

	a := vertex.ID{GID: 1, Index: 100}
	b := vertex.ID{GID: 2, Index: 0}
	c := vertex.ID{GID: 1, Index: 50}

	require.True(a.Less(b), "lower gid must sort first regardless of index")
	require.True(c.Less(a), "equal gid falls back to index order")
	require.False(a.Less(c))
	require.False(a.Less(a))
}

func TestZeroIsSentinel(t *testing.T) {
	require := require.New(t)

	require.True(vertex.Zero.IsZero())
	require.False(vertex.ID{GID: 0, Index: 0}.IsZero())
}

func TestString(t *testing.T) {
	require.Equal(t, "3:7", vertex.ID{GID: 3, Index: 7}.String())
}
