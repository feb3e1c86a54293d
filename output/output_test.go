package output_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/localtree"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/output"
	"github.com/katalvlaran/amrtree/vertex"
)

// S5 from spec.md §8: one finite pair (2.0, 0.5) and one infinite ray at 3.0.
func TestWritePersistenceScenarioS5(t *testing.T) {
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

	var buf bytes.Buffer
	require.NoError(output.WritePersistence(&buf, tree, 0, true))

	require.Equal("2 0.5\n3 -Inf\n", buf.String())
}

func TestIntegrateBlockAndWriteIntegral(t *testing.T) {
	require := require.New(t)

	core := field.NewBox3([3]int{0, 0, 0}, [3]int{1, 0, 0})
	box, err := maskedbox.Build(maskedbox.Config{GID: 0, Core: core, Bounds: core})
	require.NoError(err)

	values := field.NewGrid(core)
	values.Set([3]int{0, 0, 0}, 1.0)
	values.Set([3]int{1, 0, 0}, 1.0)

	root := vertex.ID{GID: 0, Index: 0}
	finalDeepest := map[vertex.ID]vertex.ID{
		box.VertexID([3]int{0, 0, 0}): root,
		box.VertexID([3]int{1, 0, 0}): root,
	}

	acc := output.NewIntegralAccumulator()
	require.NoError(output.IntegrateBlock(box, values, finalDeepest, 1.0, nil, 1, acc))

	integral := acc.Integral(root)
	require.NotNil(integral)
	require.Equal(2.0, integral.NCells)
	require.InDelta(2.0, integral.TotalMass, 1e-9)

	var buf bytes.Buffer
	fineDomain := field.NewBox3([3]int{0, 0, 0}, [3]int{1, 0, 0})
	require.NoError(output.WriteIntegral(&buf, acc, fineDomain, 1, nil))
	require.NotEmpty(buf.String())

	buf.Reset()
	require.NoError(output.WriteIntegral(&buf, acc, fineDomain, 3, nil))
	require.Empty(buf.String())
}
