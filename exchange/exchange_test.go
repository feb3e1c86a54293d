package exchange_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/amrtree/edges"
	"github.com/katalvlaran/amrtree/exchange"
	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/localtree"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"
)

func originalDeepestOf(tree *mergetree.Tree) map[vertex.ID]vertex.ID {
	out := make(map[vertex.ID]vertex.ID)
	for _, id := range tree.Nodes() {
		out[id] = tree.Root(id)
	}
	return out
}

// Two 4x4x4 blocks joined along x, one ACTIVE cell straddling the shared
// face on each side, mirroring scenario S2's topology (simplified to a
// single edge pair instead of a full face).
func buildTwoBlocks(t *testing.T) (*exchange.Block, *exchange.Block) {
	t.Helper()
	require := require.New(t)

	core0 := field.NewBox3([3]int{0, 0, 0}, [3]int{3, 3, 3})
	core1 := field.NewBox3([3]int{4, 0, 0}, [3]int{7, 3, 3})
	bounds0 := field.NewBox3([3]int{0, 0, 0}, [3]int{4, 3, 3})
	bounds1 := field.NewBox3([3]int{3, 0, 0}, [3]int{7, 3, 3})

	box0, err := maskedbox.Build(maskedbox.Config{
		GID: 0, Core: core0, Bounds: bounds0,
		Links: []maskedbox.NeighborLink{{GID: 1, Level: 0, Bounds: core1}},
	})
	require.NoError(err)
	box1, err := maskedbox.Build(maskedbox.Config{
		GID: 1, Core: core1, Bounds: bounds1,
		Links: []maskedbox.NeighborLink{{GID: 0, Level: 0, Bounds: core0}},
	})
	require.NoError(err)

	values0 := field.NewGrid(core0)
	values1 := field.NewGrid(core1)
	for i := range values0.Values {
		values0.Values[i] = 1.0
	}
	for i := range values1.Values {
		values1.Values[i] = 1.0
	}
	values0.Set([3]int{3, 2, 2}, 2.0)
	values1.Set([3]int{4, 2, 2}, 2.0)

	tree0 := localtree.Build(box0, values0, true)
	tree1 := localtree.Build(box1, values1, true)

	edges0 := edges.Detect(box0)
	edges1 := edges.Detect(box1)

	b0 := exchange.NewBlock(0, box0, tree0, edges0, originalDeepestOf(tree0))
	b1 := exchange.NewBlock(1, box1, tree1, edges1, originalDeepestOf(tree1))

	return b0, b1
}

func TestSendReceiveConvergesToSingleComponent(t *testing.T) {
	require := require.New(t)

	b0, b1 := buildTwoBlocks(t)

	require.False(b0.Done())
	require.False(b1.Done())

	round := 1
	for round < 10 {
		out0 := exchange.SendStep(b0)
		out1 := exchange.SendStep(b1)

		if pkts, ok := out0[1]; ok {
			require.NoError(exchange.ReceiveStep(b1, 0, pkts, round))
		}
		if pkts, ok := out1[0]; ok {
			require.NoError(exchange.ReceiveStep(b0, 1, pkts, round))
		}

		if b0.Done() && b1.Done() {
			break
		}
		round++
	}

	require.True(b0.Done())
	require.True(b1.Done())

	b0.Finalize()
	b1.Finalize()
	require.NotEmpty(b0.FinalVertexToDeepest)
	require.NotEmpty(b1.FinalVertexToDeepest)
}

// Invariant: once a block has converged, Finalize is idempotent —
// calling it again must reproduce the exact same final_vertex_to_deepest
// map, not merely an equivalent-looking one (§8 "deepest idempotence").
func TestFinalizeIsIdempotentAfterConvergence(t *testing.T) {
	require := require.New(t)

	b0, b1 := buildTwoBlocks(t)

	for round := 1; round < 10 && !(b0.Done() && b1.Done()); round++ {
		out0 := exchange.SendStep(b0)
		out1 := exchange.SendStep(b1)
		if pkts, ok := out0[1]; ok {
			require.NoError(exchange.ReceiveStep(b1, 0, pkts, round))
		}
		if pkts, ok := out1[0]; ok {
			require.NoError(exchange.ReceiveStep(b0, 1, pkts, round))
		}
	}
	require.True(b0.Done())
	require.True(b1.Done())

	b0.Finalize()
	first := b0.FinalVertexToDeepest

	b0.Finalize()
	second := b0.FinalVertexToDeepest

	require.Equal(first, second)
}

// Invariant: a received edge whose local endpoint has been demoted to
// LOW is silently dropped in round 1 (delete_low_edges) but is a protocol
// violation in any later round, since by then every block's threshold is
// long resolved (§4.6 step 2, §8 "edge symmetry").
func TestReceiveStepDropsLowEdgeOnlyInRoundOne(t *testing.T) {
	require := require.New(t)

	core := field.NewBox3([3]int{0, 0, 0}, [3]int{3, 0, 0})
	box, err := maskedbox.Build(maskedbox.Config{GID: 0, Core: core, Bounds: core})
	require.NoError(err)

	values := field.NewGrid(core)
	for i := range values.Values {
		values.Values[i] = 1.0
	}
	maskedbox.ApplyThreshold(box, values, 2.0, false) // every cell demoted to Low

	tree := localtree.Build(box, values, false)
	b := exchange.NewBlock(0, box, tree, nil, originalDeepestOf(tree))

	lowVertex := box.VertexID([3]int{0, 0, 0})
	require.False(box.IsActiveVertex(lowVertex))

	remoteRoot := vertex.ID{GID: 9, Index: 0}
	pkt := exchange.Packet{
		ComponentRoot:   remoteRoot,
		RootValue:       1.0,
		OriginalDeepest: map[vertex.ID]vertex.ID{remoteRoot: remoteRoot},
		Values:          map[vertex.ID]float64{remoteRoot: 1.0},
		OutgoingEdges:   []edges.Edge{{From: remoteRoot, To: lowVertex}},
	}

	require.NoError(exchange.ReceiveStep(b, 9, []exchange.Packet{pkt}, 1))

	err = exchange.ReceiveStep(b, 9, []exchange.Packet{pkt}, 2)
	require.Error(err)
}
