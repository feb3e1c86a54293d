// Package exchange implements C6: the round-based, block-parallel exchange
// protocol by which neighbouring blocks merge their local trees and
// reconcile component identities until a global fixed point is reached
// (§4.6). One round is orchestrated by internal/runtime as
// send → barrier → receive → barrier → all-reduce(undone); this package
// supplies the per-block send/receive logic that runs inside that shell.
package exchange

import (
	"sort"

	"github.com/katalvlaran/amrtree/component"
	"github.com/katalvlaran/amrtree/edges"
	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"
)

// Packet is one component's message to a single neighbour gid (§4.6 send
// step). The abstract protocol only needs original_deepest_map to carry
// AmrVertexId pairs, but a receiver must also be able to instantiate the
// sender's component root and its edge endpoints as pseudo-nodes in its own
// tree before it can run the triplet merge; Values supplies exactly the
// scalar field values needed for that (the root's and every edge-endpoint's
// value), which the abstract spec leaves implicit.
type Packet struct {
	ComponentRoot    vertex.ID
	RootValue        float64
	OriginalDeepest  map[vertex.ID]vertex.ID
	Values           map[vertex.ID]float64
	OutgoingEdges    []edges.Edge
	CurrentNeighbors []int
}

// Block bundles one block's exchange-relevant state: its Masked Box (for
// re-checking ACTIVE status of received edge endpoints), its current
// triplet tree (mutated in place as rounds merge in neighbours), its
// component tracker, and the three vertex-to-deepest maps of §3.
//
// Block is touched by exactly one goroutine at a time (the owning block's
// worker in internal/runtime), matching the teacher convention noted in
// mergetree of guarding shared structures even when single-writer in
// practice; Block itself adds no locking since runtime already serialises
// access per block.
type Block struct {
	GID     int
	Box     *maskedbox.Box
	Tree    *mergetree.Tree
	Tracker *component.Tracker

	OriginalVertexToDeepest map[vertex.ID]vertex.ID
	CurrentVertexToDeepest  map[vertex.ID]vertex.ID
	FinalVertexToDeepest    map[vertex.ID]vertex.ID
}

// NewBlock seeds a Block's exchange state from the output of C3/C4/C5:
// tree is the block's local tree (the engine passes it sparsified, with
// every outgoing-edge endpoint kept as special), edgesByGID is C4's output, and
// original is C3's original_vertex_to_deepest (every ACTIVE vertex mapped
// to its local-tree root).
func NewBlock(gid int, box *maskedbox.Box, tree *mergetree.Tree, edgesByGID map[int][]edges.Edge, original map[vertex.ID]vertex.ID) *Block {
	return &Block{
		GID:                     gid,
		Box:                     box,
		Tree:                    tree,
		Tracker:                 component.FormComponents(tree, edgesByGID),
		OriginalVertexToDeepest: original,
		CurrentVertexToDeepest:  make(map[vertex.ID]vertex.ID, len(original)),
	}
}

// Done reports whether every component on this block currently satisfies
// current_neighbors ⊆ processed_neighbors.
func (b *Block) Done() bool {
	return b.Tracker.AllDone()
}

// SendStep builds the outgoing packets for this round (§4.6 send step),
// grouped by destination gid, and marks each destination processed in the
// component that sent to it.
func SendStep(b *Block) map[int][]Packet {
	out := make(map[int][]Packet)

	for _, root := range b.Tracker.Roots() {
		comp := b.Tracker.Component(root)

		var pending []int
		for gid := range comp.CurrentNeighbors {
			if !comp.ProcessedNeighbors[gid] {
				pending = append(pending, gid)
			}
		}
		sort.Ints(pending)

		allNeighbors := make([]int, 0, len(comp.CurrentNeighbors))
		for gid := range comp.CurrentNeighbors {
			allNeighbors = append(allNeighbors, gid)
		}
		sort.Ints(allNeighbors)

		for _, ngid := range pending {
			edgeList := comp.OutgoingEdges[ngid]

			originalDeepest := make(map[vertex.ID]vertex.ID, len(edgeList))
			values := make(map[vertex.ID]float64, len(edgeList)+1)
			for _, e := range edgeList {
				originalDeepest[e.From] = root
				values[e.From] = b.Tree.Value(e.From)
			}
			values[root] = b.Tree.Value(root)

			out[ngid] = append(out[ngid], Packet{
				ComponentRoot:    root,
				RootValue:        b.Tree.Value(root),
				OriginalDeepest:  originalDeepest,
				Values:           values,
				OutgoingEdges:    append([]edges.Edge(nil), edgeList...),
				CurrentNeighbors: allNeighbors,
			})

			comp.ProcessedNeighbors[ngid] = true
		}
	}

	return out
}

// ReceiveStep processes every packet received from sender this round, in
// packet-index order, performing the five steps of §4.6's receive step.
// round is the 1-indexed exchange round, used to gate the round-1-only
// delete_low_edges symmetrisation.
func ReceiveStep(b *Block, sender int, packets []Packet, round int) error {
	for _, pkt := range packets {
		if err := applyOriginalDeepest(b, pkt, round); err != nil {
			return err
		}

		survivors, err := symmetrise(b, pkt, round)
		if err != nil {
			return err
		}

		for id, val := range pkt.Values {
			b.Tree.AddNode(id, val)
		}

		preRoots := make(map[vertex.ID]vertex.ID, len(survivors))
		for _, e := range survivors {
			preRoots[e.To] = b.Tree.Root(e.To)
		}

		for _, e := range survivors {
			b.Tree.Union(e.From, e.To, e.To)
		}

		// Re-key any local component whose root was superseded by the merge.
		for _, prevRoot := range preRoots {
			newRoot := b.Tree.Root(prevRoot)
			if newRoot != prevRoot {
				b.Tracker.Union(newRoot, prevRoot)
			}
		}

		// Link expansion: fold the sender's view of who C still needs to
		// hear from into every local component touched by this packet.
		for _, e := range survivors {
			local := b.Tree.Root(e.To)
			comp := b.Tracker.Component(b.Tracker.Ensure(local))
			for _, gid := range pkt.CurrentNeighbors {
				if gid != b.GID {
					comp.CurrentNeighbors[gid] = true
				}
			}
		}

		b.repairCurrentVertexToDeepest()
	}

	_ = sender // sender is used by the caller for message ordering only
	return nil
}

func applyOriginalDeepest(b *Block, pkt Packet, round int) error {
	for id, deepest := range pkt.OriginalDeepest {
		existing, ok := b.OriginalVertexToDeepest[id]
		if !ok {
			b.OriginalVertexToDeepest[id] = deepest
			continue
		}
		if existing != deepest {
			return errs.Protocol(b.GID, round, "conflicting original_deepest for %s: have %s, received %s", id, existing, deepest)
		}
	}
	return nil
}

// symmetrise applies delete_low_edges (§4.6 step 2): in round 1, a received
// edge whose local endpoint turned out not to be ACTIVE (demoted to LOW
// once relative-threshold resolution completed) is silently dropped. In
// later rounds the same condition is a protocol violation, since by then
// every block's threshold has long been resolved.
func symmetrise(b *Block, pkt Packet, round int) ([]edges.Edge, error) {
	kept := make([]edges.Edge, 0, len(pkt.OutgoingEdges))
	for _, e := range pkt.OutgoingEdges {
		if b.Box.IsActiveVertex(e.To) {
			kept = append(kept, e)
			continue
		}
		if round == 1 {
			continue
		}
		return nil, errs.Protocol(b.GID, round, "edge endpoint %s not ACTIVE in receiver mask", e.To)
	}
	return kept, nil
}

func (b *Block) repairCurrentVertexToDeepest() {
	for _, id := range b.Tree.Nodes() {
		if id.GID == b.GID {
			b.CurrentVertexToDeepest[id] = b.Tree.Root(id)
		}
	}
	// Vertices that Sparsify removed from the tree follow the local root
	// they were mapped to at construction, which the tree always keeps.
	for id, deepest := range b.OriginalVertexToDeepest {
		if id.GID == b.GID && b.Tree.Has(deepest) {
			b.CurrentVertexToDeepest[id] = b.Tree.Root(deepest)
		}
	}
}

// Finalize populates final_vertex_to_deepest once the global round loop has
// converged (compute_final_connected_components, §4.7).
func (b *Block) Finalize() {
	b.repairCurrentVertexToDeepest()
	b.FinalVertexToDeepest = make(map[vertex.ID]vertex.ID, len(b.CurrentVertexToDeepest))
	for v, d := range b.CurrentVertexToDeepest {
		b.FinalVertexToDeepest[v] = d
	}
}
