// Package wire implements the opaque binary (de)serialisation used for
// two things the core hands off to its runtime: proxy.enqueue/dequeue
// packet bytes during the exchange protocol, and a block's spilled-to-disk
// record when the `in_memory` resident-block limit is in effect (§4.9,
// §6 "Serialized distributed tree file"). Both use encoding/gob, the
// standard library's answer to exactly this job and the only serializer
// this module needs: the wire format is process-to-itself (spill) or
// in-process goroutine-to-goroutine (the in-process runtime's proxy), so
// there is no cross-language or cross-version compatibility requirement
// that would call for a schema-based library like the teacher never
// carries one either (see DESIGN.md).
package wire

import (
	"bytes"
	"encoding/gob"

	"github.com/katalvlaran/amrtree/component"
	"github.com/katalvlaran/amrtree/edges"
	"github.com/katalvlaran/amrtree/exchange"
	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"
)

// EncodePacket serialises one exchange.Packet for proxy.enqueue.
func EncodePacket(pkt exchange.Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pkt); err != nil {
		return nil, errs.Resource(err, "encoding packet")
	}
	return buf.Bytes(), nil
}

// DecodePacket deserialises one exchange.Packet from proxy.dequeue.
func DecodePacket(data []byte) (exchange.Packet, error) {
	var pkt exchange.Packet
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&pkt); err != nil {
		return exchange.Packet{}, errs.Resource(err, "decoding packet")
	}
	return pkt, nil
}

// treeNode is one exported triplet, the gob-friendly projection of a
// mergetree.Tree node (Value/Saddle/Parent/IsSpecial are all the accessors
// Tree exposes; there is no direct field access from outside the package).
type treeNode struct {
	ID      vertex.ID
	Value   float64
	Saddle  vertex.ID
	Parent  vertex.ID
	Special bool
}

// TreeSnapshot is a tree's full triplet set plus its polarity, gob-encodable.
type TreeSnapshot struct {
	Negate bool
	Nodes  []treeNode
}

// SnapshotTree projects tree into its serializable form.
func SnapshotTree(tree *mergetree.Tree) TreeSnapshot {
	ids := tree.Nodes()
	snap := TreeSnapshot{Negate: tree.Negate(), Nodes: make([]treeNode, 0, len(ids))}
	for _, id := range ids {
		snap.Nodes = append(snap.Nodes, treeNode{
			ID:      id,
			Value:   tree.Value(id),
			Saddle:  tree.Saddle(id),
			Parent:  tree.Parent(id),
			Special: tree.IsSpecial(id),
		})
	}
	return snap
}

// RestoreTree rebuilds a Tree from a snapshot, via mergetree.Tree.LoadNode
// (installing each stored triplet as is, without Union/Attach, since the
// triplets were already valid in the tree that produced the snapshot).
func RestoreTree(snap TreeSnapshot) *mergetree.Tree {
	tree := mergetree.New(snap.Negate)
	for _, n := range snap.Nodes {
		tree.LoadNode(n.ID, n.Value, n.Saddle, n.Parent, n.Special)
	}
	return tree
}

// boxSnapshot is the gob-friendly projection of a maskedbox.Box.
type boxSnapshot struct {
	GID        int
	Level      int
	Refinement int
	Core       field.Box3
	Bounds     field.Box3
	Links      []maskedbox.NeighborLink
	Cells      []maskedbox.Cell
}

// SnapshotBox projects box into its serializable form.
func SnapshotBox(box *maskedbox.Box) boxSnapshot {
	return boxSnapshot{
		GID:        box.GID,
		Level:      box.Level,
		Refinement: box.Refinement,
		Core:       box.Core,
		Bounds:     box.Bounds,
		Links:      append([]maskedbox.NeighborLink(nil), box.Links...),
		Cells:      box.Cells(),
	}
}

// RestoreBox rebuilds a Box from a snapshot via maskedbox.FromCells.
func RestoreBox(snap boxSnapshot) *maskedbox.Box {
	return maskedbox.FromCells(snap.GID, snap.Level, snap.Refinement, snap.Core, snap.Bounds, snap.Links, snap.Cells)
}

// componentSnapshot is the gob-friendly projection of one component.Component,
// keyed by the disjoint-set root it lived at when snapshotted. Persisting
// only the roots (and re-deriving everything else from the initial edge map
// on reload) would silently drop every round's accumulated
// current_neighbors/processed_neighbors/outgoing_edges — exactly the §4.6
// progress a mid-exchange spill must not lose — so every field of Component
// round-trips here.
type componentSnapshot struct {
	Root               vertex.ID
	CurrentNeighbors   map[int]bool
	ProcessedNeighbors map[int]bool
	OutgoingEdges      map[int][]edges.Edge
}

// BlockRecord is the full persisted/spilled state of one block (§4.9,
// §6): its Masked Box, its (unsparsified) original tree, its current
// exchange tree, the three vertex-to-deepest maps, its outgoing-edge map,
// and every live component's full tracker state.
type BlockRecord struct {
	GID             int
	Box             boxSnapshot
	OriginalTree    TreeSnapshot
	CurrentTree     TreeSnapshot
	OriginalDeepest map[vertex.ID]vertex.ID
	CurrentDeepest  map[vertex.ID]vertex.ID
	FinalDeepest    map[vertex.ID]vertex.ID
	EdgesByGID      map[int][]edges.Edge
	Components      []componentSnapshot
}

// SnapshotBlockRecord builds a persistable record from a live exchange
// Block and the edge map and original tree C4/C3 produced for it.
func SnapshotBlockRecord(b *exchange.Block, originalTree *mergetree.Tree, edgesByGID map[int][]edges.Edge) BlockRecord {
	roots := b.Tracker.Roots()
	comps := make([]componentSnapshot, 0, len(roots))
	for _, root := range roots {
		c := b.Tracker.Component(root)
		comps = append(comps, componentSnapshot{
			Root:               root,
			CurrentNeighbors:   c.CurrentNeighbors,
			ProcessedNeighbors: c.ProcessedNeighbors,
			OutgoingEdges:      c.OutgoingEdges,
		})
	}

	return BlockRecord{
		GID:             b.GID,
		Box:             SnapshotBox(b.Box),
		OriginalTree:    SnapshotTree(originalTree),
		CurrentTree:     SnapshotTree(b.Tree),
		OriginalDeepest: b.OriginalVertexToDeepest,
		CurrentDeepest:  b.CurrentVertexToDeepest,
		FinalDeepest:    b.FinalVertexToDeepest,
		EdgesByGID:      edgesByGID,
		Components:      comps,
	}
}

// RestoreBlock rebuilds an exchange.Block from a record, restoring the
// component tracker verbatim via component.RestoreTracker rather than
// re-deriving it from the edge map, so a block spilled mid-exchange and
// reloaded keeps every round's link-expansion and processed-neighbour
// progress (§5).
func RestoreBlock(rec BlockRecord) *exchange.Block {
	entries := make([]component.RestoreEntry, 0, len(rec.Components))
	for _, c := range rec.Components {
		entries = append(entries, component.RestoreEntry{
			Root:               c.Root,
			CurrentNeighbors:   c.CurrentNeighbors,
			ProcessedNeighbors: c.ProcessedNeighbors,
			OutgoingEdges:      c.OutgoingEdges,
		})
	}

	currentDeepest := rec.CurrentDeepest
	if currentDeepest == nil {
		currentDeepest = make(map[vertex.ID]vertex.ID, len(rec.OriginalDeepest))
	}

	return &exchange.Block{
		GID:                     rec.GID,
		Box:                     RestoreBox(rec.Box),
		Tree:                    RestoreTree(rec.CurrentTree),
		Tracker:                 component.RestoreTracker(entries),
		OriginalVertexToDeepest: rec.OriginalDeepest,
		CurrentVertexToDeepest:  currentDeepest,
		FinalVertexToDeepest:    rec.FinalDeepest,
	}
}

// EncodeBlockRecord serialises a BlockRecord for spill-to-disk.
func EncodeBlockRecord(rec BlockRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, errs.Resource(err, "encoding block record")
	}
	return buf.Bytes(), nil
}

// DecodeBlockRecord deserialises a BlockRecord read back from spill.
func DecodeBlockRecord(data []byte) (BlockRecord, error) {
	var rec BlockRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return BlockRecord{}, errs.Resource(err, "decoding block record")
	}
	return rec, nil
}
