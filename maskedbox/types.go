// Package maskedbox implements C1: the masked representation of one
// block's portion of the AMR field (§3, §4.1).
package maskedbox

import (
	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/vertex"
)

// Class classifies a cell within a block's ghost-expanded bounds.
type Class int

const (
	// Active cells belong to this block's core and are above threshold.
	Active Class = iota
	// Low cells belong to this block's core but are below threshold;
	// they still contribute to the denominator of the mean.
	Low
	// MaskedByFiner cells are refined away by a finer block.
	MaskedByFiner
	// Ghost cells are owned by a coarser/same-level neighbour.
	Ghost
)

// String renders the class name for log lines and diagnostics.
func (c Class) String() string {
	switch c {
	case Active:
		return "ACTIVE"
	case Low:
		return "LOW"
	case MaskedByFiner:
		return "MASKED-BY-FINER"
	case Ghost:
		return "GHOST"
	default:
		return "UNKNOWN"
	}
}

// Cell is one entry of a Box's mask: its class, and for MaskedByFiner /
// Ghost cells, the gid of the owning neighbour (-1 otherwise).
type Cell struct {
	Class    Class
	Neighbor int
}

// NeighborLink describes one neighbour of a block, as handed out by the
// block runtime's Link (§6): the gid, its AMR level/refinement, and the
// box it claims ownership of.
type NeighborLink struct {
	GID        int
	Level      int
	Refinement int
	Bounds     field.Box3
}

// Box is one block's Masked Box: its core region, ghost-expanded bounds,
// refinement metadata, and per-cell mask (§3).
type Box struct {
	GID        int
	Level      int
	Refinement int
	Core       field.Box3
	Bounds     field.Box3
	Links      []NeighborLink

	mask []Cell // indexed by Bounds.LocalIndex
}

// VertexID derives the AmrVertexId of a cell this block owns (p must lie
// in Core). Local indices are always assigned relative to the *owning*
// block's core box, so any block can compute a neighbour's vertex id
// precisely from the neighbour's own claimed core region (its
// NeighborLink.Bounds), without needing to know the neighbour's internal
// ghost-expanded addressing scheme (§3, §4.4).
func (b *Box) VertexID(p [3]int) vertex.ID {
	return vertex.ID{GID: b.GID, Index: b.Core.LocalIndex(p)}
}

// RemoteVertexID derives the AmrVertexId a neighbour block would assign to
// cell p, given the NeighborLink that claims it.
func RemoteVertexID(link NeighborLink, p [3]int) vertex.ID {
	return vertex.ID{GID: link.GID, Index: link.Bounds.LocalIndex(p)}
}

// LinkFor returns the NeighborLink claiming gid, if this box recorded one.
func (b *Box) LinkFor(gid int) (NeighborLink, bool) {
	for _, l := range b.Links {
		if l.GID == gid {
			return l, true
		}
	}
	return NeighborLink{}, false
}

// Mask returns the cell classification at coordinate p, which must lie in
// Bounds.
func (b *Box) Mask(p [3]int) Cell {
	return b.mask[b.Bounds.LocalIndex(p)]
}

// MaskAtIndex returns the cell classification at a precomputed local index.
func (b *Box) MaskAtIndex(idx int64) Cell {
	return b.mask[idx]
}

// setMaskAtIndex is the package-private mutator used by Build and
// ApplyThreshold; Box is otherwise read-only to callers once constructed.
func (b *Box) setMaskAtIndex(idx int64, c Cell) {
	b.mask[idx] = c
}

// IsActive is a convenience test used throughout C3/C4/C7.
func (b *Box) IsActive(p [3]int) bool {
	return b.Mask(p).Class == Active
}

// IsActiveVertex reports whether id — addressed relative to this block's
// own Core, per VertexID — still names an ACTIVE cell. Used by C6 to
// detect vertices a neighbour thought were ACTIVE but this block has since
// (or always) classified LOW (§4.6 step 2, delete_low_edges).
func (b *Box) IsActiveVertex(id vertex.ID) bool {
	if id.GID != b.GID {
		return false
	}
	return b.IsActive(b.Core.Coordinate(id.Index))
}

// Cells returns the full mask in Bounds-local-index order, for callers
// (internal/wire) that need to serialize a Box verbatim rather than
// rebuild it from scratch via Build.
func (b *Box) Cells() []Cell {
	return append([]Cell(nil), b.mask...)
}

// FromCells reconstructs a Box from previously-exported geometry and mask,
// bypassing Build's neighbour-resolution pass entirely. Used by
// internal/wire to round-trip a spilled or saved block (§4.9, §6
// "Serialized distributed tree file"): the mask was already resolved once
// and must come back byte-for-byte, not be recomputed.
func FromCells(gid, level, refinement int, core, bounds field.Box3, links []NeighborLink, cells []Cell) *Box {
	return &Box{
		GID:        gid,
		Level:      level,
		Refinement: refinement,
		Core:       core,
		Bounds:     bounds,
		Links:      links,
		mask:       append([]Cell(nil), cells...),
	}
}
