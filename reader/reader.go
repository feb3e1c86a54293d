// Package reader implements the reader contract (§6) the engine consumes:
// per block, a (gid, core, bounds, level, refinement, field-grid,
// extra-field-grids, neighbour-links) tuple, plus a global
// (domain-min, domain-max) and a cell_volume, all expressed in a shared
// fine-domain coordinate frame.
//
// Two implementations are provided: Synthetic, a grid generator for tests
// and demos, and Plotfile, a simple custom binary format a real pipeline
// could actually emit and consume.
package reader

import (
	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/maskedbox"
)

// Block is one block as handed out by a Reader: its geometry, its level
// and refinement ratio against its parent level, its primary field
// samples, any additional named fields selected for integration or
// function-field use, and the neighbour links maskedbox.Build needs to
// resolve ownership at its boundary.
type Block struct {
	GID         int
	Level       int
	Refinement  int
	Core        field.Box3
	Bounds      field.Box3
	Values      *field.Grid
	ExtraFields map[string]*field.Grid
	Links       []maskedbox.NeighborLink
}

// Domain is the global geometry every block's coordinates are expressed
// against: the fine-domain bounding box, used for flat-index output
// (§6 integral file), and the volume one finest-level cell occupies.
type Domain struct {
	Min, Max   [3]int
	CellVolume float64
}

// Box returns the domain as a field.Box3, for callers (output.WriteIntegral)
// that want it in that shape directly.
func (d Domain) Box() field.Box3 {
	return field.NewBox3(d.Min, d.Max)
}

// Reader is the contract any AMR source must satisfy (§6 "Reader
// contract (consumed)"): a sequence of Blocks plus the global Domain they
// live in.
type Reader interface {
	Domain() (Domain, error)
	Blocks() ([]Block, error)
}

// validate checks the invariants a Reader implementation promises callers
// (maskedbox.Build in turn trusts these without re-checking): every block's
// Core must lie within Bounds, and GIDs must be unique.
func validate(blocks []Block) error {
	seen := make(map[int]bool, len(blocks))
	for _, b := range blocks {
		if seen[b.GID] {
			return errs.Config("reader: duplicate gid %d", b.GID)
		}
		seen[b.GID] = true

		if !b.Bounds.Contains(b.Core.Lo) || !b.Bounds.Contains(b.Core.Hi) {
			return errs.Config("reader: block %d core %s not contained in bounds %s", b.GID, b.Core, b.Bounds)
		}
		if b.Values == nil {
			return errs.Config("reader: block %d has no field-grid", b.GID)
		}
	}
	return nil
}
