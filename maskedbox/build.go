package maskedbox

import (
	"math"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/internal/errs"
)

// Config carries the construction-time options for Build, mirroring the
// teacher's functional-options convention (builder.BuilderOption) while
// keeping this call site a single explicit struct, since every field here
// is required reader-supplied metadata rather than an optional tweak.
type Config struct {
	GID        int
	Level      int
	Refinement int
	Core       field.Box3
	Bounds     field.Box3
	Links      []NeighborLink
	Wrap       bool // periodic boundary request
}

// Build constructs a Masked Box from core/bounds geometry and neighbour
// links (§4.1 step 1). Every cell of Bounds is classified tentatively as
// Active, MaskedByFiner, or Ghost; the Active/Low split against a
// threshold is deferred to ApplyThreshold so that relative-threshold mode
// can wait for the global mean (§4.2).
//
// Per spec.md §9 Open Questions, periodic wrap is not implemented: a
// spec-conformant engine must either fully support it or reject it, and
// the ghost-layer construction it requires is underdetermined by the
// source. Build always rejects Wrap==true.
func Build(cfg Config) (*Box, error) {
	if cfg.Wrap {
		return nil, errs.Config("periodic wrap is not supported (gid %d)", cfg.GID)
	}

	b := &Box{
		GID:        cfg.GID,
		Level:      cfg.Level,
		Refinement: cfg.Refinement,
		Core:       cfg.Core,
		Bounds:     cfg.Bounds,
		Links:      cfg.Links,
		mask:       make([]Cell, cfg.Bounds.Size()),
	}

	n := cfg.Bounds.Size()
	for idx := int64(0); idx < n; idx++ {
		p := cfg.Bounds.Coordinate(idx)

		winnerGID, winnerLevel, found := findOwner(p, cfg.GID, cfg.Level, cfg.Core, cfg.Links)
		if !found {
			return nil, errs.Config("cell %v in bounds of block %d is not covered by this block or any neighbour", p, cfg.GID)
		}

		if winnerGID == cfg.GID {
			// self owns this cell: must be in core per the algorithm's
			// invariant, tentatively Active pending threshold resolution.
			b.setMaskAtIndex(idx, Cell{Class: Active, Neighbor: -1})
			continue
		}

		if winnerLevel > cfg.Level {
			b.setMaskAtIndex(idx, Cell{Class: MaskedByFiner, Neighbor: winnerGID})
		} else {
			b.setMaskAtIndex(idx, Cell{Class: Ghost, Neighbor: winnerGID})
		}
	}

	return b, nil
}

// findOwner finds the unique neighbour (or self) whose claimed region
// covers p at the finest available level, with the §4.1 tie-break: finer
// level wins, equal levels resolve to the smaller gid.
func findOwner(p [3]int, selfGID, selfLevel int, selfCore field.Box3, links []NeighborLink) (gid, level int, found bool) {
	if selfCore.Contains(p) {
		gid, level, found = selfGID, selfLevel, true
	}

	for _, link := range links {
		if !link.Bounds.Contains(p) {
			continue
		}
		if !found || link.Level > level || (link.Level == level && link.GID < gid) {
			gid, level, found = link.GID, link.Level, true
		}
	}

	return gid, level, found
}

// ScalingFactor is r^(D·level) inverted, designed so summing a quantity
// times ScalingFactor across levels reproduces the finest-level integral
// (§4.2, §8 invariant 6).
func ScalingFactor(refinement, level, dim int) float64 {
	return 1.0 / math.Pow(float64(refinement), float64(dim*level))
}
