package maskedbox

import (
	"math"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/internal/errs"
)

// Mode selects how the demotion threshold is determined (§4.1 step 2/3).
type Mode int

const (
	// ModeAbsolute uses Rho directly as the threshold.
	ModeAbsolute Mode = iota
	// ModeRelative computes the threshold as Rho * global mean (§4.2).
	ModeRelative
)

// ThresholdConfig bundles the user-facing threshold knobs (CLI: rho,
// absolute, negate) used by ApplyThreshold and by the mean computation.
type ThresholdConfig struct {
	Rho    float64
	Mode   Mode
	Negate bool
	Dim    int // domain dimensionality, used by ScalingFactor
}

// passesThreshold reports whether value should remain Active rather than
// be demoted to Low. The active/low split is always "value >= threshold";
// negate only flips merge-tree monotonicity (mergetree.Precedes), not this
// test, matching scenarios S2/S4 where the polarity governs which
// direction components merge, not which cells clear the bar.
func passesThreshold(value, threshold float64, _ bool) bool {
	return value >= threshold
}

// LocalMeanInputs computes this block's contribution to the global mean:
// the scaled sum of non-Low, non-MaskedByFiner cell values, and the count
// of such cells, both scaled by ScalingFactor (§4.2). Called before any
// Low demotion has happened (tentative Active cells only).
func LocalMeanInputs(b *Box, values *field.Grid, dim int) (sum float64, nUnmasked float64) {
	scale := ScalingFactor(b.Refinement, b.Level, dim)
	n := b.Bounds.Size()
	for idx := int64(0); idx < n; idx++ {
		cell := b.MaskAtIndex(idx)
		if cell.Class == MaskedByFiner {
			continue
		}
		p := b.Bounds.Coordinate(idx)
		if !b.Core.Contains(p) {
			continue // ghost cells belong to the neighbour's own reduce
		}
		sum += values.Get(p) * scale
		nUnmasked += scale
	}
	return sum, nUnmasked
}

// ResolveMean turns the global all-reduced sum/count into a mean, applying
// the §4.2 NumericalError checks.
func ResolveMean(totalSum, totalUnmasked float64) (float64, error) {
	if totalUnmasked == 0 {
		return 0, errs.Numerical("no unmasked cells to compute mean")
	}
	mean := totalSum / totalUnmasked
	if math.IsNaN(mean) || math.IsInf(mean, 0) || mean <= 0 || mean > 1e40 {
		return 0, errs.Numerical("invalid mean %g", mean)
	}
	return mean, nil
}

// ApplyThreshold demotes tentatively-Active core cells below threshold to
// Low (§4.1 steps 2-3). It is idempotent: cells already Low, Ghost, or
// MaskedByFiner are untouched.
func ApplyThreshold(b *Box, values *field.Grid, threshold float64, negate bool) {
	n := b.Bounds.Size()
	for idx := int64(0); idx < n; idx++ {
		cell := b.MaskAtIndex(idx)
		if cell.Class != Active {
			continue
		}
		if !passesThreshold(values.Get(b.Bounds.Coordinate(idx)), threshold, negate) {
			b.setMaskAtIndex(idx, Cell{Class: Low, Neighbor: -1})
		}
	}
}

// AbsoluteThreshold resolves the final scalar threshold value from a
// ThresholdConfig and (for relative mode) a precomputed global mean.
func AbsoluteThreshold(cfg ThresholdConfig, mean float64) float64 {
	if cfg.Mode == ModeAbsolute {
		return cfg.Rho
	}
	return cfg.Rho * mean
}
