package reader

import (
	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/maskedbox"
)

// ValueFunc samples a scalar field at a fine-domain cell coordinate.
type ValueFunc func(p [3]int) float64

// SyntheticConfig describes a single-level, evenly-decomposed synthetic
// domain: a fine-domain shape split into BlocksPerAxis[a] contiguous
// chunks per axis (an axis with BlocksPerAxis[a] of 0 or 1 is a single
// block), each block ghost-expanded by GhostWidth cells and clamped to
// the domain (no periodic wrap, matching maskedbox.Build's rejection of
// Wrap).
type SyntheticConfig struct {
	Min, Max      [3]int
	BlocksPerAxis [3]int
	GhostWidth    int
	CellVolume    float64
	Value         ValueFunc
	ExtraFields   map[string]ValueFunc
}

// Synthetic is a Reader generating a single-level grid of blocks from a
// ValueFunc, for tests and demos that don't need a real file on disk.
type Synthetic struct {
	cfg SyntheticConfig
}

// NewSynthetic validates cfg and returns a Reader over it.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	for a := 0; a < 3; a++ {
		if cfg.Max[a] < cfg.Min[a] {
			return nil, errs.Config("synthetic reader: axis %d max %d < min %d", a, cfg.Max[a], cfg.Min[a])
		}
		if cfg.BlocksPerAxis[a] <= 0 {
			cfg.BlocksPerAxis[a] = 1
		}
	}
	if cfg.CellVolume <= 0 {
		return nil, errs.Config("synthetic reader: cell_volume must be positive, got %g", cfg.CellVolume)
	}
	if cfg.Value == nil {
		return nil, errs.Config("synthetic reader: Value function is required")
	}
	return &Synthetic{cfg: cfg}, nil
}

func (s *Synthetic) Domain() (Domain, error) {
	return Domain{Min: s.cfg.Min, Max: s.cfg.Max, CellVolume: s.cfg.CellVolume}, nil
}

// axisSplits partitions [lo, hi] into n contiguous chunks, the remainder
// folded into the final chunk.
func axisSplits(lo, hi, n int) [][2]int {
	total := hi - lo + 1
	base := total / n
	out := make([][2]int, 0, n)
	cur := lo
	for i := 0; i < n; i++ {
		size := base
		if i == n-1 {
			size = hi - cur + 1
		}
		out = append(out, [2]int{cur, cur + size - 1})
		cur += size
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Synthetic) Blocks() ([]Block, error) {
	splitsX := axisSplits(s.cfg.Min[0], s.cfg.Max[0], s.cfg.BlocksPerAxis[0])
	splitsY := axisSplits(s.cfg.Min[1], s.cfg.Max[1], s.cfg.BlocksPerAxis[1])
	splitsZ := axisSplits(s.cfg.Min[2], s.cfg.Max[2], s.cfg.BlocksPerAxis[2])

	type grid struct {
		ix, iy, iz int
		core       field.Box3
	}
	var cells []grid
	for iz, sz := range splitsZ {
		for iy, sy := range splitsY {
			for ix, sx := range splitsX {
				core := field.NewBox3([3]int{sx[0], sy[0], sz[0]}, [3]int{sx[1], sy[1], sz[1]})
				cells = append(cells, grid{ix: ix, iy: iy, iz: iz, core: core})
			}
		}
	}

	gidOf := func(ix, iy, iz int) int {
		return iz*len(splitsY)*len(splitsX) + iy*len(splitsX) + ix
	}

	blocks := make([]Block, 0, len(cells))
	for _, c := range cells {
		gid := gidOf(c.ix, c.iy, c.iz)

		var links []maskedbox.NeighborLink
		neighborOffsets := [][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}}
		for _, off := range neighborOffsets {
			nix, niy, niz := c.ix+off[0], c.iy+off[1], c.iz+off[2]
			if nix < 0 || nix >= len(splitsX) || niy < 0 || niy >= len(splitsY) || niz < 0 || niz >= len(splitsZ) {
				continue
			}
			ncore := field.NewBox3(
				[3]int{splitsX[nix][0], splitsY[niy][0], splitsZ[niz][0]},
				[3]int{splitsX[nix][1], splitsY[niy][1], splitsZ[niz][1]},
			)
			links = append(links, maskedbox.NeighborLink{GID: gidOf(nix, niy, niz), Level: 0, Refinement: 1, Bounds: ncore})
		}

		bounds := c.core.Expand(s.cfg.GhostWidth)
		bounds = field.NewBox3(
			[3]int{clamp(bounds.Lo[0], s.cfg.Min[0], s.cfg.Max[0]), clamp(bounds.Lo[1], s.cfg.Min[1], s.cfg.Max[1]), clamp(bounds.Lo[2], s.cfg.Min[2], s.cfg.Max[2])},
			[3]int{clamp(bounds.Hi[0], s.cfg.Min[0], s.cfg.Max[0]), clamp(bounds.Hi[1], s.cfg.Min[1], s.cfg.Max[1]), clamp(bounds.Hi[2], s.cfg.Min[2], s.cfg.Max[2])},
		)

		// Grids are allocated over bounds (ghost-expanded), so ghost cells
		// carry samples too. maskedbox.ApplyThreshold/LocalMeanInputs and
		// localtree.Build address values by coordinate and read only core
		// cells, so a grid over core alone (as Plotfile returns) works too.
		values := field.NewGrid(bounds)
		n := bounds.Size()
		for idx := int64(0); idx < n; idx++ {
			p := bounds.Coordinate(idx)
			values.Set(p, s.cfg.Value(p))
		}

		var extra map[string]*field.Grid
		if len(s.cfg.ExtraFields) > 0 {
			extra = make(map[string]*field.Grid, len(s.cfg.ExtraFields))
			for name, fn := range s.cfg.ExtraFields {
				g := field.NewGrid(bounds)
				for idx := int64(0); idx < n; idx++ {
					p := bounds.Coordinate(idx)
					g.Set(p, fn(p))
				}
				extra[name] = g
			}
		}

		blocks = append(blocks, Block{
			GID:         gid,
			Level:       0,
			Refinement:  1,
			Core:        c.core,
			Bounds:      bounds,
			Values:      values,
			ExtraFields: extra,
			Links:       links,
		})
	}

	if err := validate(blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}
