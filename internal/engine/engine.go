// Package engine wires the C1-C7 components (§2) into the single
// end-to-end run cmd/amrtree drives: read blocks, resolve the activity
// threshold, build local trees and outgoing edges, run them through the
// in-process block-parallel runtime to convergence, and emit the three
// output files of §6. Nothing here is part of the core algorithm itself —
// it is the glue a real binary needs around C1-C7, grounded on the
// teacher's convention of a thin orchestration layer over independently
// testable packages (core.Graph composed by higher-level algorithms).
package engine

import (
	"context"
	"io"
	"sort"

	"github.com/katalvlaran/amrtree/edges"
	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/internal/runtime"
	"github.com/katalvlaran/amrtree/internal/telemetry"
	"github.com/katalvlaran/amrtree/internal/wire"
	"github.com/katalvlaran/amrtree/localtree"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/output"
	"github.com/katalvlaran/amrtree/reader"
	"github.com/katalvlaran/amrtree/vertex"
)

// Options bundles every run option the CLI's flags and config resolve
// (§6 CLI surface), independent of how they were sourced.
type Options struct {
	Threshold             maskedbox.ThresholdConfig // Threshold.Dim: domain dimensionality for ScalingFactor; 0 defaults to 3
	MinCells              int
	IntegralFields        []string // names drawn from reader.Block.ExtraFields, in output column order
	IgnoreZeroPersistence bool
	Runtime               runtime.Config
}

// Outputs collects the writers for the three output files of §6 plus the
// opaque serialized tree stream. Any of them may be nil to skip that
// output entirely.
type Outputs struct {
	Diagram  io.Writer
	Integral io.Writer
	Halo     io.Writer
	Tree     io.Writer
}

func dimOrDefault(d int) int {
	if d <= 0 {
		return 3
	}
	return d
}

// blockState is everything the run keeps about one block between reading
// it and converging the exchange protocol.
type blockState struct {
	gid         int
	box         *maskedbox.Box
	values      *field.Grid
	extraFields map[string]*field.Grid
	link        runtime.Link
}

// Run executes one full engine pass: read, threshold, build, exchange,
// and emit outputs. ctx governs only the exchange loop's wall-clock
// budget (§5); the core itself never times out.
func Run(ctx context.Context, rdr reader.Reader, opts Options, log telemetry.Logger, out Outputs) error {
	if log == nil {
		log = telemetry.Null{}
	}
	dim := dimOrDefault(opts.Threshold.Dim)

	domain, err := rdr.Domain()
	if err != nil {
		return err
	}
	blocks, err := rdr.Blocks()
	if err != nil {
		return err
	}
	log.Info("read %d block(s), domain %s", len(blocks), domain.Box())

	negate := opts.Threshold.Negate

	states := make([]*blockState, 0, len(blocks))
	for _, blk := range blocks {
		box, err := maskedbox.Build(maskedbox.Config{
			GID:        blk.GID,
			Level:      blk.Level,
			Refinement: blk.Refinement,
			Core:       blk.Core,
			Bounds:     blk.Bounds,
			Links:      blk.Links,
		})
		if err != nil {
			return err
		}
		states = append(states, &blockState{
			gid:         blk.GID,
			box:         box,
			values:      blk.Values,
			extraFields: blk.ExtraFields,
			link:        runtime.NewLink(blk.Links),
		})
	}

	threshold, err := resolveThreshold(states, opts.Threshold, dim)
	if err != nil {
		return err
	}
	log.Info("resolved threshold %g (mode=%v rho=%g)", threshold, opts.Threshold.Mode, opts.Threshold.Rho)

	for _, st := range states {
		maskedbox.ApplyThreshold(st.box, st.values, threshold, negate)
	}

	master := runtime.NewMaster(opts.Runtime)

	treeByGID := make(map[int]*mergetree.Tree, len(states))
	originalTreeByGID := make(map[int]*mergetree.Tree, len(states))
	boxByGID := make(map[int]*maskedbox.Box, len(states))
	valuesByGID := make(map[int]*field.Grid, len(states))
	extraByGID := make(map[int]map[string]*field.Grid, len(states))

	for _, st := range states {
		tree := localtree.Build(st.box, st.values, negate)
		edgesByGID := edges.Detect(st.box)

		for _, edgeList := range edgesByGID {
			for _, e := range edgeList {
				tree.MarkSpecial(e.From)
			}
		}

		original := make(map[vertex.ID]vertex.ID)
		n := st.box.Core.Size()
		for idx := int64(0); idx < n; idx++ {
			p := st.box.Core.Coordinate(idx)
			if !st.box.IsActive(p) {
				continue
			}
			id := st.box.VertexID(p)
			original[id] = tree.Root(id)
		}

		originalTree := tree.Clone()
		tree.Sparsify()

		master.AddBlock(st.gid, st.box, originalTree, tree, edgesByGID, original, st.link)

		treeByGID[st.gid] = tree
		originalTreeByGID[st.gid] = originalTree
		boxByGID[st.gid] = st.box
		valuesByGID[st.gid] = st.values
		extraByGID[st.gid] = st.extraFields
	}

	if err := master.Run(ctx); err != nil {
		return err
	}

	gids := make([]int, 0, len(states))
	for _, st := range states {
		gids = append(gids, st.gid)
	}
	sort.Ints(gids)

	acc := output.NewIntegralAccumulator()
	for _, gid := range gids {
		b, err := master.Block(gid)
		if err != nil {
			return err
		}
		if err := output.IntegrateBlock(boxByGID[gid], valuesByGID[gid], b.FinalVertexToDeepest, domain.CellVolume, extraByGID[gid], dim, acc); err != nil {
			return err
		}
	}

	survives := func(root vertex.ID) bool {
		e := acc.Integral(root)
		return e != nil && e.NCells >= float64(opts.MinCells)
	}

	if out.Diagram != nil {
		for _, gid := range gids {
			b, err := master.Block(gid)
			if err != nil {
				return err
			}
			if err := output.WritePersistence(out.Diagram, b.Tree, gid, opts.IgnoreZeroPersistence); err != nil {
				return errs.Resource(err, "writing persistence diagram for block %d", gid)
			}
		}
	}

	if out.Integral != nil {
		if err := output.WriteIntegral(out.Integral, acc, domain.Box(), opts.MinCells, opts.IntegralFields); err != nil {
			return errs.Resource(err, "writing integral file")
		}
	}

	if out.Halo != nil {
		rootPosition := make(map[vertex.ID][3]int)
		for _, gid := range gids {
			b, err := master.Block(gid)
			if err != nil {
				return err
			}
			for v, root := range b.FinalVertexToDeepest {
				if _, ok := rootPosition[root]; ok {
					continue
				}
				if e := acc.Integral(root); e != nil {
					rootPosition[root] = e.Position
				} else if root.GID == v.GID {
					// root never accumulated (filtered before Add, e.g. a
					// component with zero surviving ACTIVE cells owned
					// elsewhere); fall back to its own vertex position.
					rootPosition[root] = boxByGID[v.GID].Core.Coordinate(v.Index)
				}
			}
		}
		for _, gid := range gids {
			b, err := master.Block(gid)
			if err != nil {
				return err
			}
			if err := output.WriteVertexToHalo(out.Halo, boxByGID[gid], b.FinalVertexToDeepest, rootPosition, survives); err != nil {
				return errs.Resource(err, "writing vertex-to-halo file for block %d", gid)
			}
		}
	}

	if out.Tree != nil {
		for _, gid := range gids {
			b, err := master.Block(gid)
			if err != nil {
				return err
			}
			rec := wire.SnapshotBlockRecord(b, originalTreeByGID[gid], nil)
			data, err := wire.EncodeBlockRecord(rec)
			if err != nil {
				return err
			}
			if err := writeFramed(out.Tree, data); err != nil {
				return errs.Resource(err, "writing serialized tree for block %d", gid)
			}
		}
	}

	return nil
}

// resolveThreshold computes the scalar demotion threshold (§4.2): for
// ModeAbsolute, Rho directly; for ModeRelative, Rho times the global mean
// of every block's non-Low, non-MaskedByFiner cell value, gathered before
// any demotion has happened.
func resolveThreshold(states []*blockState, cfg maskedbox.ThresholdConfig, dim int) (float64, error) {
	if cfg.Mode == maskedbox.ModeAbsolute {
		return maskedbox.AbsoluteThreshold(cfg, 0), nil
	}

	var totalSum, totalUnmasked float64
	for _, st := range states {
		sum, n := maskedbox.LocalMeanInputs(st.box, st.values, dim)
		totalSum += sum
		totalUnmasked += n
	}
	mean, err := maskedbox.ResolveMean(totalSum, totalUnmasked)
	if err != nil {
		return 0, err
	}
	return maskedbox.AbsoluteThreshold(cfg, mean), nil
}

// writeFramed writes data prefixed with a big-endian uint32 length, the
// simplest self-delimiting framing for a stream of independently-encoded
// gob records (§6 "Serialized distributed tree file... opaque binary").
func writeFramed(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	l := len(data)
	lenBuf[0] = byte(l >> 24)
	lenBuf[1] = byte(l >> 16)
	lenBuf[2] = byte(l >> 8)
	lenBuf[3] = byte(l)
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
