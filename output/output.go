// Package output implements C7: walking a converged triplet tree to emit
// the persistence diagram and per-component field integrals (§4.7, §6).
package output

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"
)

// WritePersistence writes one "birth death\n" line per persistence pair
// whose from-endpoint is owned by blockGID (test_local, §4.7), followed by
// one ray line per unpaired root owned by blockGID. ignoreZero drops pairs
// where birth equals death exactly (a degenerate, zero-persistence merge).
func WritePersistence(w io.Writer, tree *mergetree.Tree, blockGID int, ignoreZero bool) error {
	pairs := tree.Persistence()
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].From.Less(pairs[j].From) })

	for _, p := range pairs {
		if p.From.GID != blockGID {
			continue
		}
		birth := tree.Value(p.From)
		death := tree.Value(p.Through)
		if ignoreZero && birth == death {
			continue
		}
		if _, err := fmt.Fprintf(w, "%g %g\n", birth, death); err != nil {
			return err
		}
	}

	roots := tree.Roots()
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })

	ray := math.Inf(1)
	if tree.Negate() {
		ray = math.Inf(-1)
	}
	for _, r := range roots {
		if r.GID != blockGID {
			continue
		}
		if _, err := fmt.Fprintf(w, "%g %g\n", tree.Value(r), ray); err != nil {
			return err
		}
	}

	return nil
}

// ComponentIntegral accumulates the integral of one component (keyed by its
// final deepest vertex) as ACTIVE cells belonging to it are folded in.
type ComponentIntegral struct {
	Root      vertex.ID
	Position  [3]int // an arbitrary representative cell position, for flat-index output
	NCells    float64 // scaling-weighted cell count: a level-l cell counts as ScalingFactor(l), so coarse and fine cells contribute proportionally to the volume they represent
	NVertices int     // raw, unweighted count of ACTIVE vertices folded into this component
	TotalMass float64
	Extra     map[string]float64
}

// IntegralAccumulator is a block's running per-component integral table
// (§4.7 "For integrals..."). A single accumulator can be shared across
// every block owned by one process; components are keyed by their final
// deepest vertex, which is globally unique.
type IntegralAccumulator struct {
	entries map[vertex.ID]*ComponentIntegral
}

// NewIntegralAccumulator returns an empty accumulator.
func NewIntegralAccumulator() *IntegralAccumulator {
	return &IntegralAccumulator{entries: make(map[vertex.ID]*ComponentIntegral)}
}

// Add folds one ACTIVE cell's contribution into root's running integral.
// extra carries any additional user-selected fields to integrate alongside
// the primary value (§6 integral_fields).
func (a *IntegralAccumulator) Add(root vertex.ID, pos [3]int, cellVolume, value, scaling float64, extra map[string]float64) {
	e, ok := a.entries[root]
	if !ok {
		e = &ComponentIntegral{Root: root, Position: pos, Extra: make(map[string]float64, len(extra))}
		a.entries[root] = e
	}
	e.NCells += scaling
	e.NVertices++
	e.TotalMass += cellVolume * value * scaling
	for name, v := range extra {
		e.Extra[name] += cellVolume * v * scaling
	}
}

// Integral returns the current integral for root, or nil if untouched.
func (a *IntegralAccumulator) Integral(root vertex.ID) *ComponentIntegral {
	return a.entries[root]
}

// IntegrateBlock folds every ACTIVE cell of box into acc, keyed by its
// entry in finalDeepest (§4.7 "each ACTIVE cell's contribution ... is
// accumulated into the integral of its deepest vertex's component").
func IntegrateBlock(box *maskedbox.Box, values *field.Grid, finalDeepest map[vertex.ID]vertex.ID, cellVolume float64, extraFields map[string]*field.Grid, dim int, acc *IntegralAccumulator) error {
	scaling := maskedbox.ScalingFactor(box.Refinement, box.Level, dim)

	n := box.Core.Size()
	for idx := int64(0); idx < n; idx++ {
		p := box.Core.Coordinate(idx)
		if !box.IsActive(p) {
			continue
		}
		vid := box.VertexID(p)
		root, ok := finalDeepest[vid]
		if !ok {
			continue // not yet converged or vertex belongs to a filtered component
		}

		extra := make(map[string]float64, len(extraFields))
		for name, grid := range extraFields {
			extra[name] = grid.Get(p)
		}

		acc.Add(root, p, cellVolume, values.Get(p), scaling, extra)
	}

	return nil
}

// WriteIntegral writes one text line per retained component (weighted cell
// count ≥ minCells), sorted by root for determinism: "flat-index x y z
// n_cells n_vertices total_mass [extra_fields…]\n" (§6). n_cells is the
// scaling-weighted count (a cell finer than level 0 contributes
// fractionally, per its level's ScalingFactor); n_vertices is the raw
// ACTIVE-vertex count.
// extraFieldNames fixes the column order of extra fields.
func WriteIntegral(w io.Writer, acc *IntegralAccumulator, fineDomain field.Box3, minCells int, extraFieldNames []string) error {
	roots := make([]vertex.ID, 0, len(acc.entries))
	for r := range acc.entries {
		roots = append(roots, r)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })

	for _, root := range roots {
		e := acc.entries[root]
		if e.NCells < float64(minCells) {
			continue
		}

		flat := fineDomain.LocalIndex(e.Position)
		if _, err := fmt.Fprintf(w, "%d %d %d %d %g %d %g", flat, e.Position[0], e.Position[1], e.Position[2], e.NCells, e.NVertices, e.TotalMass); err != nil {
			return err
		}
		for _, name := range extraFieldNames {
			if _, err := fmt.Fprintf(w, " %g", e.Extra[name]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	return nil
}

// WriteVertexToHalo writes one "vx vy vz rx ry rz\n" line per ACTIVE vertex
// of box whose component survives (§6 vertex-to-halo file). Vertex and root
// positions are reported directly in the reader's absolute cell coordinates,
// with no conversion between levels: boxes of every level are taken to be
// expressed in one shared frame.
func WriteVertexToHalo(w io.Writer, box *maskedbox.Box, finalDeepest map[vertex.ID]vertex.ID, rootPosition map[vertex.ID][3]int, survives func(root vertex.ID) bool) error {
	n := box.Core.Size()
	for idx := int64(0); idx < n; idx++ {
		p := box.Core.Coordinate(idx)
		if !box.IsActive(p) {
			continue
		}
		vid := box.VertexID(p)
		root, ok := finalDeepest[vid]
		if !ok || !survives(root) {
			continue
		}
		rp, ok := rootPosition[root]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%d %d %d %d %d %d\n", p[0], p[1], p[2], rp[0], rp[1], rp[2]); err != nil {
			return err
		}
	}
	return nil
}
