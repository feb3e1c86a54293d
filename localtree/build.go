// Package localtree implements C3: construction of the initial triplet
// merge tree over a single block's ACTIVE vertices (§4.3).
package localtree

import (
	"sort"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"
)

var neighborOffsets = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Build scans a block's ACTIVE cells in extremal-first order under the
// given polarity, union-finding each cell with its already-processed
// 6-neighbours, and returns the resulting unsparsified tree. Ties in
// value are broken by (gid, local-index), per §3/§4.3.
//
// The returned tree is *not* sparsified: callers compute outgoing edges
// (C4), mark their endpoints special, clone the tree as original_tree,
// and only then call Sparsify — sparsifying here would have nothing to
// protect special vertices from being dropped.
func Build(box *maskedbox.Box, values *field.Grid, negate bool) *mergetree.Tree {
	tree := mergetree.New(negate)

	type cell struct {
		id    vertex.ID
		value float64
		pos   [3]int
	}

	var cells []cell
	n := box.Bounds.Size()
	for idx := int64(0); idx < n; idx++ {
		if box.MaskAtIndex(idx).Class != maskedbox.Active {
			continue
		}
		pos := box.Bounds.Coordinate(idx)
		cells = append(cells, cell{
			id:    box.VertexID(pos),
			value: values.Get(pos),
			pos:   pos,
		})
	}

	sort.Slice(cells, func(i, j int) bool {
		ci, cj := cells[i], cells[j]
		if ci.value != cj.value {
			return tree.Precedes(ci.value, cj.value)
		}
		return ci.id.Less(cj.id)
	})

	processed := make(map[vertex.ID]bool, len(cells))
	for _, c := range cells {
		tree.AddNode(c.id, c.value)

		var roots []vertex.ID
		seen := make(map[vertex.ID]bool)
		for _, off := range neighborOffsets {
			np := [3]int{c.pos[0] + off[0], c.pos[1] + off[1], c.pos[2] + off[2]}
			if !box.Bounds.Contains(np) {
				continue
			}
			nIdx := box.Bounds.LocalIndex(np)
			if box.MaskAtIndex(nIdx).Class != maskedbox.Active {
				continue
			}
			nID := box.VertexID(np)
			if !processed[nID] {
				continue
			}
			r := tree.Root(nID)
			if !seen[r] {
				seen[r] = true
				roots = append(roots, r)
			}
		}

		switch len(roots) {
		case 0:
			// new singleton component; AddNode already made it a root.
		case 1:
			tree.Attach(c.id, roots[0], c.id)
		default:
			survivor := roots[0]
			for _, r := range roots[1:] {
				survivor = tree.Union(survivor, r, c.id)
			}
			tree.Attach(c.id, survivor, c.id)
		}

		processed[c.id] = true
	}

	return tree
}
