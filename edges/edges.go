// Package edges implements C4: enumeration of cross-block edges whose
// "from" endpoint is in this block and whose "to" endpoint is owned by a
// neighbouring block (§4.4).
package edges

import (
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/vertex"
)

// Edge is a directed cross-block link: From is always the endpoint owned
// by this block (the fine side, when refinement levels differ); To is
// the endpoint in the neighbour.
type Edge struct {
	From vertex.ID
	To   vertex.ID
}

var sameLevelOffsets = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Detect enumerates every outgoing edge of box, grouped by target gid
// (gid_to_outgoing_edges, §4.4): one edge per ACTIVE core cell whose
// same-resolution 6-neighbour lands in a GHOST cell owned by that gid,
// provided the test "ACTIVE on the other side" is locally decidable
// (i.e. both mask classes resolve to ACTIVE — this block can only assert
// its own side; the receiver drops edges whose far endpoint turned out
// LOW once thresholds resolved, via delete_low_edges in round 1, §4.6
// step 2). Fine/coarse boundaries (this block finer than the neighbour)
// emit an edge from the fine cell to the coarse cell that contains its
// face, the fine side always being "from" (§4.4); that case is detected
// by the fine side finding a MASKED-BY-FINER cell belonging to *itself*
// on the far side of the boundary, which cannot happen — instead the
// fine block observes an ordinary GHOST neighbour there (the coarse
// block, at a coarser level) and the coarse block independently observes
// MASKED-BY-FINER cells inside what used to be its own core. The coarse
// side therefore never emits an edge into the fine block; only the fine
// side's GHOST-directed scan below is needed to cover both same-level
// and fine/coarse boundaries uniformly.
func Detect(box *maskedbox.Box) map[int][]Edge {
	out := make(map[int][]Edge)

	n := box.Core.Size()
	for idx := int64(0); idx < n; idx++ {
		p := box.Core.Coordinate(idx)
		fromIdx := box.Bounds.LocalIndex(p)
		if box.MaskAtIndex(fromIdx).Class != maskedbox.Active {
			continue
		}
		from := box.VertexID(p)

		for _, off := range sameLevelOffsets {
			np := [3]int{p[0] + off[0], p[1] + off[1], p[2] + off[2]}
			if !box.Bounds.Contains(np) {
				continue
			}
			nIdx := box.Bounds.LocalIndex(np)
			nMask := box.MaskAtIndex(nIdx)
			if nMask.Class != maskedbox.Ghost {
				continue
			}

			link, ok := box.LinkFor(nMask.Neighbor)
			if !ok {
				continue // protocol bug: mask names a gid we have no link for
			}
			to := maskedbox.RemoteVertexID(link, np)
			out[nMask.Neighbor] = append(out[nMask.Neighbor], Edge{From: from, To: to})
		}
	}

	return out
}
