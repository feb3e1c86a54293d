// Package vertex defines AmrVertexId, the globally unique address of a
// single cell in the block-decomposed AMR grid.
package vertex

import "fmt"

// ID identifies a cell as the pair (gid, local index). GID is the owning
// block's global id; Index is the cell's address inside that block's
// bounded box, in whatever row- or column-major scheme the reader chose
// and kept stable thereafter.
//
// Equality and hashing are over both fields, so ID is safe to use as a
// map key. Total order is lexicographic by (GID, Index); this is the
// tie-breaker for equal field values everywhere in the engine (§3, §4.1,
// §4.6).
type ID struct {
	GID   int
	Index int64
}

// Zero is the reserved invalid ID, used as a sentinel "no vertex" value.
var Zero = ID{GID: -1, Index: -1}

// IsZero reports whether id is the reserved invalid ID.
func (id ID) IsZero() bool {
	return id == Zero
}

// Less implements the lexicographic (GID, Index) tie-break order.
func (id ID) Less(other ID) bool {
	if id.GID != other.GID {
		return id.GID < other.GID
	}
	return id.Index < other.Index
}

// String renders the id as "gid:index", used in log lines and diagnostics.
func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.GID, id.Index)
}
