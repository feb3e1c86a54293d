package vertex_test

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/amrtree/vertex"
)

// ExampleID_Less sorts a handful of vertex IDs by the lexicographic
// (gid, index) tie-break order used throughout the engine wherever two
// candidates have equal field value.
func ExampleID_Less() {
	ids := []vertex.ID{
		{GID: 1, Index: 0},
		{GID: 0, Index: 5},
		{GID: 0, Index: 1},
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	for _, id := range ids {
		fmt.Println(id)
	}

	// Output:
	// 0:1
	// 0:5
	// 1:0
}

// ExampleID_IsZero distinguishes the reserved "no vertex" sentinel from a
// real address.
func ExampleID_IsZero() {
	fmt.Println(vertex.Zero.IsZero())
	fmt.Println(vertex.ID{GID: 0, Index: 0}.IsZero())

	// Output:
	// true
	// false
}
