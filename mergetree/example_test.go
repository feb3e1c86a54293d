package mergetree_test

import (
	"fmt"

	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"
)

// ExampleTree_Union builds a three-node sublevel-set merge tree and shows
// how repeated unions settle on a single root: the globally most extreme
// (here, lowest-valued) vertex.
func ExampleTree_Union() {
	v := func(i int64) vertex.ID { return vertex.ID{GID: 0, Index: i} }

	tr := mergetree.New(false) // sublevel: lower value is more extreme
	tr.AddNode(v(1), 1.0)
	tr.AddNode(v(2), 2.0)
	tr.AddNode(v(3), 0.5)

	tr.Union(v(1), v(2), v(2))
	tr.Union(v(3), v(1), v(3))

	fmt.Println(tr.Root(v(1)))
	fmt.Println(tr.Root(v(2)))

	// Output:
	// 0:3
	// 0:3
}

// ExampleTree_Persistence shows a superlevel-set tree's persistence
// pairing: a secondary peak is paired with the saddle where it merges
// into the surviving, more extreme component, and the surviving root is
// reported separately as an infinite ray by callers (§4.7).
func ExampleTree_Persistence() {
	v := func(i int64) vertex.ID { return vertex.ID{GID: 0, Index: i} }

	tr := mergetree.New(true) // superlevel: higher value is more extreme
	tr.AddNode(v(1), 3.0)
	tr.AddNode(v(2), 2.0)
	tr.AddNode(v(3), 0.5)
	tr.Union(v(2), v(1), v(3))

	for _, p := range tr.Persistence() {
		fmt.Printf("%g %g\n", tr.Value(p.From), tr.Value(p.Through))
	}

	// Output:
	// 2 0.5
}
