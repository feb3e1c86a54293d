package edges_test

import (
	"fmt"

	"github.com/katalvlaran/amrtree/edges"
	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/maskedbox"
)

// ExampleDetect shows the one outgoing edge a boundary cell emits toward
// a same-level neighbour across a shared face.
func ExampleDetect() {
	core0 := field.NewBox3([3]int{0, 0, 0}, [3]int{0, 0, 0})
	core1 := field.NewBox3([3]int{1, 0, 0}, [3]int{1, 0, 0})
	bounds0 := field.NewBox3([3]int{0, 0, 0}, [3]int{1, 0, 0})

	box0, err := maskedbox.Build(maskedbox.Config{
		GID: 0, Core: core0, Bounds: bounds0,
		Links: []maskedbox.NeighborLink{{GID: 1, Level: 0, Bounds: core1}},
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	for _, e := range edges.Detect(box0)[1] {
		fmt.Println(e.From, "->", e.To)
	}

	// Output:
	// 0:0 -> 1:0
}
