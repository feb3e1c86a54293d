package maskedbox_test

import (
	"fmt"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/maskedbox"
)

// ExampleBuild demonstrates a coarse block whose core is partially
// refined away by a finer neighbour: cells inside the finer block's
// footprint classify MASKED-BY-FINER instead of ACTIVE.
func ExampleBuild() {
	coarseCore := field.NewBox3([3]int{0, 0, 0}, [3]int{3, 0, 0})
	fineCore := field.NewBox3([3]int{1, 0, 0}, [3]int{2, 0, 0})

	b, err := maskedbox.Build(maskedbox.Config{
		GID: 0, Level: 0, Refinement: 2,
		Core: coarseCore, Bounds: coarseCore,
		Links: []maskedbox.NeighborLink{{GID: 1, Level: 1, Refinement: 2, Bounds: fineCore}},
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	for x := 0; x <= 3; x++ {
		fmt.Println(x, b.Mask([3]int{x, 0, 0}).Class)
	}

	// Output:
	// 0 ACTIVE
	// 1 MASKED-BY-FINER
	// 2 MASKED-BY-FINER
	// 3 ACTIVE
}
