package output_test

import (
	"bytes"
	"fmt"

	"github.com/katalvlaran/amrtree/field"
	"github.com/katalvlaran/amrtree/localtree"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/output"
)

// ExampleWritePersistence writes one finite pair and one infinite ray for
// a tiny three-cell superlevel-set block: the secondary peak (2.0) merges
// into the surviving global max (3.0) through the valley (0.5) between
// them.
func ExampleWritePersistence() {
	core := field.NewBox3([3]int{0, 0, 0}, [3]int{2, 0, 0})
	box, err := maskedbox.Build(maskedbox.Config{GID: 0, Core: core, Bounds: core})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	values := field.NewGrid(core)
	values.Set([3]int{0, 0, 0}, 3.0)
	values.Set([3]int{1, 0, 0}, 0.5)
	values.Set([3]int{2, 0, 0}, 2.0)

	tree := localtree.Build(box, values, true)

	var buf bytes.Buffer
	if err := output.WritePersistence(&buf, tree, 0, false); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Print(buf.String())

	// Output:
	// 2 0.5
	// 3 -Inf
}
