package reader_test

import (
	"fmt"

	"github.com/katalvlaran/amrtree/reader"
)

// ExampleNewSynthetic generates a single-level, two-block synthetic
// domain split evenly along x, and reports each block's gid and core
// extent.
func ExampleNewSynthetic() {
	rdr, err := reader.NewSynthetic(reader.SyntheticConfig{
		Min: [3]int{0, 0, 0}, Max: [3]int{3, 0, 0},
		BlocksPerAxis: [3]int{2, 1, 1},
		GhostWidth:    1,
		CellVolume:    1.0,
		Value:         func(p [3]int) float64 { return float64(p[0]) },
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	blocks, err := rdr.Blocks()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, b := range blocks {
		fmt.Printf("block %d: core %s\n", b.GID, b.Core)
	}

	// Output:
	// block 0: core [0 0 0]-[1 0 0]
	// block 1: core [2 0 0]-[3 0 0]
}
