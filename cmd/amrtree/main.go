// Command amrtree is the CLI entry point for the engine (§6 "CLI surface
// (only for reproducibility of file layout, not part of the core)").
package main

import "github.com/katalvlaran/amrtree/cmd/amrtree/cmd"

func main() {
	cmd.Execute()
}
