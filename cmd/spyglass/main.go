// Command spyglass builds stubs from behavior definitions and runs their
// scenarios.
package main

import "github.com/mesh-intelligence/spyglass/internal/cli"

func main() {
	cli.Execute()
}
