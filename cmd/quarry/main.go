// Command quarry is the CLI for the Quarry code retrieval engine.
package main

import (
	"os"

	"github.com/quarrylabs/quarry/cmd/quarry/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
