// Package main is the entry point for the docrefine CLI.
package main

import (
	"os"

	"github.com/jmylchreest/docrefine/cmd/docrefine/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
