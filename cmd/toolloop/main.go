// Package main is the entry point for the toolloop CLI.
package main

import (
	"os"

	"github.com/ToolLoop/ToolLoop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
