package main

import (
	"github.com/delvn/threatbrief/cmd"
)

// main is the entry point for the threatbrief CLI application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
