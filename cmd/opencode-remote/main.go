// Package main provides the entry point for the opencode-remote CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/opencode-remote/cmd/opencode-remote/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
