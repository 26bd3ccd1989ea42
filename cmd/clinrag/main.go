// Package main provides the entry point for the clinrag CLI.
package main

import (
	"os"

	"github.com/clinrag/clinrag/cmd/clinrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
