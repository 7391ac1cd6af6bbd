// Package main is the entry point for the atelier server.
package main

import (
	"os"

	"github.com/suanfamama/atelier/internal/version"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = version.Get().String()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
