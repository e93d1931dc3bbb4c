// Package main is the entry point for the lifeloop CLI.
package main

import (
	"os"

	"github.com/serigela/lifeloop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
