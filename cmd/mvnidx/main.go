// Package main provides the entry point for the mvnidx CLI.
package main

import (
	"os"

	"github.com/mvnidx/mvnidx/cmd/mvnidx/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
