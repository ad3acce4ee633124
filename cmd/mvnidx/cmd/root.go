// Package cmd provides the CLI commands for mvnidx.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	ierr "github.com/mvnidx/mvnidx/internal/errors"
	"github.com/mvnidx/mvnidx/pkg/version"
)

// Exit codes of the mvnidx binary.
const (
	ExitOK              = 0
	ExitInvalidArgument = 1
	ExitIOFailure       = 2
	ExitIndexRecovered  = 3
	ExitUnexpected      = 4
)

// NewRootCmd creates the root command for the mvnidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mvnidx",
		Short: "Maven repository index producer",
		Long: `mvnidx scans a Maven repository layout, maintains a durable artifact
index, and publishes the portable index file set that repository
clients mirror: the full dump, incremental chunks, the legacy
archive, the descriptor, and checksum siblings.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("mvnidx version {{.Version}}\n")

	cmd.AddCommand(newPackCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		if indexRecovered {
			return ExitIndexRecovered
		}
		return ExitOK
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitCodeFor(err)
}

// indexRecovered is set by the pack command when the index had to be
// cleared and rebuilt but the publication still succeeded.
var indexRecovered bool

// exitCodeFor maps error kinds onto the documented exit codes.
func exitCodeFor(err error) int {
	switch ierr.GetCategory(err) {
	case ierr.CategoryValidation, ierr.CategoryConfig:
		return ExitInvalidArgument
	case ierr.CategoryIO:
		return ExitIOFailure
	default:
		return ExitUnexpected
	}
}
