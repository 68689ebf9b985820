// Package cmd is the command line entry point: `serve` runs the HTTP server,
// `publish` publishes a ZIP or a folder from the terminal through the same pipeline.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// newRootCommand builds a fresh command tree. tests build their own so flag state never leaks.
func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "leadmagnets",
		Short: "Host lead magnet pages uploaded as ZIP bundles and collect their form submissions",
		// usage is only useful for flag mistakes, not for runtime failures
		SilenceUsage: true,
	}

	rootCommand.AddCommand(newServeCommand())
	rootCommand.AddCommand(newPublishCommand())
	return rootCommand
}

// Execute runs the command line and exits non-zero on failure. called from main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
