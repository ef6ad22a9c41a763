// Package main is the entry point for the layersync binary.
// It provides a CLI for running the layer viewer daemon and checking manifests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for layersync
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "layersync",
		Short: "Layer viewer daemon",
		Long: `layersync keeps per-layer display properties and slice textures in step
with a layer manifest, and exposes the viewer state over an admin API.

Example:
  layersync serve --config layersync.yaml
  layersync validate layers.yaml`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "Enable pretty console logging")

	rootCmd.AddCommand(newServeCmd(), newValidateCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the layersync version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "layersync %s\n", version)
		},
	}
}
