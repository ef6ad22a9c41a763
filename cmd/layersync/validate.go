package main

import (
	"fmt"

	"github.com/polisai/layersync/pkg/config"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Check a layer manifest without starting the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.LoadManifest(args[0])
			if err != nil {
				return err
			}
			specs, err := m.Specs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "manifest %s: generation %d, %d layers\n", args[0], m.Generation, len(specs))
			for _, s := range specs {
				fmt.Fprintf(out, "  %-16s %-12s %-8s %dx%dx%d\n", s.Name, s.Role, s.Format, s.Dims[0], s.Dims[1], s.Dims[2])
			}
			return nil
		},
	}
}
