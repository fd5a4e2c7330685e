package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"visitlog/internal/timeline"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import location history from other tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "timeline FILE",
		Short: "Import a Google Timeline (Android) JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withApp(opts, func(a *app) error {
				out := cmd.OutOrStdout()
				stats, err := timeline.Import(cmd.Context(), f, a.engine, func(p timeline.Progress) {
					if p.Message != "" {
						fmt.Fprintln(out, p.Message)
					}
				})
				if err != nil {
					return fmt.Errorf("import stopped after %d of %d positions: %w", stats.Recorded, stats.Parsed, err)
				}
				return nil
			})
		},
	})
	return cmd
}
