package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON export to the configured sink",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "write to this directory instead of the configured sink")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "summary",
			Short: "Export the filtered place list",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(opts, func(a *app) error {
					e, err := a.exporter(cmd.Context(), dir)
					if err != nil {
						return err
					}
					location, err := e.Summary(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), location)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "full",
			Short: "Export every raw fix",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(opts, func(a *app) error {
					e, err := a.exporter(cmd.Context(), dir)
					if err != nil {
						return err
					}
					location, err := e.Full(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), location)
					return nil
				})
			},
		},
	)
	return cmd
}
