package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"visitlog/internal/status"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show time since the last GPS update and the recent places",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				now := time.Now()

				last, err := a.engine.LastIngestTimestamp(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Last GPS update: %s\n", status.Describe(last, now))

				if a.mirror != nil {
					mirrored, err := a.mirror.LastIngest(ctx)
					if err != nil {
						fmt.Fprintf(out, "Redis mirror: %v\n", err)
					} else {
						fmt.Fprintf(out, "Redis mirror: %s\n", status.Describe(mirrored, now))
					}
				}

				places, err := a.engine.RecentPlaces(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				return printPlaces(out, places, now)
			})
		},
	}
}
