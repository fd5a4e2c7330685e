package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"visitlog/internal/export"
	"visitlog/internal/status"
	"visitlog/internal/store"
)

func newPlacesCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
		recent bool
	)
	cmd := &cobra.Command{
		Use:   "places",
		Short: "List visited places, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				var (
					places []store.Place
					err    error
				)
				if recent {
					places, err = a.engine.RecentPlaces(cmd.Context())
				} else {
					places, err = a.engine.ListPlaces(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return export.WriteSummary(cmd.OutOrStdout(), places)
				}
				return printPlaces(cmd.OutOrStdout(), places, time.Now())
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of places (0 for all)")
	cmd.Flags().BoolVar(&recent, "recent", false, "show the short recent list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the export summary format")
	return cmd
}

func printPlaces(w io.Writer, places []store.Place, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLAT\tLON\tNAME\tVISITS\tTIME SPENT\tLAST VISIT")
	for _, p := range places {
		name := "-"
		if p.Name != nil {
			name = *p.Name
		}
		fmt.Fprintf(tw, "%d\t%.6f\t%.6f\t%s\t%d\t%s\t%s\n",
			p.ID, p.Lat, p.Lon, name, p.VisitCount,
			status.FormatDuration(p.LastVisit-p.FirstVisit),
			status.Describe(p.LastVisit, now),
		)
	}
	return tw.Flush()
}

func newFixesCmd(opts *rootOptions) *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:   "fixes",
		Short: "Print the raw fix log as JSON",
		Long:  "Print the raw fix log as JSON. With --since the fixes at or after that epoch millisecond are printed oldest first; otherwise the whole log newest first.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				var window *int64
				if cmd.Flags().Changed("since") {
					window = &since
				}
				fixes, err := a.engine.ListRawFixes(cmd.Context(), window)
				if err != nil {
					return err
				}
				return export.WriteFull(cmd.OutOrStdout(), fixes)
			})
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "window start in epoch milliseconds")
	return cmd
}
