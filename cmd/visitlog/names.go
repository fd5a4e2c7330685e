package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"visitlog/internal/geocode"
)

func newNamesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Manage place names",
	}
	cmd.AddCommand(
		newNamesSetCmd(opts),
		newNamesRemoveCmd(opts),
		newNamesFindCmd(opts),
		newNamesListCmd(opts),
		newNamesAutofillCmd(opts),
	)
	return cmd
}

func parseCoord(args []string) (lat, lon float64, err error) {
	if lat, err = strconv.ParseFloat(args[0], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", args[0])
	}
	if lon, err = strconv.ParseFloat(args[1], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", args[1])
	}
	return lat, lon, nil
}

func newNamesSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set LAT LON NAME",
		Short: "Name the location, or rename and recentre the nearby name",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parseCoord(args)
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				return a.engine.SetName(cmd.Context(), lat, lon, args[2])
			})
		},
	}
}

func newNamesRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove LAT LON",
		Short: "Remove the name covering the location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parseCoord(args)
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				return a.engine.RemoveName(cmd.Context(), lat, lon)
			})
		},
	}
}

func newNamesFindCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find LAT LON",
		Short: "Print the name covering the location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parseCoord(args)
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				name, ok, err := a.engine.FindName(cmd.Context(), lat, lon)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no name within 100 m of %v, %v", lat, lon)
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			})
		},
	}
}

func newNamesListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List named locations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				names, err := a.engine.ListNames(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLAT\tLON\tNAME")
				for _, n := range names {
					fmt.Fprintf(tw, "%d\t%.6f\t%.6f\t%s\n", n.ID, n.Lat, n.Lon, n.Name)
				}
				return tw.Flush()
			})
		},
	}
}

func newNamesAutofillCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "autofill",
		Short: "Name unnamed places from reverse geocoding (one request per second)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				svc := geocode.NewService(a.db, a.cfg.Geocode.BaseURL, a.cfg.Geocode.UserAgent, a.logger)
				named, err := svc.Autofill(cmd.Context(), a.engine)
				fmt.Fprintf(cmd.OutOrStdout(), "named %d places\n", named)
				return err
			})
		},
	}
}
