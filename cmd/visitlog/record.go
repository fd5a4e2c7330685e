package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"visitlog/internal/visits"
)

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		lat, lon float64
		ts       int64
		acc      float32
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a single fix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fix := visits.Fix{Lat: lat, Lon: lon, Timestamp: ts}
			if fix.Timestamp == 0 {
				fix.Timestamp = time.Now().UnixMilli()
			}
			if cmd.Flags().Changed("acc") {
				fix.Accuracy = &acc
			}

			return withApp(opts, func(a *app) error {
				placeID, err := a.engine.Record(cmd.Context(), fix)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recorded into place %d\n", placeID)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")
	cmd.Flags().Int64Var(&ts, "time", 0, "timestamp in epoch milliseconds (default now)")
	cmd.Flags().Float32Var(&acc, "acc", 0, "horizontal accuracy in meters")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}
