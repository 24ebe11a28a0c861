package main

import (
	"github.com/spf13/cobra"
)

var (
	searchLat    float64
	searchLon    float64
	searchRadius float64
	searchLimit  int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find records near a coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, cfg, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		var radius *float64
		if cmd.Flags().Changed("radius") {
			radius = &searchRadius
		}
		var limit *int
		if cmd.Flags().Changed("limit") {
			limit = &searchLimit
		}
		r, n, err := env.Limits.Resolve(searchLat, searchLon, radius, limit)
		if err != nil {
			return err
		}

		resp, err := env.Searcher.SearchNearby(ctx, searchLat, searchLon, r, n)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	searchCmd.Flags().Float64Var(&searchLat, "lat", 0, "latitude of the search center")
	searchCmd.Flags().Float64Var(&searchLon, "lon", 0, "longitude of the search center")
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 0, "search radius in meters (default from config)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default from config)")
	_ = searchCmd.MarkFlagRequired("lat")
	_ = searchCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(searchCmd)
}
