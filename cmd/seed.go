package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proximity-service/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Bulk-create records from a YAML, JSON, XLSX or shapefile source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := seed.Load(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, cfg, "seed")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Service.Seed(ctx, inputs)
		if err != nil {
			return err
		}
		zap.L().Info("seeded records", zap.String("file", args[0]), zap.Int("created", n))
		return printJSON(cmd.OutOrStdout(), map[string]int{"created_count": n})
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
