package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the record table and geo-index schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, cfg, "migrate")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := migrateAll(ctx, env); err != nil {
			return err
		}
		zap.L().Info("migrations applied")
		return nil
	},
}

func migrateAll(ctx context.Context, env *serviceEnv) error {
	if err := env.Store.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate store")
	}
	if err := env.Index.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate geo-index")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
