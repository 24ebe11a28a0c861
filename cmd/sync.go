package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/proximity-service/internal/model"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild or reconcile the geo-index",
}

var syncFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Clear the geo-index and repopulate it from the primary store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(ctx context.Context, env *serviceEnv) (model.BatchRunResult, error) {
			return env.Orchestrator.FullSync(ctx)
		})
	},
}

var syncCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Add missing and remove orphaned geo-index entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(ctx context.Context, env *serviceEnv) (model.BatchRunResult, error) {
			return env.Orchestrator.ConsistencyCheck(ctx)
		})
	},
}

func runBatch(cmd *cobra.Command, job func(context.Context, *serviceEnv) (model.BatchRunResult, error)) error {
	ctx := cmd.Context()
	env, err := initEnv(ctx, cfg, "sync")
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := job(ctx, env)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	syncCmd.AddCommand(syncFullCmd, syncCheckCmd)
	rootCmd.AddCommand(syncCmd)
}
