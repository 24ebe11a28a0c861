package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Geo-index maintenance",
}

var indexWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Drop every geo-index entry and reset its storage",
	Long:  "Empties the geo-index. Run 'sync full' afterwards to rebuild it from the primary store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, cfg, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Index.Wipe(ctx); err != nil {
			return eris.Wrap(err, "wipe geo-index")
		}
		zap.L().Info("geo-index wiped")
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexWipeCmd)
	rootCmd.AddCommand(indexCmd)
}
