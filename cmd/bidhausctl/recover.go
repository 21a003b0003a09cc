package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var recoverCMD = &cobra.Command{
	Use:   "recover-blocks",
	Short: "release holds that no live auction accounts for",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			slog.Error("Failed to open marketplace", slog.Any("error", err))
			return err
		}
		defer app.Shutdown(ctx)

		released, err := app.Reconciler.RecoverOrphanedBlocks(ctx)
		if err != nil {
			slog.Error("Orphaned hold recovery failed", slog.Any("error", err))
			return err
		}

		slog.Info("Orphaned hold recovery finished", slog.Int("released", released))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCMD)
}
