package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var reconcileCMD = &cobra.Command{
	Use:   "reconcile",
	Short: "audit wallet balances against the transaction log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			slog.Error("Failed to open marketplace", slog.Any("error", err))
			return err
		}
		defer app.Shutdown(ctx)

		corrected, err := app.Reconciler.ReconcileWallets(ctx)
		if err != nil {
			slog.Error("Reconciliation failed", slog.Any("error", err))
			return err
		}

		slog.Info("Reconciliation finished", slog.Int("corrected", corrected))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCMD)
}
