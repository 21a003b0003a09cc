package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var sweepCMD = &cobra.Command{
	Use:   "sweep",
	Short: "close every live auction whose end time has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			slog.Error("Failed to open marketplace", slog.Any("error", err))
			return err
		}
		defer app.Shutdown(ctx)

		closed, err := app.Sweeper.RunOnce(ctx)
		if err != nil {
			slog.Error("Sweep failed", slog.Any("error", err))
			return err
		}

		slog.Info("Sweep finished", slog.Int("closed", closed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCMD)
}
