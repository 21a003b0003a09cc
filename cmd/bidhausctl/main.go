package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bidhaus/bidhaus/marketplace"
	"github.com/bidhaus/bidhaus/marketplace/logger"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bidhausctl",
	Short: "operational tooling for a bidhaus deployment",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(slog.New(logger.NewHandler("BIDHAUSCTL", slog.LevelInfo)))
	},
}

// openApp wires the full component graph against the configured database.
// Commands that only touch a slice of it still go through here so the wiring
// stays in one place.
func openApp(ctx context.Context) (*marketplace.App, error) {
	cfg, err := marketplace.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	app := marketplace.New(*cfg, "ctl")
	if err := app.Setup(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
