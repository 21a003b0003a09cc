package main

import (
	"log/slog"

	"github.com/bidhaus/bidhaus/marketplace"
	"github.com/bidhaus/bidhaus/marketplace/database"
	"github.com/spf13/cobra"
)

var initSchemaCMD = &cobra.Command{
	Use:   "init-schema",
	Short: "create the marketplace tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := marketplace.LoadConfig(configPath)
		if err != nil {
			return err
		}

		db, err := database.New(ctx, database.DBConfig{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			Database: cfg.DB.Database,
			PoolSize: cfg.DB.PoolSize,
		})
		if err != nil {
			slog.Error("Failed to connect to database", slog.Any("error", err))
			return err
		}
		defer db.Close()

		if err := db.InitializeSchema(ctx); err != nil {
			slog.Error("Schema initialization failed", slog.Any("error", err))
			return err
		}

		slog.Info("Schema initialized", slog.String("database", cfg.DB.Database))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initSchemaCMD)
}
