package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bidhaus/bidhaus/marketplace"
	"github.com/bidhaus/bidhaus/marketplace/logger"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(logger.NewHandler("BIDHAUS", slog.LevelInfo)))

	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := marketplace.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.NewHandler("BIDHAUS", cfg.Log.Level)))

	slog.Info("Starting bidhaus",
		slog.String("version", version),
		slog.String("addr", cfg.Server.Address()))

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer setupCancel()

	app := marketplace.New(*cfg, version)
	if err := app.Setup(setupCtx); err != nil {
		slog.Error("Failed to set up marketplace", slog.Any("error", err))
		os.Exit(-1)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	go app.Sweeper.Start(runCtx)
	go app.Reconciler.Start(runCtx)
	go func() {
		if err := app.Web.Listen(cfg.Server.Address()); err != nil {
			slog.Error("HTTP server stopped", slog.Any("error", err))
			runCancel()
		}
	}()

	slog.Info("Marketplace is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-s:
	case <-runCtx.Done():
	}

	slog.Info("Shutting down marketplace...")
	runCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	app.Shutdown(shutdownCtx)
}
