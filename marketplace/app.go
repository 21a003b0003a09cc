package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database"
	"github.com/bidhaus/bidhaus/marketplace/database/repositories"
	"github.com/bidhaus/bidhaus/marketplace/economy/auction"
	"github.com/bidhaus/bidhaus/marketplace/economy/ledger"
	"github.com/bidhaus/bidhaus/marketplace/economy/reconcile"
	"github.com/bidhaus/bidhaus/marketplace/economy/utils"
	"github.com/bidhaus/bidhaus/marketplace/web"
)

func New(cfg Config, version string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
	}
}

// App owns every long-lived component. Setup wires them in dependency order;
// Shutdown unwinds in reverse.
type App struct {
	Cfg     Config
	Version string

	DB                    *database.DB
	WalletRepository      repositories.WalletRepository
	TransactionRepository repositories.TransactionRepository
	AssetRepository       repositories.AssetRepository
	AuctionRepository     repositories.AuctionRepository
	Ledger                *ledger.Ledger
	Market                *auction.Manager
	Notifier              *auction.Notifier
	Sweeper               *auction.Sweeper
	Reconciler            *reconcile.Reconciler
	Web                   *web.Server
}

func (a *App) Setup(ctx context.Context) error {
	db, err := database.New(ctx, database.DBConfig{
		Host:     a.Cfg.DB.Host,
		Port:     a.Cfg.DB.Port,
		User:     a.Cfg.DB.User,
		Password: a.Cfg.DB.Password,
		Database: a.Cfg.DB.Database,
		PoolSize: a.Cfg.DB.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db

	if err := db.InitializeSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	bunDB := db.BunDB()
	a.WalletRepository = repositories.NewWalletRepository(bunDB)
	a.TransactionRepository = repositories.NewTransactionRepository(bunDB)
	a.AssetRepository = repositories.NewAssetRepository(bunDB)
	a.AuctionRepository = repositories.NewAuctionRepository(bunDB)

	txm := utils.NewMarketTransactionManager(bunDB)
	a.Ledger = ledger.New(a.WalletRepository, a.TransactionRepository, txm)

	amqpURL := ""
	if a.Cfg.AMQP.Enabled {
		amqpURL = a.Cfg.AMQP.URL
	}
	a.Notifier = auction.NewNotifier(amqpURL, a.Cfg.AMQP.Queue)

	a.Market, err = auction.NewManager(
		a.AuctionRepository,
		a.AssetRepository,
		a.TransactionRepository,
		a.Ledger,
		txm,
		a.Notifier,
		a.Cfg.Market.CacheSize(),
		a.Cfg.Market.ViewTTL(),
	)
	if err != nil {
		return fmt.Errorf("failed to create auction manager: %w", err)
	}

	a.Sweeper = auction.NewSweeper(a.Market, a.AuctionRepository, a.Cfg.Market.SweepEvery())
	a.Reconciler = reconcile.New(
		a.WalletRepository,
		a.TransactionRepository,
		a.AuctionRepository,
		a.Ledger,
		txm,
		a.Cfg.Market.ReconcileEvery(),
	)

	a.Web = web.New(web.Deps{
		DB:            a.DB,
		Wallets:       a.WalletRepository,
		Transactions:  a.TransactionRepository,
		Ledger:        a.Ledger,
		Market:        a.Market,
		Sweeper:       a.Sweeper,
		Reconciler:    a.Reconciler,
		Version:       a.Version,
		BidsPerMinute: a.Cfg.Market.BidsPerMinute(),
	})

	slog.Info("Marketplace components ready",
		slog.String("db", a.Cfg.DB.Database),
		slog.Bool("amqp", a.Cfg.AMQP.Enabled))
	return nil
}

func (a *App) Shutdown(ctx context.Context) {
	if a.Web != nil {
		if err := a.Web.Shutdown(ctx); err != nil {
			slog.Error("Failed to stop HTTP server", slog.Any("error", err))
		}
	}
	if a.Sweeper != nil {
		a.Sweeper.Shutdown()
	}
	if a.Reconciler != nil {
		a.Reconciler.Shutdown()
	}
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}

	// Give in-flight transactions a moment to unwind before the process exits.
	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
	}
}
