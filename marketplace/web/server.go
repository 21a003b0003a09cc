package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database"
	"github.com/bidhaus/bidhaus/marketplace/database/repositories"
	"github.com/bidhaus/bidhaus/marketplace/economy/auction"
	"github.com/bidhaus/bidhaus/marketplace/economy/ledger"
	"github.com/bidhaus/bidhaus/marketplace/economy/reconcile"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Deps bundles everything the HTTP layer serves. The caller is a trusted
// gateway; request bodies carry the acting user and there is no transport
// auth here.
type Deps struct {
	DB            *database.DB
	Wallets       repositories.WalletRepository
	Transactions  repositories.TransactionRepository
	Ledger        *ledger.Ledger
	Market        *auction.Manager
	Sweeper       *auction.Sweeper
	Reconciler    *reconcile.Reconciler
	Version       string
	BidsPerMinute int
}

type Server struct {
	App          *fiber.App
	DB           *database.DB
	Wallets      repositories.WalletRepository
	Transactions repositories.TransactionRepository
	Ledger       *ledger.Ledger
	Market       *auction.Manager
	Sweeper      *auction.Sweeper
	Reconciler   *reconcile.Reconciler
	Version      string

	bidLimiter *RateLimiter
}

func New(deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "bidhaus",
		ServerHeader:          "bidhaus",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(cors.New())
	app.Use(LoggingMiddleware())

	s := &Server{
		App:          app,
		DB:           deps.DB,
		Wallets:      deps.Wallets,
		Transactions: deps.Transactions,
		Ledger:       deps.Ledger,
		Market:       deps.Market,
		Sweeper:      deps.Sweeper,
		Reconciler:   deps.Reconciler,
		Version:      deps.Version,
		bidLimiter:   NewRateLimiter(deps.BidsPerMinute, time.Minute),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.App.Get("/health", healthCheck(s))

	wallets := s.App.Group("/wallets")
	wallets.Post("/", createWallet(s))
	wallets.Get("/:userID", getWallet(s))
	wallets.Get("/:userID/transactions", listWalletTransactions(s))
	wallets.Post("/:userID/deposit", depositFunds(s))
	wallets.Post("/:userID/withdraw", withdrawFunds(s))

	assets := s.App.Group("/assets")
	assets.Post("/", createAsset(s))
	assets.Get("/:id", getAsset(s))
	assets.Post("/:id/open", openAsset(s))

	auctions := s.App.Group("/auctions")
	auctions.Post("/", postAuction(s))
	auctions.Get("/", listAuctions(s))
	auctions.Get("/:code", getAuction(s))
	auctions.Get("/:code/bids", listAuctionBids(s))
	auctions.Post("/:code/bids", BidRateLimit(s.bidLimiter), placeBid(s))
	auctions.Post("/:code/close", closeAuction(s))

	admin := s.App.Group("/admin")
	admin.Post("/sweep", runSweep(s))
	admin.Post("/reconcile", runReconcile(s))
	admin.Post("/recover-blocks", recoverBlocks(s))
}

func (s *Server) Listen(addr string) error {
	return s.App.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}

// errorHandler renders errors that escape the handlers, fiber's own 404s
// included, through the standard envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}

	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	if code == "" {
		code = "INTERNAL_SERVER_ERROR"
	}
	return SendError(c, status, code, err.Error(), nil)
}
