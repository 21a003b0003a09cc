package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/repositories"
	"github.com/bidhaus/bidhaus/marketplace/economy/utils"
)

// Sweeper closes expired auctions in the background. Each pass snapshots the
// due IDs and closes them one at a time in their own transactions, so one
// stuck auction cannot hold up the rest or wedge the whole pass.
type Sweeper struct {
	manager  *Manager
	auctions repositories.AuctionRepository
	interval time.Duration

	shutdown  chan struct{}
	closeOnce sync.Once
}

func NewSweeper(manager *Manager, auctions repositories.AuctionRepository, interval time.Duration) *Sweeper {
	return &Sweeper{
		manager:  manager,
		auctions: auctions,
		interval: interval,
		shutdown: make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Shutdown is
// called. Run it on its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("Expiry sweeper started",
		slog.String("type", "sweeper"),
		slog.String("interval", s.interval.String()),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			slog.Info("Expiry sweeper stopped", slog.String("type", "sweeper"))
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Error("Expiry sweep failed",
					slog.String("type", "sweeper"),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (s *Sweeper) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.shutdown)
	})
}

// RunOnce performs a single sweep and returns how many auctions it closed.
// Per-auction failures are logged and skipped; an auction that another actor
// closed between snapshot and close counts as a no-op, not a failure.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ids, err := s.auctions.ExpiredLiveIDs(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot expired auctions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	slog.Info("Sweeping expired auctions",
		slog.String("type", "sweeper"),
		slog.Int("due", len(ids)),
	)

	closed := 0
	for _, id := range ids {
		itemCtx, cancel := context.WithTimeout(ctx, utils.SweepItemTimeout)
		result, err := s.manager.CloseAuction(itemCtx, id, TriggerSweeper, 0)
		cancel()

		if err != nil {
			slog.Error("Failed to close expired auction",
				slog.String("type", "sweeper"),
				slog.Int64("auction_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !result.AlreadyClosed {
			closed++
		}

		time.Sleep(utils.SweepItemPause)
	}

	slog.Info("Expiry sweep finished",
		slog.String("type", "sweeper"),
		slog.Int("closed", closed),
		slog.Int("scanned", len(ids)),
	)
	return closed, nil
}
