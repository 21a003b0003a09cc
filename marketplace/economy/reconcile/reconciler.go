package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/bidhaus/bidhaus/marketplace/database/repositories"
	"github.com/bidhaus/bidhaus/marketplace/economy"
	"github.com/bidhaus/bidhaus/marketplace/economy/ledger"
	"github.com/bidhaus/bidhaus/marketplace/economy/utils"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Reconciler audits wallets against the transaction log and repairs drift.
// The log is the source of truth: stored balances are a projection of it and
// get overwritten when they disagree.
type Reconciler struct {
	wallets      repositories.WalletRepository
	transactions repositories.TransactionRepository
	auctions     repositories.AuctionRepository
	ledger       *ledger.Ledger
	txm          *utils.MarketTransactionManager
	interval     time.Duration

	shutdown  chan struct{}
	closeOnce sync.Once
}

func New(
	wallets repositories.WalletRepository,
	transactions repositories.TransactionRepository,
	auctions repositories.AuctionRepository,
	led *ledger.Ledger,
	txm *utils.MarketTransactionManager,
	interval time.Duration,
) *Reconciler {
	return &Reconciler{
		wallets:      wallets,
		transactions: transactions,
		auctions:     auctions,
		ledger:       led,
		txm:          txm,
		interval:     interval,
		shutdown:     make(chan struct{}),
	}
}

// Start runs both audits on a timer until the context is cancelled or
// Shutdown is called. Run it on its own goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("Reconciler started",
		slog.String("type", "reconcile"),
		slog.String("interval", r.interval.String()),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdown:
			slog.Info("Reconciler stopped", slog.String("type", "reconcile"))
			return
		case <-ticker.C:
			if _, err := r.ReconcileWallets(ctx); err != nil {
				slog.Error("Wallet reconciliation failed",
					slog.String("type", "reconcile"),
					slog.String("error", err.Error()),
				)
			}
			if _, err := r.RecoverOrphanedBlocks(ctx); err != nil {
				slog.Error("Orphaned hold recovery failed",
					slog.String("type", "reconcile"),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (r *Reconciler) Shutdown() {
	r.closeOnce.Do(func() {
		close(r.shutdown)
	})
}

// ReconcileWallets checks every wallet against the log and returns how many
// it corrected. Wallets are checked concurrently; a failed check is logged
// and does not abort the rest.
func (r *Reconciler) ReconcileWallets(ctx context.Context) (int, error) {
	userIDs, err := r.wallets.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list wallets: %w", err)
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	results := make(chan bool, len(userIDs))
	g, groupCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(utils.ReconcileParallelism)

	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			fixed, err := r.reconcileWallet(groupCtx, userID)
			if err != nil {
				slog.Warn("Failed to reconcile wallet",
					slog.String("type", "reconcile"),
					slog.Int64("user_id", userID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results <- fixed
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("wallet reconciliation aborted: %w", err)
	}
	close(results)

	corrected := 0
	for fixed := range results {
		if fixed {
			corrected++
		}
	}

	if corrected > 0 {
		slog.Info("Wallet reconciliation corrected drift",
			slog.String("type", "reconcile"),
			slog.Int("corrected", corrected),
			slog.Int("checked", len(userIDs)),
		)
	}
	return corrected, nil
}

// reconcileWallet compares one wallet to the log. The first pass is
// lock-free; only on a mismatch does it take the row lock and recompute
// before overwriting, so a wallet that was mid-transaction during the quick
// pass is not clobbered.
func (r *Reconciler) reconcileWallet(ctx context.Context, userID int64) (bool, error) {
	wallet, err := r.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}

	rows, err := r.transactions.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}

	expectedBalance := ledger.BalanceFromLog(rows)
	expectedBlocked, err := r.expectedBlocked(ctx, userID)
	if err != nil {
		return false, err
	}

	if wallet.Balance == expectedBalance && wallet.BlockedAmount == expectedBlocked {
		return false, nil
	}

	fixed := false
	err = r.txm.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		fixed = false

		w, err := r.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		rows, err := r.transactions.ListByUserTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		balance := ledger.BalanceFromLog(rows)

		won, err := r.auctions.ListLiveWonByTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		var blocked int64
		for _, a := range won {
			blocked += a.CurrentHighestBid
		}

		if w.Balance == balance && w.BlockedAmount == blocked {
			return nil
		}

		slog.Warn("Wallet drift detected, correcting",
			slog.String("type", "reconcile"),
			slog.Int64("user_id", userID),
			slog.Int64("stored_balance", w.Balance),
			slog.Int64("expected_balance", balance),
			slog.Int64("stored_blocked", w.BlockedAmount),
			slog.Int64("expected_blocked", blocked),
		)

		fixed = true
		return r.wallets.SetBalances(ctx, tx, userID, balance, blocked)
	})
	return fixed, err
}

// expectedBlocked is the hold a wallet should carry: the sum of this user's
// leading bids on live auctions. One hold per auction, only for the current
// highest bidder.
func (r *Reconciler) expectedBlocked(ctx context.Context, userID int64) (int64, error) {
	won, err := r.auctions.ListLiveWonBy(ctx, userID)
	if err != nil {
		return 0, err
	}

	var blocked int64
	for _, a := range won {
		blocked += a.CurrentHighestBid
	}
	return blocked, nil
}

// RecoverOrphanedBlocks finds holds whose auction no longer justifies them
// and releases them. A hold is legitimate only while its auction is live and
// the user is the current highest bidder; everything else the log still shows
// open is returned to the wallet.
func (r *Reconciler) RecoverOrphanedBlocks(ctx context.Context) (int, error) {
	holders, err := r.wallets.ListWithBlocked(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list wallets with holds: %w", err)
	}

	released := 0
	for _, wallet := range holders {
		rows, err := r.transactions.ListByUser(ctx, wallet.UserID)
		if err != nil {
			slog.Warn("Failed to load transaction log",
				slog.String("type", "reconcile"),
				slog.Int64("user_id", wallet.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}

		outstanding := ledger.OutstandingByAuction(rows)
		auctionIDs := make([]int64, 0, len(outstanding))
		for auctionID := range outstanding {
			auctionIDs = append(auctionIDs, auctionID)
		}
		sort.Slice(auctionIDs, func(i, j int) bool { return auctionIDs[i] < auctionIDs[j] })

		for _, auctionID := range auctionIDs {
			ok, err := r.recoverHold(ctx, wallet.UserID, auctionID)
			if err != nil {
				slog.Warn("Failed to recover hold",
					slog.String("type", "reconcile"),
					slog.Int64("user_id", wallet.UserID),
					slog.Int64("auction_id", auctionID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if ok {
				released++
			}
		}
	}

	if released > 0 {
		slog.Info("Orphaned holds released",
			slog.String("type", "reconcile"),
			slog.Int("released", released),
		)
	}
	return released, nil
}

// recoverHold re-examines one (user, auction) hold under locks and releases
// it if orphaned. The auction row is locked first, same order as the bid
// path, so a bid that would re-legitimize the hold cannot interleave.
func (r *Reconciler) recoverHold(ctx context.Context, userID, auctionID int64) (bool, error) {
	recovered := false
	err := r.txm.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		recovered = false

		var auction *models.Auction
		a, err := r.auctions.GetForUpdate(ctx, tx, auctionID)
		if err != nil {
			if !economy.IsNotFound(err) {
				return err
			}
			// hold references an auction that no longer exists: orphaned
		} else {
			auction = a
		}

		if auction != nil && auction.Status == models.AuctionStatusLive && auction.CurrentHighestBidderID == userID {
			return nil
		}

		rows, err := r.transactions.ListByUserTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		amount := ledger.OutstandingByAuction(rows)[auctionID]
		if amount <= 0 {
			return nil
		}

		var assetID int64
		if auction != nil {
			assetID = auction.AssetID
		}

		if err := r.ledger.ReleaseTx(ctx, tx, userID, amount, auctionID, assetID, "system cleanup of orphaned hold"); err != nil {
			return err
		}

		slog.Info("Released orphaned hold",
			slog.String("type", "reconcile"),
			slog.Int64("user_id", userID),
			slog.Int64("auction_id", auctionID),
			slog.Int64("amount", amount),
		)
		recovered = true
		return nil
	})
	return recovered, err
}
