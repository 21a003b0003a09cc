package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/bidhaus/bidhaus/marketplace/database/repositories"
	"github.com/bidhaus/bidhaus/marketplace/economy"
	"github.com/bidhaus/bidhaus/marketplace/economy/ledger"
	"github.com/bidhaus/bidhaus/marketplace/economy/utils"
	"github.com/sahilm/fuzzy"
	"github.com/uptrace/bun"
)

// CloseTrigger records who asked for a close. The sweeper and the ops tool
// only close expired auctions; a manual close may come in early from the
// seller.
type CloseTrigger string

const (
	TriggerManual  CloseTrigger = "manual"
	TriggerSweeper CloseTrigger = "sweeper"
	TriggerCtl     CloseTrigger = "ctl"
)

// Manager drives the auction lifecycle: posting, bidding, closing and the
// read side. All money movement goes through the ledger, all state changes
// through row locks on the auction and asset rows.
type Manager struct {
	auctions     repositories.AuctionRepository
	assets       repositories.AssetRepository
	transactions repositories.TransactionRepository
	ledger       *ledger.Ledger
	txm          *utils.MarketTransactionManager
	notifier     *Notifier
	views        *viewCache
	codes        *codeGenerator
}

func NewManager(
	auctions repositories.AuctionRepository,
	assets repositories.AssetRepository,
	transactions repositories.TransactionRepository,
	led *ledger.Ledger,
	txm *utils.MarketTransactionManager,
	notifier *Notifier,
	cacheSize int,
	cacheTTL time.Duration,
) (*Manager, error) {
	views, err := newViewCache(cacheSize, cacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create view cache: %w", err)
	}

	return &Manager{
		auctions:     auctions,
		assets:       assets,
		transactions: transactions,
		ledger:       led,
		txm:          txm,
		notifier:     notifier,
		views:        views,
		codes:        newCodeGenerator(),
	}, nil
}

// View is the read shape served over the API. Derived fields are computed at
// build time against the clock.
type View struct {
	ID                     int64     `json:"id"`
	Code                   string    `json:"code"`
	AssetID                int64     `json:"asset_id"`
	Title                  string    `json:"title,omitempty"`
	SellerID               int64     `json:"seller_id"`
	Status                 string    `json:"status"`
	ReservedPrice          int64     `json:"reserved_price"`
	MinIncrement           int64     `json:"min_increment"`
	CurrentHighestBid      int64     `json:"current_highest_bid"`
	CurrentHighestBidderID int64     `json:"current_highest_bidder_id,omitempty"`
	BidCount               int       `json:"bid_count"`
	NextCallPrice          int64     `json:"next_call_price"`
	StartTime              time.Time `json:"start_time"`
	EndTime                time.Time `json:"end_time"`
	RemainingMinutes       int64     `json:"remaining_minutes"`
	Expired                bool      `json:"expired"`
}

func newView(a *models.Auction, title string, now time.Time) *View {
	return &View{
		ID:                     a.ID,
		Code:                   a.Code,
		AssetID:                a.AssetID,
		Title:                  title,
		SellerID:               a.SellerID,
		Status:                 string(a.Status),
		ReservedPrice:          a.ReservedPrice,
		MinIncrement:           a.MinIncrement,
		CurrentHighestBid:      a.CurrentHighestBid,
		CurrentHighestBidderID: a.CurrentHighestBidderID,
		BidCount:               a.BidCount,
		NextCallPrice:          a.NextCallPrice(),
		StartTime:              a.StartTime,
		EndTime:                a.EndTime,
		RemainingMinutes:       a.RemainingMinutes(now),
		Expired:                a.IsExpired(now),
	}
}

// PostRequest carries the parameters for listing an asset.
type PostRequest struct {
	SellerID      int64
	AssetID       int64
	ReservedPrice int64
	MinIncrement  int64
	TotalMinutes  int64
}

func validatePost(req PostRequest) error {
	if req.SellerID <= 0 {
		return &economy.ValidationError{Field: "seller_id", Reason: "must be positive"}
	}
	if req.AssetID <= 0 {
		return &economy.ValidationError{Field: "asset_id", Reason: "must be positive"}
	}
	if req.ReservedPrice < models.MinReservedPrice || req.ReservedPrice > models.MaxReservedPrice {
		return &economy.ValidationError{
			Field:  "reserved_price",
			Reason: fmt.Sprintf("must be between %d and %d", models.MinReservedPrice, models.MaxReservedPrice),
		}
	}
	if req.MinIncrement < models.MinBidIncrement || req.MinIncrement > models.MaxBidIncrement {
		return &economy.ValidationError{
			Field:  "min_increment",
			Reason: fmt.Sprintf("must be between %d and %d", models.MinBidIncrement, models.MaxBidIncrement),
		}
	}
	if req.TotalMinutes < models.MinAuctionMinutes || req.TotalMinutes > models.MaxAuctionMinutes {
		return &economy.ValidationError{
			Field:  "total_minutes",
			Reason: fmt.Sprintf("must be between %d and %d", models.MinAuctionMinutes, models.MaxAuctionMinutes),
		}
	}
	return nil
}

// PostAuction lists an open asset. The asset is locked, flipped to
// closed_for_auction and the live auction row is created in one transaction.
func (m *Manager) PostAuction(ctx context.Context, req PostRequest) (*View, error) {
	if err := validatePost(req); err != nil {
		return nil, err
	}

	code, err := m.codes.next()
	if err != nil {
		return nil, err
	}

	var auction *models.Auction
	err = m.txm.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		asset, err := m.assets.GetForUpdate(ctx, tx, req.AssetID)
		if err != nil {
			return err
		}

		if asset.OwnerID != req.SellerID {
			return &economy.ForbiddenError{Reason: fmt.Sprintf("user %d does not own asset %d", req.SellerID, req.AssetID)}
		}
		if asset.Status != models.AssetStatusOpenToAuction {
			return &economy.ConflictError{Reason: fmt.Sprintf("asset %d is not open to auction", req.AssetID)}
		}

		existing, err := m.auctions.GetLiveByAssetTx(ctx, tx, req.AssetID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &economy.ConflictError{Reason: fmt.Sprintf("asset %d is already listed on auction %s", req.AssetID, existing.Code)}
		}

		if err := m.assets.UpdateStatusTx(ctx, tx, asset.ID, asset.Status, models.AssetStatusClosedForAuction); err != nil {
			return err
		}

		now := time.Now()
		a := &models.Auction{
			Code:          code,
			AssetID:       req.AssetID,
			SellerID:      req.SellerID,
			ReservedPrice: req.ReservedPrice,
			MinIncrement:  req.MinIncrement,
			TotalMinutes:  req.TotalMinutes,
			Status:        models.AuctionStatusLive,
			StartTime:     now,
			EndTime:       now.Add(time.Duration(req.TotalMinutes) * time.Minute),
		}
		if err := m.auctions.CreateTx(ctx, tx, a); err != nil {
			return err
		}

		auction = a
		return nil
	})
	if err != nil {
		m.codes.release(code)
		return nil, err
	}

	slog.Info("Auction posted",
		slog.String("type", "auction"),
		slog.String("auction_code", auction.Code),
		slog.Int64("user_id", auction.SellerID),
		slog.Int64("asset_id", auction.AssetID),
		slog.Int64("reserved_price", auction.ReservedPrice),
		slog.Int64("minutes", auction.TotalMinutes),
	)
	m.notifier.AuctionPosted(ctx, auction)

	return m.viewOf(ctx, auction), nil
}

// PlaceBid admits a bid on a live auction. The auction row lock is taken
// first and serializes all bids and closes for this auction; wallets are then
// locked in ascending user order. The previous bidder's hold is released and
// the new hold placed in the same transaction, so between bids exactly one
// hold per auction exists.
func (m *Manager) PlaceBid(ctx context.Context, code string, bidderID, amount int64) (*View, error) {
	if bidderID <= 0 {
		return nil, &economy.ValidationError{Field: "bidder_id", Reason: "must be positive"}
	}
	if amount <= 0 {
		return nil, &economy.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	ref, err := m.auctions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var (
		auction          *models.Auction
		previousBidderID int64
		previousAmount   int64
	)
	err = m.txm.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		a, err := m.auctions.GetForUpdate(ctx, tx, ref.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		if a.Status != models.AuctionStatusLive || a.IsExpired(now) {
			return &economy.ExpiredError{AuctionCode: a.Code}
		}
		if bidderID == a.SellerID {
			return &economy.ForbiddenError{Reason: "seller cannot bid on own auction"}
		}
		if bidderID == a.CurrentHighestBidderID {
			return &economy.ConflictError{Reason: fmt.Sprintf("user %d is already the highest bidder on auction %s", bidderID, a.Code)}
		}
		if amount < a.NextCallPrice() {
			return &economy.BidTooLowError{AuctionCode: a.Code, MinAcceptable: a.NextCallPrice()}
		}

		previousBidderID = a.CurrentHighestBidderID
		previousAmount = a.CurrentHighestBid

		blockDesc := fmt.Sprintf("bid hold on auction %s", a.Code)
		releaseDesc := fmt.Sprintf("outbid on auction %s", a.Code)

		var bidder *models.Wallet
		if previousBidderID != 0 && previousBidderID < bidderID {
			if err := m.ledger.ReleaseTx(ctx, tx, previousBidderID, previousAmount, a.ID, a.AssetID, releaseDesc); err != nil {
				return err
			}
			bidder, err = m.ledger.BlockTx(ctx, tx, bidderID, amount, a.ID, a.AssetID, blockDesc)
			if err != nil {
				return err
			}
		} else {
			bidder, err = m.ledger.BlockTx(ctx, tx, bidderID, amount, a.ID, a.AssetID, blockDesc)
			if err != nil {
				return err
			}
			if previousBidderID != 0 {
				if err := m.ledger.ReleaseTx(ctx, tx, previousBidderID, previousAmount, a.ID, a.AssetID, releaseDesc); err != nil {
					return err
				}
			}
		}

		if err := m.auctions.RecordBidTx(ctx, tx, a.ID, bidderID, amount, now); err != nil {
			return err
		}
		if err := m.auctions.InsertBidTx(ctx, tx, &models.AuctionBid{
			AuctionID:  a.ID,
			BidderID:   bidderID,
			BidderName: bidder.Username,
			Amount:     amount,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		a.CurrentHighestBid = amount
		a.CurrentHighestBidderID = bidderID
		a.LastBidTime = now
		a.BidCount++
		auction = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.views.invalidate(code)
	slog.Info("Bid accepted",
		slog.String("type", "auction"),
		slog.String("auction_code", auction.Code),
		slog.Int64("user_id", bidderID),
		slog.Int64("amount", amount),
		slog.Int("bid_count", auction.BidCount),
	)

	m.notifier.BidPlaced(ctx, auction, bidderID, amount)
	if previousBidderID != 0 {
		m.notifier.BidOutbid(ctx, auction, previousBidderID, previousAmount, amount)
	}

	return m.viewOf(ctx, auction), nil
}

// CloseResult reports what a close did. AlreadyClosed means the auction was
// terminal before the call and nothing moved.
type CloseResult struct {
	AuctionID     int64  `json:"auction_id"`
	Code          string `json:"code"`
	Status        string `json:"status"`
	Settled       bool   `json:"settled"`
	AlreadyClosed bool   `json:"already_closed"`
	WinnerID      int64  `json:"winner_id,omitempty"`
	FinalPrice    int64  `json:"final_price,omitempty"`
}

// CloseAuction finishes an auction exactly once. With bids it settles the
// highest bid and hands the asset to the winner; without bids it reopens the
// asset. Calling it on a terminal auction reports the stored outcome and
// moves no money, which is what lets the sweeper, the API and the ops tool
// race each other safely.
func (m *Manager) CloseAuction(ctx context.Context, auctionID int64, trigger CloseTrigger, requesterID int64) (*CloseResult, error) {
	var (
		result *CloseResult
		closed *models.Auction
	)
	err := m.txm.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		closed = nil

		a, err := m.auctions.GetForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		if a.Status.IsTerminal() {
			result = &CloseResult{
				AuctionID:     a.ID,
				Code:          a.Code,
				Status:        string(a.Status),
				Settled:       a.Status == models.AuctionStatusExpired,
				AlreadyClosed: true,
				WinnerID:      a.CurrentHighestBidderID,
				FinalPrice:    a.CurrentHighestBid,
			}
			return nil
		}

		now := time.Now()
		if !a.IsExpired(now) {
			if trigger != TriggerManual {
				return &economy.ConflictError{Reason: fmt.Sprintf("auction %s has not expired yet", a.Code)}
			}
			if requesterID != a.SellerID {
				return &economy.ForbiddenError{Reason: "only the seller can close a live auction early"}
			}
		}

		target := models.AuctionStatusExpiredNoBids
		if a.HasBids() {
			target = models.AuctionStatusExpired
		}

		if err := m.auctions.CloseTx(ctx, tx, a.ID, target); err != nil {
			return err
		}

		asset, err := m.assets.GetForUpdate(ctx, tx, a.AssetID)
		if err != nil {
			return err
		}

		if a.HasBids() {
			if err := m.ledger.SettleTx(ctx, tx, a.CurrentHighestBidderID, a.SellerID, a.CurrentHighestBid, a.ID, a.AssetID); err != nil {
				return err
			}
			if err := m.assets.TransferTx(ctx, tx, asset.ID, a.CurrentHighestBidderID, models.AssetStatusOpenToAuction); err != nil {
				return err
			}
		} else {
			if err := m.assets.UpdateStatusTx(ctx, tx, asset.ID, asset.Status, models.AssetStatusOpenToAuction); err != nil {
				return err
			}
		}

		if err := m.releaseStaleHolds(ctx, tx, a); err != nil {
			return err
		}

		a.Status = target
		closed = a
		result = &CloseResult{
			AuctionID:  a.ID,
			Code:       a.Code,
			Status:     string(target),
			Settled:    a.HasBids(),
			WinnerID:   a.CurrentHighestBidderID,
			FinalPrice: a.CurrentHighestBid,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if closed != nil {
		m.views.invalidate(closed.Code)
		slog.Info("Auction closed",
			slog.String("type", "auction"),
			slog.String("auction_code", closed.Code),
			slog.String("trigger", string(trigger)),
			slog.String("status", result.Status),
			slog.Int64("final_price", result.FinalPrice),
		)
		m.notifier.AuctionClosed(ctx, closed, result.Status, result.WinnerID, result.FinalPrice, string(trigger))
	}

	return result, nil
}

// CloseByCode resolves the public code and closes.
func (m *Manager) CloseByCode(ctx context.Context, code string, trigger CloseTrigger, requesterID int64) (*CloseResult, error) {
	ref, err := m.auctions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.CloseAuction(ctx, ref.ID, trigger, requesterID)
}

// releaseStaleHolds lifts holds the log still shows open for bidders other
// than the winner. The bid path releases on every outbid, so this finds
// nothing unless an earlier partial failure stranded funds; close is the last
// point where such a hold can be tied back to its auction.
func (m *Manager) releaseStaleHolds(ctx context.Context, tx bun.Tx, a *models.Auction) error {
	rows, err := m.transactions.ListByAuctionTx(ctx, tx, a.ID)
	if err != nil {
		return err
	}

	outstanding := ledger.OutstandingByBidder(rows)
	delete(outstanding, a.CurrentHighestBidderID)
	if len(outstanding) == 0 {
		return nil
	}

	userIDs := make([]int64, 0, len(outstanding))
	for userID := range outstanding {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, userID := range userIDs {
		slog.Warn("Releasing stale hold at close",
			slog.String("auction_code", a.Code),
			slog.Int64("user_id", userID),
			slog.Int64("amount", outstanding[userID]),
		)
		desc := fmt.Sprintf("hold cleanup on close of auction %s", a.Code)
		if err := m.ledger.ReleaseTx(ctx, tx, userID, outstanding[userID], a.ID, a.AssetID, desc); err != nil {
			return err
		}
	}
	return nil
}

// GetAuction serves the view for one auction, from cache when fresh.
func (m *Manager) GetAuction(ctx context.Context, code string) (*View, error) {
	if view, ok := m.views.get(code); ok {
		return view, nil
	}

	a, err := m.auctions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	view := m.viewOf(ctx, a)
	m.views.add(code, view)
	return view, nil
}

// ListLive pages the live auctions, soonest expiry first.
func (m *Manager) ListLive(ctx context.Context, limit, offset int) ([]*View, int, error) {
	auctions, total, err := m.auctions.ListLive(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	titles, err := m.titlesFor(ctx, auctions)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	views := make([]*View, 0, len(auctions))
	for _, a := range auctions {
		views = append(views, newView(a, titles[a.AssetID], now))
	}
	return views, total, nil
}

// liveListings adapts the live set for fuzzy matching over code and title.
type liveListings struct {
	auctions []*models.Auction
	titles   map[int64]string
}

func (l liveListings) Len() int {
	return len(l.auctions)
}

func (l liveListings) String(i int) string {
	a := l.auctions[i]
	return a.Code + " " + l.titles[a.AssetID]
}

// SearchLive fuzzy-matches the query against auction codes and asset titles,
// best match first. An empty query returns the whole live set in expiry
// order.
func (m *Manager) SearchLive(ctx context.Context, query string) ([]*View, error) {
	auctions, err := m.auctions.ListLiveAll(ctx)
	if err != nil {
		return nil, err
	}

	titles, err := m.titlesFor(ctx, auctions)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		views := make([]*View, 0, len(auctions))
		for _, a := range auctions {
			views = append(views, newView(a, titles[a.AssetID], now))
		}
		return views, nil
	}

	matches := fuzzy.FindFrom(query, liveListings{auctions: auctions, titles: titles})
	views := make([]*View, 0, len(matches))
	for _, match := range matches {
		a := auctions[match.Index]
		views = append(views, newView(a, titles[a.AssetID], now))
	}
	return views, nil
}

// ListBids returns the bid history, highest first.
func (m *Manager) ListBids(ctx context.Context, code string) ([]*models.AuctionBid, error) {
	ref, err := m.auctions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.auctions.ListBids(ctx, ref.ID)
}

// CreateAsset registers a draft asset for an owner.
func (m *Manager) CreateAsset(ctx context.Context, ownerID int64, title, description string) (*models.Asset, error) {
	if ownerID <= 0 {
		return nil, &economy.ValidationError{Field: "owner_id", Reason: "must be positive"}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &economy.ValidationError{Field: "title", Reason: "must not be empty"}
	}

	asset := &models.Asset{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Status:      models.AssetStatusDraft,
	}
	if err := m.assets.Create(ctx, asset); err != nil {
		return nil, err
	}

	slog.Info("Asset created",
		slog.Int64("asset_id", asset.ID),
		slog.Int64("user_id", ownerID),
	)
	return asset, nil
}

// OpenAsset moves a draft asset to open_to_auction. Only the owner may open.
func (m *Manager) OpenAsset(ctx context.Context, assetID, requesterID int64) (*models.Asset, error) {
	var asset *models.Asset
	err := m.txm.WithTransaction(ctx, utils.StandardTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		a, err := m.assets.GetForUpdate(ctx, tx, assetID)
		if err != nil {
			return err
		}

		if a.OwnerID != requesterID {
			return &economy.ForbiddenError{Reason: fmt.Sprintf("user %d does not own asset %d", requesterID, assetID)}
		}

		// Only drafts open by hand; closes reopen listed assets themselves.
		if a.Status != models.AssetStatusDraft {
			return &economy.ConflictError{Reason: fmt.Sprintf("asset %d is not a draft", assetID)}
		}

		if err := m.assets.UpdateStatusTx(ctx, tx, a.ID, a.Status, models.AssetStatusOpenToAuction); err != nil {
			return err
		}

		a.Status = models.AssetStatusOpenToAuction
		asset = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// GetAsset is a plain read.
func (m *Manager) GetAsset(ctx context.Context, assetID int64) (*models.Asset, error) {
	return m.assets.GetByID(ctx, assetID)
}

func (m *Manager) viewOf(ctx context.Context, a *models.Auction) *View {
	title := ""
	if asset, err := m.assets.GetByID(ctx, a.AssetID); err == nil {
		title = asset.Title
	}
	return newView(a, title, time.Now())
}

func (m *Manager) titlesFor(ctx context.Context, auctions []*models.Auction) (map[int64]string, error) {
	if len(auctions) == 0 {
		return map[int64]string{}, nil
	}

	seen := make(map[int64]bool, len(auctions))
	ids := make([]int64, 0, len(auctions))
	for _, a := range auctions {
		if !seen[a.AssetID] {
			seen[a.AssetID] = true
			ids = append(ids, a.AssetID)
		}
	}

	assets, err := m.assets.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	titles := make(map[int64]string, len(assets))
	for _, asset := range assets {
		titles[asset.ID] = asset.Title
	}
	return titles, nil
}
