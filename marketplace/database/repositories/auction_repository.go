package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/bidhaus/bidhaus/marketplace/economy"
	"github.com/uptrace/bun"
)

type AuctionRepository interface {
	CreateTx(ctx context.Context, tx bun.Tx, auction *models.Auction) error
	GetByID(ctx context.Context, id int64) (*models.Auction, error)
	GetByCode(ctx context.Context, code string) (*models.Auction, error)
	GetForUpdate(ctx context.Context, tx bun.Tx, id int64) (*models.Auction, error)
	GetLiveByAssetTx(ctx context.Context, tx bun.Tx, assetID int64) (*models.Auction, error)
	RecordBidTx(ctx context.Context, tx bun.Tx, auctionID, bidderID, amount int64, at time.Time) error
	CloseTx(ctx context.Context, tx bun.Tx, auctionID int64, status models.AuctionStatus) error
	ListLive(ctx context.Context, limit, offset int) ([]*models.Auction, int, error)
	ListLiveAll(ctx context.Context) ([]*models.Auction, error)
	ListLiveWonBy(ctx context.Context, bidderID int64) ([]*models.Auction, error)
	ListLiveWonByTx(ctx context.Context, tx bun.Tx, bidderID int64) ([]*models.Auction, error)
	ExpiredLiveIDs(ctx context.Context, now time.Time) ([]int64, error)
	InsertBidTx(ctx context.Context, tx bun.Tx, bid *models.AuctionBid) error
	ListBids(ctx context.Context, auctionID int64) ([]*models.AuctionBid, error)
}

type auctionRepository struct {
	db *bun.DB
}

func NewAuctionRepository(db *bun.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) CreateTx(ctx context.Context, tx bun.Tx, auction *models.Auction) error {
	auction.CreatedAt = time.Now()
	auction.UpdatedAt = time.Now()

	if _, err := tx.NewInsert().Model(auction).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetByID(ctx context.Context, id int64) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &economy.NotFoundError{Entity: "auction", ID: id}
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) GetByCode(ctx context.Context, code string) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("code = ?", code).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &economy.NotFoundError{Entity: "auction", ID: code}
		}
		return nil, fmt.Errorf("failed to get auction by code: %w", err)
	}
	return auction, nil
}

// GetForUpdate loads the auction row under a row lock. Every state change to
// one auction happens behind this lock, which is what serializes concurrent
// bids and closes.
func (r *auctionRepository) GetForUpdate(ctx context.Context, tx bun.Tx, id int64) (*models.Auction, error) {
	auction := new(models.Auction)
	err := tx.NewSelect().
		Model(auction).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &economy.NotFoundError{Entity: "auction", ID: id}
		}
		return nil, fmt.Errorf("failed to get auction for update: %w", err)
	}
	return auction, nil
}

// GetLiveByAssetTx returns the live auction for an asset, or nil when there is
// none. The unique partial index on (asset_id) WHERE status = 'live' is the
// hard backstop; this read keeps the error message friendly.
func (r *auctionRepository) GetLiveByAssetTx(ctx context.Context, tx bun.Tx, assetID int64) (*models.Auction, error) {
	auction := new(models.Auction)
	err := tx.NewSelect().
		Model(auction).
		Where("asset_id = ?", assetID).
		Where("status = ?", models.AuctionStatusLive).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get live auction for asset: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) RecordBidTx(ctx context.Context, tx bun.Tx, auctionID, bidderID, amount int64, at time.Time) error {
	res, err := tx.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("current_highest_bid = ?", amount).
		Set("current_highest_bidder_id = ?", bidderID).
		Set("last_bid_time = ?", at).
		Set("bid_count = bid_count + 1").
		Set("updated_at = ?", at).
		Where("id = ?", auctionID).
		Where("status = ?", models.AuctionStatusLive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record bid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &economy.ConflictError{Reason: fmt.Sprintf("auction %d is no longer live", auctionID)}
	}
	return nil
}

// CloseTx flips a live auction to a terminal status. The status guard in the
// WHERE clause makes a double close visible as zero affected rows.
func (r *auctionRepository) CloseTx(ctx context.Context, tx bun.Tx, auctionID int64, status models.AuctionStatus) error {
	if !models.AuctionStatusLive.CanTransitionTo(status) {
		return &economy.ConflictError{Reason: fmt.Sprintf("auction %d cannot move to %s", auctionID, status)}
	}

	res, err := tx.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", auctionID).
		Where("status = ?", models.AuctionStatusLive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to close auction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &economy.ConflictError{Reason: fmt.Sprintf("auction %d is already closed", auctionID)}
	}
	return nil
}

func (r *auctionRepository) ListLive(ctx context.Context, limit, offset int) ([]*models.Auction, int, error) {
	var auctions []*models.Auction
	count, err := r.db.NewSelect().
		Model(&auctions).
		Where("status = ?", models.AuctionStatusLive).
		Order("end_time ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, fmt.Errorf("failed to list live auctions: %w", err)
	}
	return auctions, count, nil
}

func (r *auctionRepository) ListLiveAll(ctx context.Context) ([]*models.Auction, error) {
	var auctions []*models.Auction
	err := r.db.NewSelect().
		Model(&auctions).
		Where("status = ?", models.AuctionStatusLive).
		Order("end_time ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list live auctions: %w", err)
	}
	return auctions, nil
}

func (r *auctionRepository) ListLiveWonBy(ctx context.Context, bidderID int64) ([]*models.Auction, error) {
	var auctions []*models.Auction
	err := r.db.NewSelect().
		Model(&auctions).
		Where("status = ?", models.AuctionStatusLive).
		Where("current_highest_bidder_id = ?", bidderID).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list auctions won by bidder: %w", err)
	}
	return auctions, nil
}

func (r *auctionRepository) ListLiveWonByTx(ctx context.Context, tx bun.Tx, bidderID int64) ([]*models.Auction, error) {
	var auctions []*models.Auction
	err := tx.NewSelect().
		Model(&auctions).
		Where("status = ?", models.AuctionStatusLive).
		Where("current_highest_bidder_id = ?", bidderID).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list auctions won by bidder: %w", err)
	}
	return auctions, nil
}

// ExpiredLiveIDs snapshots the auctions due for closing. A plain read, no
// locks: each ID is closed in its own transaction afterwards, and IDs that
// get closed by someone else in between fall out as no-ops.
func (r *auctionRepository) ExpiredLiveIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*models.Auction)(nil)).
		Column("id").
		Where("status = ?", models.AuctionStatusLive).
		Where("end_time <= ?", now).
		Order("end_time ASC").
		Scan(ctx, &ids)

	if err != nil {
		return nil, fmt.Errorf("failed to list expired auctions: %w", err)
	}
	return ids, nil
}

func (r *auctionRepository) InsertBidTx(ctx context.Context, tx bun.Tx, bid *models.AuctionBid) error {
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now()
	}

	if _, err := tx.NewInsert().Model(bid).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record bid history: %w", err)
	}
	return nil
}

func (r *auctionRepository) ListBids(ctx context.Context, auctionID int64) ([]*models.AuctionBid, error) {
	var bids []*models.AuctionBid
	err := r.db.NewSelect().
		Model(&bids).
		Where("auction_id = ?", auctionID).
		Order("amount DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list auction bids: %w", err)
	}
	return bids, nil
}
