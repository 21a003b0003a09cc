package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/uptrace/bun"
)

// TransactionRepository reads and appends the wallet transaction log. The log
// is append-only: there are no update or delete methods on purpose.
type TransactionRepository interface {
	InsertTx(ctx context.Context, tx bun.Tx, txn *models.WalletTransaction) error
	ListByUser(ctx context.Context, userID int64) ([]*models.WalletTransaction, error)
	ListByUserTx(ctx context.Context, tx bun.Tx, userID int64) ([]*models.WalletTransaction, error)
	ListByUserPaged(ctx context.Context, userID int64, limit, offset int) ([]*models.WalletTransaction, int, error)
	ListByAuctionTx(ctx context.Context, tx bun.Tx, auctionID int64) ([]*models.WalletTransaction, error)
}

type transactionRepository struct {
	db *bun.DB
}

func NewTransactionRepository(db *bun.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) InsertTx(ctx context.Context, tx bun.Tx, txn *models.WalletTransaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	if _, err := tx.NewInsert().Model(txn).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID int64) ([]*models.WalletTransaction, error) {
	var txns []*models.WalletTransaction
	err := r.db.NewSelect().
		Model(&txns).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return txns, nil
}

// ListByUserTx is the in-transaction variant used by reconciliation, so the
// fold and the correction read the same snapshot.
func (r *transactionRepository) ListByUserTx(ctx context.Context, tx bun.Tx, userID int64) ([]*models.WalletTransaction, error) {
	var txns []*models.WalletTransaction
	err := tx.NewSelect().
		Model(&txns).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return txns, nil
}

func (r *transactionRepository) ListByUserPaged(ctx context.Context, userID int64, limit, offset int) ([]*models.WalletTransaction, int, error) {
	var txns []*models.WalletTransaction
	count, err := r.db.NewSelect().
		Model(&txns).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, fmt.Errorf("failed to page wallet transactions: %w", err)
	}
	return txns, count, nil
}

func (r *transactionRepository) ListByAuctionTx(ctx context.Context, tx bun.Tx, auctionID int64) ([]*models.WalletTransaction, error) {
	var txns []*models.WalletTransaction
	err := tx.NewSelect().
		Model(&txns).
		Where("auction_id = ?", auctionID).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list auction transactions: %w", err)
	}
	return txns, nil
}
