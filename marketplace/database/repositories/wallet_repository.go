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

type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByUserID(ctx context.Context, userID int64) (*models.Wallet, error)
	GetForUpdate(ctx context.Context, tx bun.Tx, userID int64) (*models.Wallet, error)
	AdjustBalances(ctx context.Context, tx bun.Tx, userID, balanceDelta, blockedDelta int64) error
	SetBalances(ctx context.Context, tx bun.Tx, userID, balance, blocked int64) error
	ListUserIDs(ctx context.Context) ([]int64, error)
	ListWithBlocked(ctx context.Context) ([]*models.Wallet, error)
}

type walletRepository struct {
	db *bun.DB
}

func NewWalletRepository(db *bun.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	wallet.CreatedAt = time.Now()
	wallet.UpdatedAt = time.Now()

	res, err := r.db.NewInsert().
		Model(wallet).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &economy.ConflictError{Reason: fmt.Sprintf("wallet for user %d already exists", wallet.UserID)}
	}
	return nil
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID int64) (*models.Wallet, error) {
	wallet := new(models.Wallet)
	err := r.db.NewSelect().
		Model(wallet).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &economy.NotFoundError{Entity: "wallet", ID: userID}
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// GetForUpdate loads the wallet row under a row lock. The lock serializes all
// money movement for the user until the enclosing transaction ends.
func (r *walletRepository) GetForUpdate(ctx context.Context, tx bun.Tx, userID int64) (*models.Wallet, error) {
	wallet := new(models.Wallet)
	err := tx.NewSelect().
		Model(wallet).
		Where("user_id = ?", userID).
		For("UPDATE").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &economy.NotFoundError{Entity: "wallet", ID: userID}
		}
		return nil, fmt.Errorf("failed to get wallet for update: %w", err)
	}
	return wallet, nil
}

func (r *walletRepository) AdjustBalances(ctx context.Context, tx bun.Tx, userID, balanceDelta, blockedDelta int64) error {
	res, err := tx.NewUpdate().
		Model((*models.Wallet)(nil)).
		Set("balance = balance + ?", balanceDelta).
		Set("blocked_amount = blocked_amount + ?", blockedDelta).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to adjust wallet balances: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &economy.NotFoundError{Entity: "wallet", ID: userID}
	}
	return nil
}

func (r *walletRepository) SetBalances(ctx context.Context, tx bun.Tx, userID, balance, blocked int64) error {
	res, err := tx.NewUpdate().
		Model((*models.Wallet)(nil)).
		Set("balance = ?", balance).
		Set("blocked_amount = ?", blocked).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set wallet balances: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &economy.NotFoundError{Entity: "wallet", ID: userID}
	}
	return nil
}

func (r *walletRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*models.Wallet)(nil)).
		Column("user_id").
		Order("user_id ASC").
		Scan(ctx, &ids)

	if err != nil {
		return nil, fmt.Errorf("failed to list wallet user ids: %w", err)
	}
	return ids, nil
}

func (r *walletRepository) ListWithBlocked(ctx context.Context) ([]*models.Wallet, error) {
	var wallets []*models.Wallet
	err := r.db.NewSelect().
		Model(&wallets).
		Where("blocked_amount > 0").
		Order("user_id ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list wallets with blocked funds: %w", err)
	}
	return wallets, nil
}
