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

type AssetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetByID(ctx context.Context, id int64) (*models.Asset, error)
	GetForUpdate(ctx context.Context, tx bun.Tx, id int64) (*models.Asset, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.Asset, error)
	UpdateStatusTx(ctx context.Context, tx bun.Tx, assetID int64, from, to models.AssetStatus) error
	TransferTx(ctx context.Context, tx bun.Tx, assetID, newOwnerID int64, status models.AssetStatus) error
}

type assetRepository struct {
	db *bun.DB
}

func NewAssetRepository(db *bun.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) Create(ctx context.Context, asset *models.Asset) error {
	asset.CreatedAt = time.Now()
	asset.UpdatedAt = time.Now()

	if _, err := r.db.NewInsert().Model(asset).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

func (r *assetRepository) GetByID(ctx context.Context, id int64) (*models.Asset, error) {
	asset := new(models.Asset)
	err := r.db.NewSelect().
		Model(asset).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &economy.NotFoundError{Entity: "asset", ID: id}
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return asset, nil
}

func (r *assetRepository) GetForUpdate(ctx context.Context, tx bun.Tx, id int64) (*models.Asset, error) {
	asset := new(models.Asset)
	err := tx.NewSelect().
		Model(asset).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &economy.NotFoundError{Entity: "asset", ID: id}
		}
		return nil, fmt.Errorf("failed to get asset for update: %w", err)
	}
	return asset, nil
}

func (r *assetRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var assets []*models.Asset
	err := r.db.NewSelect().
		Model(&assets).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// UpdateStatusTx moves the asset along the transition table. The from status
// is part of the WHERE clause, so a concurrent move loses cleanly instead of
// overwriting.
func (r *assetRepository) UpdateStatusTx(ctx context.Context, tx bun.Tx, assetID int64, from, to models.AssetStatus) error {
	if !from.CanTransitionTo(to) {
		return &economy.ConflictError{Reason: fmt.Sprintf("asset %d cannot move from %s to %s", assetID, from, to)}
	}

	res, err := tx.NewUpdate().
		Model((*models.Asset)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", assetID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update asset status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &economy.ConflictError{Reason: fmt.Sprintf("asset %d is no longer %s", assetID, from)}
	}
	return nil
}

// TransferTx hands the asset to a new owner and sets its status in one
// statement. Used by settlement only.
func (r *assetRepository) TransferTx(ctx context.Context, tx bun.Tx, assetID, newOwnerID int64, status models.AssetStatus) error {
	res, err := tx.NewUpdate().
		Model((*models.Asset)(nil)).
		Set("owner_id = ?", newOwnerID).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", assetID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to transfer asset: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return &economy.NotFoundError{Entity: "asset", ID: assetID}
	}
	return nil
}
