package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// TransactionOptions configures transaction behavior
type TransactionOptions struct {
	IsolationLevel sql.IsolationLevel
	Timeout        time.Duration
}

// MarketTransactionManager provides standardized transaction utilities for
// settlement operations
type MarketTransactionManager struct {
	db *bun.DB
}

// NewMarketTransactionManager creates a new transaction manager
func NewMarketTransactionManager(db *bun.DB) *MarketTransactionManager {
	return &MarketTransactionManager{db: db}
}

// StandardTransactionOptions returns default transaction options
func StandardTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		IsolationLevel: sql.LevelReadCommitted,
		Timeout:        DefaultTxTimeout,
	}
}

// SerializableTransactionOptions returns serializable isolation level options
// for money-moving operations
func SerializableTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		IsolationLevel: sql.LevelSerializable,
		Timeout:        DefaultTxTimeout,
	}
}

// WithTransaction executes a function within a database transaction. At
// serializable isolation a row-lock waiter whose holder commits comes back
// with a serialization failure instead of the new row state, so conflicts and
// deadlocks are retried with a fresh transaction; fn must therefore be safe to
// re-run from the top. Domain rejections from fn are returned as-is on the
// first attempt.
func (mtm *MarketTransactionManager) WithTransaction(ctx context.Context, opts *TransactionOptions, fn func(context.Context, bun.Tx) error) error {
	if opts == nil {
		opts = StandardTransactionOptions()
	}

	var err error
	for attempt := 0; attempt < MaxTxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * TxRetryBackoff):
			}
			slog.Debug("Retrying transaction after conflict",
				slog.String("type", "db"),
				slog.Int("attempt", attempt+1),
			)
		}

		err = mtm.runOnce(ctx, opts, fn)
		if err == nil || !IsSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", MaxTxRetries, err)
}

func (mtm *MarketTransactionManager) runOnce(ctx context.Context, opts *TransactionOptions, fn func(context.Context, bun.Tx) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	tx, err := mtm.db.BeginTx(timeoutCtx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(timeoutCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Postgres codes for conflicts a fresh transaction can resolve
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsSerializationFailure reports whether err is a transient conflict
// (serialization failure or deadlock) that a fresh transaction can resolve.
func IsSerializationFailure(err error) bool {
	var driverErr pgdriver.Error
	if errors.As(err, &driverErr) {
		code := driverErr.Field('C')
		return code == pgSerializationFailure || code == pgDeadlockDetected
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
