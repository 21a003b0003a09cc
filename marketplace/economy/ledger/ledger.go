package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/bidhaus/bidhaus/marketplace/database/repositories"
	"github.com/bidhaus/bidhaus/marketplace/economy"
	"github.com/bidhaus/bidhaus/marketplace/economy/utils"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Ledger owns all money movement. Wallet balances change only through these
// five primitives, and every change appends a transaction row in the same
// database transaction.
type Ledger struct {
	wallets      repositories.WalletRepository
	transactions repositories.TransactionRepository
	txm          *utils.MarketTransactionManager
}

func New(wallets repositories.WalletRepository, transactions repositories.TransactionRepository, txm *utils.MarketTransactionManager) *Ledger {
	return &Ledger{
		wallets:      wallets,
		transactions: transactions,
		txm:          txm,
	}
}

// Deposit credits the wallet and returns its updated state.
func (l *Ledger) Deposit(ctx context.Context, userID, amount int64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, &economy.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	var wallet *models.Wallet
	err := l.txm.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		w, err := l.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		if err := l.wallets.AdjustBalances(ctx, tx, userID, amount, 0); err != nil {
			return err
		}

		if err := l.transactions.InsertTx(ctx, tx, &models.WalletTransaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        models.TransactionDeposit,
			Amount:      amount,
			Description: "deposit",
		}); err != nil {
			return err
		}

		w.Balance += amount
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Deposit applied",
		slog.Int64("user_id", userID),
		slog.Int64("amount", amount),
		slog.Int64("balance", wallet.Balance),
	)
	return wallet, nil
}

// Withdraw debits the wallet. Only the available balance can leave; blocked
// funds stay put.
func (l *Ledger) Withdraw(ctx context.Context, userID, amount int64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, &economy.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	var wallet *models.Wallet
	err := l.txm.WithTransaction(ctx, utils.SerializableTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		w, err := l.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		if w.Available() < amount {
			return &economy.InsufficientFundsError{
				UserID:    userID,
				Available: w.Available(),
				Requested: amount,
			}
		}

		if err := l.wallets.AdjustBalances(ctx, tx, userID, -amount, 0); err != nil {
			return err
		}

		if err := l.transactions.InsertTx(ctx, tx, &models.WalletTransaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        models.TransactionWithdrawal,
			Amount:      amount,
			Description: "withdrawal",
		}); err != nil {
			return err
		}

		w.Balance -= amount
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Withdrawal applied",
		slog.Int64("user_id", userID),
		slog.Int64("amount", amount),
		slog.Int64("balance", wallet.Balance),
	)
	return wallet, nil
}

// BlockTx places a hold on the available balance inside the caller's
// transaction. Returns the wallet as it was under the lock, before the hold.
func (l *Ledger) BlockTx(ctx context.Context, tx bun.Tx, userID, amount, auctionID, assetID int64, description string) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, &economy.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	wallet, err := l.wallets.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if wallet.Available() < amount {
		return nil, &economy.InsufficientFundsError{
			UserID:    userID,
			Available: wallet.Available(),
			Requested: amount,
		}
	}

	if err := l.wallets.AdjustBalances(ctx, tx, userID, 0, amount); err != nil {
		return nil, err
	}

	if err := l.transactions.InsertTx(ctx, tx, &models.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        models.TransactionBidBlocked,
		Amount:      amount,
		AuctionID:   auctionID,
		AssetID:     assetID,
		Description: description,
	}); err != nil {
		return nil, err
	}

	return wallet, nil
}

// ReleaseTx lifts a hold inside the caller's transaction. A release larger
// than the current hold is floored at the hold and logged; the transaction
// row records what actually moved.
func (l *Ledger) ReleaseTx(ctx context.Context, tx bun.Tx, userID, amount, auctionID, assetID int64, description string) error {
	if amount <= 0 {
		return &economy.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	wallet, err := l.wallets.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}

	release := amount
	if release > wallet.BlockedAmount {
		slog.Warn("Release exceeds blocked amount, flooring",
			slog.Int64("user_id", userID),
			slog.Int64("requested", amount),
			slog.Int64("blocked", wallet.BlockedAmount),
			slog.Int64("auction_id", auctionID),
		)
		release = wallet.BlockedAmount
	}
	if release == 0 {
		return nil
	}

	if err := l.wallets.AdjustBalances(ctx, tx, userID, 0, -release); err != nil {
		return err
	}

	return l.transactions.InsertTx(ctx, tx, &models.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        models.TransactionBidReleased,
		Amount:      release,
		AuctionID:   auctionID,
		AssetID:     assetID,
		Description: description,
	})
}

// SettleTx consumes the payer's hold and pays the payee inside the caller's
// transaction. The payer's balance and hold both drop by amount, so the hold
// is spent rather than released and re-debited. Wallets are locked in
// ascending user order.
func (l *Ledger) SettleTx(ctx context.Context, tx bun.Tx, payerID, payeeID, amount, auctionID, assetID int64) error {
	if amount <= 0 {
		return &economy.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if payerID == payeeID {
		return &economy.ValidationError{Field: "payee", Reason: "payer and payee must differ"}
	}

	first, second := payerID, payeeID
	if second < first {
		first, second = second, first
	}

	wallets := make(map[int64]*models.Wallet, 2)
	for _, userID := range []int64{first, second} {
		w, err := l.wallets.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		wallets[userID] = w
	}

	payer := wallets[payerID]
	if payer.BlockedAmount < amount || payer.Balance < amount {
		return fmt.Errorf("settlement invariant breach: user %d has balance %d, blocked %d, owes %d",
			payerID, payer.Balance, payer.BlockedAmount, amount)
	}

	if err := l.wallets.AdjustBalances(ctx, tx, payerID, -amount, -amount); err != nil {
		return err
	}
	if err := l.wallets.AdjustBalances(ctx, tx, payeeID, amount, 0); err != nil {
		return err
	}

	description := fmt.Sprintf("settlement for auction %d", auctionID)
	if err := l.transactions.InsertTx(ctx, tx, &models.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      payerID,
		Type:        models.TransactionPaymentMade,
		Amount:      amount,
		AuctionID:   auctionID,
		AssetID:     assetID,
		Description: description,
	}); err != nil {
		return err
	}

	return l.transactions.InsertTx(ctx, tx, &models.WalletTransaction{
		ID:          uuid.NewString(),
		UserID:      payeeID,
		Type:        models.TransactionPaymentReceived,
		Amount:      amount,
		AuctionID:   auctionID,
		AssetID:     assetID,
		Description: description,
	})
}
