package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Wallet is the core's projection of a marketplace user: identity reference,
// display name, and money state. Balance fields are mutated only through the
// ledger primitives.
type Wallet struct {
	bun.BaseModel `bun:"table:wallets,alias:w"`

	UserID        int64  `bun:"user_id,pk"`
	Username      string `bun:"username,notnull"`
	Balance       int64  `bun:"balance,notnull,default:0"`
	BlockedAmount int64  `bun:"blocked_amount,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Available returns the spendable portion of the balance. Blocked funds are a
// hold against the balance, not a separate pool.
func (w *Wallet) Available() int64 {
	return w.Balance - w.BlockedAmount
}

type TransactionType string

const (
	TransactionDeposit         TransactionType = "deposit"
	TransactionWithdrawal      TransactionType = "withdrawal"
	TransactionBidBlocked      TransactionType = "bid_blocked"
	TransactionBidReleased     TransactionType = "bid_released"
	TransactionPaymentMade     TransactionType = "payment_made"
	TransactionPaymentReceived TransactionType = "payment_received"
)

// WalletTransaction is one row of the append-only money log. Rows are never
// updated or deleted; Amount is always positive and the type implies the sign.
// AuctionID and AssetID are zero for plain deposits and withdrawals.
type WalletTransaction struct {
	bun.BaseModel `bun:"table:wallet_transactions,alias:wt"`

	ID          string          `bun:"id,pk"`
	UserID      int64           `bun:"user_id,notnull"`
	Type        TransactionType `bun:"type,notnull"`
	Amount      int64           `bun:"amount,notnull"`
	AuctionID   int64           `bun:"auction_id"`
	AssetID     int64           `bun:"asset_id"`
	Description string          `bun:"description"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
