package ledger

import (
	"github.com/bidhaus/bidhaus/marketplace/database/models"
)

// BalanceFromLog folds a user's transaction rows into the balance they imply.
// Block and release rows move the hold, not the balance, so they do not
// appear here.
func BalanceFromLog(rows []*models.WalletTransaction) int64 {
	var balance int64
	for _, row := range rows {
		switch row.Type {
		case models.TransactionDeposit, models.TransactionPaymentReceived:
			balance += row.Amount
		case models.TransactionWithdrawal, models.TransactionPaymentMade:
			balance -= row.Amount
		}
	}
	return balance
}

// OutstandingByAuction folds a user's rows into the hold still open per
// auction: blocked minus released minus settled. Auctions whose hold has
// fully unwound are omitted.
func OutstandingByAuction(rows []*models.WalletTransaction) map[int64]int64 {
	outstanding := make(map[int64]int64)
	for _, row := range rows {
		switch row.Type {
		case models.TransactionBidBlocked:
			outstanding[row.AuctionID] += row.Amount
		case models.TransactionBidReleased, models.TransactionPaymentMade:
			outstanding[row.AuctionID] -= row.Amount
		}
	}
	for auctionID, amount := range outstanding {
		if amount <= 0 {
			delete(outstanding, auctionID)
		}
	}
	return outstanding
}

// OutstandingByBidder is the same fold over one auction's rows, grouped by
// user. Close-time hold hygiene uses it to find bidders whose hold was never
// released.
func OutstandingByBidder(rows []*models.WalletTransaction) map[int64]int64 {
	outstanding := make(map[int64]int64)
	for _, row := range rows {
		switch row.Type {
		case models.TransactionBidBlocked:
			outstanding[row.UserID] += row.Amount
		case models.TransactionBidReleased, models.TransactionPaymentMade:
			outstanding[row.UserID] -= row.Amount
		}
	}
	for userID, amount := range outstanding {
		if amount <= 0 {
			delete(outstanding, userID)
		}
	}
	return outstanding
}
