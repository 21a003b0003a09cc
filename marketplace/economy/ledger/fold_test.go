package ledger

import (
	"testing"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/stretchr/testify/assert"
)

func row(typ models.TransactionType, amount, auctionID int64) *models.WalletTransaction {
	return &models.WalletTransaction{
		UserID:    1,
		Type:      typ,
		Amount:    amount,
		AuctionID: auctionID,
	}
}

func TestBalanceFromLog(t *testing.T) {
	tests := []struct {
		name string
		rows []*models.WalletTransaction
		want int64
	}{
		{
			name: "empty log",
			rows: nil,
			want: 0,
		},
		{
			name: "deposits and withdrawals",
			rows: []*models.WalletTransaction{
				row(models.TransactionDeposit, 1000, 0),
				row(models.TransactionWithdrawal, 300, 0),
				row(models.TransactionDeposit, 50, 0),
			},
			want: 750,
		},
		{
			name: "settlement rows move the balance",
			rows: []*models.WalletTransaction{
				row(models.TransactionDeposit, 1000, 0),
				row(models.TransactionPaymentMade, 110, 3),
				row(models.TransactionPaymentReceived, 40, 9),
			},
			want: 930,
		},
		{
			name: "block and release rows are hold movements only",
			rows: []*models.WalletTransaction{
				row(models.TransactionDeposit, 500, 0),
				row(models.TransactionBidBlocked, 200, 3),
				row(models.TransactionBidReleased, 200, 3),
				row(models.TransactionBidBlocked, 150, 4),
			},
			want: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BalanceFromLog(tt.rows))
		})
	}
}

func TestOutstandingByAuction(t *testing.T) {
	rows := []*models.WalletTransaction{
		// auction 3: blocked then fully released
		row(models.TransactionBidBlocked, 100, 3),
		row(models.TransactionBidReleased, 100, 3),
		// auction 4: blocked then outbid at a higher amount
		row(models.TransactionBidBlocked, 100, 4),
		row(models.TransactionBidReleased, 100, 4),
		row(models.TransactionBidBlocked, 130, 4),
		// auction 5: blocked then settled
		row(models.TransactionBidBlocked, 200, 5),
		row(models.TransactionPaymentMade, 200, 5),
		// balance rows never contribute
		row(models.TransactionDeposit, 9999, 0),
	}

	got := OutstandingByAuction(rows)

	assert.Equal(t, map[int64]int64{4: 130}, got)
}

func TestOutstandingByAuctionEmptyLog(t *testing.T) {
	assert.Empty(t, OutstandingByAuction(nil))
}

func TestOutstandingByBidder(t *testing.T) {
	rows := []*models.WalletTransaction{
		// bidder 1 was outbid and released
		{UserID: 1, Type: models.TransactionBidBlocked, Amount: 100, AuctionID: 7},
		{UserID: 1, Type: models.TransactionBidReleased, Amount: 100, AuctionID: 7},
		// bidder 2 won and settled
		{UserID: 2, Type: models.TransactionBidBlocked, Amount: 110, AuctionID: 7},
		{UserID: 2, Type: models.TransactionPaymentMade, Amount: 110, AuctionID: 7},
		// bidder 3 holds a stray un-released block
		{UserID: 3, Type: models.TransactionBidBlocked, Amount: 120, AuctionID: 7},
	}

	got := OutstandingByBidder(rows)

	assert.Equal(t, map[int64]int64{3: 120}, got)
}
