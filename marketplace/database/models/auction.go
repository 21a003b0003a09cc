package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	AuctionStatusLive          AuctionStatus = "live"
	AuctionStatusExpired       AuctionStatus = "expired"
	AuctionStatusExpiredNoBids AuctionStatus = "expired_no_bids"
)

// IsTerminal reports whether the status is final. Terminal auctions never
// change again; closing one a second time is a no-op.
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionStatusExpired || s == AuctionStatusExpiredNoBids
}

var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionStatusLive: {AuctionStatusExpired, AuctionStatusExpiredNoBids},
}

func (s AuctionStatus) CanTransitionTo(target AuctionStatus) bool {
	for _, next := range auctionTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Auction posting bounds, in base currency units and minutes.
const (
	MinReservedPrice  = 1
	MaxReservedPrice  = 9999
	MinBidIncrement   = 1
	MaxBidIncrement   = 999
	MinAuctionMinutes = 1
	MaxAuctionMinutes = 10080
)

// Auction is one listing of a single asset. CurrentHighestBidderID is zero
// exactly while CurrentHighestBid is zero; user IDs are always positive.
type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID            int64  `bun:"id,pk,autoincrement"`
	Code          string `bun:"code,notnull,unique"`
	AssetID       int64  `bun:"asset_id,notnull"`
	SellerID      int64  `bun:"seller_id,notnull"`
	ReservedPrice int64  `bun:"reserved_price,notnull"`
	MinIncrement  int64  `bun:"min_increment,notnull"`
	TotalMinutes  int64  `bun:"total_minutes,notnull"`

	CurrentHighestBid      int64         `bun:"current_highest_bid,notnull,default:0"`
	CurrentHighestBidderID int64         `bun:"current_highest_bidder_id,notnull,default:0"`
	Status                 AuctionStatus `bun:"status,notnull"`

	StartTime time.Time `bun:"start_time,notnull"`
	EndTime   time.Time `bun:"end_time,notnull"`

	LastBidTime time.Time `bun:"last_bid_time"`
	BidCount    int       `bun:"bid_count,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// HasBids reports whether at least one bid has been accepted.
func (a *Auction) HasBids() bool {
	return a.CurrentHighestBid > 0
}

// NextCallPrice is the lowest acceptable next bid: the reserved price while
// there are no bids, afterwards the highest bid plus the increment.
func (a *Auction) NextCallPrice() int64 {
	if !a.HasBids() {
		return a.ReservedPrice
	}
	return a.CurrentHighestBid + a.MinIncrement
}

// IsExpired reports whether the auction is past its expiry instant. The
// instant itself counts as expired.
func (a *Auction) IsExpired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// RemainingMinutes returns whole minutes until expiry, floored at zero.
func (a *Auction) RemainingMinutes(now time.Time) int64 {
	if a.IsExpired(now) {
		return 0
	}
	return int64(a.EndTime.Sub(now).Minutes())
}

// AuctionBid is one row of the append-only bid history. Amounts within one
// auction are strictly increasing.
type AuctionBid struct {
	bun.BaseModel `bun:"table:auction_bids,alias:ab"`

	ID         int64  `bun:"id,pk,autoincrement"`
	AuctionID  int64  `bun:"auction_id,notnull"`
	BidderID   int64  `bun:"bidder_id,notnull"`
	BidderName string `bun:"bidder_name,notnull"`
	Amount     int64  `bun:"amount,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
