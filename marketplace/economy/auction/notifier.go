package auction

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Event names carried on the queue.
const (
	EventAuctionPosted = "auction.posted"
	EventBidPlaced     = "bid.placed"
	EventBidOutbid     = "bid.outbid"
	EventAuctionClosed = "auction.closed"
)

// marketEvent is the wire shape for every auction event. Fields that do not
// apply to an event are omitted.
type marketEvent struct {
	Event          string     `json:"event"`
	AuctionID      int64      `json:"auction_id"`
	Code           string     `json:"auction_code"`
	AssetID        int64      `json:"asset_id"`
	SellerID       int64      `json:"seller_id"`
	ReservedPrice  int64      `json:"reserved_price,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	BidderID       int64      `json:"bidder_id,omitempty"`
	Amount         int64      `json:"amount,omitempty"`
	NextCallPrice  int64      `json:"next_call_price,omitempty"`
	BidCount       int        `json:"bid_count,omitempty"`
	OutbidUserID   int64      `json:"outbid_user_id,omitempty"`
	RefundedAmount int64      `json:"refunded_amount,omitempty"`
	NewHighestBid  int64      `json:"new_highest_bid,omitempty"`
	WinnerID       int64      `json:"winner_id,omitempty"`
	FinalPrice     int64      `json:"final_price,omitempty"`
	Status         string     `json:"status,omitempty"`
	Trigger        string     `json:"trigger,omitempty"`
	At             time.Time  `json:"at"`
}

// Notifier publishes auction events to an AMQP queue, best effort. Publishing
// happens after the database commit and never fails the operation that
// produced the event; a broken connection is dropped and redialed on the next
// publish. A notifier with an empty URL swallows everything.
type Notifier struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewNotifier(url, queue string) *Notifier {
	return &Notifier{url: url, queue: queue}
}

func (n *Notifier) AuctionPosted(ctx context.Context, a *models.Auction) {
	end := a.EndTime
	n.publish(ctx, marketEvent{
		Event:         EventAuctionPosted,
		AuctionID:     a.ID,
		Code:          a.Code,
		AssetID:       a.AssetID,
		SellerID:      a.SellerID,
		ReservedPrice: a.ReservedPrice,
		EndTime:       &end,
		At:            time.Now(),
	})
}

// BidPlaced expects a to carry the post-bid state, so NextCallPrice and
// BidCount describe the auction as the new bidder left it.
func (n *Notifier) BidPlaced(ctx context.Context, a *models.Auction, bidderID, amount int64) {
	n.publish(ctx, marketEvent{
		Event:         EventBidPlaced,
		AuctionID:     a.ID,
		Code:          a.Code,
		AssetID:       a.AssetID,
		SellerID:      a.SellerID,
		BidderID:      bidderID,
		Amount:        amount,
		NextCallPrice: a.NextCallPrice(),
		BidCount:      a.BidCount,
		At:            time.Now(),
	})
}

func (n *Notifier) BidOutbid(ctx context.Context, a *models.Auction, outbidUserID, refundedAmount, newHighestBid int64) {
	n.publish(ctx, marketEvent{
		Event:          EventBidOutbid,
		AuctionID:      a.ID,
		Code:           a.Code,
		AssetID:        a.AssetID,
		SellerID:       a.SellerID,
		OutbidUserID:   outbidUserID,
		RefundedAmount: refundedAmount,
		NewHighestBid:  newHighestBid,
		At:             time.Now(),
	})
}

func (n *Notifier) AuctionClosed(ctx context.Context, a *models.Auction, status string, winnerID, finalPrice int64, trigger string) {
	n.publish(ctx, marketEvent{
		Event:      EventAuctionClosed,
		AuctionID:  a.ID,
		Code:       a.Code,
		AssetID:    a.AssetID,
		SellerID:   a.SellerID,
		WinnerID:   winnerID,
		FinalPrice: finalPrice,
		Status:     status,
		Trigger:    trigger,
		At:         time.Now(),
	})
}

func (n *Notifier) publish(ctx context.Context, event marketEvent) {
	if n == nil || n.url == "" {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal auction event",
			slog.String("type", "error"),
			slog.String("event", event.Event),
			slog.String("error", err.Error()),
		)
		return
	}

	ch, err := n.channel()
	if err != nil {
		slog.Warn("Auction event dropped, broker unreachable",
			slog.String("event", event.Event),
			slog.String("auction_code", event.Code),
			slog.String("error", err.Error()),
		)
		return
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.At,
			Body:         body,
		},
	)
	if err != nil {
		n.reset()
		slog.Warn("Auction event dropped, publish failed",
			slog.String("event", event.Event),
			slog.String("auction_code", event.Code),
			slog.String("error", err.Error()),
		)
	}
}

// channel returns the open channel, dialing and declaring the queue first if
// needed.
func (n *Notifier) channel() (*amqp.Channel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != nil {
		return n.ch, nil
	}

	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		n.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	n.conn = conn
	n.ch = ch
	return n.ch, nil
}

func (n *Notifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != nil {
		n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}

func (n *Notifier) Close() {
	n.reset()
}
