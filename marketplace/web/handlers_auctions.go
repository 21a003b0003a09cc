package web

import (
	"strings"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/bidhaus/bidhaus/marketplace/economy/auction"
	"github.com/gofiber/fiber/v2"
)

type bidView struct {
	BidderID   int64     `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

func newBidView(b *models.AuctionBid) bidView {
	return bidView{
		BidderID:   b.BidderID,
		BidderName: b.BidderName,
		Amount:     b.Amount,
		CreatedAt:  b.CreatedAt,
	}
}

func auctionCode(c *fiber.Ctx) string {
	return strings.ToUpper(strings.TrimSpace(c.Params("code")))
}

func postAuction(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			SellerID      int64 `json:"seller_id"`
			AssetID       int64 `json:"asset_id"`
			ReservedPrice int64 `json:"reserved_price"`
			MinIncrement  int64 `json:"min_increment"`
			TotalMinutes  int64 `json:"total_minutes"`
		}
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "invalid request body", nil)
		}

		view, err := s.Market.PostAuction(c.Context(), auction.PostRequest{
			SellerID:      req.SellerID,
			AssetID:       req.AssetID,
			ReservedPrice: req.ReservedPrice,
			MinIncrement:  req.MinIncrement,
			TotalMinutes:  req.TotalMinutes,
		})
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendCreated(c, view, "auction posted")
	}
}

// listAuctions serves the live board. With ?q= it fuzzy-searches codes and
// titles instead of paging.
func listAuctions(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if query := c.Query("q"); strings.TrimSpace(query) != "" {
			views, err := s.Market.SearchLive(c.Context(), query)
			if err != nil {
				return SendDomainError(c, err)
			}
			return SendSuccess(c, views, "")
		}

		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}
		limit := c.QueryInt("limit", 20)
		if limit < 1 || limit > 100 {
			limit = 20
		}

		views, total, err := s.Market.ListLive(c.Context(), limit, (page-1)*limit)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendPaginated(c, views, NewPaginationInfo(page, limit, int64(total)), "")
	}
}

func getAuction(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := s.Market.GetAuction(c.Context(), auctionCode(c))
		if err != nil {
			return SendDomainError(c, err)
		}
		return SendSuccess(c, view, "")
	}
}

func listAuctionBids(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bids, err := s.Market.ListBids(c.Context(), auctionCode(c))
		if err != nil {
			return SendDomainError(c, err)
		}

		views := make([]bidView, 0, len(bids))
		for _, b := range bids {
			views = append(views, newBidView(b))
		}
		return SendSuccess(c, views, "")
	}
}

func placeBid(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			BidderID int64 `json:"bidder_id"`
			Amount   int64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "invalid request body", nil)
		}

		view, err := s.Market.PlaceBid(c.Context(), auctionCode(c), req.BidderID, req.Amount)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendSuccess(c, view, "bid accepted")
	}
}

func closeAuction(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			SellerID int64 `json:"seller_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "invalid request body", nil)
		}

		result, err := s.Market.CloseByCode(c.Context(), auctionCode(c), auction.TriggerManual, req.SellerID)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendSuccess(c, result, "auction closed")
	}
}
