package web

import (
	"strconv"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/gofiber/fiber/v2"
)

type assetView struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func newAssetView(a *models.Asset) assetView {
	return assetView{
		ID:          a.ID,
		OwnerID:     a.OwnerID,
		Title:       a.Title,
		Description: a.Description,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
	}
}

func parseAssetID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func createAsset(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			OwnerID     int64  `json:"owner_id"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "invalid request body", nil)
		}

		asset, err := s.Market.CreateAsset(c.Context(), req.OwnerID, req.Title, req.Description)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendCreated(c, newAssetView(asset), "asset created")
	}
}

func openAsset(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assetID, ok := parseAssetID(c)
		if !ok {
			return SendBadRequest(c, "invalid asset id", nil)
		}

		var req struct {
			OwnerID int64 `json:"owner_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "invalid request body", nil)
		}

		asset, err := s.Market.OpenAsset(c.Context(), assetID, req.OwnerID)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendSuccess(c, newAssetView(asset), "asset opened to auction")
	}
}

func getAsset(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assetID, ok := parseAssetID(c)
		if !ok {
			return SendBadRequest(c, "invalid asset id", nil)
		}

		asset, err := s.Market.GetAsset(c.Context(), assetID)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendSuccess(c, newAssetView(asset), "")
	}
}
