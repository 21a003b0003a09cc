package web

import (
	"strconv"
	"strings"
	"time"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/gofiber/fiber/v2"
)

type walletView struct {
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	Balance       int64     `json:"balance"`
	BlockedAmount int64     `json:"blocked_amount"`
	Available     int64     `json:"available"`
	CreatedAt     time.Time `json:"created_at"`
}

func newWalletView(w *models.Wallet) walletView {
	return walletView{
		UserID:        w.UserID,
		Username:      w.Username,
		Balance:       w.Balance,
		BlockedAmount: w.BlockedAmount,
		Available:     w.Available(),
		CreatedAt:     w.CreatedAt,
	}
}

type transactionView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	AuctionID   int64     `json:"auction_id,omitempty"`
	AssetID     int64     `json:"asset_id,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newTransactionView(t *models.WalletTransaction) transactionView {
	return transactionView{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.Amount,
		AuctionID:   t.AuctionID,
		AssetID:     t.AssetID,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

func parseUserID(c *fiber.Ctx) (int64, bool) {
	userID, err := strconv.ParseInt(c.Params("userID"), 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func createWallet(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			UserID   int64  `json:"user_id"`
			Username string `json:"username"`
		}
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "invalid request body", nil)
		}
		if req.UserID <= 0 {
			return SendBadRequest(c, "user_id must be positive", map[string]string{"field": "user_id"})
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" {
			return SendBadRequest(c, "username must not be empty", map[string]string{"field": "username"})
		}

		wallet := &models.Wallet{
			UserID:   req.UserID,
			Username: req.Username,
		}
		if err := s.Wallets.Create(c.Context(), wallet); err != nil {
			return SendDomainError(c, err)
		}

		return SendCreated(c, newWalletView(wallet), "wallet created")
	}
}

func getWallet(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c)
		if !ok {
			return SendBadRequest(c, "invalid user id", nil)
		}

		wallet, err := s.Wallets.GetByUserID(c.Context(), userID)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendSuccess(c, newWalletView(wallet), "")
	}
}

func depositFunds(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c)
		if !ok {
			return SendBadRequest(c, "invalid user id", nil)
		}

		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "invalid request body", nil)
		}

		wallet, err := s.Ledger.Deposit(c.Context(), userID, req.Amount)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendSuccess(c, newWalletView(wallet), "deposit applied")
	}
}

func withdrawFunds(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c)
		if !ok {
			return SendBadRequest(c, "invalid user id", nil)
		}

		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return SendBadRequest(c, "invalid request body", nil)
		}

		wallet, err := s.Ledger.Withdraw(c.Context(), userID, req.Amount)
		if err != nil {
			return SendDomainError(c, err)
		}

		return SendSuccess(c, newWalletView(wallet), "withdrawal applied")
	}
}

func listWalletTransactions(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := parseUserID(c)
		if !ok {
			return SendBadRequest(c, "invalid user id", nil)
		}

		if _, err := s.Wallets.GetByUserID(c.Context(), userID); err != nil {
			return SendDomainError(c, err)
		}

		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}
		limit := c.QueryInt("limit", 20)
		if limit < 1 || limit > 100 {
			limit = 20
		}

		txns, total, err := s.Transactions.ListByUserPaged(c.Context(), userID, limit, (page-1)*limit)
		if err != nil {
			return SendDomainError(c, err)
		}

		views := make([]transactionView, 0, len(txns))
		for _, t := range txns {
			views = append(views, newTransactionView(t))
		}

		return SendPaginated(c, views, NewPaginationInfo(page, limit, int64(total)), "")
	}
}
