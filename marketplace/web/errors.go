package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bidhaus/bidhaus/marketplace/economy"
	"github.com/gofiber/fiber/v2"
)

// classifyError maps the economy error taxonomy onto a status, a stable error
// code and optional details. Anything outside the taxonomy is an internal
// error and keeps its message out of the response.
func classifyError(err error) (int, string, map[string]string) {
	var (
		validationErr   *economy.ValidationError
		notFoundErr     *economy.NotFoundError
		forbiddenErr    *economy.ForbiddenError
		conflictErr     *economy.ConflictError
		bidTooLowErr    *economy.BidTooLowError
		expiredErr      *economy.ExpiredError
		insufficientErr *economy.InsufficientFundsError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "VALIDATION_ERROR", map[string]string{"field": validationErr.Field}
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "NOT_FOUND", nil
	case errors.As(err, &forbiddenErr):
		return http.StatusForbidden, "FORBIDDEN", nil
	case errors.As(err, &bidTooLowErr):
		return http.StatusConflict, "BID_TOO_LOW", map[string]string{
			"min_acceptable": strconv.FormatInt(bidTooLowErr.MinAcceptable, 10),
		}
	case errors.As(err, &expiredErr):
		return http.StatusConflict, "AUCTION_EXPIRED", nil
	case errors.As(err, &conflictErr):
		return http.StatusConflict, "CONFLICT", nil
	case errors.As(err, &insufficientErr):
		return http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", map[string]string{
			"available": strconv.FormatInt(insufficientErr.Available, 10),
		}
	default:
		return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", nil
	}
}

// SendDomainError renders a domain error through the envelope.
func SendDomainError(c *fiber.Ctx, err error) error {
	status, code, details := classifyError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed",
			slog.String("type", "error"),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		message = "internal server error"
	}

	return SendError(c, status, code, message, details)
}
