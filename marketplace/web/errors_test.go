package web

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bidhaus/bidhaus/marketplace/economy"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation",
			err:        &economy.ValidationError{Field: "amount", Reason: "must be positive"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "not found",
			err:        &economy.NotFoundError{Entity: "auction", ID: "Q7PZ"},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "forbidden",
			err:        &economy.ForbiddenError{Reason: "sellers cannot bid on their own auction"},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "bid too low",
			err:        &economy.BidTooLowError{AuctionCode: "Q7PZ", MinAcceptable: 110},
			wantStatus: http.StatusConflict,
			wantCode:   "BID_TOO_LOW",
		},
		{
			name:       "expired",
			err:        &economy.ExpiredError{AuctionCode: "Q7PZ"},
			wantStatus: http.StatusConflict,
			wantCode:   "AUCTION_EXPIRED",
		},
		{
			name:       "conflict",
			err:        &economy.ConflictError{Reason: "asset already listed"},
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "insufficient funds",
			err:        &economy.InsufficientFundsError{UserID: 2, Available: 90, Requested: 110},
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "INSUFFICIENT_FUNDS",
		},
		{
			name:       "plain error",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
		},
		{
			name:       "wrapped taxonomy error",
			err:        fmt.Errorf("placing bid: %w", &economy.ExpiredError{AuctionCode: "Q7PZ"}),
			wantStatus: http.StatusConflict,
			wantCode:   "AUCTION_EXPIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := classifyError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestClassifyErrorDetails(t *testing.T) {
	_, _, details := classifyError(&economy.BidTooLowError{AuctionCode: "Q7PZ", MinAcceptable: 110})
	assert.Equal(t, map[string]string{"min_acceptable": "110"}, details)

	_, _, details = classifyError(&economy.InsufficientFundsError{UserID: 2, Available: 90, Requested: 110})
	assert.Equal(t, map[string]string{"available": "90"}, details)

	_, _, details = classifyError(&economy.ValidationError{Field: "amount", Reason: "must be positive"})
	assert.Equal(t, map[string]string{"field": "amount"}, details)

	_, _, details = classifyError(errors.New("boom"))
	assert.Nil(t, details)
}
