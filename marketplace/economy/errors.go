package economy

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Handlers map these onto HTTP statuses; everything
// that is not one of these types surfaces as an internal error.

// ValidationError reports a request parameter outside its allowed range.
type ValidationError struct {
	Field  string
	Reason string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", ve.Field, ve.Reason)
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (nfe *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %v not found", nfe.Entity, nfe.ID)
}

// ForbiddenError reports an operation the caller may not perform.
type ForbiddenError struct {
	Reason string
}

func (fe *ForbiddenError) Error() string {
	return fe.Reason
}

// ConflictError reports an operation that is inconsistent with current state.
type ConflictError struct {
	Reason string
}

func (ce *ConflictError) Error() string {
	return ce.Reason
}

// BidTooLowError reports a bid below the auction's current call price.
type BidTooLowError struct {
	AuctionCode   string
	MinAcceptable int64
}

func (be *BidTooLowError) Error() string {
	return fmt.Sprintf("bid on auction %s must be at least %d", be.AuctionCode, be.MinAcceptable)
}

// ExpiredError reports a bid or close attempt against an auction past its
// expiry instant.
type ExpiredError struct {
	AuctionCode string
}

func (ee *ExpiredError) Error() string {
	return fmt.Sprintf("auction %s has expired", ee.AuctionCode)
}

// InsufficientFundsError reports an available balance below the requested
// amount.
type InsufficientFundsError struct {
	UserID    int64
	Available int64
	Requested int64
}

func (ie *InsufficientFundsError) Error() string {
	return fmt.Sprintf("user %d has %d available, needs %d", ie.UserID, ie.Available, ie.Requested)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsBidTooLow(err error) bool {
	var be *BidTooLowError
	return errors.As(err, &be)
}

func IsExpired(err error) bool {
	var ee *ExpiredError
	return errors.As(err, &ee)
}

func IsInsufficientFunds(err error) bool {
	var ie *InsufficientFundsError
	return errors.As(err, &ie)
}
