package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrPartyNotFound   = errors.New("party not found")
	ErrUnknownCurrency = errors.New("currency code is invalid")
	ErrUnknownCountry  = errors.New("country code is invalid")

	ErrInvalidAmount     = errors.New("transfer amount should be greater than 0")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrSameWallet        = errors.New("source and destination wallets must be different")
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	ErrMaxLimitExceeded  = errors.New("max limit exceeded for transfer")

	ErrOrderNotFound   = errors.New("order not found")
	ErrTotalMismatch   = errors.New("grand total does not match the order item total")
	ErrNoProductItem   = errors.New("at least one order item of type product is required")
	ErrInvalidItemType = errors.New("order item type is not valid")
	ErrChargeNotFound  = errors.New("order has no charge")
	ErrNoRouteFound    = errors.New("no courier route found")
	ErrSegmentNotFound = errors.New("order segment not found")
	ErrNoCouriers      = errors.New("there are no available couriers")

	ErrAlreadyClaimed     = errors.New("order has already been claimed")
	ErrOrderNotDelivered  = errors.New("order has not yet been delivered")
	ErrClaimWindowExpired = errors.New("claim window has expired")
	ErrAmountExceedsTotal = errors.New("claim amount exceeds the order total")
	ErrClaimNotFound      = errors.New("claim not found")
	ErrRemarksRequired    = errors.New("remarks are required")
)

// ValidationError carries per-field messages so callers can render
// field-specific responses instead of a generic business error.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)

	return "validation failed: " + strings.Join(parts, "; ")
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}
