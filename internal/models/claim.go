package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus is the dispute lifecycle state.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimVerified ClaimStatus = "verified"
	ClaimSettled  ClaimStatus = "settled"
	ClaimDeclined ClaimStatus = "declined"
)

// ClaimStamp records when a claim reached a status and who moved it there.
type ClaimStamp struct {
	Date      time.Time         `json:"date"`
	CreatedBy map[string]string `json:"created_by,omitempty"`
}

// ClaimTAT maps each claim status to its stamp.
type ClaimTAT map[ClaimStatus]ClaimStamp

// Claim is the one-per-order post-delivery dispute. The fee flags mark which
// order fees are refunded on top of the claimed amount when the claim is
// verified.
type Claim struct {
	OrderID       int64
	RequestNumber string
	ReferenceID   *string
	Status        ClaimStatus
	Reason        string
	Amount        decimal.Decimal

	ShippingFeeFlag    bool
	InsuranceFeeFlag   bool
	TransactionFeeFlag bool

	Assets  []byte
	Remarks *string

	TAT       ClaimTAT
	CreatedAt time.Time
}

// RequestNumber derives a claim request number from the order id, using the
// same scheme as order tracking numbers.
func RequestNumber(orderID int64) string {
	return TrackingNumber(orderID)
}
