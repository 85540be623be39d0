package models

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderForPickup       OrderStatus = "for_pickup"
	OrderPickedUp        OrderStatus = "picked_up"
	OrderFailedPickup    OrderStatus = "failed_pickup"
	OrderInTransit       OrderStatus = "in_transit"
	OrderOutForDelivery  OrderStatus = "out_for_delivery"
	OrderDelivered       OrderStatus = "delivered"
	OrderConfirmed       OrderStatus = "confirmed"
	OrderFailedDelivery  OrderStatus = "failed_delivery"
	OrderClaimed         OrderStatus = "claimed"
	OrderReturnInTransit OrderStatus = "return_in_transit"
	OrderReturned        OrderStatus = "returned"
	OrderFailedReturn    OrderStatus = "failed_return"
	OrderCanceled        OrderStatus = "canceled"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderPending:         {},
	OrderForPickup:       {},
	OrderPickedUp:        {},
	OrderFailedPickup:    {},
	OrderInTransit:       {},
	OrderOutForDelivery:  {},
	OrderDelivered:       {},
	OrderConfirmed:       {},
	OrderFailedDelivery:  {},
	OrderClaimed:         {},
	OrderReturnInTransit: {},
	OrderReturned:        {},
	OrderFailedReturn:    {},
	OrderCanceled:        {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// TAT maps each status to the timestamp it was first reached.
type TAT map[OrderStatus]time.Time

// Set records the timestamp for a status. Unknown statuses are rejected so a
// corrupted value never reaches storage.
func (t TAT) Set(status OrderStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("unknown order status %q", status)
	}

	t[status] = at
	return nil
}

// Order is one shipment request. Money fields are fixed at creation; status,
// active segment, attempt counters, and the TAT map mutate through the
// lifecycle.
type Order struct {
	ID                int64
	PartyID           int64
	CurrencyID        int32
	CurrencyCode      string
	ReferenceID       string
	PickupAddressID   *int64
	DeliveryAddressID int64
	TrackingNumber    string
	PaymentMethod     string
	PaymentProvider   string
	Status            OrderStatus
	BuyerName         string
	Email             *string
	ContactNumber     *string

	Subtotal   decimal.Decimal
	Shipping   *decimal.Decimal
	Tax        *decimal.Decimal
	Fee        *decimal.Decimal
	Insurance  *decimal.Decimal
	GrandTotal decimal.Decimal

	ShippingFee    decimal.Decimal
	InsuranceFee   decimal.Decimal
	TransactionFee decimal.Decimal

	Metadata  []byte
	IPAddress *string

	// Set when no courier route could be determined; the order is accepted
	// anyway and waits for manual handling.
	Flagged bool

	ActiveSegmentID  *int64
	PickupAttempts   int
	DeliveryAttempts int

	TAT             TAT
	StatusUpdatedAt time.Time
	CreatedAt       time.Time
}

// Payment methods with special handling. Other values pass through untouched.
const (
	PaymentMethodCOD = "cod"
)

// Order item types.
const (
	ItemProduct   = "product"
	ItemShipping  = "shipping"
	ItemTax       = "tax"
	ItemFee       = "fee"
	ItemInsurance = "insurance"
)

// OrderItem is one line of an order. Immutable after creation. Quantity is
// forced to 1 for non-product types.
type OrderItem struct {
	ID          int64
	OrderID     int64
	Type        string
	Description string
	Amount      decimal.Decimal
	Quantity    int
	Total       decimal.Decimal
	Metadata    []byte
}

// SegmentKind is the leg type of an order route.
type SegmentKind string

const (
	SegmentPickUp   SegmentKind = "pick_up"
	SegmentTransfer SegmentKind = "transfer"
	SegmentDelivery SegmentKind = "delivery"
)

// OrderSegment is one courier-handled leg of an order's route. Segments are
// created in a batch when routing succeeds and are deleted and recreated
// wholesale when the order is updated.
type OrderSegment struct {
	ID                int64
	OrderID           int64
	CourierPartyID    int64
	Kind              SegmentKind
	ShippingType      string
	ReferenceID       string
	BarcodeFormat     string
	PickupAddressID   int64
	DeliveryAddressID int64
	Status            OrderStatus
	CreatedAt         time.Time
}

// OrderEvent is the append-only trail of status changes against the order's
// active segment.
type OrderEvent struct {
	ID             uuid.UUID
	OrderSegmentID *int64
	Status         OrderStatus
	Remarks        *string
	CreatedAt      time.Time
}

// ChargeStatus is the collection state of an order's payment.
type ChargeStatus string

const (
	ChargePending  ChargeStatus = "pending"
	ChargeAssigned ChargeStatus = "assigned"
	ChargePaid     ChargeStatus = "paid"
	ChargeRemitted ChargeStatus = "remitted"
	ChargePaidOut  ChargeStatus = "paid_out"
	ChargeRefunded ChargeStatus = "refunded"
)

// Charge is the one-per-order COD/payment record.
type Charge struct {
	OrderID        int64
	Status         ChargeStatus
	PaymentMethod  string
	TotalAmount    decimal.Decimal
	TenderedAmount decimal.Decimal
	ChangeAmount   decimal.Decimal
	Remarks        *string
	CreatedAt      time.Time
}

// Letters used in tracking numbers. I and O are excluded so they are not
// confused with 1 and 0.
const trackingLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"

// TrackingNumber derives a human-facing number from a sequence id, in the
// format XXXX-XXXX-XXXX (e.g. 0000-0297-ACLZ): the id zero-padded to eight
// digits followed by four random letters, split into groups of four.
func TrackingNumber(id int64) string {
	letters := make([]byte, 4)
	for i := range letters {
		letters[i] = trackingLetters[rand.IntN(len(trackingLetters))]
	}

	raw := fmt.Sprintf("%08d%s", id, letters)

	groups := make([]string, 0, (len(raw)+3)/4)
	for i := 0; i < len(raw); i += 4 {
		end := min(i+4, len(raw))
		groups = append(groups, raw[i:end])
	}

	return strings.Join(groups, "-")
}
