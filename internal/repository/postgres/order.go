package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
)

type OrderRepo struct {
	db DBTX
}

// The id is drawn before the insert so the tracking number, derived from it,
// can be stored in the same row.
const nextOrderID = `-- name: NextOrderID
SELECT nextval('orders_id_seq')
`

func (r *OrderRepo) NextID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, nextOrderID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return id, nil
}

const createOrder = `-- name: CreateOrder
INSERT INTO orders (id, party_id, currency_id, reference_id, pickup_address_id, delivery_address_id,
                    tracking_number, payment_method, payment_provider, status, buyer_name, email, contact_number,
                    subtotal, shipping, tax, fee, insurance, grand_total,
                    shipping_fee, insurance_fee, transaction_fee,
                    metadata, ip_address, flagged, tat, status_updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
RETURNING id, party_id, currency_id, reference_id, pickup_address_id, delivery_address_id,
          tracking_number, payment_method, payment_provider, status, buyer_name, email, contact_number,
          subtotal, shipping, tax, fee, insurance, grand_total,
          shipping_fee, insurance_fee, transaction_fee,
          metadata, ip_address, flagged, active_segment_id, pickup_attempts, delivery_attempts,
          tat, status_updated_at, created_at
`

func (r *OrderRepo) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	tat, err := json.Marshal(order.TAT)
	if err != nil {
		return models.Order{}, fmt.Errorf("marshal tat: %w", err)
	}

	rows, _ := r.db.Query(ctx, createOrder,
		order.ID, order.PartyID, order.CurrencyID, order.ReferenceID,
		order.PickupAddressID, order.DeliveryAddressID,
		order.TrackingNumber, order.PaymentMethod, order.PaymentProvider, order.Status,
		order.BuyerName, order.Email, order.ContactNumber,
		order.Subtotal, order.Shipping, order.Tax, order.Fee, order.Insurance, order.GrandTotal,
		order.ShippingFee, order.InsuranceFee, order.TransactionFee,
		order.Metadata, order.IPAddress, order.Flagged, tat, order.StatusUpdatedAt)
	created, err := pgx.CollectOneRow(rows, rowToOrder)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	created.CurrencyCode = order.CurrencyCode
	return created, nil
}

const getOrder = `-- name: GetOrder
SELECT o.id, o.party_id, o.currency_id, o.reference_id, o.pickup_address_id, o.delivery_address_id,
       o.tracking_number, o.payment_method, o.payment_provider, o.status, o.buyer_name, o.email, o.contact_number,
       o.subtotal, o.shipping, o.tax, o.fee, o.insurance, o.grand_total,
       o.shipping_fee, o.insurance_fee, o.transaction_fee,
       o.metadata, o.ip_address, o.flagged, o.active_segment_id, o.pickup_attempts, o.delivery_attempts,
       o.tat, o.status_updated_at, o.created_at,
       c.code
FROM orders o
JOIN currencies c ON c.id = o.currency_id
WHERE o.id = $1
`

func (r *OrderRepo) GetOrder(ctx context.Context, orderID int64) (models.Order, error) {
	rows, _ := r.db.Query(ctx, getOrder, orderID)
	order, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Order, error) {
		return scanOrder(row, true)
	})

	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, pgx.ErrNoRows):
		return order, apperrors.ErrOrderNotFound
	default:
		return order, fmt.Errorf("db error: %w", err)
	}
}

const updateOrderStatus = `-- name: UpdateOrderStatus
UPDATE orders SET status = $2, tat = $3, status_updated_at = now()
WHERE id = $1
`

func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus, tat models.TAT) error {
	rawTAT, err := json.Marshal(tat)
	if err != nil {
		return fmt.Errorf("marshal tat: %w", err)
	}

	tag, err := r.db.Exec(ctx, updateOrderStatus, orderID, status, rawTAT)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrOrderNotFound
	}

	return nil
}

const updateOrderDetails = `-- name: UpdateOrderDetails
UPDATE orders
SET pickup_address_id = $2, delivery_address_id = $3, payment_method = $4, payment_provider = $5,
    buyer_name = $6, email = $7, contact_number = $8, metadata = $9, flagged = $10
WHERE id = $1
`

func (r *OrderRepo) UpdateDetails(ctx context.Context, order models.Order) error {
	tag, err := r.db.Exec(ctx, updateOrderDetails,
		order.ID, order.PickupAddressID, order.DeliveryAddressID,
		order.PaymentMethod, order.PaymentProvider,
		order.BuyerName, order.Email, order.ContactNumber, order.Metadata, order.Flagged)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrOrderNotFound
	}

	return nil
}

const setActiveSegment = `-- name: SetActiveSegment
UPDATE orders SET active_segment_id = $2
WHERE id = $1
`

func (r *OrderRepo) SetActiveSegment(ctx context.Context, orderID int64, segmentID *int64) error {
	tag, err := r.db.Exec(ctx, setActiveSegment, orderID, segmentID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrOrderNotFound
	}

	return nil
}

const setOrderFlagged = `-- name: SetOrderFlagged
UPDATE orders SET flagged = true
WHERE id = $1
`

func (r *OrderRepo) SetFlagged(ctx context.Context, orderID int64) error {
	tag, err := r.db.Exec(ctx, setOrderFlagged, orderID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrOrderNotFound
	}

	return nil
}

const incrementPickupAttempts = `-- name: IncrementPickupAttempts
UPDATE orders SET pickup_attempts = pickup_attempts + 1
WHERE id = $1
RETURNING pickup_attempts
`

func (r *OrderRepo) IncrementPickupAttempts(ctx context.Context, orderID int64) (int, error) {
	return r.incrementAttempts(ctx, incrementPickupAttempts, orderID)
}

const incrementDeliveryAttempts = `-- name: IncrementDeliveryAttempts
UPDATE orders SET delivery_attempts = delivery_attempts + 1
WHERE id = $1
RETURNING delivery_attempts
`

func (r *OrderRepo) IncrementDeliveryAttempts(ctx context.Context, orderID int64) (int, error) {
	return r.incrementAttempts(ctx, incrementDeliveryAttempts, orderID)
}

func (r *OrderRepo) incrementAttempts(ctx context.Context, query string, orderID int64) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx, query, orderID).Scan(&attempts)

	switch {
	case err == nil:
		return attempts, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, apperrors.ErrOrderNotFound
	default:
		return 0, fmt.Errorf("db error: %w", err)
	}
}

const createOrderItem = `-- name: CreateOrderItem
INSERT INTO order_items (order_id, type, description, amount, quantity, total, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, type, description, amount, quantity, total, metadata
`

func (r *OrderRepo) CreateItem(ctx context.Context, item models.OrderItem) (models.OrderItem, error) {
	rows, _ := r.db.Query(ctx, createOrderItem,
		item.OrderID, item.Type, item.Description, item.Amount, item.Quantity, item.Total, item.Metadata)
	created, err := pgx.CollectOneRow(rows, rowToOrderItem)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listOrderItems = `-- name: ListOrderItems
SELECT id, order_id, type, description, amount, quantity, total, metadata
FROM order_items
WHERE order_id = $1
ORDER BY id
`

func (r *OrderRepo) ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, _ := r.db.Query(ctx, listOrderItems, orderID)
	items, err := pgx.CollectRows(rows, rowToOrderItem)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

const createOrderSegment = `-- name: CreateOrderSegment
INSERT INTO order_segments (order_id, courier_party_id, type, shipping_type, reference_id,
                            barcode_format, pickup_address_id, delivery_address_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, order_id, courier_party_id, type, shipping_type, reference_id,
          barcode_format, pickup_address_id, delivery_address_id, status, created_at
`

func (r *OrderRepo) CreateSegment(ctx context.Context, segment models.OrderSegment) (models.OrderSegment, error) {
	rows, _ := r.db.Query(ctx, createOrderSegment,
		segment.OrderID, segment.CourierPartyID, segment.Kind, segment.ShippingType,
		segment.ReferenceID, segment.BarcodeFormat,
		segment.PickupAddressID, segment.DeliveryAddressID, segment.Status)
	created, err := pgx.CollectOneRow(rows, rowToOrderSegment)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listOrderSegments = `-- name: ListOrderSegments
SELECT id, order_id, courier_party_id, type, shipping_type, reference_id,
       barcode_format, pickup_address_id, delivery_address_id, status, created_at
FROM order_segments
WHERE order_id = $1
ORDER BY id
`

func (r *OrderRepo) ListSegments(ctx context.Context, orderID int64) ([]models.OrderSegment, error) {
	rows, _ := r.db.Query(ctx, listOrderSegments, orderID)
	segments, err := pgx.CollectRows(rows, rowToOrderSegment)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return segments, nil
}

const nextOrderSegment = `-- name: NextOrderSegment
SELECT id, order_id, courier_party_id, type, shipping_type, reference_id,
       barcode_format, pickup_address_id, delivery_address_id, status, created_at
FROM order_segments
WHERE order_id = $1 AND id > $2
ORDER BY id
LIMIT 1
`

func (r *OrderRepo) NextSegment(ctx context.Context, orderID int64, afterSegmentID int64) (models.OrderSegment, error) {
	rows, _ := r.db.Query(ctx, nextOrderSegment, orderID, afterSegmentID)
	segment, err := pgx.CollectOneRow(rows, rowToOrderSegment)

	switch {
	case err == nil:
		return segment, nil
	case errors.Is(err, pgx.ErrNoRows):
		return segment, apperrors.ErrSegmentNotFound
	default:
		return segment, fmt.Errorf("db error: %w", err)
	}
}

const deleteSegmentEvents = `-- name: DeleteSegmentEvents
DELETE FROM order_events
WHERE order_segment_id IN (SELECT id FROM order_segments WHERE order_id = $1)
`

const deleteOrderSegments = `-- name: DeleteOrderSegments
DELETE FROM order_segments
WHERE order_id = $1
`

// Events go first so the segment foreign key never dangles. The caller clears
// active_segment_id before invoking this.
func (r *OrderRepo) DeleteSegments(ctx context.Context, orderID int64) error {
	if _, err := r.db.Exec(ctx, deleteSegmentEvents, orderID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if _, err := r.db.Exec(ctx, deleteOrderSegments, orderID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const createOrderEvent = `-- name: CreateOrderEvent
INSERT INTO order_events (id, order_segment_id, status, remarks, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_segment_id, status, remarks, created_at
`

func (r *OrderRepo) CreateEvent(ctx context.Context, event models.OrderEvent) (models.OrderEvent, error) {
	rows, _ := r.db.Query(ctx, createOrderEvent,
		event.ID, event.OrderSegmentID, event.Status, event.Remarks, event.CreatedAt)
	created, err := pgx.CollectOneRow(rows, rowToOrderEvent)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listOrderEvents = `-- name: ListOrderEvents
SELECT id, order_segment_id, status, remarks, created_at
FROM order_events
WHERE order_segment_id = $1
ORDER BY created_at
`

func (r *OrderRepo) ListEvents(ctx context.Context, segmentID int64) ([]models.OrderEvent, error) {
	rows, _ := r.db.Query(ctx, listOrderEvents, segmentID)
	events, err := pgx.CollectRows(rows, rowToOrderEvent)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return events, nil
}

func rowToOrder(row pgx.CollectableRow) (models.Order, error) {
	return scanOrder(row, false)
}

func scanOrder(row pgx.CollectableRow, withCurrencyCode bool) (models.Order, error) {
	var o models.Order
	var rawTAT []byte

	dest := []any{
		&o.ID, &o.PartyID, &o.CurrencyID, &o.ReferenceID, &o.PickupAddressID, &o.DeliveryAddressID,
		&o.TrackingNumber, &o.PaymentMethod, &o.PaymentProvider, &o.Status,
		&o.BuyerName, &o.Email, &o.ContactNumber,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Fee, &o.Insurance, &o.GrandTotal,
		&o.ShippingFee, &o.InsuranceFee, &o.TransactionFee,
		&o.Metadata, &o.IPAddress, &o.Flagged, &o.ActiveSegmentID,
		&o.PickupAttempts, &o.DeliveryAttempts,
		&rawTAT, &o.StatusUpdatedAt, &o.CreatedAt,
	}
	if withCurrencyCode {
		dest = append(dest, &o.CurrencyCode)
	}

	if err := row.Scan(dest...); err != nil {
		return o, err
	}

	o.TAT = models.TAT{}
	if err := json.Unmarshal(rawTAT, &o.TAT); err != nil {
		return o, fmt.Errorf("unmarshal tat: %w", err)
	}

	return o, nil
}

func rowToOrderItem(row pgx.CollectableRow) (models.OrderItem, error) {
	var i models.OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.Type, &i.Description, &i.Amount, &i.Quantity, &i.Total, &i.Metadata)
	return i, err
}

func rowToOrderSegment(row pgx.CollectableRow) (models.OrderSegment, error) {
	var s models.OrderSegment
	err := row.Scan(&s.ID, &s.OrderID, &s.CourierPartyID, &s.Kind, &s.ShippingType, &s.ReferenceID,
		&s.BarcodeFormat, &s.PickupAddressID, &s.DeliveryAddressID, &s.Status, &s.CreatedAt)
	return s, err
}

func rowToOrderEvent(row pgx.CollectableRow) (models.OrderEvent, error) {
	var e models.OrderEvent
	err := row.Scan(&e.ID, &e.OrderSegmentID, &e.Status, &e.Remarks, &e.CreatedAt)
	return e, err
}
