package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
)

type ChargeRepo struct {
	db DBTX
}

const createCharge = `-- name: CreateCharge
INSERT INTO charges (order_id, status, payment_method, total_amount)
VALUES ($1, $2, $3, $4)
RETURNING order_id, status, payment_method, total_amount, tendered_amount, change_amount, remarks, created_at
`

func (r *ChargeRepo) Create(ctx context.Context, charge models.Charge) (models.Charge, error) {
	rows, _ := r.db.Query(ctx, createCharge,
		charge.OrderID, charge.Status, charge.PaymentMethod, charge.TotalAmount)
	created, err := pgx.CollectOneRow(rows, rowToCharge)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getCharge = `-- name: GetCharge
SELECT order_id, status, payment_method, total_amount, tendered_amount, change_amount, remarks, created_at
FROM charges
WHERE order_id = $1
`

func (r *ChargeRepo) Get(ctx context.Context, orderID int64) (models.Charge, error) {
	rows, _ := r.db.Query(ctx, getCharge, orderID)
	charge, err := pgx.CollectOneRow(rows, rowToCharge)

	switch {
	case err == nil:
		return charge, nil
	case errors.Is(err, pgx.ErrNoRows):
		return charge, apperrors.ErrChargeNotFound
	default:
		return charge, fmt.Errorf("db error: %w", err)
	}
}

const markChargePaid = `-- name: MarkChargePaid
UPDATE charges
SET status = 'paid', tendered_amount = $2, change_amount = $3, remarks = COALESCE($4, remarks)
WHERE order_id = $1
RETURNING order_id, status, payment_method, total_amount, tendered_amount, change_amount, remarks, created_at
`

func (r *ChargeRepo) MarkPaid(ctx context.Context, orderID int64, tendered decimal.Decimal, change decimal.Decimal, remarks *string) (models.Charge, error) {
	rows, _ := r.db.Query(ctx, markChargePaid, orderID, tendered, change, remarks)
	charge, err := pgx.CollectOneRow(rows, rowToCharge)

	switch {
	case err == nil:
		return charge, nil
	case errors.Is(err, pgx.ErrNoRows):
		return charge, apperrors.ErrChargeNotFound
	default:
		return charge, fmt.Errorf("db error: %w", err)
	}
}

func rowToCharge(row pgx.CollectableRow) (models.Charge, error) {
	var c models.Charge
	err := row.Scan(&c.OrderID, &c.Status, &c.PaymentMethod, &c.TotalAmount,
		&c.TenderedAmount, &c.ChangeAmount, &c.Remarks, &c.CreatedAt)
	return c, err
}
