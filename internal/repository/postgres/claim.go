package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
)

type ClaimRepo struct {
	db DBTX
}

const createClaim = `-- name: CreateClaim
INSERT INTO claims (order_id, request_number, status, reason, amount,
                    shipping_fee_flag, insurance_fee_flag, transaction_fee_flag,
                    assets, remarks, tat)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING order_id, request_number, reference_id, status, reason, amount,
          shipping_fee_flag, insurance_fee_flag, transaction_fee_flag,
          assets, remarks, tat, created_at
`

func (r *ClaimRepo) Create(ctx context.Context, claim models.Claim) (models.Claim, error) {
	tat, err := json.Marshal(claim.TAT)
	if err != nil {
		return models.Claim{}, fmt.Errorf("marshal tat: %w", err)
	}

	rows, _ := r.db.Query(ctx, createClaim,
		claim.OrderID, claim.RequestNumber, claim.Status, claim.Reason, claim.Amount,
		claim.ShippingFeeFlag, claim.InsuranceFeeFlag, claim.TransactionFeeFlag,
		claim.Assets, claim.Remarks, tat)
	created, err := pgx.CollectOneRow(rows, rowToClaim)

	var pgErr *pgconn.PgError

	switch {
	case err == nil:
		return created, nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return created, apperrors.ErrAlreadyClaimed
	default:
		return created, fmt.Errorf("db error: %w", err)
	}
}

const getClaim = `-- name: GetClaim
SELECT order_id, request_number, reference_id, status, reason, amount,
       shipping_fee_flag, insurance_fee_flag, transaction_fee_flag,
       assets, remarks, tat, created_at
FROM claims
WHERE order_id = $1
`

func (r *ClaimRepo) Get(ctx context.Context, orderID int64) (models.Claim, error) {
	rows, _ := r.db.Query(ctx, getClaim, orderID)
	claim, err := pgx.CollectOneRow(rows, rowToClaim)

	switch {
	case err == nil:
		return claim, nil
	case errors.Is(err, pgx.ErrNoRows):
		return claim, apperrors.ErrClaimNotFound
	default:
		return claim, fmt.Errorf("db error: %w", err)
	}
}

const updateClaimStatus = `-- name: UpdateClaimStatus
UPDATE claims SET status = $2, remarks = COALESCE($3, remarks), tat = $4
WHERE order_id = $1
`

func (r *ClaimRepo) UpdateStatus(ctx context.Context, orderID int64, status models.ClaimStatus, remarks *string, tat models.ClaimTAT) error {
	rawTAT, err := json.Marshal(tat)
	if err != nil {
		return fmt.Errorf("marshal tat: %w", err)
	}

	tag, err := r.db.Exec(ctx, updateClaimStatus, orderID, status, remarks, rawTAT)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClaimNotFound
	}

	return nil
}

const setClaimReference = `-- name: SetClaimReference
UPDATE claims SET reference_id = $2
WHERE order_id = $1
`

func (r *ClaimRepo) SetReference(ctx context.Context, orderID int64, referenceID string) error {
	tag, err := r.db.Exec(ctx, setClaimReference, orderID, referenceID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClaimNotFound
	}

	return nil
}

func rowToClaim(row pgx.CollectableRow) (models.Claim, error) {
	var c models.Claim
	var rawTAT []byte

	err := row.Scan(&c.OrderID, &c.RequestNumber, &c.ReferenceID, &c.Status, &c.Reason, &c.Amount,
		&c.ShippingFeeFlag, &c.InsuranceFeeFlag, &c.TransactionFeeFlag,
		&c.Assets, &c.Remarks, &rawTAT, &c.CreatedAt)
	if err != nil {
		return c, err
	}

	c.TAT = models.ClaimTAT{}
	if err := json.Unmarshal(rawTAT, &c.TAT); err != nil {
		return c, fmt.Errorf("unmarshal tat: %w", err)
	}

	return c, nil
}
