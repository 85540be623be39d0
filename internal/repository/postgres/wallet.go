package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
)

type WalletRepo struct {
	db DBTX
}

const createWallet = `-- name: CreateWallet
INSERT INTO wallets (party_id, type, currency_id, amount, max_limit, credit_limit, status)
VALUES ($1, $2, $3, $4, $5, $6, 1)
RETURNING id, party_id, type, currency_id, amount, max_limit, credit_limit, status, created_at
`

func (r *WalletRepo) CreateWallet(ctx context.Context, wallet models.Wallet) (models.Wallet, error) {
	rows, _ := r.db.Query(ctx, createWallet,
		wallet.PartyID, wallet.Kind, wallet.CurrencyID, wallet.Amount, wallet.MaxLimit, wallet.CreditLimit)
	created, err := pgx.CollectOneRow(rows, rowToWallet)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const findWallet = `-- name: FindWallet
SELECT w.id, w.party_id, w.type, w.currency_id, w.amount, w.max_limit, w.credit_limit, w.status, w.created_at
FROM wallets w
JOIN parties p ON p.id = w.party_id
WHERE w.party_id = $1 AND w.type = $2 AND w.currency_id = $3 AND w.status = 1 AND p.status = 1
`

func (r *WalletRepo) Find(ctx context.Context, partyID int64, kind models.WalletKind, currencyID int32) (models.Wallet, error) {
	rows, _ := r.db.Query(ctx, findWallet, partyID, kind, currencyID)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

// Rows come back ordered by id, and FOR UPDATE grabs the locks in that order.
// Every transfer locks its pair the same way, so two transfers touching the
// same wallets in opposite directions cannot deadlock.
const lockWallets = `-- name: LockWallets
SELECT id, party_id, type, currency_id, amount, max_limit, credit_limit, status, created_at
FROM wallets
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE
`

func (r *WalletRepo) LockForTransfer(ctx context.Context, ids []int64) ([]models.Wallet, error) {
	rows, _ := r.db.Query(ctx, lockWallets, ids)
	wallets, err := pgx.CollectRows(rows, rowToWallet)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(wallets) != len(ids) {
		return nil, apperrors.ErrWalletNotFound
	}

	return wallets, nil
}

const setWalletAmount = `-- name: SetWalletAmount
UPDATE wallets SET amount = $2
WHERE id = $1
`

func (r *WalletRepo) SetAmount(ctx context.Context, walletID int64, amount decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, setWalletAmount, walletID, amount)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrWalletNotFound
	}

	return nil
}

const createTransfer = `-- name: CreateTransfer
INSERT INTO transfers (id, from_wallet_id, to_wallet_id, type, amount, details, order_id, ip_address, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, from_wallet_id, to_wallet_id, type, amount, details, order_id, ip_address, created_at
`

func (r *WalletRepo) CreateTransfer(ctx context.Context, transfer models.Transfer) (models.Transfer, error) {
	rows, _ := r.db.Query(ctx, createTransfer,
		transfer.ID, transfer.FromWalletID, transfer.ToWalletID, transfer.Kind,
		transfer.Amount, transfer.Details, transfer.OrderID, transfer.IPAddress, transfer.CreatedAt)
	created, err := pgx.CollectOneRow(rows, rowToTransfer)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getTransfer = `-- name: GetTransfer
SELECT id, from_wallet_id, to_wallet_id, type, amount, details, order_id, ip_address, created_at
FROM transfers
WHERE id = $1
`

func (r *WalletRepo) GetTransfer(ctx context.Context, id uuid.UUID) (models.Transfer, error) {
	rows, _ := r.db.Query(ctx, getTransfer, id)
	transfer, err := pgx.CollectOneRow(rows, rowToTransfer)
	if err != nil {
		return transfer, fmt.Errorf("db error: %w", err)
	}

	return transfer, nil
}

const createWalletLog = `-- name: CreateWalletLog
INSERT INTO wallet_logs (id, wallet_id, transfer_id, amount, running_balance)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, wallet_id, transfer_id, amount, running_balance
`

func (r *WalletRepo) CreateLog(ctx context.Context, log models.WalletLog) (models.WalletLog, error) {
	rows, _ := r.db.Query(ctx, createWalletLog,
		log.ID, log.WalletID, log.TransferID, log.Amount, log.RunningBalance)
	created, err := pgx.CollectOneRow(rows, rowToWalletLog)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listWalletLogs = `-- name: ListWalletLogs
SELECT id, wallet_id, transfer_id, amount, running_balance
FROM wallet_logs
WHERE wallet_id = $1
`

func (r *WalletRepo) ListLogs(ctx context.Context, walletID int64) ([]models.WalletLog, error) {
	rows, _ := r.db.Query(ctx, listWalletLogs, walletID)
	logs, err := pgx.CollectRows(rows, rowToWalletLog)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return logs, nil
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	var status int16

	err := row.Scan(&w.ID, &w.PartyID, &w.Kind, &w.CurrencyID, &w.Amount,
		&w.MaxLimit, &w.CreditLimit, &status, &w.CreatedAt)
	w.Active = status == 1

	return w, err
}

func rowToTransfer(row pgx.CollectableRow) (models.Transfer, error) {
	var t models.Transfer
	err := row.Scan(&t.ID, &t.FromWalletID, &t.ToWalletID, &t.Kind, &t.Amount,
		&t.Details, &t.OrderID, &t.IPAddress, &t.CreatedAt)
	return t, err
}

func rowToWalletLog(row pgx.CollectableRow) (models.WalletLog, error) {
	var l models.WalletLog
	err := row.Scan(&l.ID, &l.WalletID, &l.TransferID, &l.Amount, &l.RunningBalance)
	return l, err
}
