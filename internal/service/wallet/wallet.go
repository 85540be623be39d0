// Package wallet implements the ledger: the transfer primitive is the only
// code path that mutates wallet balances.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository"
	"github.com/shipworks/backoffice/internal/settings"
	"github.com/shipworks/backoffice/internal/validate"
)

type Service struct {
	storage  repository.Storage
	settings *settings.Settings
	logger   logger.Logger
}

// NewService builds a wallet service over the given storage. Passing a
// transaction-bound storage makes every operation join that transaction, which
// is how order and claim flows compose their money movement.
func NewService(storage repository.Storage, s *settings.Settings, l logger.Logger) *Service {
	return &Service{
		storage:  storage,
		settings: s,
		logger:   l,
	}
}

type TransferParams struct {
	FromPartyID int64             `json:"from_party_id" validate:"required"`
	FromKind    models.WalletKind `json:"from_wallet_kind" validate:"required"`
	ToPartyID   int64             `json:"to_party_id" validate:"required"`
	ToKind      models.WalletKind `json:"to_wallet_kind" validate:"required"`

	// Currency code; empty means the system default.
	Currency string `json:"currency"`

	Amount  decimal.Decimal     `json:"amount"`
	Kind    models.TransferKind `json:"type" validate:"required"`
	Details string              `json:"details" validate:"required"`

	OrderID   *int64  `json:"order_id"`
	IPAddress *string `json:"ip_address"`
}

// Transfer atomically moves amount between two wallets: both balances, the
// transfer row, and two audit log rows commit together or not at all.
func (s *Service) Transfer(ctx context.Context, p TransferParams) (models.Transfer, error) {
	var transfer models.Transfer

	if err := validate.Struct(p); err != nil {
		return transfer, err
	}

	amount := p.Amount.Round(2)
	if !amount.IsPositive() {
		return transfer, apperrors.ErrInvalidAmount
	}

	currency := p.Currency
	if currency == "" {
		currency = s.settings.DefaultCurrency
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		currencyID, err := storage.Party().CurrencyID(ctx, currency)
		if err != nil {
			return err
		}

		from, err := storage.Wallet().Find(ctx, p.FromPartyID, p.FromKind, currencyID)
		if err != nil {
			return fmt.Errorf("source wallet: %w", err)
		}
		to, err := storage.Wallet().Find(ctx, p.ToPartyID, p.ToKind, currencyID)
		if err != nil {
			return fmt.Errorf("destination wallet: %w", err)
		}

		if from.ID == to.ID {
			return apperrors.ErrSameWallet
		}

		// Balances are re-read under lock; the unlocked Find above only
		// resolved the wallet ids.
		locked, err := storage.Wallet().LockForTransfer(ctx, []int64{from.ID, to.ID})
		if err != nil {
			return err
		}
		for _, w := range locked {
			switch w.ID {
			case from.ID:
				from = w
			case to.ID:
				to = w
			}
		}

		newFrom := from.Amount.Sub(amount)
		newTo := to.Amount.Add(amount)

		if from.CreditLimit != nil && newFrom.LessThan(*from.CreditLimit) {
			return apperrors.ErrInsufficientFunds
		}
		if to.MaxLimit != nil && newTo.GreaterThan(*to.MaxLimit) {
			return apperrors.ErrMaxLimitExceeded
		}

		if err := storage.Wallet().SetAmount(ctx, from.ID, newFrom); err != nil {
			return err
		}
		if err := storage.Wallet().SetAmount(ctx, to.ID, newTo); err != nil {
			return err
		}

		transfer, err = storage.Wallet().CreateTransfer(ctx, models.Transfer{
			ID:           uuid.New(),
			FromWalletID: from.ID,
			ToWalletID:   to.ID,
			Kind:         p.Kind,
			Amount:       amount,
			Details:      p.Details,
			OrderID:      p.OrderID,
			IPAddress:    p.IPAddress,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		logs := []models.WalletLog{
			{ID: uuid.New(), WalletID: from.ID, TransferID: transfer.ID, Amount: amount.Neg(), RunningBalance: newFrom},
			{ID: uuid.New(), WalletID: to.ID, TransferID: transfer.ID, Amount: amount, RunningBalance: newTo},
		}
		for _, l := range logs {
			if _, err := storage.Wallet().CreateLog(ctx, l); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return models.Transfer{}, err
	}

	s.logger.Info("wallet transfer completed",
		"transfer_id", transfer.ID,
		"type", transfer.Kind,
		"amount", transfer.Amount)

	return transfer, nil
}

type CreateWalletParams struct {
	PartyID int64             `json:"party_id" validate:"required"`
	Kind    models.WalletKind `json:"kind" validate:"required"`

	// Currency code; empty means the system default.
	Currency string `json:"currency"`

	// Bounds; nil means unbounded on that side.
	MaxLimit    *decimal.Decimal `json:"max_limit"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}

func (s *Service) CreateWallet(ctx context.Context, p CreateWalletParams) (models.Wallet, error) {
	if err := validate.Struct(p); err != nil {
		return models.Wallet{}, err
	}

	currency := p.Currency
	if currency == "" {
		currency = s.settings.DefaultCurrency
	}

	currencyID, err := s.storage.Party().CurrencyID(ctx, currency)
	if err != nil {
		return models.Wallet{}, err
	}

	wallet, err := s.storage.Wallet().CreateWallet(ctx, models.Wallet{
		PartyID:     p.PartyID,
		Kind:        p.Kind,
		CurrencyID:  currencyID,
		Amount:      decimal.Zero,
		MaxLimit:    p.MaxLimit,
		CreditLimit: p.CreditLimit,
	})
	if err != nil {
		return wallet, fmt.Errorf("create wallet: %w", err)
	}

	return wallet, nil
}

// Balance returns the party's wallet of the given kind. An empty currency
// means the system default.
func (s *Service) Balance(ctx context.Context, partyID int64, kind models.WalletKind, currency string) (models.Wallet, error) {
	if currency == "" {
		currency = s.settings.DefaultCurrency
	}

	currencyID, err := s.storage.Party().CurrencyID(ctx, currency)
	if err != nil {
		return models.Wallet{}, err
	}

	return s.storage.Wallet().Find(ctx, partyID, kind, currencyID)
}

// Logs returns the audit trail of a wallet.
func (s *Service) Logs(ctx context.Context, walletID int64) ([]models.WalletLog, error) {
	return s.storage.Wallet().ListLogs(ctx, walletID)
}
