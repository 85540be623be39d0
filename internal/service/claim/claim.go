// Package claim implements the post-delivery dispute workflow: one claim per
// order, filed within the contract claim window, refunded through the ledger
// on verification.
package claim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository"
	"github.com/shipworks/backoffice/internal/service/order"
	"github.com/shipworks/backoffice/internal/service/wallet"
	"github.com/shipworks/backoffice/internal/settings"
	"github.com/shipworks/backoffice/internal/validate"
)

type Service struct {
	storage  repository.Storage
	settings *settings.Settings
	logger   logger.Logger
}

func NewService(storage repository.Storage, s *settings.Settings, l logger.Logger) *Service {
	return &Service{
		storage:  storage,
		settings: s,
		logger:   l,
	}
}

type CreateClaimParams struct {
	OrderID int64           `json:"order_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason" validate:"required"`

	// Which order fees are refunded on top of the amount at verification.
	ShippingFeeFlag    bool `json:"shipping_fee_flag"`
	InsuranceFeeFlag   bool `json:"insurance_fee_flag"`
	TransactionFeeFlag bool `json:"transaction_fee_flag"`

	Assets  []byte  `json:"assets"`
	Remarks *string `json:"remarks"`

	// Creator identity recorded in the claim tat.
	CreatedBy map[string]string `json:"created_by"`
}

// Store files a claim against a delivered order. The order must have been
// delivered no more than claim_period days ago (elapsed days rounded to the
// nearest whole day) and the amount may not exceed the order grand total.
func (s *Service) Store(ctx context.Context, p CreateClaimParams) (models.Claim, error) {
	var claim models.Claim

	if err := validate.Struct(p); err != nil {
		return claim, err
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		ord, err := storage.Order().GetOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}

		party, err := storage.Party().GetParty(ctx, ord.PartyID)
		if err != nil {
			return err
		}
		if !party.Active {
			return apperrors.ErrOrderNotFound
		}

		if ord.Status != models.OrderDelivered {
			return apperrors.ErrOrderNotDelivered
		}
		deliveredAt, ok := ord.TAT[models.OrderDelivered]
		if !ok {
			return apperrors.ErrOrderNotDelivered
		}

		contract := models.ParseContract(party.Metadata, s.settings.DefaultContract)

		now := time.Now().UTC()
		if windowExpired(deliveredAt, now, contract.ClaimPeriod) {
			return apperrors.ErrClaimWindowExpired
		}

		amount := p.Amount.Round(2)
		if amount.GreaterThan(ord.GrandTotal) {
			return apperrors.ErrAmountExceedsTotal
		}

		claim, err = storage.Claim().Create(ctx, models.Claim{
			OrderID:            ord.ID,
			RequestNumber:      models.RequestNumber(ord.ID),
			Status:             models.ClaimPending,
			Reason:             p.Reason,
			Amount:             amount,
			ShippingFeeFlag:    p.ShippingFeeFlag,
			InsuranceFeeFlag:   p.InsuranceFeeFlag,
			TransactionFeeFlag: p.TransactionFeeFlag,
			Assets:             p.Assets,
			Remarks:            p.Remarks,
			TAT: models.ClaimTAT{
				models.ClaimPending: {Date: now, CreatedBy: p.CreatedBy},
			},
		})
		if err != nil {
			return err
		}

		orders := order.NewService(storage, s.settings, s.logger)
		_, err = orders.SetStatus(ctx, ord.ID, models.OrderClaimed, nil)
		return err
	})
	if err != nil {
		return models.Claim{}, err
	}

	s.logger.Info("claim filed",
		"order_id", claim.OrderID,
		"request_number", claim.RequestNumber,
		"amount", claim.Amount)

	return claim, nil
}

// windowExpired reports whether the claim window has closed. Elapsed days are
// rounded to the nearest whole day before comparing, so a claim filed up to
// twelve hours past the period boundary still goes through.
func windowExpired(deliveredAt time.Time, now time.Time, periodDays int) bool {
	days := math.Round(now.Sub(deliveredAt).Hours() / 24)
	return days > float64(periodDays)
}

// Get returns the order's claim.
func (s *Service) Get(ctx context.Context, orderID int64) (models.Claim, error) {
	return s.storage.Claim().Get(ctx, orderID)
}

// Verified approves the claim and refunds the client: the claimed amount plus
// every order fee whose flag was set at filing time moves from the system
// sales wallet to the client fund wallet.
func (s *Service) Verified(ctx context.Context, orderID int64, by map[string]string) (models.Claim, error) {
	var claim models.Claim

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		claim, err = storage.Claim().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if claim.Status == models.ClaimVerified {
			return nil
		}

		ord, err := storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		refund := claim.Amount
		if claim.ShippingFeeFlag {
			refund = refund.Add(ord.ShippingFee)
		}
		if claim.InsuranceFeeFlag {
			refund = refund.Add(ord.InsuranceFee)
		}
		if claim.TransactionFeeFlag {
			refund = refund.Add(ord.TransactionFee)
		}

		if refund.IsPositive() {
			wallets := wallet.NewService(storage, s.settings, s.logger)
			_, err = wallets.Transfer(ctx, wallet.TransferParams{
				FromPartyID: s.settings.SystemPartyID,
				FromKind:    models.WalletSales,
				ToPartyID:   ord.PartyID,
				ToKind:      models.WalletFund,
				Currency:    ord.CurrencyCode,
				Amount:      refund,
				Kind:        models.TransferFund,
				Details:     fmt.Sprintf("Claim refund for order %s", ord.TrackingNumber),
				OrderID:     &ord.ID,
			})
			if err != nil {
				return fmt.Errorf("claim refund transfer: %w", err)
			}
		}

		claim, err = s.setStatusTx(ctx, storage, claim, models.ClaimVerified, nil, by)
		return err
	})
	if err != nil {
		return models.Claim{}, err
	}

	return claim, nil
}

// Settled closes the claim with the external payout reference.
func (s *Service) Settled(ctx context.Context, orderID int64, referenceID string, by map[string]string) (models.Claim, error) {
	var claim models.Claim

	if referenceID == "" {
		return claim, apperrors.NewValidationError(map[string]string{"reference_id": "is required"})
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		claim, err = storage.Claim().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if claim.Status == models.ClaimSettled {
			return nil
		}

		if err := storage.Claim().SetReference(ctx, orderID, referenceID); err != nil {
			return err
		}
		claim.ReferenceID = &referenceID

		claim, err = s.setStatusTx(ctx, storage, claim, models.ClaimSettled, nil, by)
		return err
	})
	if err != nil {
		return models.Claim{}, err
	}

	return claim, nil
}

// Declined rejects the claim. Remarks are mandatory so the client learns why.
func (s *Service) Declined(ctx context.Context, orderID int64, remarks *string, by map[string]string) (models.Claim, error) {
	var claim models.Claim

	if remarks == nil || *remarks == "" {
		return claim, apperrors.ErrRemarksRequired
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		claim, err = storage.Claim().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if claim.Status == models.ClaimDeclined {
			return nil
		}

		claim, err = s.setStatusTx(ctx, storage, claim, models.ClaimDeclined, remarks, by)
		return err
	})
	if err != nil {
		return models.Claim{}, err
	}

	return claim, nil
}

func (s *Service) setStatusTx(ctx context.Context, storage repository.Storage, claim models.Claim, status models.ClaimStatus, remarks *string, by map[string]string) (models.Claim, error) {
	if claim.Status == status {
		return claim, nil
	}

	now := time.Now().UTC()

	tat := claim.TAT
	if tat == nil {
		tat = models.ClaimTAT{}
	}
	tat[status] = models.ClaimStamp{Date: now, CreatedBy: by}

	if err := storage.Claim().UpdateStatus(ctx, claim.OrderID, status, remarks, tat); err != nil {
		return claim, err
	}

	claim.Status = status
	claim.TAT = tat
	if remarks != nil {
		claim.Remarks = remarks
	}

	s.logger.Info("claim status changed", "order_id", claim.OrderID, "status", status)

	return claim, nil
}
