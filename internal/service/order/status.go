package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository"
	"github.com/shipworks/backoffice/internal/service/wallet"
)

// SetStatus transitions the order to the given status: status field, tat
// entry, and an event against the active segment commit atomically. Setting
// the current status again is a no-op; transitions are idempotent, not
// re-entrant triggers.
func (s *Service) SetStatus(ctx context.Context, orderID int64, status models.OrderStatus, remarks *string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		order, err = s.setStatusTx(ctx, storage, order, status, remarks, time.Now().UTC())
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	return order, nil
}

func (s *Service) setStatusTx(ctx context.Context, storage repository.Storage, order models.Order, status models.OrderStatus, remarks *string, at time.Time) (models.Order, error) {
	if order.Status == status {
		return order, nil
	}

	tat := order.TAT
	if tat == nil {
		tat = models.TAT{}
	}
	if err := tat.Set(status, at); err != nil {
		return order, err
	}

	if err := storage.Order().UpdateStatus(ctx, order.ID, status, tat); err != nil {
		return order, err
	}

	_, err := storage.Order().CreateEvent(ctx, models.OrderEvent{
		ID:             uuid.New(),
		OrderSegmentID: order.ActiveSegmentID,
		Status:         status,
		Remarks:        remarks,
		CreatedAt:      at,
	})
	if err != nil {
		return order, err
	}

	order.Status = status
	order.StatusUpdatedAt = at
	order.TAT = tat

	s.logger.Info("order status changed", "order_id", order.ID, "status", status)

	return order, nil
}

// Delivered marks the order delivered and settles the money: the fee sum
// moves from the client fund wallet to the system sales wallet; a COD charge
// is marked paid for the grand total; and a paid charge remits the grand
// total from the system collections wallet to the client fund wallet.
func (s *Service) Delivered(ctx context.Context, orderID int64, remarks *string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderDelivered {
			return nil
		}

		order, err = s.setStatusTx(ctx, storage, order, models.OrderDelivered, remarks, time.Now().UTC())
		if err != nil {
			return err
		}

		wallets := wallet.NewService(storage, s.settings, s.logger)

		feeSum := order.ShippingFee.Add(order.InsuranceFee).Add(order.TransactionFee)
		if feeSum.IsPositive() {
			_, err = wallets.Transfer(ctx, wallet.TransferParams{
				FromPartyID: order.PartyID,
				FromKind:    models.WalletFund,
				ToPartyID:   s.settings.SystemPartyID,
				ToKind:      models.WalletSales,
				Currency:    order.CurrencyCode,
				Amount:      feeSum,
				Kind:        models.TransferSale,
				Details:     fmt.Sprintf("Fees for order %s", order.TrackingNumber),
				OrderID:     &order.ID,
			})
			if err != nil {
				return fmt.Errorf("sale transfer: %w", err)
			}
		}

		if order.PaymentMethod == models.PaymentMethodCOD {
			_, err := storage.Charge().MarkPaid(ctx, order.ID, order.GrandTotal, decimal.Zero, nil)
			if err != nil && !errors.Is(err, apperrors.ErrChargeNotFound) {
				return err
			}
		}

		charge, err := storage.Charge().Get(ctx, order.ID)
		switch {
		case errors.Is(err, apperrors.ErrChargeNotFound):
			return nil
		case err != nil:
			return err
		}

		if charge.Status == models.ChargePaid {
			_, err = wallets.Transfer(ctx, wallet.TransferParams{
				FromPartyID: s.settings.SystemPartyID,
				FromKind:    models.WalletCollections,
				ToPartyID:   order.PartyID,
				ToKind:      models.WalletFund,
				Currency:    order.CurrencyCode,
				Amount:      order.GrandTotal,
				Kind:        models.TransferFund,
				Details:     fmt.Sprintf("Remittance for order %s", order.TrackingNumber),
				OrderID:     &order.ID,
			})
			if err != nil {
				return fmt.Errorf("remittance transfer: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	return order, nil
}

// Confirmed is the prepaid success terminal: the existing charge, if any, is
// marked paid for the grand total. No collections remittance happens here.
func (s *Service) Confirmed(ctx context.Context, orderID int64, remarks *string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderConfirmed {
			return nil
		}

		order, err = s.setStatusTx(ctx, storage, order, models.OrderConfirmed, remarks, time.Now().UTC())
		if err != nil {
			return err
		}

		_, err = storage.Charge().MarkPaid(ctx, order.ID, order.GrandTotal, decimal.Zero, nil)
		if err != nil && !errors.Is(err, apperrors.ErrChargeNotFound) {
			return err
		}

		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	return order, nil
}

// Returned marks the order returned and charges the client the return fees:
// double the shipping fee plus the insurance fee, moved from the client fund
// wallet back to the system sales wallet.
func (s *Service) Returned(ctx context.Context, orderID int64, remarks *string) (models.Order, error) {
	return s.returnWithFees(ctx, orderID, models.OrderReturned, remarks)
}

// FailedReturn charges the same return fees as Returned.
func (s *Service) FailedReturn(ctx context.Context, orderID int64, remarks *string) (models.Order, error) {
	return s.returnWithFees(ctx, orderID, models.OrderFailedReturn, remarks)
}

func (s *Service) returnWithFees(ctx context.Context, orderID int64, status models.OrderStatus, remarks *string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == status {
			return nil
		}

		order, err = s.setStatusTx(ctx, storage, order, status, remarks, time.Now().UTC())
		if err != nil {
			return err
		}

		// Shipping is charged twice: the failed delivery plus the way back.
		returnFee := order.ShippingFee.Add(order.ShippingFee).Add(order.InsuranceFee)
		if !returnFee.IsPositive() {
			return nil
		}

		wallets := wallet.NewService(storage, s.settings, s.logger)
		_, err = wallets.Transfer(ctx, wallet.TransferParams{
			FromPartyID: order.PartyID,
			FromKind:    models.WalletFund,
			ToPartyID:   s.settings.SystemPartyID,
			ToKind:      models.WalletSales,
			Currency:    order.CurrencyCode,
			Amount:      returnFee,
			Kind:        models.TransferReturn,
			Details:     fmt.Sprintf("Return fees for order %s", order.TrackingNumber),
			OrderID:     &order.ID,
		})
		if err != nil {
			return fmt.Errorf("return transfer: %w", err)
		}

		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	return order, nil
}

// PickedUp records the pickup with the courier-reported pickup time and
// advances the active segment to the next route leg.
func (s *Service) PickedUp(ctx context.Context, orderID int64, pickedUpAt time.Time, remarks *string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderPickedUp {
			return nil
		}

		order, err = s.setStatusTx(ctx, storage, order, models.OrderPickedUp, remarks, pickedUpAt.UTC())
		if err != nil {
			return err
		}

		if order.ActiveSegmentID == nil {
			return nil
		}

		next, err := storage.Order().NextSegment(ctx, order.ID, *order.ActiveSegmentID)
		switch {
		case errors.Is(err, apperrors.ErrSegmentNotFound):
			return nil
		case err != nil:
			return err
		}

		if err := storage.Order().SetActiveSegment(ctx, order.ID, &next.ID); err != nil {
			return err
		}
		order.ActiveSegmentID = &next.ID

		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	return order, nil
}

// ForPickup dispatches the order to its pickup courier and counts the attempt.
func (s *Service) ForPickup(ctx context.Context, orderID int64, remarks *string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		order, err = s.forPickupTx(ctx, storage, order, remarks)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	return order, nil
}

func (s *Service) forPickupTx(ctx context.Context, storage repository.Storage, order models.Order, remarks *string) (models.Order, error) {
	if order.Status == models.OrderForPickup {
		return order, nil
	}

	attempts, err := storage.Order().IncrementPickupAttempts(ctx, order.ID)
	if err != nil {
		return order, err
	}
	order.PickupAttempts = attempts

	return s.setStatusTx(ctx, storage, order, models.OrderForPickup, remarks, time.Now().UTC())
}

// RetryPickup reattempts pickup after a failure. Once the contract's retry
// limit is reached the order is forced to failed_pickup instead; a nil limit
// means unlimited retries.
func (s *Service) RetryPickup(ctx context.Context, orderID int64, remarks *string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		party, err := storage.Party().GetParty(ctx, order.PartyID)
		if err != nil {
			return err
		}
		contract := models.ParseContract(party.Metadata, s.settings.DefaultContract)

		if contract.PickupRetries != nil && order.PickupAttempts >= *contract.PickupRetries {
			order, err = s.setStatusTx(ctx, storage, order, models.OrderFailedPickup, remarks, time.Now().UTC())
			return err
		}

		order, err = s.forPickupTx(ctx, storage, order, remarks)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	return order, nil
}

// InTransit marks the order moving between hubs and counts a delivery attempt.
func (s *Service) InTransit(ctx context.Context, orderID int64, remarks *string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderInTransit {
			return nil
		}

		attempts, err := storage.Order().IncrementDeliveryAttempts(ctx, order.ID)
		if err != nil {
			return err
		}
		order.DeliveryAttempts = attempts

		order, err = s.setStatusTx(ctx, storage, order, models.OrderInTransit, remarks, time.Now().UTC())
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	return order, nil
}

// Canceled terminates the order without money movement.
func (s *Service) Canceled(ctx context.Context, orderID int64, remarks *string) (models.Order, error) {
	return s.SetStatus(ctx, orderID, models.OrderCanceled, remarks)
}
