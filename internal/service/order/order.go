// Package order implements the order lifecycle: intake with fee computation
// and breakdown validation, courier route assignment, and the status state
// machine with its ledger side effects.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository"
	"github.com/shipworks/backoffice/internal/service/courier"
	"github.com/shipworks/backoffice/internal/service/fees"
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

type AddressParams struct {
	Name         string  `json:"name" validate:"required"`
	Title        *string `json:"title"`
	Email        *string `json:"email" validate:"omitempty,email"`
	PhoneNumber  *string `json:"phone_number"`
	MobileNumber *string `json:"mobile_number"`
	FaxNumber    *string `json:"fax_number"`
	Company      *string `json:"company"`
	Line1        string  `json:"line_1" validate:"required"`
	Line2        *string `json:"line_2"`
	City         string  `json:"city" validate:"required"`
	State        string  `json:"state" validate:"required"`
	PostalCode   string  `json:"postal_code" validate:"required"`
	CountryCode  string  `json:"country_code" validate:"required"`
	Remarks      *string `json:"remarks"`
}

type ItemParams struct {
	Type        string          `json:"type" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Quantity    int             `json:"quantity"`
	Metadata    []byte          `json:"metadata"`
}

type CreateOrderParams struct {
	PartyID         int64  `json:"party_id" validate:"required"`
	Currency        string `json:"currency"`
	ReferenceID     string `json:"reference_id" validate:"required"`
	PaymentMethod   string `json:"payment_method" validate:"required"`
	PaymentProvider string `json:"payment_provider" validate:"required"`

	BuyerName     string  `json:"buyer_name" validate:"required"`
	Email         *string `json:"email" validate:"omitempty,email"`
	ContactNumber *string `json:"contact_number"`

	PickupAddress   *AddressParams `json:"pickup_address"`
	DeliveryAddress AddressParams  `json:"delivery_address" validate:"required"`

	GrandTotal decimal.Decimal `json:"grand_total"`
	Items      []ItemParams    `json:"items" validate:"min=1,dive"`

	Metadata  []byte  `json:"metadata"`
	IPAddress *string `json:"ip_address"`
}

// Store creates an order: addresses are upserted by content hash, the item
// breakdown is cross-checked against the grand total, fees are computed from
// the party contract, and a courier route is assigned. An unrouteable order is
// still created but flagged for manual handling.
func (s *Service) Store(ctx context.Context, p CreateOrderParams) (models.Order, error) {
	var order models.Order

	if err := validate.Struct(p); err != nil {
		return order, err
	}

	party, err := s.storage.Party().GetParty(ctx, p.PartyID)
	if err != nil {
		return order, err
	}
	contract := models.ParseContract(party.Metadata, s.settings.DefaultContract)

	currency := p.Currency
	if currency == "" {
		currency = s.settings.DefaultCurrency
	}

	grandTotal := p.GrandTotal.Round(2)

	bd, err := itemBreakdown(p.Items)
	if err != nil {
		return order, err
	}
	if !bd.total().Equal(grandTotal) {
		return order, apperrors.ErrTotalMismatch
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		currencyID, err := storage.Party().CurrencyID(ctx, currency)
		if err != nil {
			return err
		}

		deliveryAddr, err := storage.Address().Upsert(ctx, buildAddress(p.PartyID, models.AddressDelivery, p.DeliveryAddress))
		if err != nil {
			return fmt.Errorf("delivery address: %w", err)
		}

		var pickupAddr *models.Address
		if p.PickupAddress != nil {
			addr, err := storage.Address().Upsert(ctx, buildAddress(p.PartyID, models.AddressPickup, *p.PickupAddress))
			if err != nil {
				return fmt.Errorf("pickup address: %w", err)
			}
			pickupAddr = &addr
		}

		computed := fees.Compute(contract, grandTotal, deliveryAddr, p.PaymentMethod, s.settings.LocalAreas)

		orderID, err := storage.Order().NextID(ctx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		tat := models.TAT{}
		_ = tat.Set(models.OrderPending, now)

		order = models.Order{
			ID:                orderID,
			PartyID:           p.PartyID,
			CurrencyID:        currencyID,
			CurrencyCode:      currency,
			ReferenceID:       p.ReferenceID,
			DeliveryAddressID: deliveryAddr.ID,
			TrackingNumber:    models.TrackingNumber(orderID),
			PaymentMethod:     p.PaymentMethod,
			PaymentProvider:   p.PaymentProvider,
			Status:            models.OrderPending,
			BuyerName:         p.BuyerName,
			Email:             p.Email,
			ContactNumber:     p.ContactNumber,
			Subtotal:          bd.subtotal,
			Shipping:          bd.shipping,
			Tax:               bd.tax,
			Fee:               bd.fee,
			Insurance:         bd.insurance,
			GrandTotal:        grandTotal,
			ShippingFee:       computed.Shipping,
			InsuranceFee:      computed.Insurance,
			TransactionFee:    computed.Transaction,
			Metadata:          p.Metadata,
			IPAddress:         p.IPAddress,
			TAT:               tat,
			StatusUpdatedAt:   now,
		}
		if pickupAddr != nil {
			order.PickupAddressID = &pickupAddr.ID
		}

		order, err = storage.Order().CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.CurrencyCode = currency

		for _, item := range p.Items {
			quantity := item.Quantity
			if item.Type != models.ItemProduct || quantity < 1 {
				quantity = 1
			}
			amount := item.Amount.Round(2)

			_, err := storage.Order().CreateItem(ctx, models.OrderItem{
				OrderID:     order.ID,
				Type:        item.Type,
				Description: item.Description,
				Amount:      amount,
				Quantity:    quantity,
				Total:       amount.Mul(decimal.NewFromInt(int64(quantity))),
				Metadata:    item.Metadata,
			})
			if err != nil {
				return err
			}
		}

		if contract.FuseClient || p.PaymentMethod == models.PaymentMethodCOD {
			_, err := storage.Charge().Create(ctx, models.Charge{
				OrderID:       order.ID,
				Status:        models.ChargePending,
				PaymentMethod: p.PaymentMethod,
				TotalAmount:   grandTotal,
			})
			if err != nil {
				return err
			}
		}

		order, err = s.route(ctx, storage, order, pickupAddr, deliveryAddr)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("order created",
		"order_id", order.ID,
		"tracking_number", order.TrackingNumber,
		"grand_total", order.GrandTotal,
		"flagged", order.Flagged)

	return order, nil
}

// route assigns the courier segments. A routing miss flags the order instead
// of failing the creation.
func (s *Service) route(ctx context.Context, storage repository.Storage, order models.Order, pickupAddr *models.Address, deliveryAddr models.Address) (models.Order, error) {
	flag := func() (models.Order, error) {
		if err := storage.Order().SetFlagged(ctx, order.ID); err != nil {
			return order, err
		}
		order.Flagged = true

		s.logger.Warn("order flagged: no courier route", "order_id", order.ID)
		return order, nil
	}

	if pickupAddr == nil {
		return flag()
	}

	couriers := courier.NewService(storage, s.settings, s.logger)
	segments, err := couriers.Ship(ctx, order, *pickupAddr, deliveryAddr)

	switch {
	case errors.Is(err, apperrors.ErrNoRouteFound), errors.Is(err, apperrors.ErrNoCouriers):
		return flag()
	case err != nil:
		return order, err
	}

	var first *int64
	for _, segment := range segments {
		created, err := storage.Order().CreateSegment(ctx, segment)
		if err != nil {
			return order, err
		}
		if first == nil {
			first = &created.ID
		}
	}

	if err := storage.Order().SetActiveSegment(ctx, order.ID, first); err != nil {
		return order, err
	}
	order.ActiveSegmentID = first

	if order.Status == models.OrderPending {
		return s.forPickupTx(ctx, storage, order, nil)
	}

	return order, nil
}

type UpdateOrderParams struct {
	OrderID int64 `json:"order_id" validate:"required"`

	PickupAddress   *AddressParams `json:"pickup_address"`
	DeliveryAddress *AddressParams `json:"delivery_address"`

	PaymentMethod   *string `json:"payment_method"`
	PaymentProvider *string `json:"payment_provider"`
	BuyerName       *string `json:"buyer_name"`
	Email           *string `json:"email" validate:"omitempty,email"`
	ContactNumber   *string `json:"contact_number"`
	Metadata        []byte  `json:"metadata"`
}

// Update rewrites the mutable order details and replaces the route wholesale:
// the old segments and their events are dropped and routing runs again from
// the current addresses.
func (s *Service) Update(ctx context.Context, p UpdateOrderParams) (models.Order, error) {
	var order models.Order

	if err := validate.Struct(p); err != nil {
		return order, err
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		order, err = storage.Order().GetOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}

		if p.PickupAddress != nil {
			addr, err := storage.Address().Upsert(ctx, buildAddress(order.PartyID, models.AddressPickup, *p.PickupAddress))
			if err != nil {
				return fmt.Errorf("pickup address: %w", err)
			}
			order.PickupAddressID = &addr.ID
		}
		if p.DeliveryAddress != nil {
			addr, err := storage.Address().Upsert(ctx, buildAddress(order.PartyID, models.AddressDelivery, *p.DeliveryAddress))
			if err != nil {
				return fmt.Errorf("delivery address: %w", err)
			}
			order.DeliveryAddressID = addr.ID
		}

		if p.PaymentMethod != nil {
			order.PaymentMethod = *p.PaymentMethod
		}
		if p.PaymentProvider != nil {
			order.PaymentProvider = *p.PaymentProvider
		}
		if p.BuyerName != nil {
			order.BuyerName = *p.BuyerName
		}
		if p.Email != nil {
			order.Email = p.Email
		}
		if p.ContactNumber != nil {
			order.ContactNumber = p.ContactNumber
		}
		if p.Metadata != nil {
			order.Metadata = p.Metadata
		}
		order.Flagged = false

		if err := storage.Order().UpdateDetails(ctx, order); err != nil {
			return err
		}

		// The route is rebuilt from scratch: the active segment pointer must
		// go first so the segment rows can be deleted.
		if err := storage.Order().SetActiveSegment(ctx, order.ID, nil); err != nil {
			return err
		}
		order.ActiveSegmentID = nil
		if err := storage.Order().DeleteSegments(ctx, order.ID); err != nil {
			return err
		}

		deliveryAddr, err := storage.Address().Get(ctx, order.DeliveryAddressID)
		if err != nil {
			return err
		}

		var pickupAddr *models.Address
		if order.PickupAddressID != nil {
			addr, err := storage.Address().Get(ctx, *order.PickupAddressID)
			if err != nil {
				return err
			}
			pickupAddr = &addr
		}

		order, err = s.route(ctx, storage, order, pickupAddr, deliveryAddr)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("order updated", "order_id", order.ID, "flagged", order.Flagged)

	return order, nil
}

// Get returns the order by id.
func (s *Service) Get(ctx context.Context, orderID int64) (models.Order, error) {
	return s.storage.Order().GetOrder(ctx, orderID)
}

func buildAddress(partyID int64, addressType string, p AddressParams) models.Address {
	return models.Address{
		PartyID:      partyID,
		Type:         addressType,
		Name:         p.Name,
		Title:        p.Title,
		Email:        p.Email,
		PhoneNumber:  p.PhoneNumber,
		MobileNumber: p.MobileNumber,
		FaxNumber:    p.FaxNumber,
		Company:      p.Company,
		Line1:        p.Line1,
		Line2:        p.Line2,
		City:         p.City,
		State:        p.State,
		PostalCode:   p.PostalCode,
		CountryCode:  p.CountryCode,
		Remarks:      p.Remarks,
	}
}

// breakdown accumulates the item lines into the order money fields.
type breakdown struct {
	subtotal  decimal.Decimal
	shipping  *decimal.Decimal
	tax       *decimal.Decimal
	fee       *decimal.Decimal
	insurance *decimal.Decimal
}

func (b breakdown) total() decimal.Decimal {
	total := b.subtotal
	for _, part := range []*decimal.Decimal{b.shipping, b.tax, b.fee, b.insurance} {
		if part != nil {
			total = total.Add(*part)
		}
	}
	return total
}

func itemBreakdown(items []ItemParams) (breakdown, error) {
	var b breakdown
	hasProduct := false

	add := func(dst **decimal.Decimal, amount decimal.Decimal) {
		if *dst == nil {
			*dst = &decimal.Decimal{}
		}
		sum := (*dst).Add(amount)
		*dst = &sum
	}

	for _, item := range items {
		// Amounts are rounded to centavos per item, the same precision they
		// are stored with, so sub-cent inputs cannot fail the total check.
		amount := item.Amount.Round(2)

		switch item.Type {
		case models.ItemProduct:
			hasProduct = true
			quantity := item.Quantity
			if quantity < 1 {
				quantity = 1
			}
			b.subtotal = b.subtotal.Add(amount.Mul(decimal.NewFromInt(int64(quantity))))
		case models.ItemShipping:
			add(&b.shipping, amount)
		case models.ItemTax:
			add(&b.tax, amount)
		case models.ItemFee:
			add(&b.fee, amount)
		case models.ItemInsurance:
			add(&b.insurance, amount)
		default:
			return b, apperrors.ErrInvalidItemType
		}
	}

	if !hasProduct {
		return b, apperrors.ErrNoProductItem
	}

	return b, nil
}
