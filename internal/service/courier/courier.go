// Package courier assigns orders to courier legs by serviceable-area
// matching: couriers are tried in priority order and the first hub covering
// the address wins.
package courier

import (
	"context"
	"fmt"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository"
	"github.com/shipworks/backoffice/internal/settings"
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

// Ship plans the route for an order: a pick_up leg, a delivery leg, and a
// transfer leg between the hubs when pickup and delivery land on different
// couriers. Returned segments are not yet persisted. Routing is all or
// nothing; if either end has no covering hub the order gets no route.
func (s *Service) Ship(ctx context.Context, order models.Order, pickup models.Address, delivery models.Address) ([]models.OrderSegment, error) {
	couriers, err := s.storage.Courier().ListActive(ctx)
	if err != nil {
		return nil, err
	}

	pickupCourier, pickupHub, ok := matchPickup(couriers, pickup)
	if !ok {
		return nil, apperrors.ErrNoRouteFound
	}

	deliveryCourier, deliveryHub, ok := matchDelivery(couriers, delivery)
	if !ok {
		return nil, apperrors.ErrNoRouteFound
	}

	segments := []models.OrderSegment{{
		OrderID:           order.ID,
		CourierPartyID:    pickupCourier.PartyID,
		Kind:              models.SegmentPickUp,
		ShippingType:      s.settings.DefaultShippingType,
		BarcodeFormat:     pickupCourier.BarcodeFormat,
		PickupAddressID:   pickup.ID,
		DeliveryAddressID: pickupHub.Address.ID,
		Status:            models.OrderPending,
	}}

	// Hubs of different couriers need a hand-off leg between them. It is
	// attributed to the pickup courier.
	if pickupCourier.PartyID != deliveryCourier.PartyID {
		segments = append(segments, models.OrderSegment{
			OrderID:           order.ID,
			CourierPartyID:    pickupCourier.PartyID,
			Kind:              models.SegmentTransfer,
			ShippingType:      s.settings.DefaultShippingType,
			BarcodeFormat:     pickupCourier.BarcodeFormat,
			PickupAddressID:   pickupHub.Address.ID,
			DeliveryAddressID: deliveryHub.Address.ID,
			Status:            models.OrderPending,
		})
	}

	segments = append(segments, models.OrderSegment{
		OrderID:           order.ID,
		CourierPartyID:    deliveryCourier.PartyID,
		Kind:              models.SegmentDelivery,
		ShippingType:      s.settings.DefaultShippingType,
		BarcodeFormat:     deliveryCourier.BarcodeFormat,
		PickupAddressID:   deliveryHub.Address.ID,
		DeliveryAddressID: delivery.ID,
		Status:            models.OrderPending,
	})

	courierByParty := make(map[int64]models.Courier, len(couriers))
	for _, c := range couriers {
		courierByParty[c.PartyID] = c
	}

	for i := range segments {
		ref, err := s.referenceID(ctx, courierByParty[segments[i].CourierPartyID], order)
		if err != nil {
			return nil, err
		}
		segments[i].ReferenceID = ref
	}

	s.logger.Debug("route planned",
		"order_id", order.ID,
		"pickup_courier", pickupCourier.Name,
		"delivery_courier", deliveryCourier.Name,
		"segments", len(segments))

	return segments, nil
}

// referenceID issues the courier-facing tracking reference for one leg.
func (s *Service) referenceID(ctx context.Context, courier models.Courier, order models.Order) (string, error) {
	switch courier.RefStrategy {
	case models.RefOrderTracking:
		return order.TrackingNumber, nil
	default:
		seq, err := s.storage.Courier().NextReference(ctx)
		if err != nil {
			return "", fmt.Errorf("courier reference: %w", err)
		}
		return models.TrackingNumber(seq), nil
	}
}

func matchPickup(couriers []models.Courier, address models.Address) (models.Courier, models.Hub, bool) {
	for _, c := range couriers {
		if hub, ok := c.PickupHub(address); ok {
			return c, hub, true
		}
	}
	return models.Courier{}, models.Hub{}, false
}

func matchDelivery(couriers []models.Courier, address models.Address) (models.Courier, models.Hub, bool) {
	for _, c := range couriers {
		if hub, ok := c.DeliveryHub(address); ok {
			return c, hub, true
		}
	}
	return models.Courier{}, models.Hub{}, false
}
