// Package settings holds the immutable process-wide defaults: the system
// party, currency, local delivery areas, and the fallback client contract.
// The struct is built once at startup and passed explicitly into services,
// there is no ambient global lookup.
package settings

import (
	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/models"
)

type Settings struct {
	// Party that owns the system-side wallets (sales, collections, settlement).
	SystemPartyID int64

	// Currency used when the caller does not specify one.
	DefaultCurrency string

	// Shipping type stamped on segments until couriers report their own.
	DefaultShippingType string

	// Addresses matching any of these names are local, everything else is
	// provincial for fee purposes.
	LocalAreas []string

	// Contract applied where a party contract is absent or malformed.
	// Party contracts are sparse overrides of this one.
	DefaultContract models.Contract
}

func Default() *Settings {
	retries := 3

	return &Settings{
		SystemPartyID:       1,
		DefaultCurrency:     "PHP",
		DefaultShippingType: "land",
		LocalAreas:          []string{"Manila", "Metro Manila", "NCR", "National Capital Region"},
		DefaultContract: models.Contract{
			ShippingFee: models.ShippingFee{
				Manila:     decimal.NewFromInt(100),
				Provincial: decimal.NewFromInt(150),
			},
			InsuranceFee: models.FeeRule{
				Type:  models.FeeTypePercent,
				Value: decimal.NewFromFloat(0.01),
				Max:   decimal.NewFromInt(5),
			},
			TransactionFee: models.FeeRule{
				Type:  models.FeeTypePercent,
				Value: decimal.NewFromFloat(0.03),
				Max:   decimal.NewFromInt(20),
			},
			PickupRetries: &retries,
			ClaimPeriod:   7,
		},
	}
}
