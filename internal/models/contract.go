package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Fee rule types.
const (
	FeeTypePercent = "percent"
	FeeTypeFlat    = "flat"
)

// FeeRule describes how a single fee is derived from an order total.
// For percent rules the fee is Value*total, for flat rules it is Value.
// Max acts as a floor on the computed fee: the charged fee is
// max(computed, Max). The field name is historical.
type FeeRule struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
	Max   decimal.Decimal `json:"max"`
}

type ShippingFee struct {
	Manila     decimal.Decimal `json:"manila"`
	Provincial decimal.Decimal `json:"provincial"`
}

// Contract is the per-party commercial agreement: fee schedule, pickup retry
// limit, claim window, and whether the client settles through our gateway.
type Contract struct {
	ShippingFee    ShippingFee `json:"shipping_fee"`
	InsuranceFee   FeeRule     `json:"insurance_fee"`
	TransactionFee FeeRule     `json:"transaction_fee"`

	// Nil means unlimited pickup retries.
	PickupRetries *int `json:"pickup_retries"`

	// Days after delivery during which a claim may be filed.
	ClaimPeriod int `json:"claim_period"`

	// Client settles through our payment gateway, so every order gets a
	// charge regardless of payment method.
	FuseClient bool `json:"fuse_client"`
}

// ParseContract overlays the sparse contract from a party's metadata onto the
// system defaults. Missing keys keep their default value; a pickup_retries key
// explicitly set to null means unlimited. Malformed metadata falls back to
// the defaults entirely.
func ParseContract(metadata []byte, defaults Contract) Contract {
	if len(metadata) == 0 {
		return defaults
	}

	var meta struct {
		Contract json.RawMessage `json:"contract"`
	}
	if err := json.Unmarshal(metadata, &meta); err != nil || len(meta.Contract) == 0 {
		return defaults
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(meta.Contract, &keys); err != nil {
		return defaults
	}

	c := defaults

	if raw, ok := keys["shipping_fee"]; ok {
		var o struct {
			Manila     *decimal.Decimal `json:"manila"`
			Provincial *decimal.Decimal `json:"provincial"`
		}
		if err := json.Unmarshal(raw, &o); err == nil {
			if o.Manila != nil {
				c.ShippingFee.Manila = *o.Manila
			}
			if o.Provincial != nil {
				c.ShippingFee.Provincial = *o.Provincial
			}
		}
	}

	if rule, ok := parseFeeRule(keys["insurance_fee"], defaults.InsuranceFee); ok {
		c.InsuranceFee = rule
	}
	if rule, ok := parseFeeRule(keys["transaction_fee"], defaults.TransactionFee); ok {
		c.TransactionFee = rule
	}

	if raw, ok := keys["pickup_retries"]; ok {
		// Present but null means no retry limit.
		var retries *int
		if err := json.Unmarshal(raw, &retries); err == nil {
			c.PickupRetries = retries
		}
	}

	if raw, ok := keys["claim_period"]; ok {
		var days int
		if err := json.Unmarshal(raw, &days); err == nil {
			c.ClaimPeriod = days
		}
	}

	if raw, ok := keys["fuse_client"]; ok {
		var fuse bool
		if err := json.Unmarshal(raw, &fuse); err == nil {
			c.FuseClient = fuse
		}
	}

	return c
}

func parseFeeRule(raw json.RawMessage, defaults FeeRule) (FeeRule, bool) {
	if len(raw) == 0 {
		return defaults, false
	}

	var o struct {
		Type  *string          `json:"type"`
		Value *decimal.Decimal `json:"value"`
		Max   *decimal.Decimal `json:"max"`
	}
	if err := json.Unmarshal(raw, &o); err != nil {
		return defaults, false
	}

	rule := defaults
	if o.Type != nil {
		rule.Type = *o.Type
	}
	if o.Value != nil {
		rule.Value = *o.Value
	}
	if o.Max != nil {
		rule.Max = *o.Max
	}

	return rule, true
}
