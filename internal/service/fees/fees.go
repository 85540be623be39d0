// Package fees derives shipping, insurance, and transaction fees from a party
// contract and the delivery address classification. Pure computation, no
// storage access.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/models"
)

type Fees struct {
	Shipping    decimal.Decimal
	Insurance   decimal.Decimal
	Transaction decimal.Decimal
}

// Sum returns the total fee burden of an order.
func (f Fees) Sum() decimal.Decimal {
	return f.Shipping.Add(f.Insurance).Add(f.Transaction)
}

// Compute applies the contract fee schedule to an order total. The delivery
// address picks the shipping rate: any address outside the local areas pays
// the provincial rate. The transaction fee applies to cash-on-delivery only.
func Compute(contract models.Contract, grandTotal decimal.Decimal, delivery models.Address, paymentMethod string, localAreas []string) Fees {
	f := Fees{
		Shipping:    contract.ShippingFee.Manila,
		Insurance:   applyRule(contract.InsuranceFee, grandTotal),
		Transaction: decimal.Zero,
	}

	if delivery.IsProvincial(localAreas) {
		f.Shipping = contract.ShippingFee.Provincial
	}

	if paymentMethod == models.PaymentMethodCOD {
		f.Transaction = applyRule(contract.TransactionFee, grandTotal)
	}

	return f
}

// applyRule evaluates a fee rule against the total. Max floors the result
// rather than capping it (see models.FeeRule).
func applyRule(rule models.FeeRule, total decimal.Decimal) decimal.Decimal {
	computed := rule.Value
	if rule.Type == models.FeeTypePercent {
		computed = rule.Value.Mul(total).Round(2)
	}

	if computed.LessThan(rule.Max) {
		return rule.Max
	}

	return computed
}
