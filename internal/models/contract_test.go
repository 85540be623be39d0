package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func defaultContract() Contract {
	retries := 3

	return Contract{
		ShippingFee: ShippingFee{
			Manila:     decimal.NewFromInt(100),
			Provincial: decimal.NewFromInt(150),
		},
		InsuranceFee: FeeRule{
			Type:  FeeTypePercent,
			Value: decimal.NewFromFloat(0.01),
			Max:   decimal.NewFromInt(5),
		},
		TransactionFee: FeeRule{
			Type:  FeeTypePercent,
			Value: decimal.NewFromFloat(0.03),
			Max:   decimal.NewFromInt(20),
		},
		PickupRetries: &retries,
		ClaimPeriod:   7,
	}
}

func TestParseContract(t *testing.T) {
	t.Parallel()

	t.Run("empty metadata keeps defaults", func(t *testing.T) {
		c := ParseContract(nil, defaultContract())

		require.Equal(t, defaultContract(), c)
	})

	t.Run("metadata without contract key keeps defaults", func(t *testing.T) {
		c := ParseContract([]byte(`{"note":"vip"}`), defaultContract())

		require.Equal(t, defaultContract(), c)
	})

	t.Run("malformed metadata keeps defaults", func(t *testing.T) {
		c := ParseContract([]byte(`{"contract":`), defaultContract())

		require.Equal(t, defaultContract(), c)
	})

	t.Run("sparse override keeps unmentioned keys", func(t *testing.T) {
		meta := []byte(`{"contract":{"claim_period":14}}`)

		c := ParseContract(meta, defaultContract())

		require.Equal(t, 14, c.ClaimPeriod)
		require.True(t, c.ShippingFee.Manila.Equal(decimal.NewFromInt(100)), "untouched keys should keep defaults")
		require.NotNil(t, c.PickupRetries)
		require.Equal(t, 3, *c.PickupRetries)
	})

	t.Run("partial shipping fee override", func(t *testing.T) {
		meta := []byte(`{"contract":{"shipping_fee":{"provincial":200}}}`)

		c := ParseContract(meta, defaultContract())

		require.True(t, c.ShippingFee.Manila.Equal(decimal.NewFromInt(100)))
		require.True(t, c.ShippingFee.Provincial.Equal(decimal.NewFromInt(200)))
	})

	t.Run("partial fee rule override", func(t *testing.T) {
		meta := []byte(`{"contract":{"insurance_fee":{"value":0.02}}}`)

		c := ParseContract(meta, defaultContract())

		require.Equal(t, FeeTypePercent, c.InsuranceFee.Type, "type should keep its default")
		require.True(t, c.InsuranceFee.Value.Equal(decimal.NewFromFloat(0.02)))
		require.True(t, c.InsuranceFee.Max.Equal(decimal.NewFromInt(5)), "max should keep its default")
	})

	t.Run("pickup_retries null means unlimited", func(t *testing.T) {
		meta := []byte(`{"contract":{"pickup_retries":null}}`)

		c := ParseContract(meta, defaultContract())

		require.Nil(t, c.PickupRetries, "explicit null should mean unlimited retries")
	})

	t.Run("pickup_retries absent keeps default", func(t *testing.T) {
		meta := []byte(`{"contract":{"claim_period":10}}`)

		c := ParseContract(meta, defaultContract())

		require.NotNil(t, c.PickupRetries)
		require.Equal(t, 3, *c.PickupRetries)
	})

	t.Run("fuse_client flag", func(t *testing.T) {
		meta := []byte(`{"contract":{"fuse_client":true}}`)

		c := ParseContract(meta, defaultContract())

		require.True(t, c.FuseClient)
	})
}
