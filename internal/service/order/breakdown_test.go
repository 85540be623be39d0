package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
)

func TestItemBreakdown(t *testing.T) {
	t.Parallel()

	t.Run("sums each item type into its field", func(t *testing.T) {
		items := []ItemParams{
			{Type: models.ItemProduct, Description: "Shoes", Amount: decimal.NewFromInt(500), Quantity: 2},
			{Type: models.ItemProduct, Description: "Socks", Amount: decimal.NewFromInt(100), Quantity: 1},
			{Type: models.ItemShipping, Description: "Shipping", Amount: decimal.NewFromInt(150)},
			{Type: models.ItemTax, Description: "VAT", Amount: decimal.NewFromInt(132)},
			{Type: models.ItemFee, Description: "Handling", Amount: decimal.NewFromInt(10)},
			{Type: models.ItemInsurance, Description: "Insurance", Amount: decimal.NewFromInt(11)},
		}

		b, err := itemBreakdown(items)

		require.NoError(t, err)
		require.True(t, b.subtotal.Equal(decimal.NewFromInt(1100)), "subtotal should sum amount times quantity, got %s", b.subtotal)
		require.True(t, b.shipping.Equal(decimal.NewFromInt(150)))
		require.True(t, b.tax.Equal(decimal.NewFromInt(132)))
		require.True(t, b.fee.Equal(decimal.NewFromInt(10)))
		require.True(t, b.insurance.Equal(decimal.NewFromInt(11)))
		require.True(t, b.total().Equal(decimal.NewFromInt(1403)))
	})

	t.Run("missing fields treated as zero in total", func(t *testing.T) {
		items := []ItemParams{
			{Type: models.ItemProduct, Description: "Shoes", Amount: decimal.NewFromInt(500), Quantity: 1},
		}

		b, err := itemBreakdown(items)

		require.NoError(t, err)
		require.Nil(t, b.shipping)
		require.True(t, b.total().Equal(decimal.NewFromInt(500)))
	})

	t.Run("item amounts round to centavos before summing", func(t *testing.T) {
		items := []ItemParams{
			{Type: models.ItemProduct, Description: "Sticker", Amount: decimal.NewFromFloat(0.333), Quantity: 3},
			{Type: models.ItemShipping, Description: "Shipping", Amount: decimal.NewFromFloat(10.004)},
		}

		b, err := itemBreakdown(items)

		require.NoError(t, err)
		require.True(t, b.subtotal.Equal(decimal.NewFromFloat(0.99)), "0.33 x 3, got %s", b.subtotal)
		require.True(t, b.shipping.Equal(decimal.NewFromInt(10)))
		require.True(t, b.total().Equal(decimal.NewFromFloat(10.99)))
	})

	t.Run("zero quantity product counts as one", func(t *testing.T) {
		items := []ItemParams{
			{Type: models.ItemProduct, Description: "Shoes", Amount: decimal.NewFromInt(500)},
		}

		b, err := itemBreakdown(items)

		require.NoError(t, err)
		require.True(t, b.subtotal.Equal(decimal.NewFromInt(500)))
	})

	t.Run("no product item fails", func(t *testing.T) {
		items := []ItemParams{
			{Type: models.ItemShipping, Description: "Shipping", Amount: decimal.NewFromInt(150)},
		}

		_, err := itemBreakdown(items)

		require.ErrorIs(t, err, apperrors.ErrNoProductItem)
	})

	t.Run("unknown item type fails", func(t *testing.T) {
		items := []ItemParams{
			{Type: models.ItemProduct, Description: "Shoes", Amount: decimal.NewFromInt(500)},
			{Type: "discount", Description: "Promo", Amount: decimal.NewFromInt(-50)},
		}

		_, err := itemBreakdown(items)

		require.ErrorIs(t, err, apperrors.ErrInvalidItemType)
	})
}
