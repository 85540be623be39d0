package claim

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository"
	"github.com/shipworks/backoffice/internal/repository/postgres"
	"github.com/shipworks/backoffice/internal/service/order"
	"github.com/shipworks/backoffice/internal/service/party"
	"github.com/shipworks/backoffice/internal/service/wallet"
	"github.com/shipworks/backoffice/internal/settings"
	"github.com/shipworks/backoffice/internal/testutil"
)

type fixtures struct {
	cfg     *settings.Settings
	storage repository.Storage
	claims  *Service
	orders  *order.Service
	wallets *wallet.Service
	client  models.Party
	order   models.Order
}

// Provision a client with a funded wallet and one delivered cod order, the
// starting point of every claim.
func setupFixtures(t *testing.T, storage repository.Storage) fixtures {
	t.Helper()
	ctx := t.Context()

	_, err := storage.Address().CreateCountry(ctx, "PH", "Philippines")
	require.NoError(t, err)

	cfg := settings.Default()
	parties := party.NewService(storage, cfg, logger.NewNoOp())

	system, err := parties.CreateOrganization(ctx, party.CreateOrganizationParams{Name: "Shipworks"})
	require.NoError(t, err)
	cfg.SystemPartyID = system.ID
	require.NoError(t, parties.EnsureSystemWallets(ctx))

	client, err := parties.CreateOrganization(ctx, party.CreateOrganizationParams{
		Name:  "Acme Trading",
		Roles: []string{models.RoleClient},
	})
	require.NoError(t, err)

	courier, err := parties.CreateOrganization(ctx, party.CreateOrganizationParams{
		Name:     "FastGo Logistics",
		Roles:    []string{models.RoleCourier},
		Metadata: []byte(`{"priority":1,"barcode_format":"code128","tracking":"sequence"}`),
	})
	require.NoError(t, err)

	_, err = parties.CreateHub(ctx, party.CreateHubParams{
		Name:           "Manila Hub",
		CourierPartyID: courier.ID,
		Address: models.Address{
			Name:        "Manila Hub",
			Line1:       "7 Logistics Compound",
			City:        "Pasig",
			State:       "Metro Manila",
			PostalCode:  "1600",
			CountryCode: "PH",
		},
		PickupAreas:   models.Areas{Wildcard: true},
		DeliveryAreas: models.Areas{Wildcard: true},
	})
	require.NoError(t, err)

	wallets := wallet.NewService(storage, cfg, logger.NewNoOp())
	_, err = wallets.Transfer(ctx, wallet.TransferParams{
		FromPartyID: cfg.SystemPartyID,
		FromKind:    models.WalletSettlement,
		ToPartyID:   client.ID,
		ToKind:      models.WalletFund,
		Amount:      decimal.NewFromInt(1000),
		Kind:        models.TransferFund,
		Details:     "test top up",
	})
	require.NoError(t, err)

	orders := order.NewService(storage, cfg, logger.NewNoOp())
	ord, err := orders.Store(ctx, order.CreateOrderParams{
		PartyID:         client.ID,
		ReferenceID:     "ACME-0001",
		PaymentMethod:   models.PaymentMethodCOD,
		PaymentProvider: "internal",
		BuyerName:       "Juan dela Cruz",
		PickupAddress: &order.AddressParams{
			Name:        "Acme Warehouse",
			Line1:       "1 Industry St",
			City:        "Makati",
			State:       "Metro Manila",
			PostalCode:  "1200",
			CountryCode: "PH",
		},
		DeliveryAddress: order.AddressParams{
			Name:        "Juan dela Cruz",
			Line1:       "12 Kalayaan Ave",
			City:        "Quezon City",
			State:       "Metro Manila",
			PostalCode:  "1100",
			CountryCode: "PH",
		},
		GrandTotal: decimal.NewFromInt(1000),
		Items: []order.ItemParams{
			{Type: models.ItemProduct, Description: "Running shoes", Amount: decimal.NewFromInt(1000), Quantity: 1},
		},
	})
	require.NoError(t, err, "creating order should not fail")

	ord, err = orders.Delivered(ctx, ord.ID, nil)
	require.NoError(t, err, "delivering order should not fail")

	return fixtures{
		cfg:     cfg,
		storage: storage,
		claims:  NewService(storage, cfg, logger.NewNoOp()),
		orders:  orders,
		wallets: wallets,
		client:  client,
		order:   ord,
	}
}

func claimParams(orderID int64) CreateClaimParams {
	return CreateClaimParams{
		OrderID:   orderID,
		Amount:    decimal.NewFromInt(400),
		Reason:    "item damaged in transit",
		CreatedBy: map[string]string{"user": "support@acme.test"},
	}
}

func TestStoreClaim(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(f fixtures)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(setupFixtures(t, postgres.NewStorage(tx)))
		})
	}

	t.Run("files the claim and marks the order claimed", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			claim, err := f.claims.Store(t.Context(), claimParams(f.order.ID))

			require.NoError(t, err)
			require.Equal(t, models.ClaimPending, claim.Status)
			require.Equal(t, f.order.ID, claim.OrderID)
			require.NotEmpty(t, claim.RequestNumber)
			require.Contains(t, claim.TAT, models.ClaimPending)
			require.Equal(t, "support@acme.test", claim.TAT[models.ClaimPending].CreatedBy["user"])

			ord, err := f.orders.Get(t.Context(), f.order.ID)
			require.NoError(t, err)
			require.Equal(t, models.OrderClaimed, ord.Status)
		})
	})

	t.Run("one claim per order", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			_, err := f.claims.Store(t.Context(), claimParams(f.order.ID))
			require.NoError(t, err)

			// Even with the order back in delivered the claim row blocks a second one
			_, err = f.orders.SetStatus(t.Context(), f.order.ID, models.OrderDelivered, nil)
			require.NoError(t, err)

			_, err = f.claims.Store(t.Context(), claimParams(f.order.ID))

			require.ErrorIs(t, err, apperrors.ErrAlreadyClaimed)
		})
	})

	t.Run("amount may not exceed the grand total", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			p := claimParams(f.order.ID)
			p.Amount = decimal.NewFromInt(1001)

			_, err := f.claims.Store(t.Context(), p)

			require.ErrorIs(t, err, apperrors.ErrAmountExceedsTotal)
		})
	})

	t.Run("order must be delivered", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			_, err := f.orders.Returned(t.Context(), f.order.ID, nil)
			require.NoError(t, err)

			_, err = f.claims.Store(t.Context(), claimParams(f.order.ID))

			require.ErrorIs(t, err, apperrors.ErrOrderNotDelivered)
		})
	})

	t.Run("claim window is bounded by the contract period", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			// Backdate the delivery past the default seven day window
			tat := f.order.TAT
			tat[models.OrderDelivered] = time.Now().UTC().AddDate(0, 0, -10)
			err := f.storage.Order().UpdateStatus(t.Context(), f.order.ID, models.OrderDelivered, tat)
			require.NoError(t, err)

			_, err = f.claims.Store(t.Context(), claimParams(f.order.ID))

			require.ErrorIs(t, err, apperrors.ErrClaimWindowExpired)
		})
	})

	t.Run("reason is mandatory", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			p := claimParams(f.order.ID)
			p.Reason = ""

			_, err := f.claims.Store(t.Context(), p)

			var vErr *apperrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Contains(t, vErr.Fields, "reason")
		})
	})
}

func TestClaimLifecycle(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withClaim := func(t *testing.T, params func(int64) CreateClaimParams, fn func(f fixtures, claim models.Claim)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			f := setupFixtures(t, postgres.NewStorage(tx))

			claim, err := f.claims.Store(t.Context(), params(f.order.ID))
			require.NoError(t, err, "filing claim should not fail")

			fn(f, claim)
		})
	}

	t.Run("verified refunds the amount plus flagged fees", func(t *testing.T) {
		flagged := func(orderID int64) CreateClaimParams {
			p := claimParams(orderID)
			p.ShippingFeeFlag = true
			return p
		}

		withClaim(t, flagged, func(f fixtures, claim models.Claim) {
			fundBefore, err := f.wallets.Balance(t.Context(), f.client.ID, models.WalletFund, "")
			require.NoError(t, err)

			verified, err := f.claims.Verified(t.Context(), f.order.ID, map[string]string{"user": "ops@shipworks.test"})

			require.NoError(t, err)
			require.Equal(t, models.ClaimVerified, verified.Status)
			require.Contains(t, verified.TAT, models.ClaimVerified)

			// 400 claimed plus the 100 shipping fee
			refund := decimal.NewFromInt(500)

			fund, err := f.wallets.Balance(t.Context(), f.client.ID, models.WalletFund, "")
			require.NoError(t, err)
			require.True(t, fund.Amount.Equal(fundBefore.Amount.Add(refund)), "fund balance off, got %s", fund.Amount)

			// Verifying again must not refund twice
			_, err = f.claims.Verified(t.Context(), f.order.ID, nil)
			require.NoError(t, err)

			fundAfter, err := f.wallets.Balance(t.Context(), f.client.ID, models.WalletFund, "")
			require.NoError(t, err)
			require.True(t, fundAfter.Amount.Equal(fund.Amount), "repeated verification must not move money")
		})
	})

	t.Run("settled records the payout reference", func(t *testing.T) {
		withClaim(t, claimParams, func(f fixtures, claim models.Claim) {
			_, err := f.claims.Verified(t.Context(), f.order.ID, nil)
			require.NoError(t, err)

			settled, err := f.claims.Settled(t.Context(), f.order.ID, "PAYOUT-42", nil)

			require.NoError(t, err)
			require.Equal(t, models.ClaimSettled, settled.Status)
			require.NotNil(t, settled.ReferenceID)
			require.Equal(t, "PAYOUT-42", *settled.ReferenceID)
		})
	})

	t.Run("settled requires a reference", func(t *testing.T) {
		withClaim(t, claimParams, func(f fixtures, claim models.Claim) {
			_, err := f.claims.Settled(t.Context(), f.order.ID, "", nil)

			var vErr *apperrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Contains(t, vErr.Fields, "reference_id")
		})
	})

	t.Run("declined requires remarks", func(t *testing.T) {
		withClaim(t, claimParams, func(f fixtures, claim models.Claim) {
			_, err := f.claims.Declined(t.Context(), f.order.ID, nil, nil)
			require.ErrorIs(t, err, apperrors.ErrRemarksRequired)

			remarks := "no damage visible on the attached photos"
			declined, err := f.claims.Declined(t.Context(), f.order.ID, &remarks, nil)

			require.NoError(t, err)
			require.Equal(t, models.ClaimDeclined, declined.Status)
			require.Equal(t, remarks, *declined.Remarks)
		})
	})
}
