package party

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository/postgres"
	"github.com/shipworks/backoffice/internal/service/wallet"
	"github.com/shipworks/backoffice/internal/settings"
	"github.com/shipworks/backoffice/internal/testutil"
)

// The migration seeds the system party, so provisioning the wallet pools with
// unmodified defaults must work on a freshly migrated database.
func TestEnsureSystemWallets(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		cfg := settings.Default()
		parties := NewService(storage, cfg, logger.NewNoOp())

		require.NoError(t, parties.EnsureSystemWallets(t.Context()))

		system, err := parties.Get(t.Context(), cfg.SystemPartyID)
		require.NoError(t, err, "system party should be seeded by the migration")
		require.True(t, system.Active)

		wallets := wallet.NewService(storage, cfg, logger.NewNoOp())
		for _, kind := range []models.WalletKind{models.WalletSales, models.WalletCollections, models.WalletSettlement} {
			w, err := wallets.Balance(t.Context(), cfg.SystemPartyID, kind, "")
			require.NoError(t, err, "system %s wallet should exist", kind)
			require.True(t, w.Amount.IsZero())
			require.Nil(t, w.MaxLimit, "system pools are unbounded")
			require.Nil(t, w.CreditLimit, "system pools are unbounded")
		}

		// Calling again must not fail on the already provisioned pools
		require.NoError(t, parties.EnsureSystemWallets(t.Context()))
	})
}

func TestCreateOrganization(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		cfg := settings.Default()
		parties := NewService(storage, cfg, logger.NewNoOp())

		client, err := parties.CreateOrganization(t.Context(), CreateOrganizationParams{
			Name:  "Acme Trading",
			Roles: []string{models.RoleClient},
		})
		require.NoError(t, err)
		require.True(t, client.Active)

		// Clients come with a bounded fund wallet out of the box
		wallets := wallet.NewService(storage, cfg, logger.NewNoOp())
		w, err := wallets.Balance(t.Context(), client.ID, models.WalletFund, "")
		require.NoError(t, err)
		require.True(t, w.Amount.IsZero())
		require.NotNil(t, w.MaxLimit)
		require.True(t, w.MaxLimit.Equal(defaultMaxLimit))
		require.NotNil(t, w.CreditLimit)
		require.True(t, w.CreditLimit.IsZero())
	})
}
