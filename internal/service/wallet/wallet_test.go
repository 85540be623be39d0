package wallet_test

import (
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository"
	"github.com/shipworks/backoffice/internal/repository/postgres"
	"github.com/shipworks/backoffice/internal/service/party"
	"github.com/shipworks/backoffice/internal/service/wallet"
	"github.com/shipworks/backoffice/internal/settings"
	"github.com/shipworks/backoffice/internal/testutil"
)

type fixtures struct {
	cfg     *settings.Settings
	storage repository.Storage
	wallets *wallet.Service
	parties *party.Service
	client  models.Party
	other   models.Party
}

// Provision the system party with its wallet pools and two client
// organizations. The system party id is taken from the created row, the
// sequence is shared across tests.
func setupFixtures(t *testing.T, storage repository.Storage) fixtures {
	t.Helper()
	ctx := t.Context()

	cfg := settings.Default()
	parties := party.NewService(storage, cfg, logger.NewNoOp())

	system, err := parties.CreateOrganization(ctx, party.CreateOrganizationParams{Name: "Shipworks"})
	require.NoError(t, err, "creating system party should not fail")
	cfg.SystemPartyID = system.ID

	require.NoError(t, parties.EnsureSystemWallets(ctx), "provisioning system wallets should not fail")

	client, err := parties.CreateOrganization(ctx, party.CreateOrganizationParams{
		Name:  "Acme Trading",
		Roles: []string{models.RoleClient},
	})
	require.NoError(t, err, "creating client should not fail")

	other, err := parties.CreateOrganization(ctx, party.CreateOrganizationParams{
		Name:  "Bravo Goods",
		Roles: []string{models.RoleClient},
	})
	require.NoError(t, err, "creating second client should not fail")

	return fixtures{
		cfg:     cfg,
		storage: storage,
		wallets: wallet.NewService(storage, cfg, logger.NewNoOp()),
		parties: parties,
		client:  client,
		other:   other,
	}
}

func TestTransfer(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(f fixtures)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(setupFixtures(t, postgres.NewStorage(tx)))
		})
	}

	// Top up a client fund wallet from the unbounded system settlement pool.
	topUp := func(t *testing.T, f fixtures, partyID int64, amount int64) {
		_, err := f.wallets.Transfer(t.Context(), wallet.TransferParams{
			FromPartyID: f.cfg.SystemPartyID,
			FromKind:    models.WalletSettlement,
			ToPartyID:   partyID,
			ToKind:      models.WalletFund,
			Amount:      decimal.NewFromInt(amount),
			Kind:        models.TransferFund,
			Details:     "test top up",
		})
		require.NoError(t, err, "top up transfer should not fail")
	}

	t.Run("moves money and writes the audit trail", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			topUp(t, f, f.client.ID, 1000)

			transfer, err := f.wallets.Transfer(t.Context(), wallet.TransferParams{
				FromPartyID: f.client.ID,
				FromKind:    models.WalletFund,
				ToPartyID:   f.other.ID,
				ToKind:      models.WalletFund,
				Amount:      decimal.NewFromFloat(123.45),
				Kind:        models.TransferTransfer,
				Details:     "test transfer",
			})

			require.NoError(t, err, "transfer should not fail")
			require.NotEmpty(t, transfer.ID)
			require.True(t, transfer.Amount.Equal(decimal.NewFromFloat(123.45)))

			from, err := f.wallets.Balance(t.Context(), f.client.ID, models.WalletFund, "")
			require.NoError(t, err)
			require.True(t, from.Amount.Equal(decimal.NewFromFloat(876.55)), "source balance off, got %s", from.Amount)

			to, err := f.wallets.Balance(t.Context(), f.other.ID, models.WalletFund, "")
			require.NoError(t, err)
			require.True(t, to.Amount.Equal(decimal.NewFromFloat(123.45)), "destination balance off, got %s", to.Amount)

			// Each side logs its signed delta; the two deltas of one
			// transfer must sum to zero
			logs, err := f.wallets.Logs(t.Context(), from.ID)
			require.NoError(t, err)
			require.Len(t, logs, 2, "top up and transfer should log once each")

			toLogs, err := f.wallets.Logs(t.Context(), to.ID)
			require.NoError(t, err)
			require.Len(t, toLogs, 1)

			sum := decimal.Zero
			for _, l := range append(logs, toLogs...) {
				if l.TransferID == transfer.ID {
					sum = sum.Add(l.Amount)
					require.Contains(t, []int64{from.ID, to.ID}, l.WalletID)
				}
			}
			require.True(t, sum.IsZero(), "transfer log deltas should sum to zero, got %s", sum)

			stored, err := f.storage.Wallet().GetTransfer(t.Context(), transfer.ID)
			require.NoError(t, err)
			require.Equal(t, from.ID, stored.FromWalletID)
			require.Equal(t, to.ID, stored.ToWalletID)
			require.Equal(t, models.TransferTransfer, stored.Kind)
			require.True(t, stored.Amount.Equal(transfer.Amount))
		})
	})

	t.Run("amount must round to something positive", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			for _, amount := range []decimal.Decimal{
				decimal.Zero,
				decimal.NewFromInt(-5),
				decimal.NewFromFloat(0.004),
			} {
				_, err := f.wallets.Transfer(t.Context(), wallet.TransferParams{
					FromPartyID: f.client.ID,
					FromKind:    models.WalletFund,
					ToPartyID:   f.other.ID,
					ToKind:      models.WalletFund,
					Amount:      amount,
					Kind:        models.TransferTransfer,
					Details:     "bad amount",
				})

				require.ErrorIs(t, err, apperrors.ErrInvalidAmount, "amount %s should be rejected", amount)
			}
		})
	})

	t.Run("unknown currency", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			_, err := f.wallets.Transfer(t.Context(), wallet.TransferParams{
				FromPartyID: f.client.ID,
				FromKind:    models.WalletFund,
				ToPartyID:   f.other.ID,
				ToKind:      models.WalletFund,
				Currency:    "XXX",
				Amount:      decimal.NewFromInt(10),
				Kind:        models.TransferTransfer,
				Details:     "bad currency",
			})

			require.ErrorIs(t, err, apperrors.ErrUnknownCurrency)
		})
	})

	t.Run("missing wallet", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			// Clients are provisioned with a fund wallet only
			_, err := f.wallets.Transfer(t.Context(), wallet.TransferParams{
				FromPartyID: f.client.ID,
				FromKind:    models.WalletSales,
				ToPartyID:   f.other.ID,
				ToKind:      models.WalletFund,
				Amount:      decimal.NewFromInt(10),
				Kind:        models.TransferTransfer,
				Details:     "no such wallet",
			})

			require.ErrorIs(t, err, apperrors.ErrWalletNotFound)
		})
	})

	t.Run("source and destination must differ", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			_, err := f.wallets.Transfer(t.Context(), wallet.TransferParams{
				FromPartyID: f.client.ID,
				FromKind:    models.WalletFund,
				ToPartyID:   f.client.ID,
				ToKind:      models.WalletFund,
				Amount:      decimal.NewFromInt(10),
				Kind:        models.TransferTransfer,
				Details:     "self transfer",
			})

			require.ErrorIs(t, err, apperrors.ErrSameWallet)
		})
	})

	t.Run("credit limit bounds the source", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			creditLimit := decimal.NewFromInt(-10000)
			_, err := f.wallets.CreateWallet(t.Context(), wallet.CreateWalletParams{
				PartyID:     f.client.ID,
				Kind:        models.WalletSettlement,
				CreditLimit: &creditLimit,
			})
			require.NoError(t, err)

			send := func(amount int64) error {
				_, err := f.wallets.Transfer(t.Context(), wallet.TransferParams{
					FromPartyID: f.client.ID,
					FromKind:    models.WalletSettlement,
					ToPartyID:   f.other.ID,
					ToKind:      models.WalletFund,
					Amount:      decimal.NewFromInt(amount),
					Kind:        models.TransferTransfer,
					Details:     "credit limit test",
				})
				return err
			}

			require.NoError(t, send(500), "balance -500 is within the credit limit")
			require.NoError(t, send(600), "balance -1100 is within the credit limit")
			require.ErrorIs(t, send(9000), apperrors.ErrInsufficientFunds, "balance -10100 would breach the credit limit")

			w, err := f.wallets.Balance(t.Context(), f.client.ID, models.WalletSettlement, "")
			require.NoError(t, err)
			require.True(t, w.Amount.Equal(decimal.NewFromInt(-1100)), "failed transfer must not move money, got %s", w.Amount)
		})
	})

	t.Run("max limit bounds the destination", func(t *testing.T) {
		withTx(t, func(f fixtures) {
			topUp(t, f, f.client.ID, 5000)

			// Client fund wallets carry the default 10000 max limit
			_, err := f.wallets.Transfer(t.Context(), wallet.TransferParams{
				FromPartyID: f.cfg.SystemPartyID,
				FromKind:    models.WalletSettlement,
				ToPartyID:   f.client.ID,
				ToKind:      models.WalletFund,
				Amount:      decimal.NewFromInt(5001),
				Kind:        models.TransferFund,
				Details:     "max limit test",
			})

			require.ErrorIs(t, err, apperrors.ErrMaxLimitExceeded)
		})
	})
}

// Two concurrent transfers race to drain the same wallet to its credit limit:
// exactly one may win. Runs against the pool directly since concurrent
// transactions cannot share the rollback wrapper.
func TestTransferConcurrency(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	f := setupFixtures(t, storage)

	creditLimit := decimal.NewFromInt(-1000)
	_, err := f.wallets.CreateWallet(t.Context(), wallet.CreateWalletParams{
		PartyID:     f.client.ID,
		Kind:        models.WalletSettlement,
		CreditLimit: &creditLimit,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, errs[i] = f.wallets.Transfer(t.Context(), wallet.TransferParams{
				FromPartyID: f.client.ID,
				FromKind:    models.WalletSettlement,
				ToPartyID:   f.other.ID,
				ToKind:      models.WalletFund,
				Amount:      decimal.NewFromInt(600),
				Kind:        models.TransferTransfer,
				Details:     "concurrent drain",
			})
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
			failed++
		}
	}
	require.Equal(t, 1, failed, "exactly one of the two transfers must lose the race")

	w, err := f.wallets.Balance(t.Context(), f.client.ID, models.WalletSettlement, "")
	require.NoError(t, err)
	require.True(t, w.Amount.Equal(decimal.NewFromInt(-600)), "no lost update: one transfer applied, got %s", w.Amount)
}
