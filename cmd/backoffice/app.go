package main

import (
	"context"
	"fmt"

	"github.com/shipworks/backoffice/internal/db"
	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/repository/postgres"
	"github.com/shipworks/backoffice/internal/service/claim"
	"github.com/shipworks/backoffice/internal/service/courier"
	"github.com/shipworks/backoffice/internal/service/order"
	"github.com/shipworks/backoffice/internal/service/party"
	"github.com/shipworks/backoffice/internal/service/wallet"
	"github.com/shipworks/backoffice/internal/settings"
)

// App wires the back office together: storage, the settings snapshot, and the
// domain services callers (batch jobs, an API layer living elsewhere) invoke.
type App struct {
	Logger   logger.Logger
	Settings *settings.Settings

	Parties  *party.Service
	Wallets  *wallet.Service
	Orders   *order.Service
	Couriers *courier.Service
	Claims   *claim.Service

	close func()
}

func NewApp(ctx context.Context, c *Config) (*App, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services over the shared settings snapshot
	cfg := settings.Default()
	partyService := party.NewService(storage, cfg, logger)
	walletService := wallet.NewService(storage, cfg, logger)
	orderService := order.NewService(storage, cfg, logger)
	courierService := courier.NewService(storage, cfg, logger)
	claimService := claim.NewService(storage, cfg, logger)

	// The system wallet pools must exist before any order can settle
	if err := partyService.EnsureSystemWallets(ctx); err != nil {
		return nil, fmt.Errorf("error while provisioning system wallets. Err: %w", err)
	}

	return &App{
		Logger:   logger,
		Settings: cfg,

		Parties:  partyService,
		Wallets:  walletService,
		Orders:   orderService,
		Couriers: courierService,
		Claims:   claimService,

		close: pool.Close,
	}, nil
}

// Run blocks until the context is cancelled, then releases the pool.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("back office ready")

	<-ctx.Done()

	a.close()
	a.Logger.Info("back office stopped")

	return nil
}
