// Package party provisions identities: clients with their fund wallet,
// couriers with their hubs, and the system party that owns the operational
// wallet pools.
package party

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/logger"
	"github.com/shipworks/backoffice/internal/models"
	"github.com/shipworks/backoffice/internal/repository"
	"github.com/shipworks/backoffice/internal/service/wallet"
	"github.com/shipworks/backoffice/internal/settings"
	"github.com/shipworks/backoffice/internal/validate"
)

// Default bounds for a freshly provisioned client fund wallet.
var (
	defaultMaxLimit    = decimal.NewFromInt(10000)
	defaultCreditLimit = decimal.Zero
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

type CreateOrganizationParams struct {
	Name       string   `json:"name" validate:"required"`
	Roles      []string `json:"roles"`
	Metadata   []byte   `json:"metadata"`
	ExternalID *string  `json:"external_id"`

	// Parent organization this one is a department of, e.g. a hub under its
	// courier.
	ParentPartyID *int64 `json:"parent_party_id"`
}

// CreateOrganization provisions an organization party with its roles and, for
// clients, the default fund wallet.
func (s *Service) CreateOrganization(ctx context.Context, p CreateOrganizationParams) (models.Party, error) {
	var party models.Party

	if err := validate.Struct(p); err != nil {
		return party, err
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		party, err = storage.Party().CreateParty(ctx, models.Party{
			Type:       models.PartyOrganization,
			Active:     true,
			Metadata:   p.Metadata,
			ExternalID: p.ExternalID,
		})
		if err != nil {
			return err
		}

		if err := storage.Party().CreateOrganization(ctx, party.ID, p.Name); err != nil {
			return err
		}

		isClient := false
		for _, role := range p.Roles {
			if err := storage.Party().AddRole(ctx, party.ID, role); err != nil {
				return err
			}
			if role == models.RoleClient {
				isClient = true
			}
		}

		if p.ParentPartyID != nil {
			if err := storage.Party().AddRelationship(ctx, party.ID, models.RelDepartmentOf, *p.ParentPartyID); err != nil {
				return err
			}
		}

		if isClient {
			maxLimit := defaultMaxLimit
			creditLimit := defaultCreditLimit

			wallets := wallet.NewService(storage, s.settings, s.logger)
			_, err := wallets.CreateWallet(ctx, wallet.CreateWalletParams{
				PartyID:     party.ID,
				Kind:        models.WalletFund,
				MaxLimit:    &maxLimit,
				CreditLimit: &creditLimit,
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return models.Party{}, err
	}

	s.logger.Info("organization provisioned", "party_id", party.ID, "name", p.Name, "roles", p.Roles)

	return party, nil
}

// EnsureSystemWallets creates the system-side wallet pools (sales,
// collections, settlement) for the configured system party. Pools are
// unbounded on both sides; the collections pool in particular runs negative
// between COD collection and remittance.
func (s *Service) EnsureSystemWallets(ctx context.Context) error {
	wallets := wallet.NewService(s.storage, s.settings, s.logger)

	for _, kind := range []models.WalletKind{models.WalletSales, models.WalletCollections, models.WalletSettlement} {
		_, err := wallets.Balance(ctx, s.settings.SystemPartyID, kind, "")
		if err == nil {
			continue
		}

		_, err = wallets.CreateWallet(ctx, wallet.CreateWalletParams{
			PartyID: s.settings.SystemPartyID,
			Kind:    kind,
		})
		if err != nil {
			return fmt.Errorf("system %s wallet: %w", kind, err)
		}
	}

	return nil
}

type CreateHubParams struct {
	Name           string         `json:"name" validate:"required"`
	CourierPartyID int64          `json:"courier_party_id" validate:"required"`
	Address        models.Address `json:"address"`
	PickupAreas    models.Areas   `json:"pickup_areas"`
	DeliveryAreas  models.Areas   `json:"delivery_areas"`
}

// CreateHub provisions a courier hub: an organization with the hub role, a
// department_of relationship to its courier, a business address, and the
// coverage areas in its metadata.
func (s *Service) CreateHub(ctx context.Context, p CreateHubParams) (models.Party, error) {
	var party models.Party

	if err := validate.Struct(p); err != nil {
		return party, err
	}

	metadata, err := json.Marshal(map[string]models.Areas{
		"pickup_areas":   p.PickupAreas,
		"delivery_areas": p.DeliveryAreas,
	})
	if err != nil {
		return party, fmt.Errorf("marshal hub metadata: %w", err)
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		party, err = storage.Party().CreateParty(ctx, models.Party{
			Type:     models.PartyOrganization,
			Active:   true,
			Metadata: metadata,
		})
		if err != nil {
			return err
		}

		if err := storage.Party().CreateOrganization(ctx, party.ID, p.Name); err != nil {
			return err
		}
		if err := storage.Party().AddRole(ctx, party.ID, models.RoleHub); err != nil {
			return err
		}
		if err := storage.Party().AddRelationship(ctx, party.ID, models.RelDepartmentOf, p.CourierPartyID); err != nil {
			return err
		}

		address := p.Address
		address.PartyID = party.ID
		address.Type = models.AddressBusiness
		if _, err := storage.Address().Upsert(ctx, address); err != nil {
			return fmt.Errorf("hub address: %w", err)
		}

		return nil
	})
	if err != nil {
		return models.Party{}, err
	}

	return party, nil
}

// Get returns the party by id.
func (s *Service) Get(ctx context.Context, partyID int64) (models.Party, error) {
	return s.storage.Party().GetParty(ctx, partyID)
}
