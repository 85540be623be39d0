package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
)

type PartyRepo struct {
	db DBTX
}

const createParty = `-- name: CreateParty
INSERT INTO parties (type, status, metadata, external_id)
VALUES ($1, $2, $3, $4)
RETURNING id, type, status, metadata, external_id, created_at
`

func (r *PartyRepo) CreateParty(ctx context.Context, party models.Party) (models.Party, error) {
	status := int16(0)
	if party.Active {
		status = 1
	}

	rows, _ := r.db.Query(ctx, createParty, party.Type, status, party.Metadata, party.ExternalID)
	created, err := pgx.CollectOneRow(rows, rowToParty)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const createOrganization = `-- name: CreateOrganization
INSERT INTO organizations (party_id, name)
VALUES ($1, $2)
`

func (r *PartyRepo) CreateOrganization(ctx context.Context, partyID int64, name string) error {
	_, err := r.db.Exec(ctx, createOrganization, partyID, name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const addRole = `-- name: AddRole
INSERT INTO party_roles (party_id, role)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

func (r *PartyRepo) AddRole(ctx context.Context, partyID int64, role string) error {
	_, err := r.db.Exec(ctx, addRole, partyID, role)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const addRelationship = `-- name: AddRelationship
INSERT INTO relationships (from_party_id, type, to_party_id)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`

func (r *PartyRepo) AddRelationship(ctx context.Context, fromPartyID int64, relType string, toPartyID int64) error {
	_, err := r.db.Exec(ctx, addRelationship, fromPartyID, relType, toPartyID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const getParty = `-- name: GetParty
SELECT id, type, status, metadata, external_id, created_at FROM parties
WHERE id = $1
`

func (r *PartyRepo) GetParty(ctx context.Context, partyID int64) (models.Party, error) {
	rows, _ := r.db.Query(ctx, getParty, partyID)
	party, err := pgx.CollectOneRow(rows, rowToParty)

	switch {
	case err == nil:
		return party, nil
	case errors.Is(err, pgx.ErrNoRows):
		return party, apperrors.ErrPartyNotFound
	default:
		return party, fmt.Errorf("db error: %w", err)
	}
}

const getCurrencyID = `-- name: CurrencyID
SELECT id FROM currencies
WHERE code = $1
`

func (r *PartyRepo) CurrencyID(ctx context.Context, code string) (int32, error) {
	var id int32
	err := r.db.QueryRow(ctx, getCurrencyID, code).Scan(&id)

	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, apperrors.ErrUnknownCurrency
	default:
		return 0, fmt.Errorf("db error: %w", err)
	}
}

func rowToParty(row pgx.CollectableRow) (models.Party, error) {
	var p models.Party
	var status int16

	err := row.Scan(&p.ID, &p.Type, &status, &p.Metadata, &p.ExternalID, &p.CreatedAt)
	p.Active = status == 1

	return p, err
}
