package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
)

type AddressRepo struct {
	db DBTX
}

// Identical content for the same party reuses the existing row; only the
// fields excluded from the content hash are refreshed on conflict.
const upsertAddress = `-- name: UpsertAddress
INSERT INTO addresses (party_id, type, name, title, email, phone_number, mobile_number, fax_number,
                       company, line_1, line_2, city, state, postal_code, country_id, remarks, hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (party_id, hash) DO UPDATE
SET title = EXCLUDED.title, fax_number = EXCLUDED.fax_number, remarks = EXCLUDED.remarks
RETURNING id, party_id, type, name, title, email, phone_number, mobile_number, fax_number,
          company, line_1, line_2, city, state, postal_code, country_id, remarks, hash, created_at
`

func (r *AddressRepo) Upsert(ctx context.Context, address models.Address) (models.Address, error) {
	countryID, err := r.CountryID(ctx, address.CountryCode)
	if err != nil {
		return models.Address{}, err
	}
	address.CountryID = countryID
	address.Hash = address.ContentHash()

	rows, _ := r.db.Query(ctx, upsertAddress,
		address.PartyID, address.Type, address.Name, address.Title, address.Email,
		address.PhoneNumber, address.MobileNumber, address.FaxNumber, address.Company,
		address.Line1, address.Line2, address.City, address.State, address.PostalCode,
		address.CountryID, address.Remarks, address.Hash)
	created, err := pgx.CollectOneRow(rows, rowToAddress)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	created.CountryCode = address.CountryCode
	return created, nil
}

const getAddress = `-- name: GetAddress
SELECT a.id, a.party_id, a.type, a.name, a.title, a.email, a.phone_number, a.mobile_number, a.fax_number,
       a.company, a.line_1, a.line_2, a.city, a.state, a.postal_code, a.country_id, a.remarks, a.hash, a.created_at,
       l.code
FROM addresses a
JOIN locations l ON l.id = a.country_id
WHERE a.id = $1
`

func (r *AddressRepo) Get(ctx context.Context, id int64) (models.Address, error) {
	rows, _ := r.db.Query(ctx, getAddress, id)
	address, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Address, error) {
		var a models.Address
		err := row.Scan(&a.ID, &a.PartyID, &a.Type, &a.Name, &a.Title, &a.Email, &a.PhoneNumber,
			&a.MobileNumber, &a.FaxNumber, &a.Company, &a.Line1, &a.Line2, &a.City, &a.State,
			&a.PostalCode, &a.CountryID, &a.Remarks, &a.Hash, &a.CreatedAt, &a.CountryCode)
		return a, err
	})
	if err != nil {
		return address, fmt.Errorf("db error: %w", err)
	}

	return address, nil
}

const getCountryID = `-- name: CountryID
SELECT id FROM locations
WHERE type = 'country' AND code = $1
`

func (r *AddressRepo) CountryID(ctx context.Context, code string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, getCountryID, code).Scan(&id)

	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, apperrors.ErrUnknownCountry
	default:
		return 0, fmt.Errorf("db error: %w", err)
	}
}

const createCountry = `-- name: CreateCountry
INSERT INTO locations (type, code, name)
VALUES ('country', $1, $2)
RETURNING id
`

func (r *AddressRepo) CreateCountry(ctx context.Context, code string, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, createCountry, code, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return id, nil
}

func rowToAddress(row pgx.CollectableRow) (models.Address, error) {
	var a models.Address
	err := row.Scan(&a.ID, &a.PartyID, &a.Type, &a.Name, &a.Title, &a.Email, &a.PhoneNumber,
		&a.MobileNumber, &a.FaxNumber, &a.Company, &a.Line1, &a.Line2, &a.City, &a.State,
		&a.PostalCode, &a.CountryID, &a.Remarks, &a.Hash, &a.CreatedAt)
	return a, err
}
