package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/shipworks/backoffice/internal/apperrors"
	"github.com/shipworks/backoffice/internal/models"
)

type CourierRepo struct {
	db DBTX
}

// Routing knobs live in the party metadata so adding a courier is a data
// change, not a schema change.
type courierMetadata struct {
	Priority      int    `json:"priority"`
	BarcodeFormat string `json:"barcode_format"`
	Tracking      string `json:"tracking"`
}

type hubMetadata struct {
	PickupAreas   models.Areas `json:"pickup_areas"`
	DeliveryAreas models.Areas `json:"delivery_areas"`
}

const listCouriers = `-- name: ListCouriers
SELECT p.id, o.name, p.metadata
FROM parties p
JOIN organizations o ON o.party_id = p.id
JOIN party_roles pr ON pr.party_id = p.id AND pr.role = 'courier'
WHERE p.status = 1
`

const listCourierHubs = `-- name: ListCourierHubs
SELECT p.id, o.name, p.metadata,
       a.id, a.party_id, a.type, a.name, a.title, a.email, a.phone_number, a.mobile_number, a.fax_number,
       a.company, a.line_1, a.line_2, a.city, a.state, a.postal_code, a.country_id, a.remarks, a.hash, a.created_at,
       l.code
FROM parties p
JOIN organizations o ON o.party_id = p.id
JOIN party_roles pr ON pr.party_id = p.id AND pr.role = 'hub'
JOIN relationships rel ON rel.from_party_id = p.id AND rel.type = 'department_of' AND rel.to_party_id = $1
JOIN addresses a ON a.party_id = p.id AND a.type = 'business'
JOIN locations l ON l.id = a.country_id
WHERE p.status = 1
ORDER BY p.id
`

func (r *CourierRepo) ListActive(ctx context.Context) ([]models.Courier, error) {
	rows, _ := r.db.Query(ctx, listCouriers)
	couriers, err := pgx.CollectRows(rows, rowToCourier)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(couriers) == 0 {
		return nil, apperrors.ErrNoCouriers
	}

	for i := range couriers {
		hubs, err := r.listHubs(ctx, couriers[i].PartyID)
		if err != nil {
			return nil, err
		}
		couriers[i].Hubs = hubs
	}

	sort.SliceStable(couriers, func(i, j int) bool {
		return couriers[i].Priority < couriers[j].Priority
	})

	return couriers, nil
}

func (r *CourierRepo) listHubs(ctx context.Context, courierPartyID int64) ([]models.Hub, error) {
	rows, _ := r.db.Query(ctx, listCourierHubs, courierPartyID)
	hubs, err := pgx.CollectRows(rows, rowToHub)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return hubs, nil
}

const nextCourierReference = `-- name: NextCourierReference
SELECT nextval('courier_reference_seq')
`

func (r *CourierRepo) NextReference(ctx context.Context) (int64, error) {
	var ref int64
	err := r.db.QueryRow(ctx, nextCourierReference).Scan(&ref)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return ref, nil
}

func rowToCourier(row pgx.CollectableRow) (models.Courier, error) {
	var c models.Courier
	var rawMetadata []byte

	if err := row.Scan(&c.PartyID, &c.Name, &rawMetadata); err != nil {
		return c, err
	}

	var meta courierMetadata
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &meta); err != nil {
			return c, fmt.Errorf("unmarshal courier metadata: %w", err)
		}
	}

	c.Priority = meta.Priority
	c.BarcodeFormat = meta.BarcodeFormat
	c.RefStrategy = models.ReferenceStrategy(meta.Tracking)
	if c.RefStrategy == "" {
		c.RefStrategy = models.RefSequence
	}

	return c, nil
}

func rowToHub(row pgx.CollectableRow) (models.Hub, error) {
	var h models.Hub
	var rawMetadata []byte
	a := &h.Address

	err := row.Scan(&h.PartyID, &h.Name, &rawMetadata,
		&a.ID, &a.PartyID, &a.Type, &a.Name, &a.Title, &a.Email, &a.PhoneNumber,
		&a.MobileNumber, &a.FaxNumber, &a.Company, &a.Line1, &a.Line2, &a.City, &a.State,
		&a.PostalCode, &a.CountryID, &a.Remarks, &a.Hash, &a.CreatedAt, &a.CountryCode)
	if err != nil {
		return h, err
	}

	var meta hubMetadata
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &meta); err != nil {
			return h, fmt.Errorf("unmarshal hub metadata: %w", err)
		}
	}

	h.PickupAreas = meta.PickupAreas
	h.DeliveryAreas = meta.DeliveryAreas

	return h, nil
}
