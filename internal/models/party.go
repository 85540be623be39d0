package models

import "time"

// Party types.
const (
	PartyUser         = "user"
	PartyOrganization = "organization"
)

// Party roles.
const (
	RoleClient  = "client"
	RoleCourier = "courier"
	RoleHub     = "hub"
)

// Relationship types.
const (
	RelDepartmentOf = "department_of"
)

// Party is the abstract identity (user or organization) that owns wallets,
// addresses, and roles. Metadata is an opaque JSON document; the contract
// lives under its "contract" key (see ParseContract).
type Party struct {
	ID         int64
	Type       string
	Active     bool
	Metadata   []byte
	ExternalID *string
	CreatedAt  time.Time
}

// Organization names a party of type organization.
type Organization struct {
	PartyID int64
	Name    string
}

type Currency struct {
	ID   int32
	Code string
}
