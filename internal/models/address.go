package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Address types.
const (
	AddressPickup    = "pickup"
	AddressDelivery  = "delivery"
	AddressBusiness  = "business"
	AddressWarehouse = "warehouse"
)

// Address is a party-owned postal address. Addresses are deduplicated by a
// content hash: storing identical content for the same party reuses the
// existing row and only refreshes the fields excluded from the hash
// (title, fax number, remarks).
type Address struct {
	ID           int64
	PartyID      int64
	Type         string
	Name         string
	Title        *string
	Email        *string
	PhoneNumber  *string
	MobileNumber *string
	FaxNumber    *string
	Company      *string
	Line1        string
	Line2        *string
	City         string
	State        string
	PostalCode   string
	CountryID    int64
	CountryCode  string
	Remarks      *string
	Hash         string
	CreatedAt    time.Time
}

// Format renders the address as a single string with the given delimiter
// between non-empty components.
func (a Address) Format(delimiter string) string {
	parts := []string{a.Line1}
	if a.Line2 != nil {
		parts = append(parts, *a.Line2)
	}
	parts = append(parts, a.City, a.State, a.PostalCode, a.CountryCode)

	formatted := strings.Join(parts, delimiter)
	formatted = strings.ReplaceAll(formatted, "  ", " ")

	return strings.TrimSpace(formatted)
}

// IsProvincial reports whether the address falls outside all of the given
// local areas. Matching is a case-insensitive substring check against the
// formatted address.
func (a Address) IsProvincial(localAreas []string) bool {
	formatted := strings.ToLower(a.Format(", "))

	for _, area := range localAreas {
		if strings.Contains(formatted, strings.ToLower(area)) {
			return false
		}
	}

	return true
}

// ContentHash computes the dedup hash over the identity-bearing fields.
// Title, fax number, and remarks are deliberately excluded, they can change
// without producing a new address row.
func (a Address) ContentHash() string {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return strings.TrimSpace(*s)
	}

	parts := []string{
		strings.TrimSpace(a.Type),
		strings.TrimSpace(a.Name),
		deref(a.Email),
		deref(a.PhoneNumber),
		deref(a.MobileNumber),
		deref(a.Company),
		strings.TrimSpace(a.Line1),
		deref(a.Line2),
		strings.TrimSpace(a.City),
		strings.TrimSpace(a.State),
		strings.TrimSpace(a.PostalCode),
		strings.TrimSpace(a.CountryCode),
	}

	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
