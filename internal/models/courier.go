package models

import (
	"encoding/json"
	"strings"
)

// ReferenceStrategy selects how a courier issues segment reference ids.
type ReferenceStrategy string

const (
	// RefSequence draws the reference from the courier's own number sequence.
	RefSequence ReferenceStrategy = "sequence"

	// RefOrderTracking reuses the order's tracking number.
	RefOrderTracking ReferenceStrategy = "order"
)

// Areas is a hub's serviceable-area list: either the wildcard "*" covering
// everything, or a list of area names matched as case-insensitive substrings
// of a formatted address.
type Areas struct {
	Wildcard bool
	Names    []string
}

func (a *Areas) UnmarshalJSON(data []byte) error {
	var wildcard string
	if err := json.Unmarshal(data, &wildcard); err == nil {
		a.Wildcard = wildcard == "*"
		a.Names = nil
		return nil
	}

	a.Wildcard = false
	return json.Unmarshal(data, &a.Names)
}

func (a Areas) MarshalJSON() ([]byte, error) {
	if a.Wildcard {
		return json.Marshal("*")
	}
	return json.Marshal(a.Names)
}

// Covers reports whether the formatted address falls inside the area list.
func (a Areas) Covers(formattedAddress string) bool {
	if a.Wildcard {
		return true
	}

	lowered := strings.ToLower(formattedAddress)
	for _, name := range a.Names {
		if strings.Contains(lowered, strings.ToLower(name)) {
			return true
		}
	}

	return false
}

// Hub is one courier facility with its own pickup and delivery coverage.
type Hub struct {
	PartyID       int64
	Name          string
	Address       Address
	PickupAreas   Areas
	DeliveryAreas Areas
}

// Courier is a partner organization that moves orders. Couriers are tried in
// ascending Priority order during routing.
type Courier struct {
	PartyID       int64
	Name          string
	Priority      int
	BarcodeFormat string
	RefStrategy   ReferenceStrategy
	Hubs          []Hub
}

// PickupHub returns the first hub whose pickup areas cover the address,
// or false when none does.
func (c Courier) PickupHub(address Address) (Hub, bool) {
	formatted := address.Format(", ")

	for _, hub := range c.Hubs {
		if hub.PickupAreas.Covers(formatted) {
			return hub, true
		}
	}

	return Hub{}, false
}

// DeliveryHub returns the first hub whose delivery areas cover the address,
// or false when none does.
func (c Courier) DeliveryHub(address Address) (Hub, bool) {
	formatted := address.Format(", ")

	for _, hub := range c.Hubs {
		if hub.DeliveryAreas.Covers(formatted) {
			return hub, true
		}
	}

	return Hub{}, false
}
