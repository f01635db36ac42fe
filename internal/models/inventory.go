package models

import (
	"errors"
	"time"
)

// UnitStatus represents the lifecycle state of a sellable inventory unit
type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitHeld      UnitStatus = "held"
	UnitReserved  UnitStatus = "reserved"
	UnitSold      UnitStatus = "sold"
)

// InventoryUnit represents one sellable unit: a specific seat, or one unit of
// a ticket type's general-admission capacity. A unit is in exactly one status
// at any instant, and its status is only ever written through conditional
// updates in the inventory, hold and order repositories.
type InventoryUnit struct {
	ID           int        `json:"id" db:"id"`
	EventID      int        `json:"event_id" db:"event_id"`
	TicketTypeID int        `json:"ticket_type_id" db:"ticket_type_id"`
	Status       UnitStatus `json:"status" db:"status"`
	Price        int        `json:"price" db:"price"` // Price in cents
	Section      string     `json:"section,omitempty" db:"section"`
	Row          string     `json:"row,omitempty" db:"row"`
	Seat         string     `json:"seat,omitempty" db:"seat"`
	HoldID       string     `json:"hold_id,omitempty" db:"hold_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// TicketType represents a class of inventory for an event. Capacity is
// tracked as individual inventory units rather than a sold counter, so
// availability is always derived from a fresh count of available units.
type TicketType struct {
	ID          int       `json:"id" db:"id"`
	EventID     int       `json:"event_id" db:"event_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       int       `json:"price" db:"price"` // Price in cents
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Event holds the fields the reservation core needs for ticket credentials.
// Event CRUD itself lives outside this service.
type Event struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Venue     string    `json:"venue" db:"venue"`
	StartsAt  time.Time `json:"starts_at" db:"starts_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CartItem is one line of a cart being validated: a ticket type and how many
// units of it the customer wants.
type CartItem struct {
	TicketTypeID int `json:"ticket_type_id"`
	Quantity     int `json:"quantity"`
}

// CartValidation is the result of a read-only availability check.
type CartValidation struct {
	Valid  bool               `json:"valid"`
	Errors []AvailabilityItem `json:"errors,omitempty"`
}

// Validate validates a cart item
func (c *CartItem) Validate() error {
	if c.TicketTypeID <= 0 {
		return errors.New("ticket type id is required")
	}
	if c.Quantity <= 0 {
		return errors.New("quantity must be greater than 0")
	}
	return nil
}

// IsSeated returns true if the unit carries seat coordinates
func (u *InventoryUnit) IsSeated() bool {
	return u.Section != "" || u.Seat != ""
}

// IsAvailable returns true if the unit can currently be held or reserved
func (u *InventoryUnit) IsAvailable() bool {
	return u.Status == UnitAvailable
}

// PriceInCurrency returns the price in the main currency as a float
func (u *InventoryUnit) PriceInCurrency() float64 {
	return float64(u.Price) / 100.0
}

// validateUnitStatus validates an inventory unit status value
func validateUnitStatus(status UnitStatus) error {
	switch status {
	case UnitAvailable, UnitHeld, UnitReserved, UnitSold:
		return nil
	default:
		return errors.New("invalid inventory unit status")
	}
}

// Validate validates the inventory unit data
func (u *InventoryUnit) Validate() error {
	if u.EventID <= 0 {
		return errors.New("event id is required")
	}
	if u.TicketTypeID <= 0 {
		return errors.New("ticket type id is required")
	}
	if u.Price < 0 {
		return errors.New("unit price cannot be negative")
	}
	return validateUnitStatus(u.Status)
}
