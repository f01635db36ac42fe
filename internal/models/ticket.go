package models

import (
	"errors"
	"strings"
	"time"
)

// TicketStatus represents the status of a ticket
type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
)

// Ticket represents one admission credential, issued per purchased unit once
// its order is paid.
type Ticket struct {
	ID           int          `json:"id" db:"id"`
	OrderID      int          `json:"order_id" db:"order_id"`
	UnitID       int          `json:"unit_id" db:"unit_id"`
	TicketTypeID int          `json:"ticket_type_id" db:"ticket_type_id"`
	TicketCode   string       `json:"ticket_code" db:"ticket_code"`
	HolderName   string       `json:"holder_name" db:"holder_name"`
	HolderEmail  string       `json:"holder_email" db:"holder_email"`
	Status       TicketStatus `json:"status" db:"status"`
	// ValidationHash is the tamper-detection value embedded in the scannable
	// payload, kept alongside the ticket for audit.
	ValidationHash string     `json:"validation_hash" db:"validation_hash"`
	CheckedInAt    *time.Time `json:"checked_in_at,omitempty" db:"checked_in_at"`
	CheckedInBy    string     `json:"checked_in_by,omitempty" db:"checked_in_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Validate validates the ticket data
func (t *Ticket) Validate() error {
	if err := t.validateTicketCode(); err != nil {
		return err
	}

	return t.validateStatus()
}

// validateTicketCode validates the ticket code
func (t *Ticket) validateTicketCode() error {
	if t.TicketCode == "" {
		return errors.New("ticket code is required")
	}

	if len(t.TicketCode) > 255 {
		return errors.New("ticket code must be less than 255 characters")
	}

	if !strings.HasPrefix(t.TicketCode, "TKT-") {
		return errors.New("ticket code must start with TKT-")
	}

	return nil
}

// validateStatus validates the ticket status
func (t *Ticket) validateStatus() error {
	switch t.Status {
	case TicketActive, TicketUsed, TicketCancelled:
		return nil
	default:
		return errors.New("invalid ticket status")
	}
}

// IsActive returns true if the ticket is active
func (t *Ticket) IsActive() bool {
	return t.Status == TicketActive
}

// IsUsed returns true if the ticket has been used
func (t *Ticket) IsUsed() bool {
	return t.Status == TicketUsed
}

// CanBeUsed returns true if the ticket can be used for entry
func (t *Ticket) CanBeUsed() bool {
	return t.Status == TicketActive
}

// CanBeCancelled returns true if the ticket can be cancelled (refund flow)
func (t *Ticket) CanBeCancelled() bool {
	return t.Status == TicketActive
}
