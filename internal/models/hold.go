package models

import (
	"errors"
	"time"
)

// HoldStatus represents the status of a hold
type HoldStatus string

const (
	HoldActive   HoldStatus = "active"
	HoldExpired  HoldStatus = "expired"
	HoldConsumed HoldStatus = "consumed"
	HoldReleased HoldStatus = "released"
)

// Hold represents a time-bounded claim by a customer session on a set of
// inventory units. The expiry recorded here is advisory for display; the
// authoritative check is always a conditional write against the store at the
// moment the hold is consumed or swept.
type Hold struct {
	ID        string     `json:"id" db:"id"`
	SessionID string     `json:"session_id" db:"session_id"`
	UnitIDs   []int      `json:"unit_ids"`
	Status    HoldStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
}

// Validate validates the hold data
func (h *Hold) Validate() error {
	if h.SessionID == "" {
		return errors.New("session id is required")
	}
	if len(h.UnitIDs) == 0 {
		return errors.New("hold must cover at least one unit")
	}
	if h.ExpiresAt.IsZero() {
		return errors.New("expiry time is required")
	}
	return validateHoldStatus(h.Status)
}

// validateHoldStatus validates a hold status value
func validateHoldStatus(status HoldStatus) error {
	switch status {
	case HoldActive, HoldExpired, HoldConsumed, HoldReleased:
		return nil
	default:
		return errors.New("invalid hold status")
	}
}

// IsActive returns true if the hold is active and not past its expiry at the
// given instant
func (h *Hold) IsActive(now time.Time) bool {
	return h.Status == HoldActive && now.Before(h.ExpiresAt)
}

// IsExpired returns true if the hold is past its expiry or already swept
func (h *Hold) IsExpired(now time.Time) bool {
	if h.Status == HoldExpired {
		return true
	}
	return h.Status == HoldActive && !now.Before(h.ExpiresAt)
}

// IsTerminal returns true once the hold can no longer change state
func (h *Hold) IsTerminal() bool {
	return h.Status == HoldConsumed || h.Status == HoldReleased
}

// Remaining returns the time left on an active hold, for display countdowns
func (h *Hold) Remaining(now time.Time) time.Duration {
	if !h.IsActive(now) {
		return 0
	}
	return h.ExpiresAt.Sub(now)
}
