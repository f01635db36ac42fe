package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors used throughout the application
var (
	ErrUnitsUnavailable      = errors.New("requested inventory units are unavailable")
	ErrHoldNotFound          = errors.New("hold not found")
	ErrHoldExpired           = errors.New("hold has expired")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrPaymentDeclined       = errors.New("payment was declined")
	ErrPaymentTimeout        = errors.New("payment gateway timed out")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderExpired          = errors.New("order verification window has elapsed")
	ErrDuplicateOrder        = errors.New("order with this idempotency key already exists")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrTicketAlreadyUsed     = errors.New("ticket has already been used")
	ErrTicketCancelled       = errors.New("ticket has been cancelled")
	ErrTamperDetected        = errors.New("credential failed tamper check")
	ErrRateLimited           = errors.New("too many validation attempts")
	ErrTicketIssuance        = errors.New("ticket issuance failed after successful charge")
	ErrVerificationCode      = errors.New("verification code does not match")
	ErrInvalidCredential     = errors.New("credential payload is malformed")
	ErrInvalidInput          = errors.New("invalid input")
)

// AvailabilityItem describes a single cart line that failed the availability
// re-check.
type AvailabilityItem struct {
	TicketTypeID int `json:"ticket_type_id"`
	Requested    int `json:"requested"`
	Available    int `json:"available"`
}

// AvailabilityError carries the itemized detail of an availability failure so
// callers can show exactly which items are short and by how much.
type AvailabilityError struct {
	Items []AvailabilityItem
}

func (e *AvailabilityError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("ticket type %d: requested %d, available %d",
			item.TicketTypeID, item.Requested, item.Available))
	}
	return "insufficient inventory: " + strings.Join(parts, "; ")
}

// Unwrap makes errors.Is(err, ErrInsufficientInventory) work on itemized errors.
func (e *AvailabilityError) Unwrap() error {
	return ErrInsufficientInventory
}

// RateLimitError reports a validation rate limit violation along with when the
// caller may retry.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
