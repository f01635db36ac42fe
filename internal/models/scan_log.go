package models

import (
	"encoding/json"
	"time"
)

// ScanLog represents one validation or check-in attempt, recorded append-only
// for audit and fraud investigation.
type ScanLog struct {
	ID         int             `json:"id" db:"id"`
	Level      string          `json:"level" db:"level"`
	EventType  string          `json:"event_type" db:"event_type"`
	TicketCode string          `json:"ticket_code" db:"ticket_code"`
	Actor      string          `json:"actor" db:"actor"`
	ClientIP   string          `json:"client_ip" db:"client_ip"`
	Outcome    string          `json:"outcome" db:"outcome"`
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// ScanLogCreateRequest represents a request to append a scan log entry
type ScanLogCreateRequest struct {
	Level      string          `json:"level"`
	EventType  string          `json:"event_type"`
	TicketCode string          `json:"ticket_code"`
	Actor      string          `json:"actor"`
	ClientIP   string          `json:"client_ip"`
	Outcome    string          `json:"outcome"`
	Details    json.RawMessage `json:"details"`
}

// Scan log levels
const (
	ScanLevelInfo    = "info"
	ScanLevelWarning = "warning"
)

// Scan log event types
const (
	ScanEventValidate = "ticket_validate"
	ScanEventCheckIn  = "ticket_check_in"
)

// Scan log outcomes
const (
	ScanOutcomeOK          = "ok"
	ScanOutcomeNotFound    = "not_found"
	ScanOutcomeAlreadyUsed = "already_used"
	ScanOutcomeCancelled   = "cancelled"
	ScanOutcomeTampered    = "tamper_detected"
	ScanOutcomeRateLimited = "rate_limited"
	ScanOutcomeMalformed   = "malformed_payload"
)
