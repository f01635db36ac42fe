package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CredentialKind distinguishes the two accepted scannable payload formats.
type CredentialKind int

const (
	// CredentialLegacy is the bare-string format QR_<ticketCode> carried by
	// codes issued before structured payloads. It has no tamper check.
	CredentialLegacy CredentialKind = iota
	// CredentialStructured is the JSON payload produced at issuance time,
	// carrying a validation hash.
	CredentialStructured
)

// CredentialPayload is the structured scannable payload embedded in a QR code.
type CredentialPayload struct {
	TicketCode     string    `json:"ticket_id"`
	EventID        int       `json:"event_id"`
	OrderID        int       `json:"order_id"`
	HolderName     string    `json:"holder_name"`
	TicketType     string    `json:"ticket_type"`
	EventDate      time.Time `json:"event_date"`
	Venue          string    `json:"venue"`
	ValidationHash string    `json:"validation_hash"`
}

// Credential is the tagged result of parsing a presented payload. Payload is
// set only for the structured variant.
type Credential struct {
	Kind       CredentialKind
	TicketCode string
	Payload    *CredentialPayload
}

const legacyPrefix = "QR_"

// ParseCredential parses a presented scannable payload into its tagged
// variant. Tamper checking applies only to the structured variant and is the
// caller's responsibility.
func ParseCredential(raw string) (*Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidCredential)
	}

	if strings.HasPrefix(raw, legacyPrefix) {
		code := strings.TrimPrefix(raw, legacyPrefix)
		if code == "" {
			return nil, fmt.Errorf("%w: legacy payload has no ticket id", ErrInvalidCredential)
		}
		return &Credential{Kind: CredentialLegacy, TicketCode: code}, nil
	}

	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("%w: unrecognized payload format", ErrInvalidCredential)
	}

	var payload CredentialPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if payload.TicketCode == "" {
		return nil, fmt.Errorf("%w: payload missing ticket id", ErrInvalidCredential)
	}
	if payload.ValidationHash == "" {
		return nil, fmt.Errorf("%w: payload missing validation hash", ErrInvalidCredential)
	}

	return &Credential{
		Kind:       CredentialStructured,
		TicketCode: payload.TicketCode,
		Payload:    &payload,
	}, nil
}

// Encode serializes the payload into the string embedded in a QR code.
func (p *CredentialPayload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode credential payload: %w", err)
	}
	return string(data), nil
}

// LegacyCredential formats a bare ticket code in the legacy scheme.
func LegacyCredential(ticketCode string) string {
	return legacyPrefix + ticketCode
}
