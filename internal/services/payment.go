package services

import (
	"context"
	"fmt"
	"sync"

	"ticketgate/internal/models"
)

// ChargeStatus is the normalized outcome of a gateway charge
type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeFailed    ChargeStatus = "failed"
	// ChargePendingVerification marks payments that complete out of band:
	// cash at the box office, or a redirect flow awaiting the customer.
	ChargePendingVerification ChargeStatus = "pending_verification"
)

// ChargeRequest represents a payment charge request
type ChargeRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Amount         int    `json:"amount"` // in cents
	Currency       string `json:"currency"`
	Reference      string `json:"reference"` // order number
	CustomerEmail  string `json:"customer_email"`
	// Token is the tokenized card for card charges; unused otherwise.
	Token string `json:"token,omitempty"`
}

// ChargeResult represents the normalized result of a charge attempt
type ChargeResult struct {
	Status        ChargeStatus `json:"status"`
	ProviderRef   string       `json:"provider_ref"`
	RedirectURL   string       `json:"redirect_url,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
}

// PaymentGateway processes charges and refunds. Implementations must treat
// IdempotencyKey as the dedupe boundary: retrying a charge with the same key
// must not move money twice. Verify re-reads the current state of a charge
// that came back pending, such as a redirect flow awaiting the customer.
type PaymentGateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	Verify(ctx context.Context, providerRef string) (*ChargeResult, error)
	Refund(ctx context.Context, providerRef string, amount int) error
}

// SandboxGateway is an in-memory gateway for development and tests. It
// approves every charge and replays results for repeated idempotency keys.
type SandboxGateway struct {
	mu      sync.Mutex
	charges map[string]*ChargeResult
	byRef   map[string]*ChargeResult
	// FailNext makes the next new charge decline, for exercising rollback
	// paths from dev tooling.
	FailNext bool
}

// NewSandboxGateway creates a new sandbox gateway
func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		charges: make(map[string]*ChargeResult),
		byRef:   make(map[string]*ChargeResult),
	}
}

// Charge approves the charge, or replays the prior result for a known key
func (g *SandboxGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("charge requires an idempotency key: %w", models.ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if result, ok := g.charges[req.IdempotencyKey]; ok {
		return result, nil
	}

	result := &ChargeResult{
		Status:      ChargeSucceeded,
		ProviderRef: "sandbox_" + req.IdempotencyKey,
	}
	if g.FailNext {
		g.FailNext = false
		result = &ChargeResult{
			Status:        ChargeFailed,
			FailureReason: "sandbox decline",
		}
	}
	g.charges[req.IdempotencyKey] = result
	if result.ProviderRef != "" {
		g.byRef[result.ProviderRef] = result
	}

	return result, nil
}

// Verify replays the recorded state of a charge
func (g *SandboxGateway) Verify(ctx context.Context, providerRef string) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	result, ok := g.byRef[providerRef]
	if !ok {
		return nil, fmt.Errorf("unknown charge %s: %w", providerRef, models.ErrInvalidInput)
	}
	return result, nil
}

// Refund accepts any refund for a previously seen charge
func (g *SandboxGateway) Refund(ctx context.Context, providerRef string, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if providerRef == "" {
		return fmt.Errorf("refund requires a provider reference: %w", models.ErrInvalidInput)
	}
	return nil
}
