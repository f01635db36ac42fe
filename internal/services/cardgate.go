package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ticketgate/internal/models"
)

// CardGatewayConfig represents the card gateway connection settings
type CardGatewayConfig struct {
	BaseURL   string
	SecretKey string
}

// CardGateway charges tokenized cards over the provider's HTTP API
type CardGateway struct {
	config CardGatewayConfig
	client *http.Client
}

// NewCardGateway creates a new card gateway client
func NewCardGateway(config CardGatewayConfig) *CardGateway {
	return &CardGateway{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type cardChargeRequest struct {
	Amount         int    `json:"amount"`
	Currency       string `json:"currency"`
	Token          string `json:"token"`
	Reference      string `json:"reference"`
	Email          string `json:"email"`
	IdempotencyKey string `json:"idempotency_key"`
}

type cardChargeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		AuthorizationURL string `json:"authorization_url"`
		DeclineReason    string `json:"decline_reason"`
	} `json:"data"`
}

// Charge sends the charge to the provider. The Idempotency-Key header makes
// retries after a timeout safe.
func (g *CardGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	body := cardChargeRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Token:          req.Token,
		Reference:      req.Reference,
		Email:          req.CustomerEmail,
		IdempotencyKey: req.IdempotencyKey,
	}

	var resp cardChargeResponse
	if err := g.post(ctx, "/charges", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}

	if !resp.Status {
		return &ChargeResult{
			Status:        ChargeFailed,
			FailureReason: resp.Message,
		}, nil
	}

	switch resp.Data.Status {
	case "succeeded", "success":
		return &ChargeResult{
			Status:      ChargeSucceeded,
			ProviderRef: resp.Data.ID,
		}, nil
	case "requires_redirect", "pending":
		return &ChargeResult{
			Status:      ChargePendingVerification,
			ProviderRef: resp.Data.ID,
			RedirectURL: resp.Data.AuthorizationURL,
		}, nil
	default:
		reason := resp.Data.DeclineReason
		if reason == "" {
			reason = resp.Message
		}
		return &ChargeResult{
			Status:        ChargeFailed,
			ProviderRef:   resp.Data.ID,
			FailureReason: reason,
		}, nil
	}
}

// Verify reads the current state of a charge, used to settle redirect flows
// after the customer returns from the provider.
func (g *CardGateway) Verify(ctx context.Context, providerRef string) (*ChargeResult, error) {
	var resp cardChargeResponse
	if err := g.get(ctx, "/charges/"+providerRef, &resp); err != nil {
		return nil, err
	}

	if !resp.Status {
		return nil, fmt.Errorf("charge lookup rejected: %s", resp.Message)
	}

	switch resp.Data.Status {
	case "succeeded", "success":
		return &ChargeResult{Status: ChargeSucceeded, ProviderRef: resp.Data.ID}, nil
	case "requires_redirect", "pending":
		return &ChargeResult{
			Status:      ChargePendingVerification,
			ProviderRef: resp.Data.ID,
			RedirectURL: resp.Data.AuthorizationURL,
		}, nil
	default:
		reason := resp.Data.DeclineReason
		if reason == "" {
			reason = resp.Message
		}
		return &ChargeResult{
			Status:        ChargeFailed,
			ProviderRef:   resp.Data.ID,
			FailureReason: reason,
		}, nil
	}
}

type cardRefundRequest struct {
	ChargeID string `json:"charge_id"`
	Amount   int    `json:"amount"`
}

// Refund refunds a previously successful charge
func (g *CardGateway) Refund(ctx context.Context, providerRef string, amount int) error {
	var resp cardChargeResponse
	err := g.post(ctx, "/refunds", "", cardRefundRequest{ChargeID: providerRef, Amount: amount}, &resp)
	if err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("refund rejected: %s", resp.Message)
	}
	return nil
}

func (g *CardGateway) post(ctx context.Context, path, idempotencyKey string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	return g.do(httpReq, out)
}

func (g *CardGateway) get(ctx context.Context, path string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	return g.do(httpReq, out)
}

func (g *CardGateway) do(httpReq *http.Request, out interface{}) error {
	ctx := httpReq.Context()
	httpReq.Header.Set("Authorization", "Bearer "+g.config.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return models.ErrPaymentTimeout
		}
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return nil
}
