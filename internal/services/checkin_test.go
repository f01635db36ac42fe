package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"ticketgate/internal/clock"
	"ticketgate/internal/models"
	"ticketgate/internal/utils"
)

type mockScanStore struct {
	tickets map[string]*models.Ticket
	orders  map[int]*models.Order
	logs    []*models.ScanLogCreateRequest
}

func newMockScanStore() *mockScanStore {
	return &mockScanStore{
		tickets: make(map[string]*models.Ticket),
		orders:  make(map[int]*models.Order),
	}
}

func (m *mockScanStore) GetByCode(ctx context.Context, code string) (*models.Ticket, error) {
	if ticket, ok := m.tickets[code]; ok {
		return ticket, nil
	}
	return nil, models.ErrTicketNotFound
}

func (m *mockScanStore) CheckIn(ctx context.Context, code, actor string, at time.Time) (*models.Ticket, error) {
	ticket, ok := m.tickets[code]
	if !ok {
		return nil, models.ErrTicketNotFound
	}
	switch ticket.Status {
	case models.TicketUsed:
		return ticket, models.ErrTicketAlreadyUsed
	case models.TicketCancelled:
		return ticket, models.ErrTicketCancelled
	}
	ticket.Status = models.TicketUsed
	ticket.CheckedInAt = &at
	ticket.CheckedInBy = actor
	return ticket, nil
}

func (m *mockScanStore) GetByID(ctx context.Context, id int) (*models.Order, error) {
	if order, ok := m.orders[id]; ok {
		return order, nil
	}
	return nil, models.ErrOrderNotFound
}

func (m *mockScanStore) Append(ctx context.Context, req *models.ScanLogCreateRequest) error {
	m.logs = append(m.logs, req)
	return nil
}

func (m *mockScanStore) ListByTicket(ctx context.Context, ticketCode string, limit int) ([]*models.ScanLog, error) {
	var logs []*models.ScanLog
	for _, entry := range m.logs {
		if entry.TicketCode == ticketCode {
			logs = append(logs, &models.ScanLog{
				TicketCode: entry.TicketCode,
				EventType:  entry.EventType,
				Outcome:    entry.Outcome,
			})
		}
	}
	return logs, nil
}

func (m *mockScanStore) lastOutcome() string {
	if len(m.logs) == 0 {
		return ""
	}
	return m.logs[len(m.logs)-1].Outcome
}

const scanTestSecret = "scan-test-secret"

// seedTicket stores an active ticket backed by an order and returns its
// structured payload.
func (m *mockScanStore) seedTicket(t *testing.T, code string) string {
	t.Helper()

	order := &models.Order{ID: 7, EventID: 1, OrderNumber: "ORD-20260801-000007"}
	m.orders[order.ID] = order

	hash := utils.ComputeValidationHash(scanTestSecret, code, order.EventID, order.ID)
	m.tickets[code] = &models.Ticket{
		ID:             1,
		OrderID:        order.ID,
		TicketCode:     code,
		HolderName:     "Jane Doe",
		Status:         models.TicketActive,
		ValidationHash: hash,
	}

	payload := &models.CredentialPayload{
		TicketCode:     code,
		EventID:        order.EventID,
		OrderID:        order.ID,
		HolderName:     "Jane Doe",
		ValidationHash: hash,
	}
	raw, err := payload.Encode()
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	return raw
}

func newTestCheckInService(store *mockScanStore, clk clock.Clock) *CheckInService {
	limiter := NewScanRateLimiter(5, time.Minute, clk)
	return NewCheckInService(store, store, store, NewIssuerService(scanTestSecret), limiter, clk, zap.NewNop())
}

func TestValidateStructuredCredential(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)
	payload := store.seedTicket(t, "TKT-abc")

	ticket, err := svc.Validate(context.Background(), payload, "gate-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if ticket.TicketCode != "TKT-abc" {
		t.Errorf("ticket code = %s, want TKT-abc", ticket.TicketCode)
	}
	if ticket.Status != models.TicketActive {
		t.Error("validation must not consume the ticket")
	}
	if store.lastOutcome() != models.ScanOutcomeOK {
		t.Errorf("logged outcome = %s, want ok", store.lastOutcome())
	}
}

func TestValidateTamperedCredential(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)
	store.seedTicket(t, "TKT-abc")

	// A forged payload naming a real ticket but carrying the wrong hash.
	forged := &models.CredentialPayload{
		TicketCode:     "TKT-abc",
		EventID:        1,
		OrderID:        7,
		ValidationHash: utils.ComputeValidationHash("wrong-secret", "TKT-abc", 1, 7),
	}
	raw, err := forged.Encode()
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}

	_, err = svc.Validate(context.Background(), raw, "gate-1", "10.0.0.1")
	if !errors.Is(err, models.ErrTamperDetected) {
		t.Fatalf("Validate() error = %v, want ErrTamperDetected", err)
	}
	if errors.Is(err, models.ErrTicketNotFound) {
		t.Error("a tampered credential for a real ticket must not read as not found")
	}
	if store.lastOutcome() != models.ScanOutcomeTampered {
		t.Errorf("logged outcome = %s, want tamper_detected", store.lastOutcome())
	}
}

func TestValidateLegacyCredential(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)
	store.seedTicket(t, "TKT-legacy")

	// Legacy codes carry no hash and skip the tamper check.
	ticket, err := svc.Validate(context.Background(), models.LegacyCredential("TKT-legacy"), "gate-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if ticket.TicketCode != "TKT-legacy" {
		t.Errorf("ticket code = %s, want TKT-legacy", ticket.TicketCode)
	}
}

func TestValidateMalformedPayload(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)

	for _, raw := range []string{"", "garbage", `{"event_id": 1}`} {
		if _, err := svc.Validate(context.Background(), raw, "gate-1", "10.0.0.1"); !errors.Is(err, models.ErrInvalidCredential) {
			t.Errorf("Validate(%q) error = %v, want ErrInvalidCredential", raw, err)
		}
	}
	if store.lastOutcome() != models.ScanOutcomeMalformed {
		t.Errorf("logged outcome = %s, want malformed_payload", store.lastOutcome())
	}
}

func TestValidateUnknownTicket(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)

	_, err := svc.Validate(context.Background(), models.LegacyCredential("TKT-ghost"), "gate-1", "10.0.0.1")
	if !errors.Is(err, models.ErrTicketNotFound) {
		t.Fatalf("Validate() error = %v, want ErrTicketNotFound", err)
	}
	if store.lastOutcome() != models.ScanOutcomeNotFound {
		t.Errorf("logged outcome = %s, want not_found", store.lastOutcome())
	}
}

func TestCheckInExactlyOnce(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)
	payload := store.seedTicket(t, "TKT-abc")

	ticket, err := svc.ValidateAndCheckIn(context.Background(), payload, "gate-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("first ValidateAndCheckIn() unexpected error: %v", err)
	}
	if ticket.Status != models.TicketUsed {
		t.Errorf("ticket status = %s, want used", ticket.Status)
	}
	if ticket.CheckedInAt == nil || !ticket.CheckedInAt.Equal(clk.Now()) {
		t.Errorf("CheckedInAt = %v, want %v", ticket.CheckedInAt, clk.Now())
	}
	if ticket.CheckedInBy != "gate-1" {
		t.Errorf("CheckedInBy = %s, want gate-1", ticket.CheckedInBy)
	}

	// The second presentation at another gate is refused with the prior
	// check-in details attached.
	again, err := svc.ValidateAndCheckIn(context.Background(), payload, "gate-2", "10.0.0.2")
	if !errors.Is(err, models.ErrTicketAlreadyUsed) {
		t.Fatalf("second ValidateAndCheckIn() error = %v, want ErrTicketAlreadyUsed", err)
	}
	if again == nil || again.CheckedInBy != "gate-1" {
		t.Error("refusal should carry the original check-in details")
	}
	if store.lastOutcome() != models.ScanOutcomeAlreadyUsed {
		t.Errorf("logged outcome = %s, want already_used", store.lastOutcome())
	}
}

func TestValidateCancelledTicket(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)
	payload := store.seedTicket(t, "TKT-abc")
	store.tickets["TKT-abc"].Status = models.TicketCancelled

	ticket, err := svc.Validate(context.Background(), payload, "gate-1", "10.0.0.1")
	if !errors.Is(err, models.ErrTicketCancelled) {
		t.Fatalf("Validate() error = %v, want ErrTicketCancelled", err)
	}
	if ticket == nil {
		t.Fatal("cancelled validation should still return the ticket")
	}
	if store.lastOutcome() != models.ScanOutcomeCancelled {
		t.Errorf("logged outcome = %s, want cancelled", store.lastOutcome())
	}
}

func TestValidateRateLimited(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)
	payload := store.seedTicket(t, "TKT-abc")

	for i := 0; i < 5; i++ {
		if _, err := svc.Validate(context.Background(), payload, "gate-1", "10.0.0.1"); err != nil {
			t.Fatalf("Validate() attempt %d unexpected error: %v", i, err)
		}
	}

	_, err := svc.Validate(context.Background(), payload, "gate-1", "10.0.0.1")
	var rateErr *models.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("Validate() error = %v, want RateLimitError", err)
	}
	if rateErr.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", rateErr.RetryAfter)
	}
	if store.lastOutcome() != models.ScanOutcomeRateLimited {
		t.Errorf("logged outcome = %s, want rate_limited", store.lastOutcome())
	}

	// Another client scanning the same ticket is unaffected.
	if _, err := svc.Validate(context.Background(), payload, "gate-2", "10.0.0.2"); err != nil {
		t.Errorf("Validate() from another client unexpected error: %v", err)
	}
}

func TestScanHistory(t *testing.T) {
	store := newMockScanStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC))
	svc := newTestCheckInService(store, clk)
	payload := store.seedTicket(t, "TKT-abc")

	if _, err := svc.Validate(context.Background(), payload, "gate-1", "10.0.0.1"); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if _, err := svc.CheckIn(context.Background(), "TKT-abc", "gate-1", "10.0.0.1"); err != nil {
		t.Fatalf("CheckIn() unexpected error: %v", err)
	}

	history, err := svc.ScanHistory(context.Background(), "TKT-abc", 0)
	if err != nil {
		t.Fatalf("ScanHistory() unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
}
