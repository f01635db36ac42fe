package services

import (
	"strings"
	"testing"
	"time"

	"ticketgate/internal/models"
	"ticketgate/internal/utils"
)

func TestIssueTicket(t *testing.T) {
	svc := NewIssuerService("issuer-secret")
	order := &models.Order{
		ID:            42,
		EventID:       7,
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
	}
	unit := &models.InventoryUnit{ID: 3, EventID: 7, TicketTypeID: 10, Price: 5000}

	ticket, err := svc.IssueTicket(order, unit, "Sam Holder")
	if err != nil {
		t.Fatalf("IssueTicket() unexpected error: %v", err)
	}

	if !strings.HasPrefix(ticket.TicketCode, "TKT-") {
		t.Errorf("ticket code = %s, want TKT- prefix", ticket.TicketCode)
	}
	if ticket.HolderName != "Sam Holder" {
		t.Errorf("HolderName = %s, want Sam Holder", ticket.HolderName)
	}
	if ticket.Status != models.TicketActive {
		t.Errorf("Status = %s, want active", ticket.Status)
	}
	if want := svc.ExpectedHash(ticket.TicketCode, order.EventID, order.ID); ticket.ValidationHash != want {
		t.Error("stored validation hash should match the recomputed hash")
	}

	// Unnamed tickets fall back to the purchaser.
	fallback, err := svc.IssueTicket(order, unit, "")
	if err != nil {
		t.Fatalf("IssueTicket() unexpected error: %v", err)
	}
	if fallback.HolderName != "Jane Doe" {
		t.Errorf("HolderName = %s, want Jane Doe", fallback.HolderName)
	}
	if fallback.TicketCode == ticket.TicketCode {
		t.Error("ticket codes should be unique per issuance")
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	svc := NewIssuerService("issuer-secret")
	order := &models.Order{ID: 42, EventID: 7, CustomerName: "Jane Doe", CustomerEmail: "jane@example.com"}
	unit := &models.InventoryUnit{ID: 3, EventID: 7, TicketTypeID: 10, Price: 5000}
	event := &models.Event{ID: 7, Name: "Demo Concert", Venue: "Main Hall", StartsAt: time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)}
	ticketType := &models.TicketType{ID: 10, Name: "General Admission"}

	ticket, err := svc.IssueTicket(order, unit, "")
	if err != nil {
		t.Fatalf("IssueTicket() unexpected error: %v", err)
	}

	raw, err := svc.Credential(ticket, order, event, ticketType)
	if err != nil {
		t.Fatalf("Credential() unexpected error: %v", err)
	}

	cred, err := models.ParseCredential(raw)
	if err != nil {
		t.Fatalf("ParseCredential() unexpected error: %v", err)
	}
	if cred.Kind != models.CredentialStructured {
		t.Fatal("issued credential should parse as structured")
	}
	if cred.TicketCode != ticket.TicketCode {
		t.Errorf("ticket code = %s, want %s", cred.TicketCode, ticket.TicketCode)
	}
	if !utils.VerifyValidationHash(svc.ExpectedHash(cred.TicketCode, cred.Payload.EventID, cred.Payload.OrderID), cred.Payload.ValidationHash) {
		t.Error("credential hash should verify against the recomputed hash")
	}
}
