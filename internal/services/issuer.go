package services

import (
	"fmt"

	"github.com/google/uuid"

	"ticketgate/internal/models"
	"ticketgate/internal/utils"
)

// IssuerService mints tickets for sold units and builds the scannable
// credential payloads that go into QR codes.
type IssuerService struct {
	secret string
}

// NewIssuerService creates a new issuer service
func NewIssuerService(secret string) *IssuerService {
	return &IssuerService{secret: secret}
}

// IssueTicket builds a ticket for one sold unit. The validation hash binds
// the ticket code to its event and order, so editing any of the three in a
// presented payload is detectable.
func (s *IssuerService) IssueTicket(order *models.Order, unit *models.InventoryUnit, holderName string) (*models.Ticket, error) {
	if holderName == "" {
		holderName = order.CustomerName
	}

	code := "TKT-" + uuid.NewString()
	ticket := &models.Ticket{
		OrderID:        order.ID,
		UnitID:         unit.ID,
		TicketTypeID:   unit.TicketTypeID,
		TicketCode:     code,
		HolderName:     holderName,
		HolderEmail:    order.CustomerEmail,
		Status:         models.TicketActive,
		ValidationHash: utils.ComputeValidationHash(s.secret, code, order.EventID, order.ID),
	}

	if err := ticket.Validate(); err != nil {
		return nil, fmt.Errorf("issued ticket failed validation: %w", err)
	}

	return ticket, nil
}

// Credential builds the structured QR payload for an issued ticket
func (s *IssuerService) Credential(ticket *models.Ticket, order *models.Order, event *models.Event, ticketType *models.TicketType) (string, error) {
	payload := &models.CredentialPayload{
		TicketCode:     ticket.TicketCode,
		EventID:        order.EventID,
		OrderID:        order.ID,
		HolderName:     ticket.HolderName,
		TicketType:     ticketType.Name,
		EventDate:      event.StartsAt,
		Venue:          event.Venue,
		ValidationHash: ticket.ValidationHash,
	}
	return payload.Encode()
}

// ExpectedHash recomputes the validation hash for a stored ticket
func (s *IssuerService) ExpectedHash(ticketCode string, eventID, orderID int) string {
	return utils.ComputeValidationHash(s.secret, ticketCode, eventID, orderID)
}
