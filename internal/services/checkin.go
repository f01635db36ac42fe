package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ticketgate/internal/clock"
	"ticketgate/internal/models"
	"ticketgate/internal/utils"
)

// CheckInTicketStore defines ticket operations for the scan path
type CheckInTicketStore interface {
	GetByCode(ctx context.Context, code string) (*models.Ticket, error)
	CheckIn(ctx context.Context, code, actor string, at time.Time) (*models.Ticket, error)
}

// CheckInOrderStore defines the order reads used for hash verification
type CheckInOrderStore interface {
	GetByID(ctx context.Context, id int) (*models.Order, error)
}

// ScanLogStore defines the scan audit log operations
type ScanLogStore interface {
	Append(ctx context.Context, req *models.ScanLogCreateRequest) error
	ListByTicket(ctx context.Context, ticketCode string, limit int) ([]*models.ScanLog, error)
}

// HashVerifier recomputes the expected validation hash for a stored ticket
type HashVerifier interface {
	ExpectedHash(ticketCode string, eventID, orderID int) string
}

// CheckInService validates presented credentials and consumes tickets at the
// door. Every attempt, good or bad, lands in the scan audit log.
type CheckInService struct {
	tickets  CheckInTicketStore
	orders   CheckInOrderStore
	scanLogs ScanLogStore
	issuer   HashVerifier
	limiter  *ScanRateLimiter
	clock    clock.Clock
	logger   *zap.Logger
}

// NewCheckInService creates a new check-in service
func NewCheckInService(
	tickets CheckInTicketStore,
	orders CheckInOrderStore,
	scanLogs ScanLogStore,
	issuer HashVerifier,
	limiter *ScanRateLimiter,
	clk clock.Clock,
	logger *zap.Logger,
) *CheckInService {
	return &CheckInService{
		tickets:  tickets,
		orders:   orders,
		scanLogs: scanLogs,
		issuer:   issuer,
		limiter:  limiter,
		clock:    clk,
		logger:   logger,
	}
}

// Validate parses a presented payload and checks the ticket without
// consuming it. A tampered credential for a real ticket is reported as
// tampered, never as not found.
func (s *CheckInService) Validate(ctx context.Context, rawPayload, actor, clientIP string) (*models.Ticket, error) {
	cred, err := models.ParseCredential(rawPayload)
	if err != nil {
		s.appendLog(ctx, models.ScanLevelWarning, models.ScanEventValidate, "", actor, clientIP,
			models.ScanOutcomeMalformed, map[string]string{"error": err.Error()})
		return nil, err
	}

	if allowed, retryAfter, violations := s.limiter.Allow(cred.TicketCode, clientIP); !allowed {
		s.appendLog(ctx, models.ScanLevelWarning, models.ScanEventValidate, cred.TicketCode, actor, clientIP,
			models.ScanOutcomeRateLimited, map[string]string{"retry_after": retryAfter.String()})
		if violations > 3 {
			s.logger.Warn("suspicious repeated scan attempts",
				zap.String("ticket_code", cred.TicketCode),
				zap.String("client_ip", clientIP),
				zap.Int("violations", violations))
		}
		return nil, &models.RateLimitError{RetryAfter: retryAfter}
	}

	ticket, err := s.lookupAndVerify(ctx, cred, models.ScanEventValidate, actor, clientIP)
	if err != nil {
		return nil, err
	}

	switch {
	case ticket.IsUsed():
		s.appendLog(ctx, models.ScanLevelWarning, models.ScanEventValidate, ticket.TicketCode, actor, clientIP,
			models.ScanOutcomeAlreadyUsed, nil)
		return ticket, models.ErrTicketAlreadyUsed
	case ticket.Status == models.TicketCancelled:
		s.appendLog(ctx, models.ScanLevelWarning, models.ScanEventValidate, ticket.TicketCode, actor, clientIP,
			models.ScanOutcomeCancelled, nil)
		return ticket, models.ErrTicketCancelled
	}

	s.appendLog(ctx, models.ScanLevelInfo, models.ScanEventValidate, ticket.TicketCode, actor, clientIP,
		models.ScanOutcomeOK, nil)
	return ticket, nil
}

// CheckIn consumes an active ticket. The database transition is a single
// conditional update, so two scanners racing the same ticket produce exactly
// one admission; the loser is told the ticket is already used.
func (s *CheckInService) CheckIn(ctx context.Context, ticketCode, actor, clientIP string) (*models.Ticket, error) {
	ticket, err := s.tickets.CheckIn(ctx, ticketCode, actor, s.clock.Now())
	switch {
	case err == nil:
		s.appendLog(ctx, models.ScanLevelInfo, models.ScanEventCheckIn, ticketCode, actor, clientIP,
			models.ScanOutcomeOK, nil)
		s.logger.Info("ticket checked in",
			zap.String("ticket_code", ticketCode),
			zap.String("checked_in_by", actor))
		return ticket, nil
	case errors.Is(err, models.ErrTicketAlreadyUsed):
		s.appendLog(ctx, models.ScanLevelWarning, models.ScanEventCheckIn, ticketCode, actor, clientIP,
			models.ScanOutcomeAlreadyUsed, nil)
		return ticket, err
	case errors.Is(err, models.ErrTicketCancelled):
		s.appendLog(ctx, models.ScanLevelWarning, models.ScanEventCheckIn, ticketCode, actor, clientIP,
			models.ScanOutcomeCancelled, nil)
		return ticket, err
	case errors.Is(err, models.ErrTicketNotFound):
		s.appendLog(ctx, models.ScanLevelWarning, models.ScanEventCheckIn, ticketCode, actor, clientIP,
			models.ScanOutcomeNotFound, nil)
		return nil, err
	default:
		return nil, err
	}
}

// ValidateAndCheckIn validates a presented payload and, if the ticket is
// admissible, consumes it in the same call.
func (s *CheckInService) ValidateAndCheckIn(ctx context.Context, rawPayload, actor, clientIP string) (*models.Ticket, error) {
	ticket, err := s.Validate(ctx, rawPayload, actor, clientIP)
	if err != nil {
		return ticket, err
	}
	return s.CheckIn(ctx, ticket.TicketCode, actor, clientIP)
}

// ScanHistory returns the audit trail for a ticket, newest first
func (s *CheckInService) ScanHistory(ctx context.Context, ticketCode string, limit int) ([]*models.ScanLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.scanLogs.ListByTicket(ctx, ticketCode, limit)
}

func (s *CheckInService) lookupAndVerify(ctx context.Context, cred *models.Credential, eventType, actor, clientIP string) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByCode(ctx, cred.TicketCode)
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			s.appendLog(ctx, models.ScanLevelWarning, eventType, cred.TicketCode, actor, clientIP,
				models.ScanOutcomeNotFound, nil)
		}
		return nil, err
	}

	// Legacy bare codes predate validation hashes and carry nothing to
	// verify against.
	if cred.Kind == models.CredentialStructured {
		order, err := s.orders.GetByID(ctx, ticket.OrderID)
		if err != nil {
			return nil, err
		}
		expected := s.issuer.ExpectedHash(ticket.TicketCode, order.EventID, order.ID)
		if !utils.VerifyValidationHash(expected, cred.Payload.ValidationHash) ||
			!utils.VerifyValidationHash(expected, ticket.ValidationHash) {
			s.appendLog(ctx, models.ScanLevelWarning, eventType, ticket.TicketCode, actor, clientIP,
				models.ScanOutcomeTampered, map[string]string{
					"event_id": fmt.Sprint(cred.Payload.EventID),
					"order_id": fmt.Sprint(cred.Payload.OrderID),
				})
			return nil, models.ErrTamperDetected
		}
	}

	return ticket, nil
}

func (s *CheckInService) appendLog(ctx context.Context, level, eventType, ticketCode, actor, clientIP, outcome string, details map[string]string) {
	var raw json.RawMessage
	if len(details) > 0 {
		raw, _ = json.Marshal(details)
	}

	err := s.scanLogs.Append(ctx, &models.ScanLogCreateRequest{
		Level:      level,
		EventType:  eventType,
		TicketCode: ticketCode,
		Actor:      actor,
		ClientIP:   clientIP,
		Outcome:    outcome,
		Details:    raw,
	})
	if err != nil {
		// The scan decision stands even when the audit write fails.
		s.logger.Error("failed to append scan log",
			zap.String("ticket_code", ticketCode),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}
