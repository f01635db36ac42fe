package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketgate/internal/models"
)

// TicketRepository handles ticket data operations
type TicketRepository struct {
	db *sql.DB
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, order_id, unit_id, ticket_type_id, ticket_code, holder_name, holder_email, status, validation_hash, checked_in_at, checked_in_by, created_at`

func scanTicket(row interface{ Scan(...interface{}) error }) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	var checkedInAt sql.NullTime
	err := row.Scan(
		&ticket.ID,
		&ticket.OrderID,
		&ticket.UnitID,
		&ticket.TicketTypeID,
		&ticket.TicketCode,
		&ticket.HolderName,
		&ticket.HolderEmail,
		&ticket.Status,
		&ticket.ValidationHash,
		&checkedInAt,
		&ticket.CheckedInBy,
		&ticket.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if checkedInAt.Valid {
		ticket.CheckedInAt = &checkedInAt.Time
	}
	return ticket, nil
}

// GetByCode retrieves a ticket by its code
func (r *TicketRepository) GetByCode(ctx context.Context, code string) (*models.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE ticket_code = $1`, ticketColumns)

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return ticket, nil
}

// GetByOrder retrieves all tickets issued for an order
func (r *TicketRepository) GetByOrder(ctx context.Context, orderID int) ([]*models.Ticket, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tickets
		WHERE order_id = $1
		ORDER BY id ASC`, ticketColumns)

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}

// CheckIn consumes a ticket with one conditional update. Only a currently
// active ticket transitions; the losing scanner in a double-scan race sees
// ErrTicketAlreadyUsed, not a second success.
func (r *TicketRepository) CheckIn(ctx context.Context, code, actor string, at time.Time) (*models.Ticket, error) {
	query := fmt.Sprintf(`
		UPDATE tickets
		SET status = $2, checked_in_at = $3, checked_in_by = $4
		WHERE ticket_code = $1 AND status = $5
		RETURNING %s`, ticketColumns)

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query,
		code, models.TicketUsed, at, actor, models.TicketActive,
	))
	if err == nil {
		return ticket, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check in ticket: %w", err)
	}

	// Lost the conditional update. Read the row to say why.
	current, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case models.TicketUsed:
		return current, models.ErrTicketAlreadyUsed
	case models.TicketCancelled:
		return current, models.ErrTicketCancelled
	default:
		return nil, fmt.Errorf("ticket %s in unexpected status %s", code, current.Status)
	}
}
