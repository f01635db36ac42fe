package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ticketgate/internal/models"
)

// InventoryRepository handles event, ticket type and inventory unit data
// operations. Unit status changes go through conditional updates only; the
// affected-row count tells the caller whether it won the transition.
type InventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const unitColumns = `id, event_id, ticket_type_id, status, price, section, seat_row, seat, hold_id, created_at, updated_at`

func scanUnit(row interface{ Scan(...interface{}) error }) (*models.InventoryUnit, error) {
	unit := &models.InventoryUnit{}
	var holdID sql.NullString
	err := row.Scan(
		&unit.ID,
		&unit.EventID,
		&unit.TicketTypeID,
		&unit.Status,
		&unit.Price,
		&unit.Section,
		&unit.Row,
		&unit.Seat,
		&holdID,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	unit.HoldID = holdID.String
	return unit, nil
}

// GetEventByID retrieves an event by ID
func (r *InventoryRepository) GetEventByID(ctx context.Context, id int) (*models.Event, error) {
	query := `
		SELECT id, name, venue, starts_at, created_at
		FROM events
		WHERE id = $1`

	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Name,
		&event.Venue,
		&event.StartsAt,
		&event.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event with id %d not found", id)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// GetTicketTypeByID retrieves a ticket type by ID
func (r *InventoryRepository) GetTicketTypeByID(ctx context.Context, id int) (*models.TicketType, error) {
	query := `
		SELECT id, event_id, name, description, price, created_at
		FROM ticket_types
		WHERE id = $1`

	ticketType := &models.TicketType{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ticketType.ID,
		&ticketType.EventID,
		&ticketType.Name,
		&ticketType.Description,
		&ticketType.Price,
		&ticketType.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket type with id %d not found", id)
		}
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}

	return ticketType, nil
}

// GetUnitsByIDs retrieves inventory units by their IDs
func (r *InventoryRepository) GetUnitsByIDs(ctx context.Context, ids []int) ([]*models.InventoryUnit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM inventory_units
		WHERE id = ANY($1)
		ORDER BY id ASC`, unitColumns)

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory units: %w", err)
	}
	defer rows.Close()

	var units []*models.InventoryUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory unit: %w", err)
		}
		units = append(units, unit)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory units: %w", err)
	}

	return units, nil
}

// GetUnitsByHold retrieves the units currently attached to a hold
func (r *InventoryRepository) GetUnitsByHold(ctx context.Context, holdID string) ([]*models.InventoryUnit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM inventory_units
		WHERE hold_id = $1
		ORDER BY id ASC`, unitColumns)

	rows, err := r.db.QueryContext(ctx, query, holdID)
	if err != nil {
		return nil, fmt.Errorf("failed to get units for hold: %w", err)
	}
	defer rows.Close()

	var units []*models.InventoryUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory unit: %w", err)
		}
		units = append(units, unit)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory units: %w", err)
	}

	return units, nil
}

// CountAvailableByType returns the number of available units for one ticket type
func (r *InventoryRepository) CountAvailableByType(ctx context.Context, ticketTypeID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM inventory_units
		WHERE ticket_type_id = $1 AND status = $2`,
		ticketTypeID, models.UnitAvailable,
	).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count available units: %w", err)
	}

	return count, nil
}

// CountAvailableByTypes returns available unit counts keyed by ticket type ID.
// Ticket types with no available units are present with a zero count.
func (r *InventoryRepository) CountAvailableByTypes(ctx context.Context, ticketTypeIDs []int) (map[int]int, error) {
	counts := make(map[int]int, len(ticketTypeIDs))
	for _, id := range ticketTypeIDs {
		counts[id] = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ticket_type_id, COUNT(*)
		FROM inventory_units
		WHERE ticket_type_id = ANY($1) AND status = $2
		GROUP BY ticket_type_id`,
		pq.Array(ticketTypeIDs), models.UnitAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count available units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ticketTypeID, count int
		if err := rows.Scan(&ticketTypeID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan availability count: %w", err)
		}
		counts[ticketTypeID] = count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating availability counts: %w", err)
	}

	return counts, nil
}

// SetStatusIf conditionally transitions a set of units from one status to
// another. It returns the number of rows that actually transitioned; callers
// decide whether a partial count means failure. A transition back to
// available also detaches the unit from any hold.
func (r *InventoryRepository) SetStatusIf(ctx context.Context, unitIDs []int, expected, next models.UnitStatus) (int64, error) {
	query := `
		UPDATE inventory_units
		SET status = $3, updated_at = $4
		WHERE id = ANY($1) AND status = $2`
	if next == models.UnitAvailable {
		query = `
		UPDATE inventory_units
		SET status = $3, hold_id = NULL, updated_at = $4
		WHERE id = ANY($1) AND status = $2`
	}

	result, err := r.db.ExecContext(ctx, query,
		pq.Array(unitIDs), expected, next, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to transition unit status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// CreateEvent creates an event (seed tooling)
func (r *InventoryRepository) CreateEvent(ctx context.Context, name, venue string, startsAt time.Time) (*models.Event, error) {
	query := `
		INSERT INTO events (name, venue, starts_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, venue, starts_at, created_at`

	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, name, venue, startsAt, time.Now()).Scan(
		&event.ID,
		&event.Name,
		&event.Venue,
		&event.StartsAt,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

// CreateTicketType creates a ticket type (seed tooling)
func (r *InventoryRepository) CreateTicketType(ctx context.Context, eventID int, name, description string, price int) (*models.TicketType, error) {
	query := `
		INSERT INTO ticket_types (event_id, name, description, price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, event_id, name, description, price, created_at`

	ticketType := &models.TicketType{}
	err := r.db.QueryRowContext(ctx, query, eventID, name, description, price, time.Now()).Scan(
		&ticketType.ID,
		&ticketType.EventID,
		&ticketType.Name,
		&ticketType.Description,
		&ticketType.Price,
		&ticketType.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket type: %w", err)
	}

	return ticketType, nil
}

// CreateUnit creates a single inventory unit (seed tooling)
func (r *InventoryRepository) CreateUnit(ctx context.Context, unit *models.InventoryUnit) (*models.InventoryUnit, error) {
	if unit.Status == "" {
		unit.Status = models.UnitAvailable
	}
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO inventory_units (event_id, ticket_type_id, status, price, section, seat_row, seat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, unitColumns)

	now := time.Now()
	row := r.db.QueryRowContext(ctx, query,
		unit.EventID,
		unit.TicketTypeID,
		unit.Status,
		unit.Price,
		unit.Section,
		unit.Row,
		unit.Seat,
		now,
		now,
	)

	created, err := scanUnit(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory unit: %w", err)
	}

	return created, nil
}
