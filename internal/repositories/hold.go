package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ticketgate/internal/models"
)

// HoldRepository handles hold data operations. A hold owns its units through
// inventory_units.hold_id; the claim itself is a single conditional update,
// so two concurrent holds on overlapping seats can never both win.
type HoldRepository struct {
	db *sql.DB
}

// NewHoldRepository creates a new hold repository
func NewHoldRepository(db *sql.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

// Create persists a hold and claims its units atomically. Every requested
// unit must still be available; otherwise nothing is claimed and
// ErrUnitsUnavailable is returned.
func (r *HoldRepository) Create(ctx context.Context, hold *models.Hold) error {
	if err := hold.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO holds (id, session_id, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		hold.ID, hold.SessionID, hold.Status, hold.CreatedAt, hold.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE inventory_units
		SET status = $3, hold_id = $4, updated_at = $5
		WHERE id = ANY($1) AND status = $2 AND hold_id IS NULL`,
		pq.Array(hold.UnitIDs), models.UnitAvailable, models.UnitHeld, hold.ID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to claim units: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected != int64(len(hold.UnitIDs)) {
		return models.ErrUnitsUnavailable
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a hold with its attached unit IDs
func (r *HoldRepository) GetByID(ctx context.Context, id string) (*models.Hold, error) {
	hold := &models.Hold{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, status, created_at, expires_at
		FROM holds
		WHERE id = $1`, id,
	).Scan(&hold.ID, &hold.SessionID, &hold.Status, &hold.CreatedAt, &hold.ExpiresAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrHoldNotFound
		}
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM inventory_units
		WHERE hold_id = $1
		ORDER BY id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get hold units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var unitID int
		if err := rows.Scan(&unitID); err != nil {
			return nil, fmt.Errorf("failed to scan hold unit: %w", err)
		}
		hold.UnitIDs = append(hold.UnitIDs, unitID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hold units: %w", err)
	}

	return hold, nil
}

// Extend moves a hold's expiry. The hold must still be active and unexpired
// as of now; a zero affected count means the caller lost to the clock or the
// hold never existed.
func (r *HoldRepository) Extend(ctx context.Context, id string, newExpiry, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE holds
		SET expires_at = $2
		WHERE id = $1 AND status = $3 AND expires_at > $4`,
		id, newExpiry, models.HoldActive, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to extend hold: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// Release terminates an active hold and returns its units to the pool
func (r *HoldRepository) Release(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE holds
		SET status = $2
		WHERE id = $1 AND status = $3`,
		id, models.HoldReleased, models.HoldActive,
	)
	if err != nil {
		return fmt.Errorf("failed to release hold: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrHoldNotFound
	}

	if err := freeHeldUnits(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ReleaseExpired sweeps holds whose expiry has passed: marks them expired and
// returns their units to the pool. Returns the number of holds swept.
func (r *HoldRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE holds
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
		RETURNING id`,
		models.HoldExpired, models.HoldActive, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire holds: %w", err)
	}

	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expired hold: %w", err)
		}
		expired = append(expired, id)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating expired holds: %w", err)
	}
	rows.Close()

	if len(expired) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE inventory_units
			SET status = $2, hold_id = NULL, updated_at = $3
			WHERE hold_id = ANY($1) AND status = $4`,
			pq.Array(expired), models.UnitAvailable, time.Now(), models.UnitHeld,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to free expired hold units: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(expired), nil
}

func freeHeldUnits(ctx context.Context, tx *sql.Tx, holdID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE inventory_units
		SET status = $2, hold_id = NULL, updated_at = $3
		WHERE hold_id = $1 AND status = $4`,
		holdID, models.UnitAvailable, time.Now(), models.UnitHeld,
	)
	if err != nil {
		return fmt.Errorf("failed to free held units: %w", err)
	}
	return nil
}
