package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketgate/internal/models"
)

// ScanLogRepository appends to and reads the scan audit log. The log is
// append-only; there are no update or delete operations.
type ScanLogRepository struct {
	db *sql.DB
}

// NewScanLogRepository creates a new scan log repository
func NewScanLogRepository(db *sql.DB) *ScanLogRepository {
	return &ScanLogRepository{db: db}
}

// Append records one scan event
func (r *ScanLogRepository) Append(ctx context.Context, req *models.ScanLogCreateRequest) error {
	var details interface{}
	if len(req.Details) > 0 {
		details = []byte(req.Details)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_logs (level, event_type, ticket_code, actor, client_ip, outcome, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.Level, req.EventType, req.TicketCode, req.Actor, req.ClientIP, req.Outcome, details, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append scan log: %w", err)
	}

	return nil
}

// ListByTicket retrieves scan history for a ticket, newest first
func (r *ScanLogRepository) ListByTicket(ctx context.Context, ticketCode string, limit int) ([]*models.ScanLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, level, event_type, ticket_code, actor, client_ip, outcome, details, created_at
		FROM scan_logs
		WHERE ticket_code = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		ticketCode, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.ScanLog
	for rows.Next() {
		log := &models.ScanLog{}
		var details sql.RawBytes
		err := rows.Scan(&log.ID, &log.Level, &log.EventType, &log.TicketCode, &log.Actor, &log.ClientIP, &log.Outcome, &details, &log.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if details != nil {
			log.Details = append([]byte(nil), details...)
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan logs: %w", err)
	}

	return logs, nil
}
