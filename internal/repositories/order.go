package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"ticketgate/internal/models"
)

// OrderRepository handles order data operations. Every state change that
// spans orders, inventory units and tickets happens inside one transaction so
// a purchase either fully commits or leaves no trace.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, order_number, event_id, customer_name, customer_email, subtotal, fee_amount, total_amount, payment_method, payment_status, payment_ref, idempotency_key, verification_code_hash, needs_reconciliation, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.EventID,
		&order.CustomerName,
		&order.CustomerEmail,
		&order.Subtotal,
		&order.FeeAmount,
		&order.TotalAmount,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.PaymentRef,
		&order.IdempotencyKey,
		&order.VerificationCodeHash,
		&order.NeedsReconciliation,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// FindByIdempotencyKey retrieves an order by its idempotency key, if one
// exists. Returns ErrOrderNotFound when the key has never been used.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE idempotency_key = $1`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by idempotency key: %w", err)
	}

	order.Items, err = r.getItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetByID retrieves an order with its items
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.Items, err = r.getItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetByOrderNumber retrieves an order by its human-facing number
func (r *OrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_number = $1`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderNumber))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.Items, err = r.getItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListByEvent retrieves orders for an event, newest first
func (r *OrderRepository) ListByEvent(ctx context.Context, eventID, limit, offset int) ([]*models.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, orderColumns)

	rows, err := r.db.QueryContext(ctx, query, eventID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func (r *OrderRepository) getItems(ctx context.Context, orderID int) ([]*models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, unit_id, ticket_type_id, unit_price, holder_name
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		err := rows.Scan(&item.ID, &item.OrderID, &item.UnitID, &item.TicketTypeID, &item.UnitPrice, &item.HolderName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// ReserveHoldUnits consumes an active hold and moves its units to reserved,
// all in one transaction. The hold must still be unexpired as of now.
func (r *OrderRepository) ReserveHoldUnits(ctx context.Context, holdID string, now time.Time) ([]*models.InventoryUnit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE holds
		SET status = $2
		WHERE id = $1 AND status = $3 AND expires_at > $4`,
		holdID, models.HoldConsumed, models.HoldActive, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume hold: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a vanished hold from one the clock beat us to.
		var exists bool
		err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM holds WHERE id = $1)`, holdID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check hold: %w", err)
		}
		if !exists {
			return nil, models.ErrHoldNotFound
		}
		return nil, models.ErrHoldExpired
	}

	query := fmt.Sprintf(`
		UPDATE inventory_units
		SET status = $2, updated_at = $3
		WHERE hold_id = $1 AND status = $4
		RETURNING %s`, unitColumns)

	rows, err := tx.QueryContext(ctx, query, holdID, models.UnitReserved, time.Now(), models.UnitHeld)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve held units: %w", err)
	}

	var units []*models.InventoryUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan reserved unit: %w", err)
		}
		units = append(units, unit)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating reserved units: %w", err)
	}
	rows.Close()

	if len(units) == 0 {
		return nil, models.ErrHoldExpired
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// RETURNING carries no ordering; holder names bind by position, so the
	// caller needs a stable unit order.
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })

	return units, nil
}

// ReserveAvailableUnits claims a quantity of available units for one ticket
// type without a prior hold. Row locks with SKIP LOCKED keep concurrent
// buyers off each other's seats; a shortfall reserves nothing.
func (r *OrderRepository) ReserveAvailableUnits(ctx context.Context, ticketTypeID, quantity int) ([]*models.InventoryUnit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id
		FROM inventory_units
		WHERE ticket_type_id = $1 AND status = $2
		ORDER BY id ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`,
		ticketTypeID, models.UnitAvailable, quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock available units: %w", err)
	}

	var unitIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan unit id: %w", err)
		}
		unitIDs = append(unitIDs, id)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating unit ids: %w", err)
	}
	rows.Close()

	if len(unitIDs) < quantity {
		return nil, &models.AvailabilityError{Items: []models.AvailabilityItem{
			{TicketTypeID: ticketTypeID, Requested: quantity, Available: len(unitIDs)},
		}}
	}

	query := fmt.Sprintf(`
		UPDATE inventory_units
		SET status = $2, updated_at = $3
		WHERE id = ANY($1)
		RETURNING %s`, unitColumns)

	updated, err := tx.QueryContext(ctx, query, pq.Array(unitIDs), models.UnitReserved, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to reserve units: %w", err)
	}

	var units []*models.InventoryUnit
	for updated.Next() {
		unit, err := scanUnit(updated)
		if err != nil {
			updated.Close()
			return nil, fmt.Errorf("failed to scan reserved unit: %w", err)
		}
		units = append(units, unit)
	}
	if err = updated.Err(); err != nil {
		updated.Close()
		return nil, fmt.Errorf("error iterating reserved units: %w", err)
	}
	updated.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })

	return units, nil
}

// PersistPaidOrder writes a paid order, its items, its tickets, and the
// reserved-to-sold transition of its units in a single transaction.
func (r *OrderRepository) PersistPaidOrder(ctx context.Context, order *models.Order, tickets []*models.Ticket) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}
	if err := insertOrderItems(ctx, tx, order); err != nil {
		return err
	}
	if err := insertTickets(ctx, tx, order.ID, tickets); err != nil {
		return err
	}
	if err := markUnitsSold(ctx, tx, unitIDsOf(order.Items)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// PersistPendingOrder writes a pending order and its items: a cash order
// awaiting box-office confirmation, or a redirect charge awaiting the
// provider. Units stay reserved until the order settles or expires.
func (r *OrderRepository) PersistPendingOrder(ctx context.Context, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}
	if err := insertOrderItems(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// MarkPaidWithTickets flips a pending order to paid, issues its tickets and
// sells its units, all in one transaction. Used for cash confirmation.
func (r *OrderRepository) MarkPaidWithTickets(ctx context.Context, orderID int, unitIDs []int, tickets []*models.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, updated_at = $3
		WHERE id = $1 AND payment_status = $4`,
		orderID, models.PaymentPaid, time.Now(), models.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrOrderNotFound
	}

	if err := insertTickets(ctx, tx, orderID, tickets); err != nil {
		return err
	}
	if err := markUnitsSold(ctx, tx, unitIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CancelPendingOrder fails one pending order and returns its reserved units
// to the pool. Used when a redirect charge comes back declined.
func (r *OrderRepository) CancelPendingOrder(ctx context.Context, orderID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, updated_at = $3
		WHERE id = $1 AND payment_status = $4`,
		orderID, models.PaymentFailed, time.Now(), models.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel pending order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrOrderNotFound
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_units
		SET status = $2, hold_id = NULL, updated_at = $3
		WHERE status = $4 AND id IN (
			SELECT unit_id FROM order_items WHERE order_id = $1
		)`,
		orderID, models.UnitAvailable, time.Now(), models.UnitReserved,
	)
	if err != nil {
		return fmt.Errorf("failed to free cancelled order units: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CancelExpiredPendingOrders fails pending cash and redirect orders created
// before the cutoff and returns their units to the pool. Returns the number
// of orders cancelled.
func (r *OrderRepository) CancelExpiredPendingOrders(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE orders
		SET payment_status = $1, updated_at = $2
		WHERE payment_status = $3 AND payment_method = ANY($4) AND created_at <= $5
			AND NOT needs_reconciliation
		RETURNING id`,
		models.PaymentFailed, time.Now(), models.PaymentPending,
		pq.Array([]string{string(models.PaymentMethodCash), string(models.PaymentMethodRedirect)}), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel expired pending orders: %w", err)
	}

	var cancelled []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan cancelled order: %w", err)
		}
		cancelled = append(cancelled, id)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating cancelled orders: %w", err)
	}
	rows.Close()

	if len(cancelled) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE inventory_units
			SET status = $2, hold_id = NULL, updated_at = $3
			WHERE status = $4 AND id IN (
				SELECT unit_id FROM order_items WHERE order_id = ANY($1)
			)`,
			pq.Array(cancelled), models.UnitAvailable, time.Now(), models.UnitReserved,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to free cancelled order units: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(cancelled), nil
}

// MarkNeedsReconciliation flags an order for manual review
func (r *OrderRepository) MarkNeedsReconciliation(ctx context.Context, orderID int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET needs_reconciliation = TRUE, updated_at = $2
		WHERE id = $1`,
		orderID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to flag order for reconciliation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrOrderNotFound
	}

	return nil
}

// Refund moves a paid order to refunded, cancels its tickets and returns its
// units to the pool in one transaction.
func (r *OrderRepository) Refund(ctx context.Context, orderID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, updated_at = $3
		WHERE id = $1 AND payment_status = $4`,
		orderID, models.PaymentRefunded, time.Now(), models.PaymentPaid,
	)
	if err != nil {
		return fmt.Errorf("failed to refund order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrOrderNotFound
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets
		SET status = $2
		WHERE order_id = $1 AND status = $3`,
		orderID, models.TicketCancelled, models.TicketActive,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel refunded tickets: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_units
		SET status = $2, hold_id = NULL, updated_at = $3
		WHERE status = $4 AND id IN (
			SELECT unit_id FROM order_items WHERE order_id = $1
		)`,
		orderID, models.UnitAvailable, time.Now(), models.UnitSold,
	)
	if err != nil {
		return fmt.Errorf("failed to free refunded units: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	now := time.Now()
	err := tx.QueryRowContext(ctx, `
		INSERT INTO orders (order_number, event_id, customer_name, customer_email, subtotal, fee_amount, total_amount, payment_method, payment_status, payment_ref, idempotency_key, verification_code_hash, needs_reconciliation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		order.OrderNumber,
		order.EventID,
		order.CustomerName,
		order.CustomerEmail,
		order.Subtotal,
		order.FeeAmount,
		order.TotalAmount,
		order.PaymentMethod,
		order.PaymentStatus,
		order.PaymentRef,
		order.IdempotencyKey,
		order.VerificationCodeHash,
		order.NeedsReconciliation,
		now,
		now,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "orders_idempotency_key_key") {
			return models.ErrDuplicateOrder
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func insertOrderItems(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	for _, item := range order.Items {
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, unit_id, ticket_type_id, unit_price, holder_name)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			item.OrderID, item.UnitID, item.TicketTypeID, item.UnitPrice, item.HolderName,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func insertTickets(ctx context.Context, tx *sql.Tx, orderID int, tickets []*models.Ticket) error {
	for _, ticket := range tickets {
		ticket.OrderID = orderID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tickets (order_id, unit_id, ticket_type_id, ticket_code, holder_name, holder_email, status, validation_hash, checked_in_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at`,
			ticket.OrderID,
			ticket.UnitID,
			ticket.TicketTypeID,
			ticket.TicketCode,
			ticket.HolderName,
			ticket.HolderEmail,
			ticket.Status,
			ticket.ValidationHash,
			ticket.CheckedInBy,
			time.Now(),
		).Scan(&ticket.ID, &ticket.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create ticket: %w", err)
		}
	}
	return nil
}

func markUnitsSold(ctx context.Context, tx *sql.Tx, unitIDs []int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE inventory_units
		SET status = $2, hold_id = NULL, updated_at = $3
		WHERE id = ANY($1) AND status = $4`,
		pq.Array(unitIDs), models.UnitSold, time.Now(), models.UnitReserved,
	)
	if err != nil {
		return fmt.Errorf("failed to mark units sold: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected != int64(len(unitIDs)) {
		return fmt.Errorf("expected %d units to sell, sold %d", len(unitIDs), affected)
	}

	return nil
}

func unitIDsOf(items []*models.OrderItem) []int {
	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.UnitID)
	}
	return ids
}

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505" && pqErr.Constraint == constraint
}
