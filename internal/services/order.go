package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ticketgate/internal/clock"
	"ticketgate/internal/models"
	"ticketgate/internal/utils"
)

// OrderStore defines order persistence operations
type OrderStore interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetByID(ctx context.Context, id int) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByEvent(ctx context.Context, eventID, limit, offset int) ([]*models.Order, error)
	ReserveHoldUnits(ctx context.Context, holdID string, now time.Time) ([]*models.InventoryUnit, error)
	ReserveAvailableUnits(ctx context.Context, ticketTypeID, quantity int) ([]*models.InventoryUnit, error)
	PersistPaidOrder(ctx context.Context, order *models.Order, tickets []*models.Ticket) error
	PersistPendingOrder(ctx context.Context, order *models.Order) error
	MarkPaidWithTickets(ctx context.Context, orderID int, unitIDs []int, tickets []*models.Ticket) error
	CancelPendingOrder(ctx context.Context, orderID int) error
	CancelExpiredPendingOrders(ctx context.Context, cutoff time.Time) (int, error)
	MarkNeedsReconciliation(ctx context.Context, orderID int) error
	Refund(ctx context.Context, orderID int) error
}

// OrderInventoryStore defines the inventory operations the order service
// needs: event and unit reads, plus the conditional status primitive used to
// roll reservations back.
type OrderInventoryStore interface {
	GetEventByID(ctx context.Context, id int) (*models.Event, error)
	GetTicketTypeByID(ctx context.Context, id int) (*models.TicketType, error)
	GetUnitsByIDs(ctx context.Context, ids []int) ([]*models.InventoryUnit, error)
	CountAvailableByTypes(ctx context.Context, ticketTypeIDs []int) (map[int]int, error)
	SetStatusIf(ctx context.Context, unitIDs []int, expected, next models.UnitStatus) (int64, error)
}

// OrderTicketStore defines the ticket reads used to replay existing orders
type OrderTicketStore interface {
	GetByOrder(ctx context.Context, orderID int) ([]*models.Ticket, error)
}

// Issuer mints tickets for sold units and encodes their scannable payloads
type Issuer interface {
	IssueTicket(order *models.Order, unit *models.InventoryUnit, holderName string) (*models.Ticket, error)
	Credential(ticket *models.Ticket, order *models.Order, event *models.Event, ticketType *models.TicketType) (string, error)
}

// OrderCreateRequest represents a request to create an order. Exactly one of
// HoldID (seated flow) or Items (general admission flow) must be set.
type OrderCreateRequest struct {
	IdempotencyKey string               `json:"idempotency_key"`
	EventID        int                  `json:"event_id"`
	CustomerName   string               `json:"customer_name"`
	CustomerEmail  string               `json:"customer_email"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	HoldID         string               `json:"hold_id,omitempty"`
	Items          []models.CartItem    `json:"items,omitempty"`
	// HolderNames optionally names each attendee, applied to units in
	// order. Unnamed tickets fall back to the customer name.
	HolderNames []string `json:"holder_names,omitempty"`
	CardToken   string   `json:"card_token,omitempty"`
}

// Validate validates the order creation request
func (r *OrderCreateRequest) Validate() error {
	if r.IdempotencyKey == "" {
		return errors.New("idempotency key is required")
	}
	if r.EventID <= 0 {
		return errors.New("event id is required")
	}
	if r.CustomerName == "" {
		return errors.New("customer name is required")
	}
	if r.CustomerEmail == "" {
		return errors.New("customer email is required")
	}
	switch r.PaymentMethod {
	case models.PaymentMethodCard, models.PaymentMethodRedirect, models.PaymentMethodCash:
	default:
		return fmt.Errorf("invalid payment method: %s", r.PaymentMethod)
	}
	if (r.HoldID == "") == (len(r.Items) == 0) {
		return errors.New("exactly one of hold id or items must be provided")
	}
	for _, item := range r.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OrderResult is what an order operation hands back to the transport layer.
// VerificationCode is only set for new cash orders and is never recoverable
// afterwards; only its hash is stored.
type OrderResult struct {
	Order   *models.Order    `json:"order"`
	Tickets []*models.Ticket `json:"tickets,omitempty"`
	// Credentials carries the encoded QR payload for each ticket,
	// index-aligned with Tickets.
	Credentials      []string `json:"credentials,omitempty"`
	VerificationCode string   `json:"verification_code,omitempty"`
	RedirectURL      string   `json:"redirect_url,omitempty"`
}

// OrderService turns reserved inventory into committed purchases. All multi-
// row state changes happen in single transactions at the repository; this
// service owns sequencing, payment and rollback.
type OrderService struct {
	orders         OrderStore
	inventory      OrderInventoryStore
	tickets        OrderTicketStore
	issuer         Issuer
	gateway        PaymentGateway
	clock          clock.Clock
	feePercent     float64
	cashWindow     time.Duration
	paymentTimeout time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderStore,
	inventory OrderInventoryStore,
	tickets OrderTicketStore,
	issuer Issuer,
	gateway PaymentGateway,
	clk clock.Clock,
	feePercent float64,
	cashWindow time.Duration,
	paymentTimeout time.Duration,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:         orders,
		inventory:      inventory,
		tickets:        tickets,
		issuer:         issuer,
		gateway:        gateway,
		clock:          clk,
		feePercent:     feePercent,
		cashWindow:     cashWindow,
		paymentTimeout: paymentTimeout,
		logger:         logger,
	}
}

// CreateOrder commits a purchase: it consumes the hold or claims general
// admission units, charges, and persists the order with its tickets in one
// transaction. A failed charge returns every unit to the pool. Retrying with
// the same idempotency key returns the existing order without a second
// charge.
func (s *OrderService) CreateOrder(ctx context.Context, req *OrderCreateRequest) (*OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), models.ErrInvalidInput)
	}

	if existing, err := s.orders.FindByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		return s.replayExisting(ctx, existing)
	} else if !errors.Is(err, models.ErrOrderNotFound) {
		return nil, err
	}

	if _, err := s.inventory.GetEventByID(ctx, req.EventID); err != nil {
		return nil, err
	}

	units, err := s.reserveUnits(ctx, req)
	if err != nil {
		return nil, err
	}

	unitIDs := make([]int, 0, len(units))
	subtotal := 0
	for _, unit := range units {
		if unit.EventID != req.EventID {
			s.releaseReserved(ctx, unitIDs)
			return nil, fmt.Errorf("unit %d belongs to another event: %w", unit.ID, models.ErrInvalidInput)
		}
		unitIDs = append(unitIDs, unit.ID)
		subtotal += unit.Price
	}

	fee := models.ServiceFee(subtotal, s.feePercent)
	order := &models.Order{
		OrderNumber:    models.GenerateOrderNumber(),
		EventID:        req.EventID,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		Subtotal:       subtotal,
		FeeAmount:      fee,
		TotalAmount:    subtotal + fee,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  models.PaymentPending,
		IdempotencyKey: req.IdempotencyKey,
	}
	for i, unit := range units {
		holder := req.CustomerName
		if i < len(req.HolderNames) && req.HolderNames[i] != "" {
			holder = req.HolderNames[i]
		}
		order.Items = append(order.Items, &models.OrderItem{
			UnitID:       unit.ID,
			TicketTypeID: unit.TicketTypeID,
			UnitPrice:    unit.Price,
			HolderName:   holder,
		})
	}

	if req.PaymentMethod == models.PaymentMethodCash {
		return s.createCashOrder(ctx, order, unitIDs)
	}

	return s.createChargedOrder(ctx, req, order, units, unitIDs)
}

func (s *OrderService) reserveUnits(ctx context.Context, req *OrderCreateRequest) ([]*models.InventoryUnit, error) {
	if req.HoldID != "" {
		return s.orders.ReserveHoldUnits(ctx, req.HoldID, s.clock.Now())
	}

	requested := make(map[int]int, len(req.Items))
	order := make([]int, 0, len(req.Items))
	for _, item := range req.Items {
		if _, ok := requested[item.TicketTypeID]; !ok {
			order = append(order, item.TicketTypeID)
		}
		requested[item.TicketTypeID] += item.Quantity
	}

	// Re-validate every line first so a short order reports all of its
	// shortfalls, not just the first type the claim loop happens to hit.
	// The claim below still arbitrates; a lost race surfaces that type's
	// shortfall on its own.
	counts, err := s.inventory.CountAvailableByTypes(ctx, order)
	if err != nil {
		return nil, err
	}
	var short []models.AvailabilityItem
	for _, ticketTypeID := range order {
		if counts[ticketTypeID] < requested[ticketTypeID] {
			short = append(short, models.AvailabilityItem{
				TicketTypeID: ticketTypeID,
				Requested:    requested[ticketTypeID],
				Available:    counts[ticketTypeID],
			})
		}
	}
	if len(short) > 0 {
		return nil, &models.AvailabilityError{Items: short}
	}

	var units []*models.InventoryUnit
	var reservedIDs []int
	for _, ticketTypeID := range order {
		claimed, err := s.orders.ReserveAvailableUnits(ctx, ticketTypeID, requested[ticketTypeID])
		if err != nil {
			s.releaseReserved(ctx, reservedIDs)
			return nil, err
		}
		for _, unit := range claimed {
			units = append(units, unit)
			reservedIDs = append(reservedIDs, unit.ID)
		}
	}

	return units, nil
}

func (s *OrderService) createCashOrder(ctx context.Context, order *models.Order, unitIDs []int) (*OrderResult, error) {
	code, err := utils.GenerateShortCode(6)
	if err != nil {
		s.releaseReserved(ctx, unitIDs)
		return nil, err
	}
	order.VerificationCodeHash, err = utils.HashVerificationCode(code)
	if err != nil {
		s.releaseReserved(ctx, unitIDs)
		return nil, err
	}

	if err := s.orders.PersistPendingOrder(ctx, order); err != nil {
		s.releaseReserved(ctx, unitIDs)
		if errors.Is(err, models.ErrDuplicateOrder) {
			if existing, ferr := s.orders.FindByIdempotencyKey(ctx, order.IdempotencyKey); ferr == nil {
				return s.replayExisting(ctx, existing)
			}
		}
		return nil, err
	}

	s.logger.Info("cash order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int("total_cents", order.TotalAmount))

	return &OrderResult{Order: order, VerificationCode: code}, nil
}

func (s *OrderService) createChargedOrder(ctx context.Context, req *OrderCreateRequest, order *models.Order, units []*models.InventoryUnit, unitIDs []int) (*OrderResult, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	result, err := s.gateway.Charge(chargeCtx, &ChargeRequest{
		IdempotencyKey: req.IdempotencyKey,
		Amount:         order.TotalAmount,
		Currency:       "USD",
		Reference:      order.OrderNumber,
		CustomerEmail:  order.CustomerEmail,
		Token:          req.CardToken,
	})
	if err != nil {
		s.releaseReserved(ctx, unitIDs)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrPaymentTimeout) {
			return nil, models.ErrPaymentTimeout
		}
		return nil, err
	}
	if result.Status == ChargePendingVerification && req.PaymentMethod == models.PaymentMethodRedirect {
		return s.createRedirectOrder(ctx, order, result, unitIDs)
	}
	if result.Status != ChargeSucceeded {
		s.releaseReserved(ctx, unitIDs)
		reason := result.FailureReason
		if reason == "" {
			reason = "charge " + string(result.Status)
		}
		return nil, fmt.Errorf("%s: %w", reason, models.ErrPaymentDeclined)
	}

	order.PaymentStatus = models.PaymentPaid
	order.PaymentRef = result.ProviderRef

	tickets, issueErr := s.buildTickets(order, units)
	if issueErr == nil {
		issueErr = s.orders.PersistPaidOrder(ctx, order, tickets)
		if issueErr == nil {
			s.logger.Info("order created",
				zap.String("order_number", order.OrderNumber),
				zap.Int("tickets", len(tickets)),
				zap.Int("total_cents", order.TotalAmount))
			credentials, credErr := s.buildCredentials(ctx, order, tickets)
			if credErr != nil {
				return nil, credErr
			}
			return &OrderResult{Order: order, Tickets: tickets, Credentials: credentials, RedirectURL: result.RedirectURL}, nil
		}
		if errors.Is(issueErr, models.ErrDuplicateOrder) {
			if existing, ferr := s.orders.FindByIdempotencyKey(ctx, order.IdempotencyKey); ferr == nil {
				return s.replayExisting(ctx, existing)
			}
		}
	}

	// The customer has been charged but their tickets did not materialize.
	// Never refund automatically; persist the order flagged for manual
	// reconciliation so a human resolves it with the money trail intact.
	s.logger.Error("ticket issuance failed after successful charge",
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_ref", order.PaymentRef),
		zap.Int("amount_cents", order.TotalAmount),
		zap.Error(issueErr))

	order.NeedsReconciliation = true
	if perr := s.orders.PersistPaidOrder(ctx, order, nil); perr != nil {
		s.logger.Error("failed to persist order needing reconciliation",
			zap.String("order_number", order.OrderNumber),
			zap.String("payment_ref", order.PaymentRef),
			zap.Error(perr))
	}

	return nil, fmt.Errorf("%v: %w", issueErr, models.ErrTicketIssuance)
}

// createRedirectOrder persists a pending order for a redirect charge. The
// customer finishes payment at the provider; SettleOrder completes or cancels
// the order afterwards.
func (s *OrderService) createRedirectOrder(ctx context.Context, order *models.Order, result *ChargeResult, unitIDs []int) (*OrderResult, error) {
	order.PaymentRef = result.ProviderRef

	if err := s.orders.PersistPendingOrder(ctx, order); err != nil {
		s.releaseReserved(ctx, unitIDs)
		if errors.Is(err, models.ErrDuplicateOrder) {
			if existing, ferr := s.orders.FindByIdempotencyKey(ctx, order.IdempotencyKey); ferr == nil {
				return s.replayExisting(ctx, existing)
			}
		}
		return nil, err
	}

	s.logger.Info("redirect order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_ref", order.PaymentRef))

	return &OrderResult{Order: order, RedirectURL: result.RedirectURL}, nil
}

// SettleOrder checks a pending redirect order against the gateway and
// completes it: tickets issued on success, reservation released on decline.
// A charge still awaiting the customer leaves the order pending.
func (s *OrderService) SettleOrder(ctx context.Context, orderID int) (*OrderResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentMethod != models.PaymentMethodRedirect {
		return nil, fmt.Errorf("order %s is not a redirect order: %w", order.OrderNumber, models.ErrInvalidInput)
	}
	if order.IsPaid() {
		return s.replayExisting(ctx, order)
	}
	if !order.IsPending() {
		return nil, models.ErrOrderExpired
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	result, err := s.gateway.Verify(verifyCtx, order.PaymentRef)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrPaymentTimeout) {
			return nil, models.ErrPaymentTimeout
		}
		return nil, err
	}

	switch result.Status {
	case ChargePendingVerification:
		return &OrderResult{Order: order, RedirectURL: result.RedirectURL}, nil
	case ChargeSucceeded:
	default:
		if err := s.orders.CancelPendingOrder(ctx, order.ID); err != nil {
			return nil, err
		}
		order.PaymentStatus = models.PaymentFailed
		reason := result.FailureReason
		if reason == "" {
			reason = "charge " + string(result.Status)
		}
		return nil, fmt.Errorf("%s: %w", reason, models.ErrPaymentDeclined)
	}

	unitIDs := make([]int, 0, len(order.Items))
	for _, item := range order.Items {
		unitIDs = append(unitIDs, item.UnitID)
	}
	units, err := s.inventory.GetUnitsByIDs(ctx, unitIDs)
	if err != nil {
		return nil, err
	}

	tickets, err := s.buildTickets(order, units)
	if err != nil {
		s.flagForReconciliation(ctx, order, err)
		return nil, fmt.Errorf("%v: %w", err, models.ErrTicketIssuance)
	}

	if err := s.orders.MarkPaidWithTickets(ctx, order.ID, unitIDs, tickets); err != nil {
		s.flagForReconciliation(ctx, order, err)
		return nil, err
	}

	order.PaymentStatus = models.PaymentPaid
	s.logger.Info("redirect order settled",
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_ref", order.PaymentRef))

	credentials, err := s.buildCredentials(ctx, order, tickets)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order, Tickets: tickets, Credentials: credentials}, nil
}

func (s *OrderService) buildTickets(order *models.Order, units []*models.InventoryUnit) ([]*models.Ticket, error) {
	holders := make(map[int]string, len(order.Items))
	for _, item := range order.Items {
		holders[item.UnitID] = item.HolderName
	}

	tickets := make([]*models.Ticket, 0, len(units))
	for _, unit := range units {
		ticket, err := s.issuer.IssueTicket(order, unit, holders[unit.ID])
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (s *OrderService) replayExisting(ctx context.Context, order *models.Order) (*OrderResult, error) {
	tickets, err := s.tickets.GetByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	credentials, err := s.buildCredentials(ctx, order, tickets)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order, Tickets: tickets, Credentials: credentials}, nil
}

// buildCredentials encodes the scannable payload for each ticket. The event
// and ticket-type lookups fill the human-readable fields shown when the QR
// is decoded.
func (s *OrderService) buildCredentials(ctx context.Context, order *models.Order, tickets []*models.Ticket) ([]string, error) {
	if len(tickets) == 0 {
		return nil, nil
	}

	event, err := s.inventory.GetEventByID(ctx, order.EventID)
	if err != nil {
		return nil, err
	}

	types := make(map[int]*models.TicketType, len(tickets))
	credentials := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		ticketType, ok := types[ticket.TicketTypeID]
		if !ok {
			ticketType, err = s.inventory.GetTicketTypeByID(ctx, ticket.TicketTypeID)
			if err != nil {
				return nil, err
			}
			types[ticket.TicketTypeID] = ticketType
		}

		credential, err := s.issuer.Credential(ticket, order, event, ticketType)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}

	return credentials, nil
}

func (s *OrderService) releaseReserved(ctx context.Context, unitIDs []int) {
	if len(unitIDs) == 0 {
		return
	}
	if _, err := s.inventory.SetStatusIf(ctx, unitIDs, models.UnitReserved, models.UnitAvailable); err != nil {
		s.logger.Error("failed to release reserved units",
			zap.Ints("unit_ids", unitIDs),
			zap.Error(err))
	}
}

// flagForReconciliation marks an order whose payment succeeded but whose
// tickets could not be issued or persisted. Flagged orders are skipped by the
// pending-order sweep and wait for manual review.
func (s *OrderService) flagForReconciliation(ctx context.Context, order *models.Order, cause error) {
	order.NeedsReconciliation = true
	s.logger.Error("order needs reconciliation: payment captured without tickets",
		zap.String("order_number", order.OrderNumber),
		zap.Error(cause))
	if err := s.orders.MarkNeedsReconciliation(ctx, order.ID); err != nil {
		s.logger.Error("failed to flag order for reconciliation",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}
}

// ConfirmCashOrder settles a pending cash order after the buyer pays at the
// box office. The presented code is checked against the stored argon2 hash;
// confirmation past the verification window is refused.
func (s *OrderService) ConfirmCashOrder(ctx context.Context, orderID int, code, verifiedBy string) (*OrderResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentMethod != models.PaymentMethodCash {
		return nil, fmt.Errorf("order %s is not a cash order: %w", order.OrderNumber, models.ErrInvalidInput)
	}
	if order.IsPaid() {
		return s.replayExisting(ctx, order)
	}
	if !order.IsPending() {
		return nil, models.ErrOrderExpired
	}
	if order.IsExpired(s.cashWindow, s.clock.Now()) {
		return nil, models.ErrOrderExpired
	}

	match, err := utils.VerifyVerificationCode(code, order.VerificationCodeHash)
	if err != nil {
		return nil, err
	}
	if !match {
		s.logger.Warn("cash verification code mismatch",
			zap.String("order_number", order.OrderNumber),
			zap.String("verified_by", verifiedBy))
		return nil, models.ErrVerificationCode
	}

	unitIDs := make([]int, 0, len(order.Items))
	for _, item := range order.Items {
		unitIDs = append(unitIDs, item.UnitID)
	}
	units, err := s.inventory.GetUnitsByIDs(ctx, unitIDs)
	if err != nil {
		return nil, err
	}

	tickets, err := s.buildTickets(order, units)
	if err != nil {
		s.flagForReconciliation(ctx, order, err)
		return nil, fmt.Errorf("%v: %w", err, models.ErrTicketIssuance)
	}

	if err := s.orders.MarkPaidWithTickets(ctx, order.ID, unitIDs, tickets); err != nil {
		s.flagForReconciliation(ctx, order, err)
		return nil, err
	}

	order.PaymentStatus = models.PaymentPaid
	s.logger.Info("cash order confirmed",
		zap.String("order_number", order.OrderNumber),
		zap.String("verified_by", verifiedBy))

	credentials, err := s.buildCredentials(ctx, order, tickets)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order, Tickets: tickets, Credentials: credentials}, nil
}

// CancelExpiredPendingOrders sweeps pending cash and redirect orders whose
// verification window has elapsed and returns their units to the pool.
func (s *OrderService) CancelExpiredPendingOrders(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.cashWindow)
	cancelled, err := s.orders.CancelExpiredPendingOrders(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if cancelled > 0 {
		s.logger.Info("expired pending orders cancelled", zap.Int("count", cancelled))
	}

	return cancelled, nil
}

// RefundOrder refunds a paid order: money back through the gateway, tickets
// cancelled, units returned to the pool.
func (s *OrderService) RefundOrder(ctx context.Context, orderID int) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeRefunded() {
		return nil, fmt.Errorf("order %s is not refundable in status %s: %w",
			order.OrderNumber, order.PaymentStatus, models.ErrInvalidInput)
	}

	// Cash orders have no provider charge to reverse.
	if order.PaymentRef != "" {
		if err := s.gateway.Refund(ctx, order.PaymentRef, order.TotalAmount); err != nil {
			return nil, fmt.Errorf("gateway refund failed: %w", err)
		}
	}

	if err := s.orders.Refund(ctx, order.ID); err != nil {
		return nil, err
	}

	order.PaymentStatus = models.PaymentRefunded
	s.logger.Info("order refunded",
		zap.String("order_number", order.OrderNumber),
		zap.Int("amount_cents", order.TotalAmount))

	return order, nil
}

// GetOrder retrieves an order with its tickets
func (s *OrderService) GetOrder(ctx context.Context, orderID int) (*OrderResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.replayExisting(ctx, order)
}

// GetOrderByNumber retrieves an order by its human-facing number
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderResult, error) {
	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return s.replayExisting(ctx, order)
}

// ListOrdersByEvent lists orders for an event, newest first
func (s *OrderService) ListOrdersByEvent(ctx context.Context, eventID, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByEvent(ctx, eventID, limit, offset)
}
