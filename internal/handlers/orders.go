package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ticketgate/internal/middleware"
	"ticketgate/internal/models"
	"ticketgate/internal/services"
)

// OrderHandler exposes order creation and lifecycle over HTTP
type OrderHandler struct {
	orders *services.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// CreateOrder commits a purchase. The Idempotency-Key header, when present,
// overrides the body field so plain HTTP retries are safe.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req services.OrderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("invalid request body: %w", models.ErrInvalidInput))
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.orders.CreateOrder(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetOrder returns an order with its tickets
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type confirmCashRequest struct {
	VerificationCode string `json:"verification_code"`
}

// ConfirmCashOrder settles a pending cash order at the box office. Requires
// a scanner token; the operator identity lands on the confirmation.
func (h *OrderHandler) ConfirmCashOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req confirmCashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("invalid request body: %w", models.ErrInvalidInput))
		return
	}

	verifiedBy := ""
	if claims := middleware.GetScannerFromContext(r.Context()); claims != nil {
		verifiedBy = claims.Operator
	}

	result, err := h.orders.ConfirmCashOrder(r.Context(), id, req.VerificationCode, verifiedBy)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SettleOrder completes a pending redirect order after the customer returns
// from the payment provider.
func (h *OrderHandler) SettleOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.orders.SettleOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RefundOrder refunds a paid order
func (h *OrderHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	order, err := h.orders.RefundOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListOrders lists orders for an event
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.Atoi(r.URL.Query().Get("event_id"))
	if err != nil || eventID <= 0 {
		writeError(w, h.logger, fmt.Errorf("event_id query parameter is required: %w", models.ErrInvalidInput))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.orders.ListOrdersByEvent(r.Context(), eventID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func orderID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "orderID"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id: %w", models.ErrInvalidInput)
	}
	return id, nil
}
