package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ticketgate/internal/models"
)

// errorResponse is the JSON error envelope every endpoint returns
type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors onto HTTP statuses and coded JSON bodies.
// Unknown errors become an opaque 500; the detail goes to the log, not the
// client.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var availErr *models.AvailabilityError
	if errors.As(err, &availErr) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:    "insufficient_inventory",
			Message: "one or more items are no longer available",
			Details: availErr.Items,
		})
		return
	}

	var rateErr *models.RateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", rateErr.RetryAfter.Round(time.Second).String())
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Code:    "rate_limited",
			Message: "too many validation attempts",
			Details: map[string]string{"retry_after": rateErr.RetryAfter.Round(time.Second).String()},
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidCredential):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
	case errors.Is(err, models.ErrHoldNotFound), errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrTicketNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Message: err.Error()})
	case errors.Is(err, models.ErrHoldExpired):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "hold_expired", Message: err.Error()})
	case errors.Is(err, models.ErrOrderExpired):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "order_expired", Message: err.Error()})
	case errors.Is(err, models.ErrUnitsUnavailable), errors.Is(err, models.ErrInsufficientInventory):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "insufficient_inventory", Message: err.Error()})
	case errors.Is(err, models.ErrDuplicateOrder):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "duplicate_order", Message: err.Error()})
	case errors.Is(err, models.ErrTicketAlreadyUsed):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "already_used", Message: err.Error()})
	case errors.Is(err, models.ErrTicketCancelled):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "ticket_cancelled", Message: err.Error()})
	case errors.Is(err, models.ErrPaymentDeclined):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Code: "payment_declined", Message: err.Error()})
	case errors.Is(err, models.ErrPaymentTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Code: "payment_timeout", Message: err.Error()})
	case errors.Is(err, models.ErrVerificationCode):
		writeJSON(w, http.StatusForbidden, errorResponse{Code: "verification_failed", Message: err.Error()})
	case errors.Is(err, models.ErrTamperDetected):
		writeJSON(w, http.StatusForbidden, errorResponse{Code: "tamper_detected", Message: err.Error()})
	case errors.Is(err, models.ErrTicketIssuance):
		logger.Error("order needs reconciliation", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Code:    "issuance_failed",
			Message: "payment succeeded but ticket issuance failed; the order is flagged for review",
		})
	default:
		logger.Error("unhandled request error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "internal_error",
			Message: "an internal error occurred",
		})
	}
}
