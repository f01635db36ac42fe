package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ticketgate/internal/middleware"
	"ticketgate/internal/models"
	"ticketgate/internal/services"
)

// CheckInHandler exposes credential validation and check-in for scanner
// devices. All routes require a scanner token.
type CheckInHandler struct {
	checkin *services.CheckInService
	auth    *middleware.ScannerAuth
	logger  *zap.Logger
}

// NewCheckInHandler creates a new check-in handler
func NewCheckInHandler(checkin *services.CheckInService, auth *middleware.ScannerAuth, logger *zap.Logger) *CheckInHandler {
	return &CheckInHandler{checkin: checkin, auth: auth, logger: logger}
}

type scanRequest struct {
	Payload string `json:"payload"`
}

type scanResponse struct {
	Ticket *models.Ticket `json:"ticket,omitempty"`
	Result string         `json:"result"`
}

// Validate checks a presented credential without consuming the ticket
func (h *CheckInHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, actor, ip, ok := h.scanInputs(w, r)
	if !ok {
		return
	}

	ticket, err := h.checkin.Validate(r.Context(), req.Payload, actor, ip)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{Ticket: ticket, Result: "valid"})
}

// CheckIn validates a credential and consumes the ticket in one call
func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	req, actor, ip, ok := h.scanInputs(w, r)
	if !ok {
		return
	}

	ticket, err := h.checkin.ValidateAndCheckIn(r.Context(), req.Payload, actor, ip)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{Ticket: ticket, Result: "checked_in"})
}

// ScanHistory returns the audit trail for one ticket
func (h *CheckInHandler) ScanHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := h.checkin.ScanHistory(r.Context(), chi.URLParam(r, "ticketCode"), 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"scans": logs})
}

type scannerLoginRequest struct {
	Operator string `json:"operator"`
	Gate     string `json:"gate"`
	Secret   string `json:"secret"`
}

// IssueToken exchanges the shared scanner secret for a device bearer token
func (h *CheckInHandler) IssueToken(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scannerLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, fmt.Errorf("invalid request body: %w", models.ErrInvalidInput))
			return
		}

		if req.Secret != secret || req.Operator == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Code:    "unauthorized",
				Message: "invalid scanner credentials",
			})
			return
		}

		token, err := h.auth.IssueToken(req.Operator, req.Gate)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (h *CheckInHandler) scanInputs(w http.ResponseWriter, r *http.Request) (*scanRequest, string, string, bool) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("invalid request body: %w", models.ErrInvalidInput))
		return nil, "", "", false
	}

	actor := ""
	if claims := middleware.GetScannerFromContext(r.Context()); claims != nil {
		actor = claims.Operator
	}

	return &req, actor, middleware.GetClientIP(r), true
}
