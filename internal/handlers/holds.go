package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ticketgate/internal/models"
	"ticketgate/internal/services"
)

// HoldHandler exposes the hold lifecycle over HTTP
type HoldHandler struct {
	holds  *services.HoldService
	logger *zap.Logger
}

// NewHoldHandler creates a new hold handler
func NewHoldHandler(holds *services.HoldService, logger *zap.Logger) *HoldHandler {
	return &HoldHandler{holds: holds, logger: logger}
}

type placeHoldRequest struct {
	SessionID string `json:"session_id"`
	UnitIDs   []int  `json:"unit_ids"`
}

// PlaceHold claims a set of seats for a session
func (h *HoldHandler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	var req placeHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("invalid request body: %w", models.ErrInvalidInput))
		return
	}

	hold, err := h.holds.PlaceHold(r.Context(), req.SessionID, req.UnitIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, hold)
}

type holdDetailResponse struct {
	Hold  *models.Hold            `json:"hold"`
	Units []*models.InventoryUnit `json:"units"`
}

// GetHold returns a hold with its authoritative status and the units it
// currently claims
func (h *HoldHandler) GetHold(w http.ResponseWriter, r *http.Request) {
	hold, err := h.holds.GetHold(r.Context(), chi.URLParam(r, "holdID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	units, err := h.holds.HoldUnits(r.Context(), hold.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, holdDetailResponse{Hold: hold, Units: units})
}

type extendHoldRequest struct {
	AdditionalSeconds int `json:"additional_seconds"`
}

// ExtendHold pushes a hold's expiry out; extending by zero releases it
func (h *HoldHandler) ExtendHold(w http.ResponseWriter, r *http.Request) {
	var req extendHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("invalid request body: %w", models.ErrInvalidInput))
		return
	}

	hold, err := h.holds.ExtendHold(r.Context(), chi.URLParam(r, "holdID"),
		time.Duration(req.AdditionalSeconds)*time.Second)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, hold)
}

// ReleaseHold releases a hold and returns its units to the pool
func (h *HoldHandler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	if err := h.holds.ReleaseHold(r.Context(), chi.URLParam(r, "holdID")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
