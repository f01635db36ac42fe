package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"ticketgate/internal/models"
	"ticketgate/internal/services"
)

// CartHandler exposes the read-only cart availability check
type CartHandler struct {
	validation *services.ValidationService
	logger     *zap.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(validation *services.ValidationService, logger *zap.Logger) *CartHandler {
	return &CartHandler{validation: validation, logger: logger}
}

type validateCartRequest struct {
	Items []models.CartItem `json:"items"`
}

// ValidateCart reports whether every cart line could be fulfilled right now
func (h *CartHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	var req validateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("invalid request body: %w", models.ErrInvalidInput))
		return
	}

	result, err := h.validation.ValidateCart(r.Context(), req.Items)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
