package services

import (
	"context"
	"fmt"

	"ticketgate/internal/models"
)

// AvailabilityStore defines the inventory reads cart validation needs
type AvailabilityStore interface {
	CountAvailableByTypes(ctx context.Context, ticketTypeIDs []int) (map[int]int, error)
}

// ValidationService answers whether a cart could be fulfilled right now. The
// answer is advisory; the order path re-checks under contention.
type ValidationService struct {
	inventory AvailabilityStore
}

// NewValidationService creates a new validation service
func NewValidationService(inventory AvailabilityStore) *ValidationService {
	return &ValidationService{inventory: inventory}
}

// ValidateCart checks every cart line against current availability and
// reports each shortfall with requested and available counts. Duplicate
// lines for the same ticket type are aggregated before checking.
func (s *ValidationService) ValidateCart(ctx context.Context, items []models.CartItem) (*models.CartValidation, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("cart is empty: %w", models.ErrInvalidInput)
	}

	requested := make(map[int]int, len(items))
	order := make([]int, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), models.ErrInvalidInput)
		}
		if _, ok := requested[item.TicketTypeID]; !ok {
			order = append(order, item.TicketTypeID)
		}
		requested[item.TicketTypeID] += item.Quantity
	}

	available, err := s.inventory.CountAvailableByTypes(ctx, order)
	if err != nil {
		return nil, err
	}

	result := &models.CartValidation{Valid: true}
	for _, ticketTypeID := range order {
		want := requested[ticketTypeID]
		have := available[ticketTypeID]
		if have < want {
			result.Valid = false
			result.Errors = append(result.Errors, models.AvailabilityItem{
				TicketTypeID: ticketTypeID,
				Requested:    want,
				Available:    have,
			})
		}
	}

	return result, nil
}
