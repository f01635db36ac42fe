package services

import (
	"context"
	"errors"
	"testing"

	"ticketgate/internal/models"
)

type mockAvailabilityStore struct {
	available map[int]int
}

func (m *mockAvailabilityStore) CountAvailableByTypes(ctx context.Context, ticketTypeIDs []int) (map[int]int, error) {
	counts := make(map[int]int, len(ticketTypeIDs))
	for _, id := range ticketTypeIDs {
		counts[id] = m.available[id]
	}
	return counts, nil
}

func TestValidateCart(t *testing.T) {
	tests := []struct {
		name       string
		available  map[int]int
		items      []models.CartItem
		wantValid  bool
		wantErrors []models.AvailabilityItem
	}{
		{
			name:      "everything in stock",
			available: map[int]int{10: 5, 20: 3},
			items: []models.CartItem{
				{TicketTypeID: 10, Quantity: 2},
				{TicketTypeID: 20, Quantity: 3},
			},
			wantValid: true,
		},
		{
			name:      "one line short",
			available: map[int]int{10: 5, 20: 1},
			items: []models.CartItem{
				{TicketTypeID: 10, Quantity: 2},
				{TicketTypeID: 20, Quantity: 3},
			},
			wantValid: false,
			wantErrors: []models.AvailabilityItem{
				{TicketTypeID: 20, Requested: 3, Available: 1},
			},
		},
		{
			name:      "duplicate lines aggregate before checking",
			available: map[int]int{10: 3},
			items: []models.CartItem{
				{TicketTypeID: 10, Quantity: 2},
				{TicketTypeID: 10, Quantity: 2},
			},
			wantValid: false,
			wantErrors: []models.AvailabilityItem{
				{TicketTypeID: 10, Requested: 4, Available: 3},
			},
		},
		{
			name:      "unknown ticket type has zero available",
			available: map[int]int{},
			items: []models.CartItem{
				{TicketTypeID: 99, Quantity: 1},
			},
			wantValid: false,
			wantErrors: []models.AvailabilityItem{
				{TicketTypeID: 99, Requested: 1, Available: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewValidationService(&mockAvailabilityStore{available: tt.available})

			result, err := svc.ValidateCart(context.Background(), tt.items)
			if err != nil {
				t.Fatalf("ValidateCart() unexpected error: %v", err)
			}

			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", result.Valid, tt.wantValid)
			}
			if len(result.Errors) != len(tt.wantErrors) {
				t.Fatalf("Errors = %+v, want %+v", result.Errors, tt.wantErrors)
			}
			for i, want := range tt.wantErrors {
				if result.Errors[i] != want {
					t.Errorf("Errors[%d] = %+v, want %+v", i, result.Errors[i], want)
				}
			}
		})
	}
}

func TestValidateCartRejectsBadInput(t *testing.T) {
	svc := NewValidationService(&mockAvailabilityStore{available: map[int]int{10: 5}})

	if _, err := svc.ValidateCart(context.Background(), nil); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("empty cart error = %v, want ErrInvalidInput", err)
	}

	items := []models.CartItem{{TicketTypeID: 10, Quantity: 0}}
	if _, err := svc.ValidateCart(context.Background(), items); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("zero quantity error = %v, want ErrInvalidInput", err)
	}
}
