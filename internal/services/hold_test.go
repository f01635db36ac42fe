package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"ticketgate/internal/clock"
	"ticketgate/internal/models"
)

type mockHoldStore struct {
	holds         map[string]*models.Hold
	units         map[int]*models.InventoryUnit
	shouldFailOps map[string]bool
}

func newMockHoldStore() *mockHoldStore {
	return &mockHoldStore{
		holds:         make(map[string]*models.Hold),
		units:         make(map[int]*models.InventoryUnit),
		shouldFailOps: make(map[string]bool),
	}
}

func (m *mockHoldStore) addAvailableUnits(count int) []int {
	var ids []int
	for i := 0; i < count; i++ {
		id := len(m.units) + 1
		m.units[id] = &models.InventoryUnit{
			ID:           id,
			EventID:      1,
			TicketTypeID: 10,
			Status:       models.UnitAvailable,
			Price:        5000,
		}
		ids = append(ids, id)
	}
	return ids
}

func (m *mockHoldStore) Create(ctx context.Context, hold *models.Hold) error {
	if m.shouldFailOps["Create"] {
		return models.ErrUnitsUnavailable
	}
	for _, id := range hold.UnitIDs {
		unit, ok := m.units[id]
		if !ok || unit.Status != models.UnitAvailable {
			return models.ErrUnitsUnavailable
		}
	}
	for _, id := range hold.UnitIDs {
		m.units[id].Status = models.UnitHeld
		m.units[id].HoldID = hold.ID
	}
	m.holds[hold.ID] = hold
	return nil
}

func (m *mockHoldStore) GetByID(ctx context.Context, id string) (*models.Hold, error) {
	if hold, ok := m.holds[id]; ok {
		return hold, nil
	}
	return nil, models.ErrHoldNotFound
}

func (m *mockHoldStore) Extend(ctx context.Context, id string, newExpiry, now time.Time) (int64, error) {
	hold, ok := m.holds[id]
	if !ok || hold.Status != models.HoldActive || !hold.ExpiresAt.After(now) {
		return 0, nil
	}
	hold.ExpiresAt = newExpiry
	return 1, nil
}

func (m *mockHoldStore) Release(ctx context.Context, id string) error {
	hold, ok := m.holds[id]
	if !ok || hold.Status != models.HoldActive {
		return models.ErrHoldNotFound
	}
	hold.Status = models.HoldReleased
	for _, unitID := range hold.UnitIDs {
		m.units[unitID].Status = models.UnitAvailable
		m.units[unitID].HoldID = ""
	}
	return nil
}

func (m *mockHoldStore) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	count := 0
	for _, hold := range m.holds {
		if hold.Status == models.HoldActive && !hold.ExpiresAt.After(now) {
			hold.Status = models.HoldExpired
			for _, unitID := range hold.UnitIDs {
				m.units[unitID].Status = models.UnitAvailable
				m.units[unitID].HoldID = ""
			}
			count++
		}
	}
	return count, nil
}

func (m *mockHoldStore) GetUnitsByIDs(ctx context.Context, ids []int) ([]*models.InventoryUnit, error) {
	var units []*models.InventoryUnit
	for _, id := range ids {
		if unit, ok := m.units[id]; ok {
			units = append(units, unit)
		}
	}
	return units, nil
}

func (m *mockHoldStore) GetUnitsByHold(ctx context.Context, holdID string) ([]*models.InventoryUnit, error) {
	var units []*models.InventoryUnit
	for id := 1; id <= len(m.units); id++ {
		if unit, ok := m.units[id]; ok && unit.HoldID == holdID {
			units = append(units, unit)
		}
	}
	return units, nil
}

func newTestHoldService(store *mockHoldStore, clk clock.Clock) *HoldService {
	return NewHoldService(store, store, clk, 15*time.Minute, 8, zap.NewNop())
}

func TestPlaceHold(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		sessionID string
		unitIDs   func(store *mockHoldStore) []int
		wantErr   error
	}{
		{
			name:      "valid hold",
			sessionID: "sess-1",
			unitIDs:   func(s *mockHoldStore) []int { return s.addAvailableUnits(2) },
		},
		{
			name:      "missing session",
			sessionID: "",
			unitIDs:   func(s *mockHoldStore) []int { return s.addAvailableUnits(1) },
			wantErr:   models.ErrInvalidInput,
		},
		{
			name:      "no units",
			sessionID: "sess-1",
			unitIDs:   func(s *mockHoldStore) []int { return nil },
			wantErr:   models.ErrInvalidInput,
		},
		{
			name:      "over the per-session cap",
			sessionID: "sess-1",
			unitIDs:   func(s *mockHoldStore) []int { return s.addAvailableUnits(9) },
			wantErr:   models.ErrInvalidInput,
		},
		{
			name:      "duplicate unit ids",
			sessionID: "sess-1",
			unitIDs: func(s *mockHoldStore) []int {
				ids := s.addAvailableUnits(1)
				return []int{ids[0], ids[0]}
			},
			wantErr: models.ErrInvalidInput,
		},
		{
			name:      "unknown unit",
			sessionID: "sess-1",
			unitIDs:   func(s *mockHoldStore) []int { return []int{999} },
			wantErr:   models.ErrUnitsUnavailable,
		},
		{
			name:      "unit already held",
			sessionID: "sess-1",
			unitIDs: func(s *mockHoldStore) []int {
				ids := s.addAvailableUnits(1)
				s.units[ids[0]].Status = models.UnitHeld
				return ids
			},
			wantErr: models.ErrUnitsUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockHoldStore()
			clk := clock.NewFixed(start)
			svc := newTestHoldService(store, clk)

			hold, err := svc.PlaceHold(context.Background(), tt.sessionID, tt.unitIDs(store))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("PlaceHold() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("PlaceHold() unexpected error: %v", err)
			}

			if hold.Status != models.HoldActive {
				t.Errorf("hold status = %s, want active", hold.Status)
			}
			if want := start.Add(15 * time.Minute); !hold.ExpiresAt.Equal(want) {
				t.Errorf("ExpiresAt = %v, want %v", hold.ExpiresAt, want)
			}
			for _, id := range hold.UnitIDs {
				if store.units[id].Status != models.UnitHeld {
					t.Errorf("unit %d status = %s, want held", id, store.units[id].Status)
				}
			}
		})
	}
}

func TestPlaceHoldAllOrNothing(t *testing.T) {
	store := newMockHoldStore()
	ids := store.addAvailableUnits(3)
	store.units[ids[2]].Status = models.UnitSold
	svc := newTestHoldService(store, clock.NewFixed(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)))

	_, err := svc.PlaceHold(context.Background(), "sess-1", ids)
	if !errors.Is(err, models.ErrUnitsUnavailable) {
		t.Fatalf("PlaceHold() error = %v, want ErrUnitsUnavailable", err)
	}

	// The two available units must not be left claimed.
	if store.units[ids[0]].Status != models.UnitAvailable || store.units[ids[1]].Status != models.UnitAvailable {
		t.Error("partial claim left units held after a failed hold")
	}
}

func TestGetHoldReportsLazyExpiry(t *testing.T) {
	store := newMockHoldStore()
	ids := store.addAvailableUnits(1)
	clk := clock.NewFixed(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestHoldService(store, clk)

	hold, err := svc.PlaceHold(context.Background(), "sess-1", ids)
	if err != nil {
		t.Fatalf("PlaceHold() unexpected error: %v", err)
	}

	clk.Advance(16 * time.Minute)

	// The sweep has not run, but the caller must still see an expired hold.
	got, err := svc.GetHold(context.Background(), hold.ID)
	if err != nil {
		t.Fatalf("GetHold() unexpected error: %v", err)
	}
	if got.Status != models.HoldExpired {
		t.Errorf("hold status = %s past expiry, want expired", got.Status)
	}
}

func TestHoldUnits(t *testing.T) {
	store := newMockHoldStore()
	ids := store.addAvailableUnits(3)
	store.addAvailableUnits(2) // units outside the hold
	clk := clock.NewFixed(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestHoldService(store, clk)

	hold, err := svc.PlaceHold(context.Background(), "sess-1", ids)
	if err != nil {
		t.Fatalf("PlaceHold() unexpected error: %v", err)
	}

	units, err := svc.HoldUnits(context.Background(), hold.ID)
	if err != nil {
		t.Fatalf("HoldUnits() unexpected error: %v", err)
	}
	if len(units) != len(ids) {
		t.Fatalf("HoldUnits() returned %d units, want %d", len(units), len(ids))
	}
	for _, unit := range units {
		if unit.Status != models.UnitHeld {
			t.Errorf("unit %d status = %s, want held", unit.ID, unit.Status)
		}
	}
}

func TestExtendHold(t *testing.T) {
	store := newMockHoldStore()
	ids := store.addAvailableUnits(1)
	clk := clock.NewFixed(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestHoldService(store, clk)

	hold, err := svc.PlaceHold(context.Background(), "sess-1", ids)
	if err != nil {
		t.Fatalf("PlaceHold() unexpected error: %v", err)
	}
	originalExpiry := hold.ExpiresAt

	extended, err := svc.ExtendHold(context.Background(), hold.ID, 5*time.Minute)
	if err != nil {
		t.Fatalf("ExtendHold() unexpected error: %v", err)
	}
	if want := originalExpiry.Add(5 * time.Minute); !extended.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", extended.ExpiresAt, want)
	}

	if _, err := svc.ExtendHold(context.Background(), hold.ID, -time.Minute); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("negative extension error = %v, want ErrInvalidInput", err)
	}

	// Zero extension releases the hold.
	released, err := svc.ExtendHold(context.Background(), hold.ID, 0)
	if err != nil {
		t.Fatalf("ExtendHold(0) unexpected error: %v", err)
	}
	if released.Status != models.HoldReleased {
		t.Errorf("hold status = %s after zero extension, want released", released.Status)
	}
	if store.units[ids[0]].Status != models.UnitAvailable {
		t.Error("unit should be back in the pool after a zero extension")
	}
}

func TestExtendHoldPastExpiry(t *testing.T) {
	store := newMockHoldStore()
	ids := store.addAvailableUnits(1)
	clk := clock.NewFixed(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestHoldService(store, clk)

	hold, err := svc.PlaceHold(context.Background(), "sess-1", ids)
	if err != nil {
		t.Fatalf("PlaceHold() unexpected error: %v", err)
	}

	clk.Advance(20 * time.Minute)

	if _, err := svc.ExtendHold(context.Background(), hold.ID, 5*time.Minute); !errors.Is(err, models.ErrHoldExpired) {
		t.Errorf("extending past expiry error = %v, want ErrHoldExpired", err)
	}
}

func TestReleaseExpiredSweep(t *testing.T) {
	store := newMockHoldStore()
	clk := clock.NewFixed(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestHoldService(store, clk)

	first, err := svc.PlaceHold(context.Background(), "sess-1", store.addAvailableUnits(2))
	if err != nil {
		t.Fatalf("PlaceHold() unexpected error: %v", err)
	}

	clk.Advance(10 * time.Minute)

	second, err := svc.PlaceHold(context.Background(), "sess-2", store.addAvailableUnits(1))
	if err != nil {
		t.Fatalf("PlaceHold() unexpected error: %v", err)
	}

	clk.Advance(6 * time.Minute) // first is now past expiry, second is not

	swept, err := svc.ReleaseExpired(context.Background())
	if err != nil {
		t.Fatalf("ReleaseExpired() unexpected error: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
	if store.holds[first.ID].Status != models.HoldExpired {
		t.Errorf("first hold status = %s, want expired", store.holds[first.ID].Status)
	}
	if store.holds[second.ID].Status != models.HoldActive {
		t.Errorf("second hold status = %s, want active", store.holds[second.ID].Status)
	}
}
