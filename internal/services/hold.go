package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticketgate/internal/clock"
	"ticketgate/internal/models"
)

// HoldStore defines hold persistence operations
type HoldStore interface {
	Create(ctx context.Context, hold *models.Hold) error
	GetByID(ctx context.Context, id string) (*models.Hold, error)
	Extend(ctx context.Context, id string, newExpiry, now time.Time) (int64, error)
	Release(ctx context.Context, id string) error
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

// HoldUnitStore defines the inventory reads the hold service needs
type HoldUnitStore interface {
	GetUnitsByIDs(ctx context.Context, ids []int) ([]*models.InventoryUnit, error)
	GetUnitsByHold(ctx context.Context, holdID string) ([]*models.InventoryUnit, error)
}

// HoldService manages temporary seat claims. A hold either claims every
// requested unit or nothing; expiry is decided against the injected clock,
// never client state.
type HoldService struct {
	holds    HoldStore
	units    HoldUnitStore
	clock    clock.Clock
	ttl      time.Duration
	maxUnits int
	logger   *zap.Logger
}

// NewHoldService creates a new hold service
func NewHoldService(holds HoldStore, units HoldUnitStore, clk clock.Clock, ttl time.Duration, maxUnits int, logger *zap.Logger) *HoldService {
	return &HoldService{
		holds:    holds,
		units:    units,
		clock:    clk,
		ttl:      ttl,
		maxUnits: maxUnits,
		logger:   logger,
	}
}

// PlaceHold claims the requested units for one session. Returns
// ErrUnitsUnavailable when any requested unit is already claimed or sold.
func (s *HoldService) PlaceHold(ctx context.Context, sessionID string, unitIDs []int) (*models.Hold, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", models.ErrInvalidInput)
	}
	if len(unitIDs) == 0 {
		return nil, fmt.Errorf("at least one unit is required: %w", models.ErrInvalidInput)
	}
	if len(unitIDs) > s.maxUnits {
		return nil, fmt.Errorf("cannot hold more than %d units: %w", s.maxUnits, models.ErrInvalidInput)
	}

	seen := make(map[int]bool, len(unitIDs))
	for _, id := range unitIDs {
		if seen[id] {
			return nil, fmt.Errorf("duplicate unit id %d: %w", id, models.ErrInvalidInput)
		}
		seen[id] = true
	}

	units, err := s.units.GetUnitsByIDs(ctx, unitIDs)
	if err != nil {
		return nil, err
	}
	if len(units) != len(unitIDs) {
		return nil, models.ErrUnitsUnavailable
	}

	now := s.clock.Now()
	hold := &models.Hold{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UnitIDs:   unitIDs,
		Status:    models.HoldActive,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.holds.Create(ctx, hold); err != nil {
		return nil, err
	}

	s.logger.Info("hold placed",
		zap.String("hold_id", hold.ID),
		zap.Int("units", len(unitIDs)),
		zap.Time("expires_at", hold.ExpiresAt))

	return hold, nil
}

// GetHold retrieves a hold. A hold past its expiry is reported as expired
// even if the sweep has not visited it yet.
func (s *HoldService) GetHold(ctx context.Context, id string) (*models.Hold, error) {
	hold, err := s.holds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if hold.Status == models.HoldActive && hold.IsExpired(s.clock.Now()) {
		hold.Status = models.HoldExpired
	}

	return hold, nil
}

// HoldUnits lists the units attached to a hold so the checkout page can show
// the claimed seats.
func (s *HoldService) HoldUnits(ctx context.Context, id string) ([]*models.InventoryUnit, error) {
	return s.units.GetUnitsByHold(ctx, id)
}

// ExtendHold pushes a hold's expiry out by additional time. Extending by zero
// releases the hold immediately.
func (s *HoldService) ExtendHold(ctx context.Context, id string, additional time.Duration) (*models.Hold, error) {
	if additional < 0 {
		return nil, fmt.Errorf("extension cannot be negative: %w", models.ErrInvalidInput)
	}

	if additional == 0 {
		if err := s.ReleaseHold(ctx, id); err != nil {
			return nil, err
		}
		return s.holds.GetByID(ctx, id)
	}

	hold, err := s.holds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	newExpiry := hold.ExpiresAt.Add(additional)
	affected, err := s.holds.Extend(ctx, id, newExpiry, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, models.ErrHoldExpired
	}

	hold.ExpiresAt = newExpiry
	return hold, nil
}

// ReleaseHold releases an active hold and returns its units to the pool
func (s *HoldService) ReleaseHold(ctx context.Context, id string) error {
	if err := s.holds.Release(ctx, id); err != nil {
		return err
	}

	s.logger.Info("hold released", zap.String("hold_id", id))
	return nil
}

// ReleaseExpired sweeps expired holds. Safe to run concurrently with hold
// placement and consumption; every transition involved is conditional.
func (s *HoldService) ReleaseExpired(ctx context.Context) (int, error) {
	swept, err := s.holds.ReleaseExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		s.logger.Info("expired holds released", zap.Int("count", swept))
	}

	return swept, nil
}
