package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ticketgate/internal/models"
)

func TestOrderRepositoryReserveHoldUnits(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	holds := NewHoldRepository(db)
	ctx := context.Background()

	t.Run("consumes the hold and returns units in stable order", func(t *testing.T) {
		truncateAll(t, ctx, db)
		_, _, unitIDs := seedUnits(t, ctx, db, 3)

		hold := activeHold("sess-buyer", unitIDs)
		if err := holds.Create(ctx, hold); err != nil {
			t.Fatalf("create hold: %v", err)
		}

		units, err := repo.ReserveHoldUnits(ctx, hold.ID, time.Now())
		if err != nil {
			t.Fatalf("ReserveHoldUnits: %v", err)
		}
		if len(units) != len(unitIDs) {
			t.Fatalf("reserved %d units, want %d", len(units), len(unitIDs))
		}
		for i, unit := range units {
			if unit.Status != models.UnitReserved {
				t.Errorf("unit %d status = %s, want reserved", unit.ID, unit.Status)
			}
			// Holder names bind by position, so the order must be stable.
			if i > 0 && units[i-1].ID >= unit.ID {
				t.Fatalf("units not in ascending id order: %d before %d", units[i-1].ID, unit.ID)
			}
		}

		// The hold is spent; a second consumption attempt must fail.
		if _, err := repo.ReserveHoldUnits(ctx, hold.ID, time.Now()); !errors.Is(err, models.ErrHoldExpired) {
			t.Errorf("second consumption error = %v, want ErrHoldExpired", err)
		}
	})

	t.Run("expired hold cannot be consumed", func(t *testing.T) {
		truncateAll(t, ctx, db)
		_, _, unitIDs := seedUnits(t, ctx, db, 1)

		hold := activeHold("sess-late", unitIDs)
		if err := holds.Create(ctx, hold); err != nil {
			t.Fatalf("create hold: %v", err)
		}
		expireHold(t, ctx, db, hold.ID)

		if _, err := repo.ReserveHoldUnits(ctx, hold.ID, time.Now()); !errors.Is(err, models.ErrHoldExpired) {
			t.Fatalf("consumption of expired hold error = %v, want ErrHoldExpired", err)
		}
	})

	t.Run("unknown hold reports not found", func(t *testing.T) {
		truncateAll(t, ctx, db)

		if _, err := repo.ReserveHoldUnits(ctx, "00000000-0000-0000-0000-000000000000", time.Now()); !errors.Is(err, models.ErrHoldNotFound) {
			t.Fatalf("unknown hold error = %v, want ErrHoldNotFound", err)
		}
	})
}

func TestOrderRepositoryReserveAvailableUnits(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	t.Run("concurrent buyers never share the last unit", func(t *testing.T) {
		truncateAll(t, ctx, db)
		_, ticketTypeID, _ := seedUnits(t, ctx, db, 1)

		start := make(chan struct{})
		results := make([][]*models.InventoryUnit, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i], errs[i] = repo.ReserveAvailableUnits(ctx, ticketTypeID, 1)
			}(i)
		}
		close(start)
		wg.Wait()

		winners := 0
		for i, err := range errs {
			switch {
			case err == nil:
				winners++
				if len(results[i]) != 1 {
					t.Fatalf("winner reserved %d units, want 1", len(results[i]))
				}
			default:
				var availErr *models.AvailabilityError
				if !errors.As(err, &availErr) {
					t.Fatalf("loser error = %v, want availability detail", err)
				}
			}
		}
		if winners != 1 {
			t.Fatalf("winners = %d, want exactly 1", winners)
		}
	})

	t.Run("shortfall reserves nothing", func(t *testing.T) {
		truncateAll(t, ctx, db)
		_, ticketTypeID, unitIDs := seedUnits(t, ctx, db, 1)

		_, err := repo.ReserveAvailableUnits(ctx, ticketTypeID, 2)
		var availErr *models.AvailabilityError
		if !errors.As(err, &availErr) {
			t.Fatalf("short claim error = %v, want availability detail", err)
		}
		if availErr.Items[0].Requested != 2 || availErr.Items[0].Available != 1 {
			t.Errorf("availability detail = %+v, want requested 2 available 1", availErr.Items)
		}

		inv := NewInventoryRepository(db)
		units, err := inv.GetUnitsByIDs(ctx, unitIDs)
		if err != nil {
			t.Fatalf("read units back: %v", err)
		}
		if units[0].Status != models.UnitAvailable {
			t.Errorf("unit status = %s after short claim, want available", units[0].Status)
		}
	})
}
