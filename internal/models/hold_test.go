package models

import (
	"testing"
	"time"
)

func TestHoldLifecycle(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		status      HoldStatus
		expiresAt   time.Time
		wantActive  bool
		wantExpired bool
	}{
		{
			name:        "active before expiry",
			status:      HoldActive,
			expiresAt:   now.Add(10 * time.Minute),
			wantActive:  true,
			wantExpired: false,
		},
		{
			name:        "active exactly at expiry",
			status:      HoldActive,
			expiresAt:   now,
			wantActive:  false,
			wantExpired: true,
		},
		{
			name:        "active past expiry",
			status:      HoldActive,
			expiresAt:   now.Add(-time.Second),
			wantActive:  false,
			wantExpired: true,
		},
		{
			name:        "swept hold stays expired",
			status:      HoldExpired,
			expiresAt:   now.Add(10 * time.Minute),
			wantActive:  false,
			wantExpired: true,
		},
		{
			name:        "consumed hold is neither",
			status:      HoldConsumed,
			expiresAt:   now.Add(10 * time.Minute),
			wantActive:  false,
			wantExpired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hold := &Hold{Status: tt.status, ExpiresAt: tt.expiresAt}
			if got := hold.IsActive(now); got != tt.wantActive {
				t.Errorf("IsActive() = %v, want %v", got, tt.wantActive)
			}
			if got := hold.IsExpired(now); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestHoldRemaining(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	hold := &Hold{Status: HoldActive, ExpiresAt: now.Add(5 * time.Minute)}
	if got := hold.Remaining(now); got != 5*time.Minute {
		t.Errorf("Remaining() = %v, want 5m", got)
	}

	expired := &Hold{Status: HoldActive, ExpiresAt: now.Add(-time.Minute)}
	if got := expired.Remaining(now); got != 0 {
		t.Errorf("Remaining() on expired hold = %v, want 0", got)
	}
}

func TestHoldValidate(t *testing.T) {
	hold := &Hold{
		ID:        "2b1f0a9e-0000-0000-0000-000000000000",
		SessionID: "sess-1",
		UnitIDs:   []int{1, 2},
		Status:    HoldActive,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	if err := hold.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	noUnits := *hold
	noUnits.UnitIDs = nil
	if err := noUnits.Validate(); err == nil {
		t.Error("Validate() expected error for hold without units")
	}

	badStatus := *hold
	badStatus.Status = "pending"
	if err := badStatus.Validate(); err == nil {
		t.Error("Validate() expected error for invalid status")
	}
}
