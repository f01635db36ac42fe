package services

import (
	"sync"
	"time"

	"ticketgate/internal/clock"
)

// ScanRateLimiter bounds validation attempts per (ticket, client IP) pair
// over a sliding window. Brute-forcing ticket codes from one device is the
// attack this blunts.
type ScanRateLimiter struct {
	attempts    map[string][]time.Time
	violations  map[string]int
	mutex       sync.Mutex
	maxAttempts int
	window      time.Duration
	clock       clock.Clock
}

// NewScanRateLimiter creates a new scan rate limiter
func NewScanRateLimiter(maxAttempts int, window time.Duration, clk clock.Clock) *ScanRateLimiter {
	return &ScanRateLimiter{
		attempts:    make(map[string][]time.Time),
		violations:  make(map[string]int),
		maxAttempts: maxAttempts,
		window:      window,
		clock:       clk,
	}
}

func scanKey(ticketCode, clientIP string) string {
	return ticketCode + "|" + clientIP
}

// Allow records an attempt and reports whether it is within the limit. When
// over the limit it returns how long until the oldest counted attempt ages
// out, and the number of consecutive violations for this key.
func (rl *ScanRateLimiter) Allow(ticketCode, clientIP string) (bool, time.Duration, int) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	key := scanKey(ticketCode, clientIP)
	now := rl.clock.Now()
	cutoff := now.Add(-rl.window)

	var valid []time.Time
	for _, attempt := range rl.attempts[key] {
		if attempt.After(cutoff) {
			valid = append(valid, attempt)
		}
	}

	if len(valid) >= rl.maxAttempts {
		rl.attempts[key] = valid
		rl.violations[key]++
		retryAfter := valid[0].Add(rl.window).Sub(now)
		return false, retryAfter, rl.violations[key]
	}

	rl.attempts[key] = append(valid, now)
	rl.violations[key] = 0
	return true, 0, 0
}

// Cleanup drops keys with no attempts inside the window. Call periodically
// from a background goroutine.
func (rl *ScanRateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.clock.Now().Add(-rl.window)
	for key, attempts := range rl.attempts {
		var valid []time.Time
		for _, attempt := range attempts {
			if attempt.After(cutoff) {
				valid = append(valid, attempt)
			}
		}
		if len(valid) == 0 {
			delete(rl.attempts, key)
			delete(rl.violations, key)
		} else {
			rl.attempts[key] = valid
		}
	}
}
