package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store decides whether one more hit for key fits in the current window.
type Store interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Limiter is an in-memory sliding window Store.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string][]time.Time
	window  time.Duration
	maxHits int
	now     func() time.Time
}

func NewLimiter(window time.Duration, maxHits int) *Limiter {
	return &Limiter{
		limits:  make(map[string][]time.Time),
		window:  window,
		maxHits: maxHits,
		now:     time.Now,
	}
}

func (l *Limiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	// Clean old entries
	if hits, exists := l.limits[key]; exists {
		valid := hits[:0]
		for _, hit := range hits {
			if hit.After(windowStart) {
				valid = append(valid, hit)
			}
		}
		if len(valid) == 0 {
			delete(l.limits, key)
		} else {
			l.limits[key] = valid
		}
	}

	if len(l.limits[key]) >= l.maxHits {
		return false, nil
	}

	l.limits[key] = append(l.limits[key], now)
	return true, nil
}
