package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kolwager/kolwager/internal/domain"
)

// RateLimiter is a sliding-window limiter over in-process timestamp slices.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string][]time.Time)}
}

// Allow reports whether a request for key fits within limit requests per
// window, counting the request when it does.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	kept := rl.windows[key][:0]
	for _, t := range rl.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		rl.windows[key] = kept
		return false, nil
	}

	rl.windows[key] = append(kept, now)
	return true, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
