package domain

import (
	"context"
	"time"
)

// QuoteCache provides fast access to the latest market quotes.
type QuoteCache interface {
	SetQuote(ctx context.Context, marketID string, q Quote) error
	GetQuote(ctx context.Context, marketID string) (Quote, error)
	Invalidate(ctx context.Context, marketID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking, used to make market resolution
// and settlement mutually exclusive across instances.
type LockManager interface {
	// Acquire obtains the lock for key or fails with ErrLockHeld. The
	// returned unlock function is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is a single entry read back from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out and durable append-only streams for
// market lifecycle events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
