package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market aggregates. Implementations must serialize all
// mutations to a single market: PlaceStake and Resolve run their callback
// with exclusive access to the market's current state and persist the result
// atomically, or not at all. Different markets are independent.
type MarketStore interface {
	Create(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
	ListSettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]Market, error)
	Count(ctx context.Context) (int64, error)

	// PlaceStake loads the market under exclusive access, applies fn, and,
	// when fn succeeds, writes the mutated market together with the returned
	// position accumulation as one atomic unit. The returned Position carries
	// only this stake's delta (amount and shares); the store folds it into
	// any existing (market, participant, side) position. An error from fn
	// aborts with no mutation.
	PlaceStake(ctx context.Context, marketID string, fn func(m *Market) (Position, error)) (Market, Position, error)

	// Resolve loads the market under the same exclusive access, applies fn,
	// and persists the terminal state. An error from fn aborts with no
	// mutation.
	Resolve(ctx context.Context, marketID string, fn func(m *Market) error) (Market, error)
}

// PositionStore reads accumulated positions. Position writes happen only
// through MarketStore.PlaceStake so pools and positions never diverge.
type PositionStore interface {
	Get(ctx context.Context, marketID, participant string, side Side) (Position, error)
	ListByMarket(ctx context.Context, marketID string) ([]Position, error)
	ListByParticipant(ctx context.Context, participant string) ([]Position, error)
}

// SettlementStore persists the single-shot settlement per market and the
// claim bookkeeping for its payouts.
type SettlementStore interface {
	// Create records a settlement. It fails with ErrAlreadySettled when a
	// settlement already exists for the market.
	Create(ctx context.Context, s Settlement) error
	GetByMarket(ctx context.Context, marketID string) (Settlement, error)

	// Claim marks one payout claimed and returns its amount. A second claim
	// for the same (market, participant, side) fails with ErrAlreadyClaimed.
	Claim(ctx context.Context, marketID, participant string, side Side) (float64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
