// Package memory implements the domain store contracts in process memory.
// It backs the dev/demo mode and gives tests a deterministic store with the
// same per-market serialization guarantees as the PostgreSQL implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kolwager/kolwager/internal/domain"
)

// MarketStore implements domain.MarketStore with a per-market mutex providing
// the same single-writer-per-aggregate discipline as the row lock in the
// PostgreSQL store.
type MarketStore struct {
	mu        sync.RWMutex
	markets   map[string]domain.Market
	rowLocks  map[string]*sync.Mutex
	positions *PositionStore
}

// NewMarketStore creates a MarketStore that folds stake deltas into the given
// position store as part of each PlaceStake call.
func NewMarketStore(positions *PositionStore) *MarketStore {
	return &MarketStore{
		markets:   make(map[string]domain.Market),
		rowLocks:  make(map[string]*sync.Mutex),
		positions: positions,
	}
}

// rowLock returns the mutex serializing mutations to one market.
func (s *MarketStore) rowLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.rowLocks[id]
	if !ok {
		lk = &sync.Mutex{}
		s.rowLocks[id] = lk
	}
	return lk
}

// Create inserts a new market.
func (s *MarketStore) Create(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[m.ID]; ok {
		return domain.ErrConflict
	}
	s.markets[m.ID] = m
	return nil
}

// GetByID retrieves a market by id.
func (s *MarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

// ListActive returns active markets, newest first.
func (s *MarketStore) ListActive(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var markets []domain.Market
	for _, m := range s.markets {
		if m.Status != domain.MarketStatusActive {
			continue
		}
		if opts.Since != nil && m.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && m.CreatedAt.After(*opts.Until) {
			continue
		}
		markets = append(markets, m)
	}

	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt.After(markets[j].CreatedAt)
	})

	return paginate(markets, opts), nil
}

// ListSettledBefore returns terminal markets resolved before cutoff, oldest
// first.
func (s *MarketStore) ListSettledBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var markets []domain.Market
	for _, m := range s.markets {
		if m.Status == domain.MarketStatusActive || m.ResolvedAt == nil {
			continue
		}
		if m.ResolvedAt.Before(cutoff) {
			markets = append(markets, m)
		}
	}

	sort.Slice(markets, func(i, j int) bool {
		return markets[i].ResolvedAt.Before(*markets[j].ResolvedAt)
	})
	if limit > 0 && len(markets) > limit {
		markets = markets[:limit]
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.markets)), nil
}

// PlaceStake applies fn under the market's mutex and commits the mutated
// market together with the position accumulation, or nothing on error.
func (s *MarketStore) PlaceStake(ctx context.Context, marketID string, fn func(m *domain.Market) (domain.Position, error)) (domain.Market, domain.Position, error) {
	lk := s.rowLock(marketID)
	lk.Lock()
	defer lk.Unlock()

	market, err := s.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, domain.Position{}, err
	}

	delta, err := fn(&market)
	if err != nil {
		return domain.Market{}, domain.Position{}, err
	}

	position := s.positions.apply(delta)

	s.mu.Lock()
	s.markets[marketID] = market
	s.mu.Unlock()

	return market, position, nil
}

// Resolve applies fn under the market's mutex and commits the terminal state.
func (s *MarketStore) Resolve(ctx context.Context, marketID string, fn func(m *domain.Market) error) (domain.Market, error) {
	lk := s.rowLock(marketID)
	lk.Lock()
	defer lk.Unlock()

	market, err := s.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}

	if err := fn(&market); err != nil {
		return domain.Market{}, err
	}

	s.mu.Lock()
	s.markets[marketID] = market
	s.mu.Unlock()

	return market, nil
}

// paginate applies limit/offset to a sorted slice.
func paginate(markets []domain.Market, opts domain.ListOpts) []domain.Market {
	if opts.Offset > 0 {
		if opts.Offset >= len(markets) {
			return nil
		}
		markets = markets[opts.Offset:]
	}
	if opts.Limit > 0 && len(markets) > opts.Limit {
		markets = markets[:opts.Limit]
	}
	return markets
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
