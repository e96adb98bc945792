package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kolwager/kolwager/internal/domain"
)

// posKey identifies one accumulated position.
type posKey struct {
	marketID    string
	participant string
	side        domain.Side
}

// PositionStore implements domain.PositionStore in memory. Writes arrive only
// through MarketStore.PlaceStake via apply.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[posKey]domain.Position
}

// NewPositionStore creates an empty PositionStore.
func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[posKey]domain.Position)}
}

// apply folds a stake delta into the keyed position, keeping the first-stake
// id and creation time, and returns the accumulated record.
func (s *PositionStore) apply(delta domain.Position) domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := posKey{delta.MarketID, delta.Participant, delta.Side}
	if existing, ok := s.positions[key]; ok {
		existing.Amount += delta.Amount
		existing.Shares += delta.Shares
		existing.UpdatedAt = delta.UpdatedAt
		s.positions[key] = existing
		return existing
	}
	s.positions[key] = delta
	return delta
}

// Get retrieves the position for one (market, participant, side) key.
func (s *PositionStore) Get(_ context.Context, marketID, participant string, side domain.Side) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[posKey{marketID, participant, side}]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

// ListByMarket returns all positions on a market, oldest first.
func (s *PositionStore) ListByMarket(_ context.Context, marketID string) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []domain.Position
	for key, p := range s.positions {
		if key.marketID == marketID {
			positions = append(positions, p)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].CreatedAt.Before(positions[j].CreatedAt)
	})
	return positions, nil
}

// ListByParticipant returns all of a participant's positions, newest first.
func (s *PositionStore) ListByParticipant(_ context.Context, participant string) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []domain.Position
	for key, p := range s.positions {
		if key.participant == participant {
			positions = append(positions, p)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].CreatedAt.After(positions[j].CreatedAt)
	})
	return positions, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
