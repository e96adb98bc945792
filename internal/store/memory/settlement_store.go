package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kolwager/kolwager/internal/domain"
)

// SettlementStore implements domain.SettlementStore in memory.
type SettlementStore struct {
	mu          sync.Mutex
	settlements map[string]*domain.Settlement // keyed by market id
}

// NewSettlementStore creates an empty SettlementStore.
func NewSettlementStore() *SettlementStore {
	return &SettlementStore{settlements: make(map[string]*domain.Settlement)}
}

// Create records a settlement, failing if the market is already settled.
func (s *SettlementStore) Create(_ context.Context, st domain.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settlements[st.MarketID]; ok {
		return domain.ErrAlreadySettled
	}
	cp := st
	cp.Payouts = append([]domain.Payout(nil), st.Payouts...)
	s.settlements[st.MarketID] = &cp
	return nil
}

// GetByMarket retrieves a settlement and its payouts.
func (s *SettlementStore) GetByMarket(_ context.Context, marketID string) (domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[marketID]
	if !ok {
		return domain.Settlement{}, domain.ErrNotFound
	}
	cp := *st
	cp.Payouts = append([]domain.Payout(nil), st.Payouts...)
	return cp, nil
}

// Claim marks one payout claimed and returns its amount, at most once.
func (s *SettlementStore) Claim(_ context.Context, marketID, participant string, side domain.Side) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.settlements[marketID]
	if !ok {
		return 0, domain.ErrNotFound
	}

	for i := range st.Payouts {
		p := &st.Payouts[i]
		if p.Participant != participant || p.Side != side {
			continue
		}
		if p.Claimed {
			return 0, domain.ErrAlreadyClaimed
		}
		p.Claimed = true
		return p.Amount, nil
	}
	return 0, domain.ErrNotFound
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)

// AuditStore implements domain.AuditStore in memory.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	nextID  int64
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{nextID: 1}
}

// Log appends a new audit entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        s.nextID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	s.nextID++
	return nil
}

// List returns audit entries, newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		entries = append(entries, e)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
