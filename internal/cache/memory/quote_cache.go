// Package memory provides in-process implementations of the cache contracts
// for single-node deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/kolwager/kolwager/internal/domain"
)

// QuoteCache is a map-backed implementation of domain.QuoteCache.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewQuoteCache creates an empty QuoteCache.
func NewQuoteCache() *QuoteCache {
	return &QuoteCache{quotes: make(map[string]domain.Quote)}
}

func (qc *QuoteCache) SetQuote(_ context.Context, marketID string, q domain.Quote) error {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.quotes[marketID] = q
	return nil
}

func (qc *QuoteCache) GetQuote(_ context.Context, marketID string) (domain.Quote, error) {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	q, ok := qc.quotes[marketID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

func (qc *QuoteCache) Invalidate(_ context.Context, marketID string) error {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	delete(qc.quotes, marketID)
	return nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
