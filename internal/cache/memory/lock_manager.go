package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kolwager/kolwager/internal/domain"
)

// LockManager is an in-process implementation of domain.LockManager. Locks
// are plain map entries; the TTL is ignored because a single process cannot
// orphan a lock the way a crashed remote holder can.
type LockManager struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]struct{})}
}

// Acquire obtains the lock for key or fails with domain.ErrLockHeld. The
// returned unlock function is safe to call more than once.
func (lm *LockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, ok := lm.held[key]; ok {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = struct{}{}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			delete(lm.held, key)
		})
	}
	return unlock, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
