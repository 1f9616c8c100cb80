// Package memory implements the domain cache interfaces in-process. It backs
// the "memory" cache backend for local development and is the fixture used by
// unit tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// LockManager implements domain.LockManager with a single mutex guarding the
// lock table. All operations run under the mutex, so acquire, release, and
// sweep are mutually atomic.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]domain.StockLock
	now   func() time.Time
}

// NewLockManager creates an empty in-process LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]domain.StockLock),
		now:   time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (lm *LockManager) SetClock(now func() time.Time) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.now = now
}

// Acquire test-and-sets the exclusive lock for productID.
func (lm *LockManager) Acquire(ctx context.Context, productID, negotiationID string, quantity int, ttl time.Duration) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if cur, ok := lm.locks[productID]; ok && !cur.Expired(now) {
		if cur.NegotiationID == negotiationID {
			return nil
		}
		return domain.ErrLockConflict
	}

	lm.locks[productID] = domain.StockLock{
		ProductID:     productID,
		NegotiationID: negotiationID,
		Quantity:      quantity,
		AcquiredAt:    now,
		ExpiresAt:     now.Add(ttl),
	}
	return nil
}

// Release removes the lock when negotiationID matches the holder. Releasing
// an absent lock is a no-op so terminal transitions stay idempotent.
func (lm *LockManager) Release(ctx context.Context, productID, negotiationID string, committed bool) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	cur, ok := lm.locks[productID]
	if !ok {
		return nil
	}
	if cur.NegotiationID != negotiationID {
		return domain.ErrNotHolder
	}
	delete(lm.locks, productID)
	return nil
}

// Get returns the current non-expired lock for productID.
func (lm *LockManager) Get(ctx context.Context, productID string) (domain.StockLock, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	cur, ok := lm.locks[productID]
	if !ok || cur.Expired(lm.now()) {
		return domain.StockLock{}, domain.ErrNotFound
	}
	return cur, nil
}

// SweepExpired removes and returns every lock whose deadline has passed.
func (lm *LockManager) SweepExpired(ctx context.Context) ([]domain.StockLock, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	var expired []domain.StockLock
	for productID, l := range lm.locks {
		if l.Expired(now) {
			expired = append(expired, l)
			delete(lm.locks, productID)
		}
	}
	return expired, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
