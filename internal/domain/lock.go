package domain

import (
	"context"
	"time"
)

// StockLock is a time-bounded exclusive claim on a product held for the
// duration of one negotiation. At most one lock exists per product at a time.
type StockLock struct {
	ProductID     string
	NegotiationID string
	Quantity      int
	AcquiredAt    time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the lock deadline has passed at now.
func (l StockLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LockManager grants exclusive per-product stock reservations. Acquire and
// SweepExpired must be atomic under concurrent callers: two simultaneous
// negotiations on the same product is the race this interface exists to
// prevent.
type LockManager interface {
	// Acquire test-and-sets the exclusive lock for productID. It returns
	// ErrLockConflict if a non-expired lock is held by another negotiation.
	// Re-acquiring under the same negotiationID succeeds.
	Acquire(ctx context.Context, productID, negotiationID string, quantity int, ttl time.Duration) error

	// Release removes the lock only when negotiationID matches the current
	// holder. Releasing an absent lock is a no-op; releasing another
	// negotiation's lock returns ErrNotHolder. The committed flag marks
	// whether the reserved quantity was sold (accepted) or freed.
	Release(ctx context.Context, productID, negotiationID string, committed bool) error

	// Get returns the current lock for productID, or ErrNotFound.
	Get(ctx context.Context, productID string) (StockLock, error)

	// SweepExpired atomically removes every lock whose deadline has passed
	// and returns them, without racing a concurrent Release.
	SweepExpired(ctx context.Context) ([]StockLock, error)
}
