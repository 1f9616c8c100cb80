package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

func TestLockManagerExclusive(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	if err := lm.Acquire(ctx, "prod-1", "neg-1", 2, time.Minute); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	err := lm.Acquire(ctx, "prod-1", "neg-2", 1, time.Minute)
	if !errors.Is(err, domain.ErrLockConflict) {
		t.Fatalf("expected ErrLockConflict, got %v", err)
	}

	// Same holder retries fine.
	if err := lm.Acquire(ctx, "prod-1", "neg-1", 2, time.Minute); err != nil {
		t.Fatalf("re-acquire by holder: %v", err)
	}

	// A different product is unaffected.
	if err := lm.Acquire(ctx, "prod-2", "neg-2", 1, time.Minute); err != nil {
		t.Fatalf("acquire on free product: %v", err)
	}
}

func TestLockManagerConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	const racers = 32
	var wg sync.WaitGroup
	wins := make(chan string, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		negID := "neg-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		go func(id string) {
			defer wg.Done()
			if err := lm.Acquire(ctx, "prod-1", id, 1, time.Minute); err == nil {
				wins <- id
			}
		}(negID)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d: %v", len(winners), winners)
	}

	l, err := lm.Get(ctx, "prod-1")
	if err != nil {
		t.Fatalf("get after race: %v", err)
	}
	if l.NegotiationID != winners[0] {
		t.Fatalf("lock held by %s, winner was %s", l.NegotiationID, winners[0])
	}
}

func TestLockManagerRelease(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	if err := lm.Acquire(ctx, "prod-1", "neg-1", 1, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := lm.Release(ctx, "prod-1", "neg-2", false); !errors.Is(err, domain.ErrNotHolder) {
		t.Fatalf("foreign release: expected ErrNotHolder, got %v", err)
	}

	if err := lm.Release(ctx, "prod-1", "neg-1", true); err != nil {
		t.Fatalf("holder release: %v", err)
	}

	// Releasing an absent lock is a no-op.
	if err := lm.Release(ctx, "prod-1", "neg-1", false); err != nil {
		t.Fatalf("repeat release: %v", err)
	}

	// Stock is available again.
	if err := lm.Acquire(ctx, "prod-1", "neg-2", 1, time.Minute); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestLockManagerReacquireAfterExpiryRefreshes(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	lm.SetClock(func() time.Time { return current })

	if err := lm.Acquire(ctx, "prod-1", "neg-1", 1, 10*time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	current = base.Add(11 * time.Minute)

	// The holder coming back past its own deadline gets a fresh lease, not
	// the stale one the next sweep would tear down.
	if err := lm.Acquire(ctx, "prod-1", "neg-1", 1, 10*time.Minute); err != nil {
		t.Fatalf("re-acquire after expiry: %v", err)
	}

	lock, err := lm.Get(ctx, "prod-1")
	if err != nil {
		t.Fatalf("get after re-acquire: %v", err)
	}
	if want := current.Add(10 * time.Minute); !lock.ExpiresAt.Equal(want) {
		t.Fatalf("lease not refreshed: expires %s, want %s", lock.ExpiresAt, want)
	}
}

func TestLockManagerExpiry(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	lm.SetClock(func() time.Time { return current })

	if err := lm.Acquire(ctx, "prod-1", "neg-1", 1, 10*time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lm.Acquire(ctx, "prod-2", "neg-2", 1, time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	current = base.Add(11 * time.Minute)

	// An expired lock no longer blocks a new negotiation.
	if err := lm.Acquire(ctx, "prod-1", "neg-3", 1, time.Hour); err != nil {
		t.Fatalf("acquire over expired lock: %v", err)
	}
	if err := lm.Release(ctx, "prod-1", "neg-3", false); err != nil {
		t.Fatalf("release: %v", err)
	}

	if err := lm.Acquire(ctx, "prod-1", "neg-1", 1, 10*time.Minute); err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	current = base.Add(30 * time.Minute)

	expired, err := lm.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired lock, got %d", len(expired))
	}
	if expired[0].ProductID != "prod-1" || expired[0].NegotiationID != "neg-1" {
		t.Fatalf("unexpected swept lock: %+v", expired[0])
	}

	// Swept lock is gone, the live one survives.
	if _, err := lm.Get(ctx, "prod-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after sweep, got %v", err)
	}
	if _, err := lm.Get(ctx, "prod-2"); err != nil {
		t.Fatalf("live lock should survive sweep: %v", err)
	}
}
