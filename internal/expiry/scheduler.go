// Package expiry runs the periodic sweep that expires stale stock locks and
// stale negotiations.
package expiry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
	"github.com/uday68/VyaparMitra-sub003/internal/negotiation"
)

// sweepBatchSize caps how many overdue negotiations one tick picks up. The
// remainder is handled on the next tick.
const sweepBatchSize = 200

// Scheduler sweeps on a fixed interval. Each tick first drains expired stock
// locks and force-expires their owning negotiations, then independently scans
// for overdue negotiations whose lock disappeared through another path. Both
// paths funnel into the machine's CAS expire, so whichever sees a negotiation
// first wins and the other is a no-op.
type Scheduler struct {
	locks        domain.LockManager
	negotiations domain.NegotiationStore
	machine      *negotiation.Machine
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a Scheduler with the given sweep interval.
func New(
	locks domain.LockManager,
	negotiations domain.NegotiationStore,
	machine *negotiation.Machine,
	interval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		locks:        locks,
		negotiations: negotiations,
		machine:      machine,
		interval:     interval,
		logger:       logger.With(slog.String("component", "expiry_scheduler")),
		now:          time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Sweep
// failures are logged and retried on the next tick; they never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("expiry scheduler starting",
		slog.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one full sweep pass. Exported so a tick can be driven
// directly in tests and from the ops mode.
func (s *Scheduler) Sweep(ctx context.Context) {
	expiredLocks := s.sweepLocks(ctx)
	expiredNegotiations := s.sweepNegotiations(ctx)

	if expiredLocks > 0 || expiredNegotiations > 0 {
		s.logger.Info("sweep complete",
			slog.Int("expired_locks", expiredLocks),
			slog.Int("expired_negotiations", expiredNegotiations),
		)
	}
}

// sweepLocks drains expired stock locks and expires their owners. A failure
// resolving or expiring one negotiation is isolated: it is logged and the
// remaining items still run.
func (s *Scheduler) sweepLocks(ctx context.Context) int {
	locks, err := s.locks.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("lock sweep failed", slog.String("error", err.Error()))
		return 0
	}

	count := 0
	for _, l := range locks {
		n, err := s.negotiations.GetByID(ctx, l.NegotiationID)
		if err != nil {
			if errors.Is(err, domain.ErrNegotiationNotFound) {
				// Lock outlived an archived negotiation; nothing to expire.
				continue
			}
			s.logger.Error("resolving lock owner failed",
				slog.String("negotiation_id", l.NegotiationID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if n.Status.Terminal() {
			continue
		}

		performed, err := s.machine.Expire(ctx, n)
		if err != nil {
			s.logger.Error("expiring negotiation from lock sweep failed",
				slog.String("negotiation_id", n.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if performed {
			count++
		}
	}
	return count
}

// sweepNegotiations scans for overdue live negotiations. This covers
// negotiations whose lock already vanished through a separate path.
func (s *Scheduler) sweepNegotiations(ctx context.Context) int {
	overdue, err := s.negotiations.ListOverdue(ctx, s.now(), sweepBatchSize)
	if err != nil {
		s.logger.Error("negotiation sweep failed", slog.String("error", err.Error()))
		return 0
	}

	count := 0
	for _, n := range overdue {
		performed, err := s.machine.Expire(ctx, n)
		if err != nil {
			s.logger.Error("expiring overdue negotiation failed",
				slog.String("negotiation_id", n.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if performed {
			count++
		}
	}
	return count
}
