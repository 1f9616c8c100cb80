package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
	"github.com/uday68/VyaparMitra-sub003/internal/fanout"
)

// Machine owns the negotiation lifecycle. Terminal transitions are
// compare-and-swap operations on the stored status: under concurrent accept,
// reject, and expiry requests exactly one caller performs the transition and
// runs its side effects (lock release, audit entry, fanout event); the rest
// observe the already-terminal row.
type Machine struct {
	negotiations domain.NegotiationStore
	locks        domain.LockManager
	audit        domain.AuditStore
	fan          *fanout.Fanout
	logger       *slog.Logger
	now          func() time.Time
}

// NewMachine creates a Machine with the given collaborators.
func NewMachine(
	negotiations domain.NegotiationStore,
	locks domain.LockManager,
	audit domain.AuditStore,
	fan *fanout.Fanout,
	logger *slog.Logger,
) *Machine {
	return &Machine{
		negotiations: negotiations,
		locks:        locks,
		audit:        audit,
		fan:          fan,
		logger:       logger.With(slog.String("component", "negotiation_machine")),
		now:          time.Now,
	}
}

// Create acquires the product stock lock and persists the negotiation in the
// created state. The lock TTL equals the negotiation deadline, so the lock
// sweep and the negotiation sweep converge on the same wall-clock moment. On
// a persistence failure the freshly acquired lock is released again so no
// stock leaks.
func (m *Machine) Create(ctx context.Context, n domain.Negotiation) error {
	ttl := time.Until(n.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrInvalidTransition
	}

	if err := m.locks.Acquire(ctx, n.ProductID, n.ID, n.Quantity, ttl); err != nil {
		return err
	}

	if err := m.negotiations.Create(ctx, n); err != nil {
		if relErr := m.locks.Release(ctx, n.ProductID, n.ID, false); relErr != nil {
			m.logger.Error("releasing lock after failed create",
				slog.String("negotiation_id", n.ID),
				slog.String("error", relErr.Error()),
			)
		}
		return fmt.Errorf("machine: create negotiation %s: %w", n.ID, err)
	}

	m.logAudit(ctx, "negotiation_created", map[string]any{
		"negotiation_id": n.ID,
		"product_id":     n.ProductID,
		"vendor_id":      n.VendorID,
		"customer_id":    n.CustomerID,
		"expires_at":     n.ExpiresAt,
	})

	m.publish(ctx, domain.NegotiationCreatedEvent{
		NegotiationID: n.ID,
		ProductID:     n.ProductID,
		VendorID:      n.VendorID,
		CustomerID:    n.CustomerID,
		Quantity:      n.Quantity,
		ExpiresAt:     n.ExpiresAt,
		CreatedAt:     n.CreatedAt,
	})

	return nil
}

// Accept performs the Active->Accepted transition. It returns true when this
// call won the transition; false means the negotiation was already terminal
// and nothing was changed.
func (m *Machine) Accept(ctx context.Context, n domain.Negotiation, accepterID string, accepterType domain.BidderType) (bool, error) {
	closedAt := m.now().UTC()
	performed, err := m.negotiations.CloseIf(ctx, n.ID, domain.NegotiationStatusAccepted, accepterID, "", closedAt)
	if err != nil {
		return false, fmt.Errorf("machine: accept %s: %w", n.ID, err)
	}
	if !performed {
		return false, nil
	}

	// Commit marker: the reserved quantity was sold.
	m.releaseLock(ctx, n, true)

	m.logAudit(ctx, "negotiation_accepted", map[string]any{
		"negotiation_id": n.ID,
		"product_id":     n.ProductID,
		"accepted_by":    accepterID,
		"amount":         n.BestOfferAmount,
	})

	m.publish(ctx, domain.BidAcceptedEvent{
		NegotiationID: n.ID,
		ProductID:     n.ProductID,
		AccepterID:    accepterID,
		AccepterType:  accepterType,
		Amount:        n.BestOfferAmount,
		ClosedAt:      closedAt,
	})

	return true, nil
}

// Reject performs the Active->Rejected transition with an optional reason.
func (m *Machine) Reject(ctx context.Context, n domain.Negotiation, rejecterID string, rejecterType domain.BidderType, reason string) (bool, error) {
	closedAt := m.now().UTC()
	performed, err := m.negotiations.CloseIf(ctx, n.ID, domain.NegotiationStatusRejected, rejecterID, reason, closedAt)
	if err != nil {
		return false, fmt.Errorf("machine: reject %s: %w", n.ID, err)
	}
	if !performed {
		return false, nil
	}

	m.releaseLock(ctx, n, false)

	m.logAudit(ctx, "negotiation_rejected", map[string]any{
		"negotiation_id": n.ID,
		"product_id":     n.ProductID,
		"rejected_by":    rejecterID,
		"reason":         reason,
	})

	m.publish(ctx, domain.BidRejectedEvent{
		NegotiationID: n.ID,
		ProductID:     n.ProductID,
		RejecterID:    rejecterID,
		RejecterType:  rejecterType,
		Reason:        reason,
		ClosedAt:      closedAt,
	})

	return true, nil
}

// Expire performs the deadline-forced terminal transition. Both expiry sweep
// paths and late request handlers call it; the CAS makes whichever runs
// first win and the rest no-ops.
func (m *Machine) Expire(ctx context.Context, n domain.Negotiation) (bool, error) {
	closedAt := m.now().UTC()
	performed, err := m.negotiations.CloseIf(ctx, n.ID, domain.NegotiationStatusExpired, "", "deadline reached", closedAt)
	if err != nil {
		return false, fmt.Errorf("machine: expire %s: %w", n.ID, err)
	}
	if !performed {
		return false, nil
	}

	m.releaseLock(ctx, n, false)

	m.logAudit(ctx, "negotiation_expired", map[string]any{
		"negotiation_id": n.ID,
		"product_id":     n.ProductID,
		"expires_at":     n.ExpiresAt,
	})

	m.publish(ctx, domain.NegotiationExpiredEvent{
		NegotiationID: n.ID,
		ProductID:     n.ProductID,
		ExpiredAt:     closedAt,
	})

	return true, nil
}

// releaseLock frees the product lock for a terminal negotiation. The lock may
// already be gone (TTL elapsed or swept); that is not an error. A different
// holder means a newer negotiation already owns the product, which is also
// fine to leave untouched.
func (m *Machine) releaseLock(ctx context.Context, n domain.Negotiation, committed bool) {
	err := m.locks.Release(ctx, n.ProductID, n.ID, committed)
	if err != nil && !errors.Is(err, domain.ErrNotHolder) {
		m.logger.Error("releasing stock lock",
			slog.String("negotiation_id", n.ID),
			slog.String("product_id", n.ProductID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Machine) logAudit(ctx context.Context, event string, detail map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Log(ctx, event, detail); err != nil {
		m.logger.Warn("audit log write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// publish emits a fanout event. Delivery failure only costs a live update,
// never state, so it is logged and not propagated.
func (m *Machine) publish(ctx context.Context, ev domain.Event) {
	if err := m.fan.Publish(ctx, ev); err != nil {
		m.logger.Warn("fanout publish failed",
			slog.String("topic", string(ev.Topic())),
			slog.String("negotiation_id", ev.EventNegotiationID()),
			slog.String("error", err.Error()),
		)
	}
}
