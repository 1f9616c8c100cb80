package negotiation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	cachememory "github.com/uday68/VyaparMitra-sub003/internal/cache/memory"
	"github.com/uday68/VyaparMitra-sub003/internal/domain"
	"github.com/uday68/VyaparMitra-sub003/internal/fanout"
	storememory "github.com/uday68/VyaparMitra-sub003/internal/store/memory"
)

type machineFixture struct {
	negotiations *storememory.NegotiationStore
	audit        *storememory.AuditStore
	locks        *cachememory.LockManager
	bus          *cachememory.SignalBus
	machine      *Machine
}

func newMachineFixture(t *testing.T) *machineFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &machineFixture{
		negotiations: storememory.NewNegotiationStore(),
		audit:        storememory.NewAuditStore(),
		locks:        cachememory.NewLockManager(),
		bus:          cachememory.NewSignalBus(),
	}
	f.machine = NewMachine(f.negotiations, f.locks, f.audit, fanout.New(f.bus, logger), logger)
	return f
}

func (f *machineFixture) negotiation(id string, ttl time.Duration) domain.Negotiation {
	now := time.Now().UTC()
	return domain.Negotiation{
		ID:         id,
		ProductID:  "prod-1",
		VendorID:   "vendor-1",
		CustomerID: "customer-1",
		Quantity:   1,
		Status:     domain.NegotiationStatusCreated,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

func subscribeEvents(t *testing.T, f *machineFixture, channel string) <-chan []byte {
	t.Helper()
	ch, err := f.bus.Subscribe(t.Context(), channel)
	if err != nil {
		t.Fatalf("subscribe %s: %v", channel, err)
	}
	return ch
}

func expectTopic(t *testing.T, ch <-chan []byte, want domain.Topic) domain.Event {
	t.Helper()
	select {
	case data := <-ch:
		ev, err := domain.DecodeEvent(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Topic() != want {
			t.Fatalf("got topic %s, want %s", ev.Topic(), want)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no %s event arrived", want)
	}
	return nil
}

func TestMachineCreateAcquiresLock(t *testing.T) {
	ctx := context.Background()
	f := newMachineFixture(t)
	events := subscribeEvents(t, f, "ch:negotiation:*")
	vendorEvents := subscribeEvents(t, f, "ch:user:vendor-1")

	n := f.negotiation("neg-1", 10*time.Minute)
	if err := f.machine.Create(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}

	lock, err := f.locks.Get(ctx, "prod-1")
	if err != nil {
		t.Fatalf("lock not held: %v", err)
	}
	if lock.NegotiationID != "neg-1" {
		t.Fatalf("lock held by %s", lock.NegotiationID)
	}
	// Lock and negotiation share one deadline.
	if drift := lock.ExpiresAt.Sub(n.ExpiresAt); drift < -time.Second || drift > time.Second {
		t.Fatalf("lock expires %s, negotiation expires %s", lock.ExpiresAt, n.ExpiresAt)
	}

	if _, err := f.negotiations.GetByID(ctx, "neg-1"); err != nil {
		t.Fatalf("negotiation not persisted: %v", err)
	}

	expectTopic(t, events, domain.TopicNegotiationCreated)
	expectTopic(t, vendorEvents, domain.TopicNegotiationCreated)

	// A second negotiation on the same product is refused while the first
	// holds the stock.
	other := f.negotiation("neg-2", 10*time.Minute)
	if err := f.machine.Create(ctx, other); !errors.Is(err, domain.ErrLockConflict) {
		t.Fatalf("expected ErrLockConflict, got %v", err)
	}
	if _, err := f.negotiations.GetByID(ctx, "neg-2"); !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("losing negotiation must not persist, got %v", err)
	}
}

func TestMachineCreateRejectsPastDeadline(t *testing.T) {
	ctx := context.Background()
	f := newMachineFixture(t)

	n := f.negotiation("neg-1", -time.Minute)
	if err := f.machine.Create(ctx, n); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.locks.Get(ctx, "prod-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no lock should be taken, got %v", err)
	}
}

func TestMachineCreateReleasesLockOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newMachineFixture(t)

	n := f.negotiation("neg-1", 10*time.Minute)
	if err := f.machine.Create(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Free the product so the duplicate-ID attempt can take the lock and
	// then fail persistence.
	if err := f.locks.Release(ctx, "prod-1", "neg-1", false); err != nil {
		t.Fatalf("release: %v", err)
	}

	if err := f.machine.Create(ctx, n); err == nil {
		t.Fatal("duplicate create should fail")
	}
	if _, err := f.locks.Get(ctx, "prod-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("lock must be released after failed persist, got %v", err)
	}
}

func TestMachineAcceptWinsOnce(t *testing.T) {
	ctx := context.Background()
	f := newMachineFixture(t)
	events := subscribeEvents(t, f, "ch:negotiation:neg-1")

	n := f.negotiation("neg-1", 10*time.Minute)
	if err := f.machine.Create(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}
	expectTopic(t, events, domain.TopicNegotiationCreated)

	performed, err := f.machine.Accept(ctx, n, "customer-1", domain.BidderCustomer)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !performed {
		t.Fatal("first accept should perform the transition")
	}
	expectTopic(t, events, domain.TopicBidAccepted)

	// Lock is gone once the negotiation is terminal.
	if _, err := f.locks.Get(ctx, "prod-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("lock should be released, got %v", err)
	}

	// Every later terminal attempt observes the settled row.
	if performed, err = f.machine.Accept(ctx, n, "vendor-1", domain.BidderVendor); err != nil || performed {
		t.Fatalf("repeat accept: performed=%v err=%v", performed, err)
	}
	if performed, err = f.machine.Reject(ctx, n, "vendor-1", domain.BidderVendor, "late"); err != nil || performed {
		t.Fatalf("reject after accept: performed=%v err=%v", performed, err)
	}
	if performed, err = f.machine.Expire(ctx, n); err != nil || performed {
		t.Fatalf("expire after accept: performed=%v err=%v", performed, err)
	}

	got, _ := f.negotiations.GetByID(ctx, "neg-1")
	if got.Status != domain.NegotiationStatusAccepted {
		t.Fatalf("status drifted to %s", got.Status)
	}
}

func TestMachineRejectRecordsReason(t *testing.T) {
	ctx := context.Background()
	f := newMachineFixture(t)

	n := f.negotiation("neg-1", 10*time.Minute)
	if err := f.machine.Create(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}

	performed, err := f.machine.Reject(ctx, n, "vendor-1", domain.BidderVendor, "price too low")
	if err != nil || !performed {
		t.Fatalf("reject: performed=%v err=%v", performed, err)
	}

	got, _ := f.negotiations.GetByID(ctx, "neg-1")
	if got.Status != domain.NegotiationStatusRejected {
		t.Fatalf("status %s", got.Status)
	}
	if got.ClosedBy != "vendor-1" || got.ClosedReason != "price too low" {
		t.Fatalf("close metadata not recorded: %+v", got)
	}
}

func TestMachineExpire(t *testing.T) {
	ctx := context.Background()
	f := newMachineFixture(t)
	events := subscribeEvents(t, f, "ch:negotiation:neg-1")

	n := f.negotiation("neg-1", 10*time.Minute)
	if err := f.machine.Create(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}
	expectTopic(t, events, domain.TopicNegotiationCreated)

	performed, err := f.machine.Expire(ctx, n)
	if err != nil || !performed {
		t.Fatalf("expire: performed=%v err=%v", performed, err)
	}
	ev := expectTopic(t, events, domain.TopicNegotiationExpired).(domain.NegotiationExpiredEvent)
	if ev.NegotiationID != "neg-1" || ev.ProductID != "prod-1" {
		t.Fatalf("unexpected expired event: %+v", ev)
	}

	if _, err := f.locks.Get(ctx, "prod-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("lock should be released on expiry, got %v", err)
	}

	// Second expire is a no-op, not an error. Both sweep paths rely on this.
	if performed, err = f.machine.Expire(ctx, n); err != nil || performed {
		t.Fatalf("repeat expire: performed=%v err=%v", performed, err)
	}
}

func TestMachineWritesAuditTrail(t *testing.T) {
	ctx := context.Background()
	f := newMachineFixture(t)

	n := f.negotiation("neg-1", 10*time.Minute)
	if err := f.machine.Create(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.machine.Accept(ctx, n, "customer-1", domain.BidderCustomer); err != nil {
		t.Fatalf("accept: %v", err)
	}

	entries := f.audit.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Event != "negotiation_created" || entries[1].Event != "negotiation_accepted" {
		t.Fatalf("unexpected audit events: %s, %s", entries[0].Event, entries[1].Event)
	}
}
