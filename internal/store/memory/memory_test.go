package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

func seedNegotiation(t *testing.T, s *NegotiationStore, id string, status domain.NegotiationStatus, expiresAt time.Time) domain.Negotiation {
	t.Helper()
	n := domain.Negotiation{
		ID:         id,
		ProductID:  "prod-" + id,
		VendorID:   "vendor-1",
		CustomerID: "customer-1",
		Quantity:   1,
		Status:     status,
		CreatedAt:  expiresAt.Add(-10 * time.Minute),
		ExpiresAt:  expiresAt,
	}
	if err := s.Create(context.Background(), n); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return n
}

func TestNegotiationStoreCloseIfCAS(t *testing.T) {
	ctx := context.Background()
	s := NewNegotiationStore()
	seedNegotiation(t, s, "neg-1", domain.NegotiationStatusActive, time.Now().Add(time.Minute))

	closedAt := time.Now().UTC()

	const racers = 16
	var wg sync.WaitGroup
	performedCount := make(chan domain.NegotiationStatus, racers)

	for i := 0; i < racers; i++ {
		status := domain.NegotiationStatusAccepted
		if i%2 == 1 {
			status = domain.NegotiationStatusRejected
		}
		wg.Add(1)
		go func(st domain.NegotiationStatus) {
			defer wg.Done()
			performed, err := s.CloseIf(ctx, "neg-1", st, "user-1", "", closedAt)
			if err != nil {
				t.Errorf("CloseIf: %v", err)
				return
			}
			if performed {
				performedCount <- st
			}
		}(status)
	}
	wg.Wait()
	close(performedCount)

	var won []domain.NegotiationStatus
	for st := range performedCount {
		won = append(won, st)
	}
	if len(won) != 1 {
		t.Fatalf("expected exactly one transition to win, got %d", len(won))
	}

	n, err := s.GetByID(ctx, "neg-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Status != won[0] {
		t.Fatalf("stored status %s does not match winner %s", n.Status, won[0])
	}
	if n.ClosedAt == nil {
		t.Fatal("ClosedAt not set on terminal transition")
	}
}

func TestNegotiationStoreCloseIfMissing(t *testing.T) {
	s := NewNegotiationStore()
	_, err := s.CloseIf(context.Background(), "nope", domain.NegotiationStatusExpired, "", "", time.Now())
	if !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("expected ErrNegotiationNotFound, got %v", err)
	}
}

func TestNegotiationStoreActivate(t *testing.T) {
	ctx := context.Background()
	s := NewNegotiationStore()
	seedNegotiation(t, s, "neg-1", domain.NegotiationStatusCreated, time.Now().Add(time.Minute))

	if err := s.Activate(ctx, "neg-1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	n, _ := s.GetByID(ctx, "neg-1")
	if n.Status != domain.NegotiationStatusActive {
		t.Fatalf("status after activate: %s", n.Status)
	}

	// Idempotent on an already-active negotiation.
	if err := s.Activate(ctx, "neg-1"); err != nil {
		t.Fatalf("repeat activate: %v", err)
	}

	if _, err := s.CloseIf(ctx, "neg-1", domain.NegotiationStatusRejected, "vendor-1", "", time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Activate(ctx, "neg-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("activate on terminal: expected ErrInvalidTransition, got %v", err)
	}
}

func TestNegotiationStoreListOverdue(t *testing.T) {
	ctx := context.Background()
	s := NewNegotiationStore()
	now := time.Now().UTC()

	seedNegotiation(t, s, "neg-live", domain.NegotiationStatusActive, now.Add(time.Minute))
	seedNegotiation(t, s, "neg-overdue", domain.NegotiationStatusActive, now.Add(-time.Minute))
	done := seedNegotiation(t, s, "neg-done", domain.NegotiationStatusCreated, now.Add(-2*time.Minute))
	if _, err := s.CloseIf(ctx, done.ID, domain.NegotiationStatusExpired, "", "", now); err != nil {
		t.Fatalf("close: %v", err)
	}

	overdue, err := s.ListOverdue(ctx, now, 10)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "neg-overdue" {
		t.Fatalf("unexpected overdue set: %+v", overdue)
	}
}

func TestNegotiationStoreListClosedBefore(t *testing.T) {
	ctx := context.Background()
	s := NewNegotiationStore()
	now := time.Now().UTC()

	old := seedNegotiation(t, s, "neg-old", domain.NegotiationStatusActive, now.Add(-48*time.Hour))
	recent := seedNegotiation(t, s, "neg-recent", domain.NegotiationStatusActive, now.Add(-time.Hour))
	if _, err := s.CloseIf(ctx, old.ID, domain.NegotiationStatusAccepted, "vendor-1", "", now.Add(-47*time.Hour)); err != nil {
		t.Fatalf("close old: %v", err)
	}
	if _, err := s.CloseIf(ctx, recent.ID, domain.NegotiationStatusRejected, "customer-1", "", now.Add(-time.Hour)); err != nil {
		t.Fatalf("close recent: %v", err)
	}
	seedNegotiation(t, s, "neg-open", domain.NegotiationStatusActive, now.Add(time.Hour))

	closed, err := s.ListClosedBefore(ctx, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list closed: %v", err)
	}
	if len(closed) != 1 || closed[0].ID != "neg-old" {
		t.Fatalf("unexpected closed set: %+v", closed)
	}

	if err := s.Delete(ctx, "neg-old"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetByID(ctx, "neg-old"); !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("expected ErrNegotiationNotFound after delete, got %v", err)
	}
}

func TestBidStoreOrderAndLatest(t *testing.T) {
	ctx := context.Background()
	s := NewBidStore()

	if _, err := s.Latest(ctx, "neg-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("latest on empty: expected ErrNotFound, got %v", err)
	}

	amounts := []float64{100, 80, 90}
	for i, amt := range amounts {
		b := domain.Bid{
			ID:            "bid-" + string(rune('a'+i)),
			NegotiationID: "neg-1",
			BidderType:    domain.BidderCustomer,
			BidderID:      "customer-1",
			Amount:        amt,
		}
		if err := s.Append(ctx, b); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := s.ListByNegotiation(ctx, "neg-1", domain.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 bids, got %d", len(all))
	}
	for i, amt := range amounts {
		if all[i].Amount != amt {
			t.Fatalf("bid %d out of insertion order: got %.0f, want %.0f", i, all[i].Amount, amt)
		}
	}

	latest, err := s.Latest(ctx, "neg-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Amount != 90 {
		t.Fatalf("latest amount %.0f, want 90", latest.Amount)
	}

	page, err := s.ListByNegotiation(ctx, "neg-1", domain.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if len(page) != 1 || page[0].Amount != 80 {
		t.Fatalf("unexpected page: %+v", page)
	}

	if err := s.DeleteByNegotiation(ctx, "neg-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Latest(ctx, "neg-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("latest after delete: expected ErrNotFound, got %v", err)
	}
}

func TestProductStoreListByVendor(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore()

	for _, p := range []domain.Product{
		{ID: "p1", VendorID: "vendor-1", Name: "mangoes", BasePrice: 120, Quantity: 10},
		{ID: "p2", VendorID: "vendor-2", Name: "bananas", BasePrice: 40, Quantity: 30},
		{ID: "p3", VendorID: "vendor-1", Name: "guavas", BasePrice: 60, Quantity: 5},
	} {
		if err := s.Upsert(ctx, p); err != nil {
			t.Fatalf("upsert %s: %v", p.ID, err)
		}
	}

	if _, err := s.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	mine, err := s.ListByVendor(ctx, "vendor-1", domain.ListOpts{})
	if err != nil {
		t.Fatalf("list by vendor: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "p1" || mine[1].ID != "p3" {
		t.Fatalf("unexpected vendor products: %+v", mine)
	}

	all, err := s.List(ctx, domain.ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("limit ignored: got %d products", len(all))
	}

	// Upsert replaces in place.
	if err := s.Upsert(ctx, domain.Product{ID: "p1", VendorID: "vendor-1", Name: "mangoes", BasePrice: 110, Quantity: 8}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	p, err := s.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.BasePrice != 110 || p.Quantity != 8 {
		t.Fatalf("upsert did not replace: %+v", p)
	}
}

func TestAuditStoreLog(t *testing.T) {
	s := NewAuditStore()
	if err := s.Log(context.Background(), "negotiation_created", map[string]any{"negotiation_id": "neg-1"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Event != "negotiation_created" {
		t.Fatalf("unexpected event %q", entries[0].Event)
	}
	if entries[0].Detail["negotiation_id"] != "neg-1" {
		t.Fatalf("unexpected detail %+v", entries[0].Detail)
	}
}
