package negotiation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
	storememory "github.com/uday68/VyaparMitra-sub003/internal/store/memory"
)

func newTestLedger(t *testing.T) (*Ledger, *storememory.NegotiationStore) {
	t.Helper()
	negotiations := storememory.NewNegotiationStore()
	return NewLedger(negotiations, storememory.NewBidStore()), negotiations
}

func createLiveNegotiation(t *testing.T, s *storememory.NegotiationStore, id string) domain.Negotiation {
	t.Helper()
	now := time.Now().UTC()
	n := domain.Negotiation{
		ID:         id,
		ProductID:  "prod-1",
		VendorID:   "vendor-1",
		CustomerID: "customer-1",
		Quantity:   1,
		Status:     domain.NegotiationStatusCreated,
		CreatedAt:  now,
		ExpiresAt:  now.Add(10 * time.Minute),
	}
	if err := s.Create(context.Background(), n); err != nil {
		t.Fatalf("create negotiation: %v", err)
	}
	return n
}

func TestLedgerAppendActivates(t *testing.T) {
	ctx := context.Background()
	ledger, negotiations := newTestLedger(t)
	createLiveNegotiation(t, negotiations, "neg-1")

	bid, err := ledger.Append(ctx, "neg-1", domain.BidderCustomer, "customer-1", 80, "80 for the lot?", "hi", "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if bid.ID == "" {
		t.Fatal("bid ID not assigned")
	}

	n, err := negotiations.GetByID(ctx, "neg-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Status != domain.NegotiationStatusActive {
		t.Fatalf("first bid should activate, status %s", n.Status)
	}
	if n.BestOfferAmount != 80 || n.BestOfferSide != domain.BidderCustomer {
		t.Fatalf("best offer not synced: %.0f/%s", n.BestOfferAmount, n.BestOfferSide)
	}
}

func TestLedgerAppendValidation(t *testing.T) {
	ctx := context.Background()
	ledger, negotiations := newTestLedger(t)
	createLiveNegotiation(t, negotiations, "neg-1")

	if _, err := ledger.Append(ctx, "missing", domain.BidderCustomer, "customer-1", 80, "", "", ""); !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("unknown negotiation: expected ErrNegotiationNotFound, got %v", err)
	}
	if _, err := ledger.Append(ctx, "neg-1", domain.BidderCustomer, "customer-1", 0, "", "", ""); !errors.Is(err, domain.ErrBidTooLow) {
		t.Fatalf("zero amount: expected ErrBidTooLow, got %v", err)
	}
	if _, err := ledger.Append(ctx, "neg-1", domain.BidderCustomer, "customer-1", -5, "", "", ""); !errors.Is(err, domain.ErrBidTooLow) {
		t.Fatalf("negative amount: expected ErrBidTooLow, got %v", err)
	}
	if _, err := ledger.Append(ctx, "neg-1", domain.BidderType("broker"), "customer-1", 80, "", "", ""); !errors.Is(err, domain.ErrBidNotAllowed) {
		t.Fatalf("unknown side: expected ErrBidNotAllowed, got %v", err)
	}
}

func TestLedgerRejectsTerminalNegotiation(t *testing.T) {
	ctx := context.Background()
	ledger, negotiations := newTestLedger(t)
	createLiveNegotiation(t, negotiations, "neg-1")

	if _, err := negotiations.CloseIf(ctx, "neg-1", domain.NegotiationStatusRejected, "vendor-1", "too low", time.Now().UTC()); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := ledger.Append(ctx, "neg-1", domain.BidderCustomer, "customer-1", 80, "", "", ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("terminal append: expected ErrInvalidTransition, got %v", err)
	}
}

// staleReadStore pins GetByID to a snapshot while delegating every write,
// simulating a reader racing a concurrent terminal transition.
type staleReadStore struct {
	domain.NegotiationStore
	snapshot domain.Negotiation
}

func (s *staleReadStore) GetByID(ctx context.Context, id string) (domain.Negotiation, error) {
	return s.snapshot, nil
}

func TestLedgerAppendLosingRaceRecordsNoBid(t *testing.T) {
	ctx := context.Background()
	negotiations := storememory.NewNegotiationStore()
	bids := storememory.NewBidStore()
	n := createLiveNegotiation(t, negotiations, "neg-1")

	stale := n
	stale.Status = domain.NegotiationStatusActive
	ledger := NewLedger(&staleReadStore{NegotiationStore: negotiations, snapshot: stale}, bids)

	// The negotiation closes between the ledger's read and its write.
	if _, err := negotiations.CloseIf(ctx, "neg-1", domain.NegotiationStatusAccepted, "vendor-1", "", time.Now().UTC()); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := ledger.Append(ctx, "neg-1", domain.BidderCustomer, "customer-1", 80, "", "", ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("racing append: expected ErrInvalidTransition, got %v", err)
	}

	stored, err := bids.ListByNegotiation(ctx, "neg-1", domain.ListOpts{})
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("losing append must leave no bid behind, found %d", len(stored))
	}
}

func TestLedgerBestOfferIsLatest(t *testing.T) {
	ctx := context.Background()
	ledger, negotiations := newTestLedger(t)
	createLiveNegotiation(t, negotiations, "neg-1")

	if _, err := ledger.BestOffer(ctx, "neg-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty ledger: expected ErrNotFound, got %v", err)
	}

	// Price direction is unconstrained; "best" tracks recency, not value.
	turns := []struct {
		side   domain.BidderType
		bidder string
		amount float64
	}{
		{domain.BidderCustomer, "customer-1", 70},
		{domain.BidderVendor, "vendor-1", 95},
		{domain.BidderCustomer, "customer-1", 82},
	}
	for _, turn := range turns {
		if _, err := ledger.Append(ctx, "neg-1", turn.side, turn.bidder, turn.amount, "", "", ""); err != nil {
			t.Fatalf("append %.0f: %v", turn.amount, err)
		}
	}

	best, err := ledger.BestOffer(ctx, "neg-1")
	if err != nil {
		t.Fatalf("best offer: %v", err)
	}
	if best.Amount != 82 || best.BidderType != domain.BidderCustomer {
		t.Fatalf("best offer should be the latest turn, got %.0f/%s", best.Amount, best.BidderType)
	}

	n, _ := negotiations.GetByID(ctx, "neg-1")
	if n.BestOfferAmount != 82 || n.BestOfferSide != domain.BidderCustomer {
		t.Fatalf("negotiation best-offer fields out of sync: %.0f/%s", n.BestOfferAmount, n.BestOfferSide)
	}
}

func TestLedgerHistoryOrder(t *testing.T) {
	ctx := context.Background()
	ledger, negotiations := newTestLedger(t)
	createLiveNegotiation(t, negotiations, "neg-1")

	amounts := []float64{70, 95, 82, 88}
	for _, amt := range amounts {
		if _, err := ledger.Append(ctx, "neg-1", domain.BidderCustomer, "customer-1", amt, "", "", ""); err != nil {
			t.Fatalf("append %.0f: %v", amt, err)
		}
	}

	history, err := ledger.History(ctx, "neg-1", domain.ListOpts{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(amounts) {
		t.Fatalf("expected %d entries, got %d", len(amounts), len(history))
	}
	for i, amt := range amounts {
		if history[i].Amount != amt {
			t.Fatalf("entry %d out of order: got %.0f, want %.0f", i, history[i].Amount, amt)
		}
	}

	page, err := ledger.History(ctx, "neg-1", domain.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("paged history: %v", err)
	}
	if len(page) != 2 || page[0].Amount != 95 || page[1].Amount != 82 {
		t.Fatalf("unexpected page: %+v", page)
	}

	if _, err := ledger.History(ctx, "missing", domain.ListOpts{}); !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("unknown negotiation history: expected ErrNegotiationNotFound, got %v", err)
	}
}
