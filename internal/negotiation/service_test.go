package negotiation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	cachememory "github.com/uday68/VyaparMitra-sub003/internal/cache/memory"
	"github.com/uday68/VyaparMitra-sub003/internal/domain"
	"github.com/uday68/VyaparMitra-sub003/internal/fanout"
	storememory "github.com/uday68/VyaparMitra-sub003/internal/store/memory"
)

type fakeTranslator struct{}

func (fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return "[" + targetLang + "] " + text, nil
}

type fakeSpeech struct{}

func (fakeSpeech) Synthesize(ctx context.Context, text, lang string) (string, error) {
	return "https://audio.local/clip.mp3", nil
}

type fakePayments struct {
	mu     sync.Mutex
	orders []string
}

func (f *fakePayments) CreateOrder(ctx context.Context, negotiationID, vendorID, customerID string, amount float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, negotiationID)
	return "order-1", nil
}

func (f *fakePayments) created() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.orders...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(ctx context.Context, event, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type serviceFixture struct {
	products     *storememory.ProductStore
	negotiations *storememory.NegotiationStore
	locks        *cachememory.LockManager
	payments     *fakePayments
	notifier     *fakeNotifier
	svc          *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &serviceFixture{
		products:     storememory.NewProductStore(),
		negotiations: storememory.NewNegotiationStore(),
		locks:        cachememory.NewLockManager(),
		payments:     &fakePayments{},
		notifier:     &fakeNotifier{},
	}
	bids := storememory.NewBidStore()
	fan := fanout.New(cachememory.NewSignalBus(), logger)
	ledger := NewLedger(f.negotiations, bids)
	machine := NewMachine(f.negotiations, f.locks, storememory.NewAuditStore(), fan, logger)

	f.svc = NewService(
		Config{TTL: 10 * time.Minute, DefaultQuantity: 1},
		f.products, f.negotiations, ledger, machine,
		fakeTranslator{}, fakeSpeech{}, f.payments, f.notifier,
		logger,
	)

	if err := f.products.Upsert(context.Background(), domain.Product{
		ID:        "prod-1",
		VendorID:  "vendor-1",
		Name:      "alphonso mangoes",
		BasePrice: 120,
		Quantity:  10,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return f
}

// jumpClock makes the service see a wall clock past every live deadline.
func (f *serviceFixture) jumpClock(d time.Duration) {
	f.svc.now = func() time.Time { return time.Now().Add(d) }
}

func TestServiceCreateNegotiation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.Status != domain.NegotiationStatusCreated {
		t.Fatalf("status %s", n.Status)
	}
	if n.Quantity != 1 {
		t.Fatalf("default quantity not applied: %d", n.Quantity)
	}
	if !n.ExpiresAt.After(n.CreatedAt) {
		t.Fatalf("deadline not set: created %s, expires %s", n.CreatedAt, n.ExpiresAt)
	}

	lock, err := f.locks.Get(ctx, "prod-1")
	if err != nil {
		t.Fatalf("stock lock not held: %v", err)
	}
	if lock.NegotiationID != n.ID {
		t.Fatalf("lock held by %s, want %s", lock.NegotiationID, n.ID)
	}

	// The product is reserved until this negotiation settles.
	if _, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-2", "prod-1", 1); !errors.Is(err, domain.ErrLockConflict) {
		t.Fatalf("expected ErrLockConflict, got %v", err)
	}
}

func TestServiceCreateNegotiationValidation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	if _, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("unknown product: expected ErrProductNotFound, got %v", err)
	}
	if _, err := f.svc.CreateNegotiation(ctx, "vendor-2", "customer-1", "prod-1", 1); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign vendor: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 11); !errors.Is(err, domain.ErrBidNotAllowed) {
		t.Fatalf("over stock: expected ErrBidNotAllowed, got %v", err)
	}
}

func TestServiceCreateBid(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bid, err := f.svc.CreateBid(ctx, BidParams{
		NegotiationID:  n.ID,
		BidderType:     domain.BidderCustomer,
		BidderID:       "customer-1",
		Amount:         90,
		Message:        "90 rupaye me doge?",
		Language:       "hi",
		TargetLanguage: "en",
	})
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if bid.TranslatedMessage != "[en] 90 rupaye me doge?" {
		t.Fatalf("translation not applied: %q", bid.TranslatedMessage)
	}

	got, _ := f.negotiations.GetByID(ctx, n.ID)
	if got.Status != domain.NegotiationStatusActive {
		t.Fatalf("first bid should activate, status %s", got.Status)
	}
	if got.BestOfferAmount != 90 {
		t.Fatalf("best offer %.0f", got.BestOfferAmount)
	}
}

func TestServiceCreateBidAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.CreateBid(ctx, BidParams{NegotiationID: n.ID, BidderType: domain.BidderCustomer, BidderID: "stranger", Amount: 90}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger bid: expected ErrUnauthorized, got %v", err)
	}
	// A party bidding under the wrong side label is refused too.
	if _, err := f.svc.CreateBid(ctx, BidParams{NegotiationID: n.ID, BidderType: domain.BidderVendor, BidderID: "customer-1", Amount: 90}); !errors.Is(err, domain.ErrBidNotAllowed) {
		t.Fatalf("side mismatch: expected ErrBidNotAllowed, got %v", err)
	}
}

func TestServiceBidAfterDeadlineExpires(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.jumpClock(time.Hour)

	_, err = f.svc.CreateBid(ctx, BidParams{NegotiationID: n.ID, BidderType: domain.BidderCustomer, BidderID: "customer-1", Amount: 90})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("late bid: expected ErrInvalidTransition, got %v", err)
	}

	// The late request itself forced the expiry and freed the stock.
	got, _ := f.negotiations.GetByID(ctx, n.ID)
	if got.Status != domain.NegotiationStatusExpired {
		t.Fatalf("status %s, want expired", got.Status)
	}
	if _, err := f.locks.Get(ctx, "prod-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("lock should be released, got %v", err)
	}
}

func TestServiceAcceptFlow(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.CreateBid(ctx, BidParams{NegotiationID: n.ID, BidderType: domain.BidderCustomer, BidderID: "customer-1", Amount: 95}); err != nil {
		t.Fatalf("bid: %v", err)
	}

	out, err := f.svc.Accept(ctx, n.ID, "vendor-1", domain.BidderVendor, "hi")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !out.Success || out.Status != domain.NegotiationStatusAccepted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.SpokenResponseURL == "" {
		t.Fatal("spoken response not synthesized")
	}

	if orders := f.payments.created(); len(orders) != 1 || orders[0] != n.ID {
		t.Fatalf("payment order not created: %v", orders)
	}

	// Retrying the same decision is idempotent.
	again, err := f.svc.Accept(ctx, n.ID, "customer-1", domain.BidderCustomer, "")
	if err != nil {
		t.Fatalf("repeat accept: %v", err)
	}
	if !again.Success || again.Status != domain.NegotiationStatusAccepted {
		t.Fatalf("repeat outcome: %+v", again)
	}
	if orders := f.payments.created(); len(orders) != 1 {
		t.Fatalf("repeat accept must not create another order: %v", orders)
	}

	// The opposite decision is not.
	if _, err := f.svc.Reject(ctx, n.ID, "customer-1", domain.BidderCustomer, "", "changed my mind"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("reject after accept: expected ErrInvalidTransition, got %v", err)
	}
}

func TestServiceRejectFlow(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.CreateBid(ctx, BidParams{NegotiationID: n.ID, BidderType: domain.BidderCustomer, BidderID: "customer-1", Amount: 60}); err != nil {
		t.Fatalf("bid: %v", err)
	}

	out, err := f.svc.Reject(ctx, n.ID, "vendor-1", domain.BidderVendor, "", "price too low")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if !out.Success || out.Status != domain.NegotiationStatusRejected {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Message != "Offer declined: price too low" {
		t.Fatalf("unexpected message %q", out.Message)
	}

	again, err := f.svc.Reject(ctx, n.ID, "customer-1", domain.BidderCustomer, "", "")
	if err != nil || !again.Success {
		t.Fatalf("repeat reject: %+v err=%v", again, err)
	}

	if _, err := f.svc.Accept(ctx, n.ID, "vendor-1", domain.BidderVendor, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("accept after reject: expected ErrInvalidTransition, got %v", err)
	}

	// Rejected stock is for sale again.
	if _, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-2", "prod-1", 1); err != nil {
		t.Fatalf("new negotiation after reject: %v", err)
	}
}

func TestServiceDecisionsRequireABid(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Right after creation there is no offer on the table; neither side can
	// close the deal, and no payment order may appear.
	if _, err := f.svc.Accept(ctx, n.ID, "vendor-1", domain.BidderVendor, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("bidless accept: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.svc.Reject(ctx, n.ID, "customer-1", domain.BidderCustomer, "", "nope"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("bidless reject: expected ErrInvalidTransition, got %v", err)
	}
	if orders := f.payments.created(); len(orders) != 0 {
		t.Fatalf("bidless accept created payment orders: %v", orders)
	}

	got, _ := f.negotiations.GetByID(ctx, n.ID)
	if got.Status != domain.NegotiationStatusCreated {
		t.Fatalf("negotiation should stay open, status %s", got.Status)
	}

	// The first bid unblocks the decision.
	if _, err := f.svc.CreateBid(ctx, BidParams{NegotiationID: n.ID, BidderType: domain.BidderCustomer, BidderID: "customer-1", Amount: 85}); err != nil {
		t.Fatalf("bid: %v", err)
	}
	out, err := f.svc.Accept(ctx, n.ID, "vendor-1", domain.BidderVendor, "")
	if err != nil {
		t.Fatalf("accept after bid: %v", err)
	}
	if !out.Success || out.Status != domain.NegotiationStatusAccepted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestServiceAcceptAfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.jumpClock(time.Hour)

	out, err := f.svc.Accept(ctx, n.ID, "vendor-1", domain.BidderVendor, "")
	if err != nil {
		t.Fatalf("late accept: %v", err)
	}
	if out.Success || out.Status != domain.NegotiationStatusExpired {
		t.Fatalf("late accept should report expiry, got %+v", out)
	}
	if orders := f.payments.created(); len(orders) != 0 {
		t.Fatalf("no payment order on expiry, got %v", orders)
	}

	got, _ := f.negotiations.GetByID(ctx, n.ID)
	if got.Status != domain.NegotiationStatusExpired {
		t.Fatalf("status %s, want expired", got.Status)
	}
}

func TestServiceDecisionsRequireParty(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	n, err := f.svc.CreateNegotiation(ctx, "vendor-1", "customer-1", "prod-1", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Accept(ctx, n.ID, "stranger", domain.BidderCustomer, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger accept: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.svc.Reject(ctx, n.ID, "stranger", domain.BidderCustomer, "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger reject: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.svc.Accept(ctx, "missing", "vendor-1", domain.BidderVendor, ""); !errors.Is(err, domain.ErrNegotiationNotFound) {
		t.Fatalf("missing negotiation: expected ErrNegotiationNotFound, got %v", err)
	}
}
