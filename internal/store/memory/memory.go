// Package memory implements the domain store interfaces in-process. It backs
// the "memory" storage backend for local development and is the fixture used
// by unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// NegotiationStore implements domain.NegotiationStore with a mutex-guarded
// map. CloseIf and Activate perform their status checks under the mutex,
// giving the same compare-and-swap semantics as the SQL implementation.
type NegotiationStore struct {
	mu    sync.Mutex
	items map[string]domain.Negotiation
}

// NewNegotiationStore creates an empty in-process NegotiationStore.
func NewNegotiationStore() *NegotiationStore {
	return &NegotiationStore{items: make(map[string]domain.Negotiation)}
}

func (s *NegotiationStore) Create(ctx context.Context, n domain.Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[n.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.items[n.ID] = n
	return nil
}

func (s *NegotiationStore) GetByID(ctx context.Context, id string) (domain.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return domain.Negotiation{}, domain.ErrNegotiationNotFound
	}
	return n, nil
}

func (s *NegotiationStore) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return domain.ErrNegotiationNotFound
	}
	switch n.Status {
	case domain.NegotiationStatusActive:
		return nil
	case domain.NegotiationStatusCreated:
		n.Status = domain.NegotiationStatusActive
		s.items[id] = n
		return nil
	default:
		return domain.ErrInvalidTransition
	}
}

func (s *NegotiationStore) SetBestOffer(ctx context.Context, id string, amount float64, side domain.BidderType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return domain.ErrNegotiationNotFound
	}
	n.BestOfferAmount = amount
	n.BestOfferSide = side
	s.items[id] = n
	return nil
}

func (s *NegotiationStore) CloseIf(ctx context.Context, id string, status domain.NegotiationStatus, closedBy, reason string, closedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return false, domain.ErrNegotiationNotFound
	}
	if n.Status.Terminal() {
		return false, nil
	}
	n.Status = status
	n.ClosedBy = closedBy
	n.ClosedReason = reason
	n.ClosedAt = &closedAt
	s.items[id] = n
	return true, nil
}

func (s *NegotiationStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Negotiation
	for _, n := range s.items {
		if !n.Status.Terminal() && n.Overdue(now) {
			out = append(out, n)
		}
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NegotiationStore) ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Negotiation
	for _, n := range s.items {
		if n.Status.Terminal() && n.ClosedAt != nil && n.ClosedAt.Before(cutoff) {
			out = append(out, n)
		}
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NegotiationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func sortByCreated(ns []domain.Negotiation) {
	sort.Slice(ns, func(i, j int) bool {
		return ns[i].CreatedAt.Before(ns[j].CreatedAt)
	})
}

// BidStore implements domain.BidStore. Bids are kept per negotiation in
// insertion order and never mutated.
type BidStore struct {
	mu   sync.Mutex
	bids map[string][]domain.Bid
}

// NewBidStore creates an empty in-process BidStore.
func NewBidStore() *BidStore {
	return &BidStore{bids: make(map[string][]domain.Bid)}
}

func (s *BidStore) Append(ctx context.Context, b domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[b.NegotiationID] = append(s.bids[b.NegotiationID], b)
	return nil
}

func (s *BidStore) ListByNegotiation(ctx context.Context, negotiationID string, opts domain.ListOpts) ([]domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.bids[negotiationID]
	start := opts.Offset
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	out := make([]domain.Bid, end-start)
	copy(out, all[start:end])
	return out, nil
}

func (s *BidStore) Latest(ctx context.Context, negotiationID string) (domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.bids[negotiationID]
	if len(all) == 0 {
		return domain.Bid{}, domain.ErrNotFound
	}
	return all[len(all)-1], nil
}

func (s *BidStore) DeleteByNegotiation(ctx context.Context, negotiationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bids, negotiationID)
	return nil
}

// ProductStore implements domain.ProductStore.
type ProductStore struct {
	mu    sync.Mutex
	items map[string]domain.Product
}

// NewProductStore creates an empty in-process ProductStore.
func NewProductStore() *ProductStore {
	return &ProductStore{items: make(map[string]domain.Product)}
}

func (s *ProductStore) Upsert(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = p
	return nil
}

func (s *ProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *ProductStore) ListByVendor(ctx context.Context, vendorID string, opts domain.ListOpts) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Product
	for _, p := range s.items {
		if p.VendorID == vendorID {
			out = append(out, p)
		}
	}
	sortProducts(out)
	return paginate(out, opts), nil
}

func (s *ProductStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p)
	}
	sortProducts(out)
	return paginate(out, opts), nil
}

func sortProducts(ps []domain.Product) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}

func paginate(ps []domain.Product, opts domain.ListOpts) []domain.Product {
	start := opts.Offset
	if start > len(ps) {
		start = len(ps)
	}
	end := len(ps)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return ps[start:end]
}

// AuditStore implements domain.AuditStore by recording entries in memory.
type AuditStore struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// AuditEntry is one recorded audit event.
type AuditEntry struct {
	Event  string
	Detail map[string]any
	At     time.Time
}

// NewAuditStore creates an empty in-process AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, AuditEntry{Event: event, Detail: detail, At: time.Now().UTC()})
	return nil
}

// Entries returns a copy of all recorded audit entries. Test hook.
func (s *AuditStore) Entries() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Compile-time interface checks.
var (
	_ domain.NegotiationStore = (*NegotiationStore)(nil)
	_ domain.BidStore         = (*BidStore)(nil)
	_ domain.ProductStore     = (*ProductStore)(nil)
	_ domain.AuditStore       = (*AuditStore)(nil)
)
