package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// NegotiationStore persists negotiations. Terminal transitions go through
// CloseIf, which must be a conditional update so concurrent accept, reject,
// and expiry requests race safely: exactly one caller wins.
type NegotiationStore interface {
	Create(ctx context.Context, n Negotiation) error
	GetByID(ctx context.Context, id string) (Negotiation, error)

	// Activate moves a negotiation from created to active. It is a no-op
	// returning nil when the negotiation is already active, and returns
	// ErrInvalidTransition when the negotiation is terminal.
	Activate(ctx context.Context, id string) error

	// SetBestOffer records the derived latest-offer fields.
	SetBestOffer(ctx context.Context, id string, amount float64, side BidderType) error

	// CloseIf sets a terminal status, closer, and reason only while the
	// negotiation is still live. It returns true when this call performed
	// the transition and false when the negotiation was already terminal.
	CloseIf(ctx context.Context, id string, status NegotiationStatus, closedBy, reason string, closedAt time.Time) (bool, error)

	// ListOverdue returns live negotiations whose deadline passed before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]Negotiation, error)

	// ListClosedBefore returns terminal negotiations closed before the cutoff.
	ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Negotiation, error)

	Delete(ctx context.Context, id string) error
}

// BidStore persists the append-only bid ledger.
type BidStore interface {
	Append(ctx context.Context, b Bid) error
	// ListByNegotiation returns all bids for a negotiation in insertion order.
	ListByNegotiation(ctx context.Context, negotiationID string, opts ListOpts) ([]Bid, error)
	// Latest returns the most recent bid, or ErrNotFound when none exist.
	Latest(ctx context.Context, negotiationID string) (Bid, error)
	DeleteByNegotiation(ctx context.Context, negotiationID string) error
}

// ProductStore persists product listings.
type ProductStore interface {
	Upsert(ctx context.Context, p Product) error
	GetByID(ctx context.Context, id string) (Product, error)
	ListByVendor(ctx context.Context, vendorID string, opts ListOpts) ([]Product, error)
	List(ctx context.Context, opts ListOpts) ([]Product, error)
}

// AuditStore persists an append-only audit log of lock and lifecycle events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
