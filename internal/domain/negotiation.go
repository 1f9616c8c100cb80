package domain

import "time"

// NegotiationStatus tracks the negotiation lifecycle.
type NegotiationStatus string

const (
	NegotiationStatusCreated  NegotiationStatus = "created"
	NegotiationStatusActive   NegotiationStatus = "active"
	NegotiationStatusAccepted NegotiationStatus = "accepted"
	NegotiationStatusRejected NegotiationStatus = "rejected"
	NegotiationStatusExpired  NegotiationStatus = "expired"
)

// Terminal reports whether no further transition may leave this status.
func (s NegotiationStatus) Terminal() bool {
	switch s {
	case NegotiationStatusAccepted, NegotiationStatusRejected, NegotiationStatusExpired:
		return true
	}
	return false
}

// Negotiation is a bounded price conversation between one vendor and one
// customer over one product. It ends in exactly one terminal status.
type Negotiation struct {
	ID         string
	ProductID  string
	VendorID   string
	CustomerID string
	Quantity   int
	Status     NegotiationStatus

	// BestOfferAmount/BestOfferSide mirror the most recent ledger entry.
	// Zero amount means no bid has been placed yet.
	BestOfferAmount float64
	BestOfferSide   BidderType

	// ClosedBy and ClosedReason are set on the terminal transition.
	ClosedBy     string
	ClosedReason string

	CreatedAt time.Time
	ExpiresAt time.Time
	ClosedAt  *time.Time
}

// IsParty reports whether userID is the vendor or customer of n.
func (n Negotiation) IsParty(userID string) bool {
	return userID == n.VendorID || userID == n.CustomerID
}

// Overdue reports whether the negotiation deadline has passed at now.
func (n Negotiation) Overdue(now time.Time) bool {
	return now.After(n.ExpiresAt)
}

// Outcome is the caller-visible result of an accept or reject request. It is
// returned unchanged on idempotent retries of an already-terminal negotiation.
type Outcome struct {
	Success bool              `json:"success"`
	Status  NegotiationStatus `json:"status"`
	Message string            `json:"message"`

	// SpokenResponseURL optionally carries a synthesized audio rendering of
	// Message for voice clients. Opaque to the core.
	SpokenResponseURL string `json:"spokenResponseUrl,omitempty"`
}
