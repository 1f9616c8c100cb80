package domain

import "time"

// BidderType indicates which side of the negotiation placed a bid.
type BidderType string

const (
	BidderVendor   BidderType = "vendor"
	BidderCustomer BidderType = "customer"
)

// Valid reports whether b is one of the two known sides.
func (b BidderType) Valid() bool {
	return b == BidderVendor || b == BidderCustomer
}

// Bid is a single priced offer within a negotiation. Bids are immutable once
// written; the ledger is append-only and ordered by insertion.
type Bid struct {
	ID            string
	NegotiationID string
	BidderType    BidderType
	BidderID      string
	Amount        float64

	// Message is opaque conversational text accompanying the offer. The core
	// never interprets it; it is passed through to translation/TTS.
	Message           string
	Language          string
	TranslatedMessage string
	CreatedAt         time.Time
}
