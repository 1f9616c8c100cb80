// Package negotiation contains the core of the platform: the append-only bid
// ledger, the negotiation state machine, and the service exposing the
// request-level operations.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// Ledger is the append-only record of offers within negotiations. It owns
// the bid validation rules and keeps each negotiation's derived best-offer
// fields in sync with its latest entry.
type Ledger struct {
	negotiations domain.NegotiationStore
	bids         domain.BidStore
	now          func() time.Time
}

// NewLedger creates a Ledger over the given stores.
func NewLedger(negotiations domain.NegotiationStore, bids domain.BidStore) *Ledger {
	return &Ledger{
		negotiations: negotiations,
		bids:         bids,
		now:          time.Now,
	}
}

// Append validates and records a new bid. The negotiation must exist and be
// live, and amount must be positive; price direction is deliberately not
// constrained, either side may move the price either way per conversational
// turn. The first append moves the negotiation from created to active.
func (l *Ledger) Append(ctx context.Context, negotiationID string, bidderType domain.BidderType, bidderID string, amount float64, message, language, translated string) (domain.Bid, error) {
	n, err := l.negotiations.GetByID(ctx, negotiationID)
	if err != nil {
		return domain.Bid{}, err
	}
	if n.Status.Terminal() {
		return domain.Bid{}, domain.ErrInvalidTransition
	}
	if amount <= 0 {
		return domain.Bid{}, domain.ErrBidTooLow
	}
	if !bidderType.Valid() {
		return domain.Bid{}, domain.ErrBidNotAllowed
	}

	bid := domain.Bid{
		ID:                uuid.New().String(),
		NegotiationID:     negotiationID,
		BidderType:        bidderType,
		BidderID:          bidderID,
		Amount:            amount,
		Message:           message,
		Language:          language,
		TranslatedMessage: translated,
		CreatedAt:         l.now().UTC(),
	}

	// Activate before inserting the bid row. The store-level transition is
	// the authoritative liveness check; losing it to a concurrent terminal
	// transition must leave no bid behind on the closed negotiation.
	if err := l.negotiations.Activate(ctx, negotiationID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return domain.Bid{}, domain.ErrInvalidTransition
		}
		return domain.Bid{}, fmt.Errorf("ledger: activate %s: %w", negotiationID, err)
	}

	if err := l.bids.Append(ctx, bid); err != nil {
		return domain.Bid{}, fmt.Errorf("ledger: append bid for %s: %w", negotiationID, err)
	}

	if err := l.negotiations.SetBestOffer(ctx, negotiationID, amount, bidderType); err != nil {
		return domain.Bid{}, fmt.Errorf("ledger: set best offer for %s: %w", negotiationID, err)
	}

	return bid, nil
}

// BestOffer returns the most recent bid for the negotiation, or ErrNotFound
// when no bid has been placed. "Best" is defined as latest, not numerically
// most favorable; product has been asked to confirm this is intended.
func (l *Ledger) BestOffer(ctx context.Context, negotiationID string) (domain.Bid, error) {
	return l.bids.Latest(ctx, negotiationID)
}

// History returns the negotiation's bids in insertion order. The sequence is
// finite and the query is restartable, so transcripts can be replayed for
// audit or voice reconstruction.
func (l *Ledger) History(ctx context.Context, negotiationID string, opts domain.ListOpts) ([]domain.Bid, error) {
	if _, err := l.negotiations.GetByID(ctx, negotiationID); err != nil {
		return nil, err
	}
	return l.bids.ListByNegotiation(ctx, negotiationID, opts)
}
