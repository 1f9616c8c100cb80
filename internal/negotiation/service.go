package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// Notifier is the operator-alerting hook invoked on terminal outcomes. It is
// satisfied by notify.Notifier; a nil Notifier disables alerting.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the tunables of the negotiation service.
type Config struct {
	// TTL is how long a negotiation (and its stock lock) stays live without
	// reaching a terminal state.
	TTL time.Duration

	// DefaultQuantity is used when a create request does not specify one.
	DefaultQuantity int
}

// Service exposes the request-level negotiation operations: create, bid,
// accept, reject. It owns party authorization and the opaque collaborator
// enrichment (translation, speech, payment); the lifecycle rules themselves
// live in Machine and Ledger.
type Service struct {
	cfg      Config
	products domain.ProductStore
	store    domain.NegotiationStore
	ledger   *Ledger
	machine  *Machine

	translator domain.Translator
	speech     domain.SpeechSynthesizer
	payments   domain.PaymentGateway
	notifier   Notifier

	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. translator, speech, payments, and notifier
// may each be nil, which disables the corresponding enrichment.
func NewService(
	cfg Config,
	products domain.ProductStore,
	store domain.NegotiationStore,
	ledger *Ledger,
	machine *Machine,
	translator domain.Translator,
	speech domain.SpeechSynthesizer,
	payments domain.PaymentGateway,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	if cfg.DefaultQuantity <= 0 {
		cfg.DefaultQuantity = 1
	}
	return &Service{
		cfg:        cfg,
		products:   products,
		store:      store,
		ledger:     ledger,
		machine:    machine,
		translator: translator,
		speech:     speech,
		payments:   payments,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "negotiation_service")),
		now:        time.Now,
	}
}

// Ledger returns the service's bid ledger for read paths (history, best
// offer).
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Machine returns the underlying state machine; the expiry scheduler drives
// forced transitions through it.
func (s *Service) Machine() *Machine {
	return s.machine
}

// Get returns a negotiation by ID.
func (s *Service) Get(ctx context.Context, id string) (domain.Negotiation, error) {
	return s.store.GetByID(ctx, id)
}

// CreateNegotiation starts a negotiation between a vendor and a customer over
// a product. It fails with ErrProductNotFound for an unknown product and
// ErrLockConflict when another negotiation currently holds the product.
func (s *Service) CreateNegotiation(ctx context.Context, vendorID, customerID, productID string, quantity int) (domain.Negotiation, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrProductNotFound) {
			return domain.Negotiation{}, domain.ErrProductNotFound
		}
		return domain.Negotiation{}, fmt.Errorf("service: lookup product %s: %w", productID, err)
	}
	if product.VendorID != vendorID {
		return domain.Negotiation{}, domain.ErrUnauthorized
	}

	if quantity <= 0 {
		quantity = s.cfg.DefaultQuantity
	}
	if quantity > product.Quantity {
		return domain.Negotiation{}, domain.ErrBidNotAllowed
	}

	now := s.now().UTC()
	n := domain.Negotiation{
		ID:         uuid.New().String(),
		ProductID:  productID,
		VendorID:   vendorID,
		CustomerID: customerID,
		Quantity:   quantity,
		Status:     domain.NegotiationStatusCreated,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL),
	}

	if err := s.machine.Create(ctx, n); err != nil {
		return domain.Negotiation{}, err
	}

	s.logger.InfoContext(ctx, "negotiation created",
		slog.String("negotiation_id", n.ID),
		slog.String("product_id", productID),
		slog.Time("expires_at", n.ExpiresAt),
	)

	return n, nil
}

// BidParams are the inputs to CreateBid. Message, Language, and
// TargetLanguage are opaque pass-through fields for the translation and
// speech collaborators.
type BidParams struct {
	NegotiationID  string
	BidderType     domain.BidderType
	BidderID       string
	Amount         float64
	Message        string
	Language       string
	TargetLanguage string
}

// CreateBid appends an offer to a live negotiation and fans out the
// bidCreated event. A request arriving after the deadline forces the expiry
// transition itself rather than trusting the stale row, then fails with
// ErrInvalidTransition.
func (s *Service) CreateBid(ctx context.Context, p BidParams) (domain.Bid, error) {
	n, err := s.store.GetByID(ctx, p.NegotiationID)
	if err != nil {
		return domain.Bid{}, err
	}

	if err := s.authorizeBidder(n, p.BidderType, p.BidderID); err != nil {
		return domain.Bid{}, err
	}

	if !n.Status.Terminal() && n.Overdue(s.now()) {
		if _, err := s.machine.Expire(ctx, n); err != nil {
			s.logger.Warn("expiring overdue negotiation on bid path",
				slog.String("negotiation_id", n.ID),
				slog.String("error", err.Error()),
			)
		}
		return domain.Bid{}, domain.ErrInvalidTransition
	}

	translated := s.translate(ctx, p.Message, p.Language, p.TargetLanguage)

	bid, err := s.ledger.Append(ctx, p.NegotiationID, p.BidderType, p.BidderID, p.Amount, p.Message, p.Language, translated)
	if err != nil {
		return domain.Bid{}, err
	}

	spokenText := bid.Message
	if bid.TranslatedMessage != "" {
		spokenText = bid.TranslatedMessage
	}
	spokenURL := s.synthesize(ctx, spokenText, firstNonEmpty(p.TargetLanguage, p.Language))

	s.publish(ctx, domain.BidCreatedEvent{
		NegotiationID:     bid.NegotiationID,
		BidID:             bid.ID,
		BidderType:        bid.BidderType,
		BidderID:          bid.BidderID,
		Amount:            bid.Amount,
		Message:           bid.Message,
		TranslatedMessage: bid.TranslatedMessage,
		SpokenResponseURL: spokenURL,
		CreatedAt:         bid.CreatedAt,
	})

	return bid, nil
}

// Accept finalizes the negotiation as accepted. Acceptance by either party is
// sufficient; it mirrors a verbal handshake. A negotiation with no bids yet
// has nothing to agree on and fails with ErrInvalidTransition. Calling Accept
// on an already-accepted negotiation returns the stored success result,
// calling it on an expired one reports the expired outcome, and calling it on
// a rejected one fails with ErrInvalidTransition.
func (s *Service) Accept(ctx context.Context, negotiationID, accepterID string, accepterType domain.BidderType, language string) (domain.Outcome, error) {
	n, err := s.store.GetByID(ctx, negotiationID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !n.IsParty(accepterID) {
		return domain.Outcome{}, domain.ErrUnauthorized
	}

	if n.Status.Terminal() {
		return s.terminalOutcome(ctx, n, domain.NegotiationStatusAccepted, language)
	}
	if n.Overdue(s.now()) {
		if _, err := s.machine.Expire(ctx, n); err != nil {
			return domain.Outcome{}, err
		}
		return s.expiredOutcome(ctx, language), nil
	}
	if n.Status == domain.NegotiationStatusCreated {
		// No bid has been placed; there is no offer to agree to.
		return domain.Outcome{}, domain.ErrInvalidTransition
	}

	performed, err := s.machine.Accept(ctx, n, accepterID, accepterType)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !performed {
		// Lost the terminal race; report whatever state won.
		cur, err := s.store.GetByID(ctx, negotiationID)
		if err != nil {
			return domain.Outcome{}, err
		}
		return s.terminalOutcome(ctx, cur, domain.NegotiationStatusAccepted, language)
	}

	s.afterAccept(ctx, n)

	msg := fmt.Sprintf("Deal agreed at %.2f", n.BestOfferAmount)
	return domain.Outcome{
		Success:           true,
		Status:            domain.NegotiationStatusAccepted,
		Message:           msg,
		SpokenResponseURL: s.synthesize(ctx, msg, language),
	}, nil
}

// Reject finalizes the negotiation as rejected with an optional reason,
// following the same idempotency rules as Accept.
func (s *Service) Reject(ctx context.Context, negotiationID, rejecterID string, rejecterType domain.BidderType, language, reason string) (domain.Outcome, error) {
	n, err := s.store.GetByID(ctx, negotiationID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !n.IsParty(rejecterID) {
		return domain.Outcome{}, domain.ErrUnauthorized
	}

	if n.Status.Terminal() {
		return s.terminalOutcome(ctx, n, domain.NegotiationStatusRejected, language)
	}
	if n.Overdue(s.now()) {
		if _, err := s.machine.Expire(ctx, n); err != nil {
			return domain.Outcome{}, err
		}
		return s.expiredOutcome(ctx, language), nil
	}
	if n.Status == domain.NegotiationStatusCreated {
		return domain.Outcome{}, domain.ErrInvalidTransition
	}

	performed, err := s.machine.Reject(ctx, n, rejecterID, rejecterType, reason)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !performed {
		cur, err := s.store.GetByID(ctx, negotiationID)
		if err != nil {
			return domain.Outcome{}, err
		}
		return s.terminalOutcome(ctx, cur, domain.NegotiationStatusRejected, language)
	}

	s.notify(ctx, "negotiation_rejected", "Negotiation rejected",
		fmt.Sprintf("negotiation %s on product %s was rejected", n.ID, n.ProductID))

	msg := "Offer declined"
	if reason != "" {
		msg = "Offer declined: " + reason
	}
	return domain.Outcome{
		Success:           true,
		Status:            domain.NegotiationStatusRejected,
		Message:           msg,
		SpokenResponseURL: s.synthesize(ctx, msg, language),
	}, nil
}

// terminalOutcome maps an already-terminal negotiation to the caller-visible
// result. Requesting the same outcome again succeeds idempotently; an expired
// negotiation reports its expiry instead of erroring; a conflicting outcome
// (accept after reject, or vice versa) is an invalid transition.
func (s *Service) terminalOutcome(ctx context.Context, n domain.Negotiation, requested domain.NegotiationStatus, language string) (domain.Outcome, error) {
	switch {
	case n.Status == requested:
		msg := "Deal already accepted"
		if requested == domain.NegotiationStatusRejected {
			msg = "Offer already declined"
		}
		return domain.Outcome{Success: true, Status: n.Status, Message: msg}, nil
	case n.Status == domain.NegotiationStatusExpired:
		return s.expiredOutcome(ctx, language), nil
	default:
		return domain.Outcome{}, domain.ErrInvalidTransition
	}
}

func (s *Service) expiredOutcome(ctx context.Context, language string) domain.Outcome {
	msg := "Negotiation expired before a deal was reached"
	return domain.Outcome{
		Success:           false,
		Status:            domain.NegotiationStatusExpired,
		Message:           msg,
		SpokenResponseURL: s.synthesize(ctx, msg, language),
	}
}

// afterAccept runs the post-accept hooks: payment order creation and operator
// alerting. Both are best-effort; the accepted state never rolls back.
func (s *Service) afterAccept(ctx context.Context, n domain.Negotiation) {
	if s.payments != nil {
		orderID, err := s.payments.CreateOrder(ctx, n.ID, n.VendorID, n.CustomerID, n.BestOfferAmount)
		if err != nil {
			s.logger.Error("payment order creation failed",
				slog.String("negotiation_id", n.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "payment order created",
				slog.String("negotiation_id", n.ID),
				slog.String("payment_order_id", orderID),
			)
		}
	}

	s.notify(ctx, "negotiation_accepted", "Deal agreed",
		fmt.Sprintf("negotiation %s on product %s closed at %.2f", n.ID, n.ProductID, n.BestOfferAmount))
}

// authorizeBidder checks the bidder is the matching party for its declared
// side.
func (s *Service) authorizeBidder(n domain.Negotiation, bidderType domain.BidderType, bidderID string) error {
	if !n.IsParty(bidderID) {
		return domain.ErrUnauthorized
	}
	switch bidderType {
	case domain.BidderVendor:
		if bidderID != n.VendorID {
			return domain.ErrBidNotAllowed
		}
	case domain.BidderCustomer:
		if bidderID != n.CustomerID {
			return domain.ErrBidNotAllowed
		}
	default:
		return domain.ErrBidNotAllowed
	}
	return nil
}

// translate renders message into targetLang. Failure degrades to the
// original text; a missed translation never fails a bid.
func (s *Service) translate(ctx context.Context, message, sourceLang, targetLang string) string {
	if s.translator == nil || message == "" || targetLang == "" || targetLang == sourceLang {
		return ""
	}
	out, err := s.translator.Translate(ctx, message, sourceLang, targetLang)
	if err != nil {
		s.logger.Warn("translation failed, passing original through",
			slog.String("source_lang", sourceLang),
			slog.String("target_lang", targetLang),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return out
}

// synthesize returns an audio URL for text, or empty on failure or when no
// synthesizer is configured.
func (s *Service) synthesize(ctx context.Context, text, lang string) string {
	if s.speech == nil || text == "" {
		return ""
	}
	url, err := s.speech.Synthesize(ctx, text, lang)
	if err != nil {
		s.logger.Warn("speech synthesis failed",
			slog.String("lang", lang),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return url
}

func (s *Service) publish(ctx context.Context, ev domain.Event) {
	s.machine.publish(ctx, ev)
}

func (s *Service) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
