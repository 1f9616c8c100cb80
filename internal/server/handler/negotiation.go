package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
	"github.com/uday68/VyaparMitra-sub003/internal/negotiation"
)

// NegotiationService defines the methods the negotiation handler requires
// from the service layer.
type NegotiationService interface {
	CreateNegotiation(ctx context.Context, vendorID, customerID, productID string, quantity int) (domain.Negotiation, error)
	Get(ctx context.Context, id string) (domain.Negotiation, error)
	CreateBid(ctx context.Context, p negotiation.BidParams) (domain.Bid, error)
	Accept(ctx context.Context, negotiationID, accepterID string, accepterType domain.BidderType, language string) (domain.Outcome, error)
	Reject(ctx context.Context, negotiationID, rejecterID string, rejecterType domain.BidderType, language, reason string) (domain.Outcome, error)
	Ledger() *negotiation.Ledger
}

// NegotiationHandler serves the negotiation lifecycle endpoints.
type NegotiationHandler struct {
	svc    NegotiationService
	logger *slog.Logger
}

// NewNegotiationHandler creates a NegotiationHandler with the given service
// and logger.
func NewNegotiationHandler(svc NegotiationService, logger *slog.Logger) *NegotiationHandler {
	return &NegotiationHandler{
		svc:    svc,
		logger: logger,
	}
}

type createNegotiationRequest struct {
	VendorID   string `json:"vendorId"`
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
}

// CreateNegotiation starts a negotiation, taking the product's stock lock.
// POST /api/negotiations
func (h *NegotiationHandler) CreateNegotiation(w http.ResponseWriter, r *http.Request) {
	var req createNegotiationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.VendorID == "" || req.CustomerID == "" || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "vendorId, customerId, and productId are required")
		return
	}

	n, err := h.svc.CreateNegotiation(r.Context(), req.VendorID, req.CustomerID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, h.logger, "create negotiation", err)
		return
	}

	writeJSON(w, http.StatusCreated, n)
}

// GetNegotiation returns a single negotiation by ID.
// GET /api/negotiations/{id}
func (h *NegotiationHandler) GetNegotiation(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing negotiation id")
		return
	}

	n, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get negotiation", err)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

type createBidRequest struct {
	BidderType     string  `json:"bidderType"`
	BidderID       string  `json:"bidderId"`
	Amount         float64 `json:"amount"`
	Message        string  `json:"message"`
	Language       string  `json:"language"`
	TargetLanguage string  `json:"targetLanguage"`
}

// CreateBid appends an offer to a live negotiation.
// POST /api/negotiations/{id}/bids
func (h *NegotiationHandler) CreateBid(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing negotiation id")
		return
	}

	var req createBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.BidderID == "" {
		writeError(w, http.StatusBadRequest, "bidderId is required")
		return
	}

	bid, err := h.svc.CreateBid(r.Context(), negotiation.BidParams{
		NegotiationID:  id,
		BidderType:     domain.BidderType(req.BidderType),
		BidderID:       req.BidderID,
		Amount:         req.Amount,
		Message:        req.Message,
		Language:       req.Language,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, "create bid", err)
		return
	}

	writeJSON(w, http.StatusCreated, bid)
}

// listBidsResponse wraps the bid history response.
type listBidsResponse struct {
	Bids []domain.Bid `json:"bids"`
}

// ListBids returns the negotiation's bid history in insertion order.
// GET /api/negotiations/{id}/bids
func (h *NegotiationHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing negotiation id")
		return
	}

	bids, err := h.svc.Ledger().History(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "list bids", err)
		return
	}

	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, listBidsResponse{Bids: bids})
}

type decisionRequest struct {
	PartyID   string `json:"partyId"`
	PartyType string `json:"partyType"`
	Language  string `json:"language"`
	Reason    string `json:"reason"`
}

// Accept finalizes the negotiation as accepted.
// POST /api/negotiations/{id}/accept
func (h *NegotiationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject finalizes the negotiation as rejected.
// POST /api/negotiations/{id}/reject
func (h *NegotiationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *NegotiationHandler) decide(w http.ResponseWriter, r *http.Request, accept bool) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing negotiation id")
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.PartyID == "" {
		writeError(w, http.StatusBadRequest, "partyId is required")
		return
	}

	var (
		outcome domain.Outcome
		err     error
	)
	if accept {
		outcome, err = h.svc.Accept(r.Context(), id, req.PartyID, domain.BidderType(req.PartyType), req.Language)
	} else {
		outcome, err = h.svc.Reject(r.Context(), id, req.PartyID, domain.BidderType(req.PartyType), req.Language, req.Reason)
	}
	if err != nil {
		op := "reject negotiation"
		if accept {
			op = "accept negotiation"
		}
		writeDomainError(w, r, h.logger, op, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
