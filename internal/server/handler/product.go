package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// ProductHandler serves the product catalogue endpoints.
type ProductHandler struct {
	products domain.ProductStore
	locks    domain.LockManager
	logger   *slog.Logger
}

// NewProductHandler creates a ProductHandler with the given store, lock
// manager, and logger.
func NewProductHandler(products domain.ProductStore, locks domain.LockManager, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		locks:    locks,
		logger:   logger,
	}
}

type upsertProductRequest struct {
	ID          string  `json:"id"`
	VendorID    string  `json:"vendorId"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BasePrice   float64 `json:"basePrice"`
	Quantity    int     `json:"quantity"`
}

// UpsertProduct creates or updates a product listing.
// PUT /api/products
func (h *ProductHandler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.VendorID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "vendorId and name are required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	p := domain.Product{
		ID:          req.ID,
		VendorID:    req.VendorID,
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		Quantity:    req.Quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.products.Upsert(r.Context(), p); err != nil {
		writeDomainError(w, r, h.logger, "upsert product", err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// GetProduct returns a single product, including its current lock state so
// callers can see whether it is under negotiation.
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get product", err)
		return
	}

	resp := map[string]any{"product": p}
	if lock, err := h.locks.Get(r.Context(), id); err == nil {
		resp["lock"] = lock
	}

	writeJSON(w, http.StatusOK, resp)
}

// listProductsResponse wraps the product list response.
type listProductsResponse struct {
	Products []domain.Product `json:"products"`
}

// ListProducts returns products, optionally filtered by vendor.
// GET /api/products?vendor_id=...&limit=50&offset=0
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	vendorID := r.URL.Query().Get("vendor_id")

	var (
		products []domain.Product
		err      error
	)
	if vendorID != "" {
		products, err = h.products.ListByVendor(r.Context(), vendorID, opts)
	} else {
		products, err = h.products.List(r.Context(), opts)
	}
	if err != nil {
		writeDomainError(w, r, h.logger, "list products", err)
		return
	}

	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, listProductsResponse{Products: products})
}
