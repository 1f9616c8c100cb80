// Package payment creates payment orders with an external gateway after a
// negotiation is accepted. Order creation is strictly post-acceptance; a
// gateway failure never rolls back the accepted deal.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// Client is an HTTP client for a payment gateway exposing a POST /orders
// endpoint.
type Client struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
}

// New creates a payment Client authenticated with basic key ID / secret
// credentials. It uses a default HTTP client with a 15-second timeout.
func New(baseURL, keyID, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type createOrderRequest struct {
	NegotiationID string  `json:"negotiationId"`
	VendorID      string  `json:"vendorId"`
	CustomerID    string  `json:"customerId"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
}

// CreateOrder registers a payment order for the accepted amount and returns
// the gateway's order ID.
func (c *Client) CreateOrder(ctx context.Context, negotiationID, vendorID, customerID string, amount float64) (string, error) {
	body, err := json.Marshal(createOrderRequest{
		NegotiationID: negotiationID,
		VendorID:      vendorID,
		CustomerID:    customerID,
		Amount:        amount,
		Currency:      "INR",
	})
	if err != nil {
		return "", fmt.Errorf("payment: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("payment: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("payment: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("payment: decode response: %w", err)
	}
	return out.OrderID, nil
}

// Compile-time interface check.
var _ domain.PaymentGateway = (*Client)(nil)
