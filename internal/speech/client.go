// Package speech calls an external text-to-speech service over HTTP. The
// service stores the rendered clip and returns its URL; the negotiation core
// attaches that URL to outgoing events so clients can play the response.
package speech

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

// Client is an HTTP client for a text-to-speech service exposing a single
// POST /synthesize endpoint.
type Client struct {
	baseURL string
	apiKey  string
	voice   string
	client  *http.Client
}

// New creates a speech Client for the given service base URL. voice selects
// the synthesis voice; empty means the service default. Synthesis can be
// slow, so the HTTP timeout is more generous than for the other collaborator
// clients.
func New(baseURL, apiKey, voice string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		voice:   voice,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice,omitempty"`
}

type synthesizeResponse struct {
	AudioURL string `json:"audioUrl"`
}

// Synthesize converts text to audio in the given language and returns the
// URL of the stored clip.
func (c *Client) Synthesize(ctx context.Context, text, lang string) (string, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:     text,
		Language: lang,
		Voice:    c.voice,
	})
	if err != nil {
		return "", fmt.Errorf("speech: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("speech: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("speech: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("speech: decode response: %w", err)
	}
	return out.AudioURL, nil
}

// Compile-time interface check.
var _ domain.SpeechSynthesizer = (*Client)(nil)
