package domain

import (
	"context"
	"io"
)

// Translator renders a bid message for a cross-language counterparty. The
// core treats the result as opaque text.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// SpeechSynthesizer converts response text to audio and returns a URL for
// the stored clip. The core treats the result as an opaque URL.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// PaymentGateway creates a payment order for an accepted negotiation. It is
// invoked strictly after the terminal transition; failures never un-accept.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, negotiationID, vendorID, customerID string, amount float64) (string, error)
}

// BlobWriter stores archive objects in cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
