package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topic names the closed set of fanout event kinds.
type Topic string

const (
	TopicNegotiationCreated Topic = "negotiationCreated"
	TopicBidCreated         Topic = "bidCreated"
	TopicBidAccepted        Topic = "bidAccepted"
	TopicBidRejected        Topic = "bidRejected"
	TopicNegotiationExpired Topic = "negotiationExpired"
)

// Event is implemented by every fanout payload. Each topic has exactly one
// concrete payload type so subscribers can switch on shape statically.
type Event interface {
	Topic() Topic
	EventNegotiationID() string
}

// NegotiationCreatedEvent announces a new negotiation to both parties.
type NegotiationCreatedEvent struct {
	NegotiationID string    `json:"negotiationId"`
	ProductID     string    `json:"productId"`
	VendorID      string    `json:"vendorId"`
	CustomerID    string    `json:"customerId"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (NegotiationCreatedEvent) Topic() Topic { return TopicNegotiationCreated }
func (e NegotiationCreatedEvent) EventNegotiationID() string { return e.NegotiationID }

// BidCreatedEvent announces a new offer on a live negotiation.
type BidCreatedEvent struct {
	NegotiationID     string     `json:"negotiationId"`
	BidID             string     `json:"bidId"`
	BidderType        BidderType `json:"bidderType"`
	BidderID          string     `json:"bidderId"`
	Amount            float64    `json:"amount"`
	Message           string     `json:"message,omitempty"`
	TranslatedMessage string     `json:"translatedMessage,omitempty"`
	SpokenResponseURL string     `json:"spokenResponseUrl,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func (BidCreatedEvent) Topic() Topic { return TopicBidCreated }
func (e BidCreatedEvent) EventNegotiationID() string { return e.NegotiationID }

// BidAcceptedEvent announces the terminal accepted outcome.
type BidAcceptedEvent struct {
	NegotiationID     string     `json:"negotiationId"`
	ProductID         string     `json:"productId"`
	AccepterID        string     `json:"accepterId"`
	AccepterType      BidderType `json:"accepterType"`
	Amount            float64    `json:"amount"`
	SpokenResponseURL string     `json:"spokenResponseUrl,omitempty"`
	ClosedAt          time.Time  `json:"closedAt"`
}

func (BidAcceptedEvent) Topic() Topic { return TopicBidAccepted }
func (e BidAcceptedEvent) EventNegotiationID() string { return e.NegotiationID }

// BidRejectedEvent announces the terminal rejected outcome.
type BidRejectedEvent struct {
	NegotiationID     string     `json:"negotiationId"`
	ProductID         string     `json:"productId"`
	RejecterID        string     `json:"rejecterId"`
	RejecterType      BidderType `json:"rejecterType"`
	Reason            string     `json:"reason,omitempty"`
	SpokenResponseURL string     `json:"spokenResponseUrl,omitempty"`
	ClosedAt          time.Time  `json:"closedAt"`
}

func (BidRejectedEvent) Topic() Topic { return TopicBidRejected }
func (e BidRejectedEvent) EventNegotiationID() string { return e.NegotiationID }

// NegotiationExpiredEvent announces a deadline-forced terminal transition.
type NegotiationExpiredEvent struct {
	NegotiationID string    `json:"negotiationId"`
	ProductID     string    `json:"productId"`
	ExpiredAt     time.Time `json:"expiredAt"`
}

func (NegotiationExpiredEvent) Topic() Topic { return TopicNegotiationExpired }
func (e NegotiationExpiredEvent) EventNegotiationID() string { return e.NegotiationID }

// envelope is the wire form carried over the signal bus.
type envelope struct {
	Topic   Topic           `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent marshals an event into its JSON wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("domain: marshal %s payload: %w", ev.Topic(), err)
	}
	data, err := json.Marshal(envelope{Topic: ev.Topic(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("domain: marshal %s envelope: %w", ev.Topic(), err)
	}
	return data, nil
}

// DecodeEvent unmarshals a wire envelope back into its concrete event type.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("domain: unmarshal envelope: %w", err)
	}

	var ev Event
	switch env.Topic {
	case TopicNegotiationCreated:
		var e NegotiationCreatedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("domain: unmarshal %s: %w", env.Topic, err)
		}
		ev = e
	case TopicBidCreated:
		var e BidCreatedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("domain: unmarshal %s: %w", env.Topic, err)
		}
		ev = e
	case TopicBidAccepted:
		var e BidAcceptedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("domain: unmarshal %s: %w", env.Topic, err)
		}
		ev = e
	case TopicBidRejected:
		var e BidRejectedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("domain: unmarshal %s: %w", env.Topic, err)
		}
		ev = e
	case TopicNegotiationExpired:
		var e NegotiationExpiredEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("domain: unmarshal %s: %w", env.Topic, err)
		}
		ev = e
	default:
		return nil, fmt.Errorf("domain: unknown event topic %q", env.Topic)
	}
	return ev, nil
}
