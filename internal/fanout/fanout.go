// Package fanout publishes negotiation lifecycle events to all interested
// subscribers over a signal bus. Events for one negotiation are published
// synchronously on the mutating request path, so a given subscriber observes
// them in the order they were produced.
package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// NegotiationChannel names the bus channel carrying bid-level events for one
// negotiation.
func NegotiationChannel(negotiationID string) string {
	return "ch:negotiation:" + negotiationID
}

// UserChannel names the bus channel carrying membership events for one user.
func UserChannel(userID string) string {
	return "ch:user:" + userID
}

// Filter selects which decoded events a subscriber receives. A nil Filter
// passes everything.
type Filter func(domain.Event) bool

// MatchNegotiation returns a Filter passing only events of one negotiation.
func MatchNegotiation(negotiationID string) Filter {
	return func(ev domain.Event) bool {
		return ev.EventNegotiationID() == negotiationID
	}
}

// MatchTopic returns a Filter passing only events of one topic.
func MatchTopic(topic domain.Topic) Filter {
	return func(ev domain.Event) bool {
		return ev.Topic() == topic
	}
}

// Fanout encodes typed events and routes them to per-negotiation and
// per-user channels on the underlying bus.
type Fanout struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// New creates a Fanout on top of the given signal bus.
func New(bus domain.SignalBus, logger *slog.Logger) *Fanout {
	return &Fanout{
		bus:    bus,
		logger: logger.With(slog.String("component", "fanout")),
	}
}

// Publish delivers ev to the negotiation channel, and additionally to both
// parties' user channels for membership events. Delivery is to currently
// connected subscribers only; there is no durable replay.
func (f *Fanout) Publish(ctx context.Context, ev domain.Event) error {
	data, err := domain.EncodeEvent(ev)
	if err != nil {
		return err
	}

	channels := []string{NegotiationChannel(ev.EventNegotiationID())}
	if created, ok := ev.(domain.NegotiationCreatedEvent); ok {
		channels = append(channels, UserChannel(created.VendorID), UserChannel(created.CustomerID))
	}

	for _, ch := range channels {
		if err := f.bus.Publish(ctx, ch, data); err != nil {
			return fmt.Errorf("fanout: publish %s to %s: %w", ev.Topic(), ch, err)
		}
	}
	return nil
}

// Subscribe opens a filtered stream of decoded events from the given bus
// channel. Payloads that fail to decode are logged and skipped. The stream
// closes when ctx is cancelled; it is not restartable.
func (f *Fanout) Subscribe(ctx context.Context, channel string, filter Filter) (<-chan domain.Event, error) {
	raw, err := f.bus.Subscribe(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("fanout: subscribe %s: %w", channel, err)
	}

	out := make(chan domain.Event, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-raw:
				if !ok {
					return
				}
				ev, err := domain.DecodeEvent(data)
				if err != nil {
					f.logger.Warn("dropping undecodable event",
						slog.String("channel", channel),
						slog.String("error", err.Error()),
					)
					continue
				}
				if filter != nil && !filter(ev) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
