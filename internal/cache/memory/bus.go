package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// subBufferSize is the per-subscriber channel buffer. Publishes to a full
// subscriber are dropped, matching the non-durable fanout contract.
const subBufferSize = 128

// SignalBus implements domain.SignalBus with in-process channels. Payloads
// published on one channel reach each subscriber in publish order.
type SignalBus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	pattern string
	out     chan []byte
}

// NewSignalBus creates an empty in-process SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[*subscriber]struct{})}
}

// Publish delivers payload to every current subscriber whose pattern matches
// channel. It never blocks on a slow subscriber.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	for s := range sb.subs {
		if !channelMatches(s.pattern, channel) {
			continue
		}
		select {
		case s.out <- payload:
		default:
			// Subscriber buffer full; drop.
		}
	}
	return nil
}

// Subscribe registers a subscriber for channel (glob "*" suffix supported)
// and returns its payload stream. The stream closes when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &subscriber{
		pattern: channel,
		out:     make(chan []byte, subBufferSize),
	}

	sb.mu.Lock()
	sb.subs[s] = struct{}{}
	sb.mu.Unlock()

	go func() {
		<-ctx.Done()
		sb.mu.Lock()
		delete(sb.subs, s)
		sb.mu.Unlock()
		close(s.out)
	}()

	return s.out, nil
}

// channelMatches reports whether a concrete channel name matches a
// subscription pattern. Only a trailing "*" wildcard is supported, which is
// all the hub and fanout use.
func channelMatches(pattern, channel string) bool {
	if pattern == channel {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(channel, pattern[:len(pattern)-1])
	}
	return false
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
