package domain

import (
	"context"
	"time"
)

// SignalBus is the transport underneath the event fanout. Implementations
// must deliver payloads published on one channel to a given subscriber in
// publish order; cross-channel ordering is not required.
type SignalBus interface {
	// Publish sends a raw payload to every current subscriber of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a read-only stream of payloads for channel. Glob
	// patterns ("ch:negotiation:*") are supported. The stream is closed when
	// ctx is cancelled; there is no replay of earlier publishes.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter applies a per-key request budget over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
