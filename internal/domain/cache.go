package domain

import (
	"context"
	"time"
)

// SnapshotCache caches the serialized correlation snapshot so repeated
// dashboard queries do not re-fetch candles from the venue.
type SnapshotCache interface {
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Get returns ErrNotFound on a cache miss.
	Get(ctx context.Context, key string) ([]byte, error)
}

// SignalBus provides pub/sub fan-out of monitor events to live consumers
// (the WebSocket hub, external subscribers).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
