package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache using plain Redis string
// values with a TTL. Payloads are opaque; the service layer owns the
// serialization.
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

// Set stores a payload under key for at most ttl.
func (sc *SnapshotCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := sc.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", key, err)
	}
	return nil
}

// Get retrieves a payload, returning domain.ErrNotFound when the key is
// missing or expired.
func (sc *SnapshotCache) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := sc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get snapshot %s: %w", key, err)
	}
	return payload, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
