package domain

import (
	"context"
	"time"
)

// KVCache is a byte-oriented cache with per-entry TTL. Implementations check
// expiry lazily at read time; there is no background sweep. A zero ttl on Set
// means "no expiry".
type KVCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RateLimiter limits the number of operations per key within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides fire-and-forget pub/sub between pipeline stages and the
// WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
