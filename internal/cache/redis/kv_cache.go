package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trustscope/trustscope/internal/domain"
)

// KVCache implements domain.KVCache on Redis strings with native TTLs.
type KVCache struct {
	rdb    *redis.Client
	prefix string
}

var _ domain.KVCache = (*KVCache)(nil)

// NewKVCache creates a KVCache backed by the given Client. All keys are
// namespaced under the prefix so several caches can share one database.
func NewKVCache(c *Client, prefix string) *KVCache {
	return &KVCache{rdb: c.Underlying(), prefix: prefix}
}

func (kc *KVCache) key(key string) string {
	return kc.prefix + ":" + key
}

func (kc *KVCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := kc.rdb.Get(ctx, kc.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, true, nil
}

func (kc *KVCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := kc.rdb.Set(ctx, kc.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (kc *KVCache) Delete(ctx context.Context, key string) error {
	if err := kc.rdb.Del(ctx, kc.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}
