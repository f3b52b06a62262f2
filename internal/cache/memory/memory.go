// Package memory provides in-process implementations of the cache, rate
// limiter, and signal bus contracts. They are the default tier when Redis is
// not configured and the only tier in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/trustscope/trustscope/internal/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// KVCache is a TTL map guarded by a RWMutex. Expired entries are evicted
// lazily on read and swept opportunistically on write.
type KVCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

var _ domain.KVCache = (*KVCache)(nil)

func NewKVCache() *KVCache {
	return &KVCache{entries: make(map[string]entry), now: time.Now}
}

func (c *KVCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (c *KVCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	// Sweep a handful of expired entries so the map does not grow without
	// bound under a churning key space.
	swept := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			swept++
			if swept >= 16 {
				break
			}
		}
	}
	expiresAt := now.Add(ttl)
	if ttl == 0 {
		// Zero ttl means no expiry.
		expiresAt = now.AddDate(100, 0, 0)
	}
	c.entries[key] = entry{value: stored, expiresAt: expiresAt}
	return nil
}

func (c *KVCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// RateLimiter is a token bucket per key: limit tokens refilled in full every
// window. Allow reports false when the bucket for the key is empty.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens   int
	resetsAt time.Time
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.After(b.resetsAt) {
		b = &bucket{tokens: limit, resetsAt: now.Add(window)}
		l.buckets[key] = b
	}
	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// SignalBus fans messages out to channel subscribers. Slow subscribers drop
// messages rather than block publishers.
type SignalBus struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

var _ domain.SignalBus = (*SignalBus)(nil)

func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string][]chan []byte)}
}

func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a receive channel for a topic. The channel closes when
// ctx is done.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
