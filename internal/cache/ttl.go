package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/payrelay/internal/clock"
)

// Cache is a keyed in-memory store with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a Cache bounded by entry age and, optionally, entry count.
type TTLCache[K comparable, V any] struct {
	mu         sync.Mutex
	clock      clock.Clock
	maxEntries int
	entries    map[K]entry[V]
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	clock      clock.Clock
	maxEntries int
}

// WithClock overrides the time source used for expiry.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMaxEntries caps the number of live entries. When full, expired entries
// are swept first and then the entry closest to expiry is evicted.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

func NewTTLCache[K comparable, V any](opts ...Option) *TTLCache[K, V] {
	o := options{clock: clock.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[K, V]{
		clock:      o.clock,
		maxEntries: o.maxEntries,
		entries:    map[K]entry[V]{},
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value for ttl. A non-positive ttl is ignored.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache[K, V]) evictLocked(now time.Time) {
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}
	var (
		victim K
		oldest time.Time
		found  bool
	)
	for key, e := range c.entries {
		if !found || e.expiresAt.Before(oldest) {
			victim, oldest, found = key, e.expiresAt, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}

// Key joins trimmed, lower-cased parts into a cache key.
func Key(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}

var _ Cache[string, struct{}] = (*TTLCache[string, struct{}])(nil)
