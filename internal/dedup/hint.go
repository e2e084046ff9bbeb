package dedup

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payrelay/internal/cache"
	"github.com/smallbiznis/payrelay/internal/clock"
)

const (
	keyHint           = "payrelay:dedup:hint:%s"
	maxMemoryHints    = 10000
	hintSourceRedis   = "redis"
	hintSourceMemory  = "memory"
	defaultHintExpiry = 24 * time.Hour
)

// Hints remembers recently recorded transaction ids. A hit means the id was
// recorded; a miss proves nothing.
type Hints interface {
	Name() string
	Seen(ctx context.Context, transID string) (bool, error)
	Remember(ctx context.Context, transID string) error
}

type RedisHints struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHints(client *redis.Client, ttl time.Duration) *RedisHints {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultHintExpiry
	}
	return &RedisHints{client: client, ttl: ttl}
}

func (h *RedisHints) Name() string { return hintSourceRedis }

func (h *RedisHints) Seen(ctx context.Context, transID string) (bool, error) {
	n, err := h.client.Exists(ctx, hintKey(transID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (h *RedisHints) Remember(ctx context.Context, transID string) error {
	if transID == "" {
		return errors.New("hint id is empty")
	}
	return h.client.Set(ctx, hintKey(transID), "1", h.ttl).Err()
}

// MemoryHints is the single-instance fallback when no Redis is configured.
type MemoryHints struct {
	cache *cache.TTLCache[string, struct{}]
	ttl   time.Duration
}

func NewMemoryHints(ttl time.Duration, c clock.Clock) *MemoryHints {
	if ttl <= 0 {
		ttl = defaultHintExpiry
	}
	return &MemoryHints{
		cache: cache.NewTTLCache[string, struct{}](cache.WithClock(c), cache.WithMaxEntries(maxMemoryHints)),
		ttl:   ttl,
	}
}

func (h *MemoryHints) Name() string { return hintSourceMemory }

func (h *MemoryHints) Seen(_ context.Context, transID string) (bool, error) {
	_, ok := h.cache.Get(transID)
	return ok, nil
}

func (h *MemoryHints) Remember(_ context.Context, transID string) error {
	if transID == "" {
		return errors.New("hint id is empty")
	}
	h.cache.Set(transID, struct{}{}, h.ttl)
	return nil
}

var (
	_ Hints = (*RedisHints)(nil)
	_ Hints = (*MemoryHints)(nil)
)
