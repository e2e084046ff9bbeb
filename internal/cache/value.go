package cache

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/payrelay/internal/clock"
	"golang.org/x/sync/singleflight"
)

const loadKey = "value"

// LoadFunc fetches a fresh value.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Value caches the result of a single loader for a fixed TTL. Failed loads
// are never cached, so the next Get retries. A zero TTL disables caching.
// Concurrent misses share one load.
type Value[T any] struct {
	group singleflight.Group

	mu        sync.Mutex
	ttl       time.Duration
	clock     clock.Clock
	load      LoadFunc[T]
	value     T
	fetchedAt time.Time
	valid     bool
}

func NewValue[T any](ttl time.Duration, c clock.Clock, load LoadFunc[T]) *Value[T] {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Value[T]{ttl: ttl, clock: c, load: load}
}

// Get returns the cached value while it is fresh and loads otherwise. The
// shared load is detached from any single caller's cancellation; each caller
// stops waiting when its own ctx is done.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	if value, ok := v.fresh(); ok {
		return value, nil
	}

	ch := v.group.DoChan(loadKey, func() (any, error) {
		value, err := v.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		v.store(value)
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (v *Value[T]) fresh() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.valid && v.ttl > 0 && v.clock.Now().Sub(v.fetchedAt) < v.ttl {
		return v.value, true
	}
	var zero T
	return zero, false
}

func (v *Value[T]) store(value T) {
	if v.ttl <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	v.fetchedAt = v.clock.Now()
	v.valid = true
}

// FetchedAt reports when the cached value was loaded.
func (v *Value[T]) FetchedAt() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fetchedAt, v.valid
}

// Invalidate drops the cached value.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.valid = false
	var zero T
	v.value = zero
}
