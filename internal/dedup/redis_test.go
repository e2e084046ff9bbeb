package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisHintsUseTTL(t *testing.T) {
	mr, client := newRedis(t)
	hints := NewRedisHints(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, hints.Remember(ctx, "A1"))
	assert.True(t, mr.Exists("payrelay:dedup:hint:A1"))
	assert.Equal(t, time.Hour, mr.TTL("payrelay:dedup:hint:A1"))

	seen, err := hints.Seen(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Hour)
	seen, err = hints.Seen(ctx, "A1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisHintOutageFallsBackToScan(t *testing.T) {
	mr, client := newRedis(t)
	store := seededStore(t, map[string][]string{"600000": {"A1"}})
	d := New(Options{
		Store:   store,
		Hints:   NewRedisHints(client, time.Hour),
		Timeout: time.Second,
		Log:     zaptest.NewLogger(t),
	})

	mr.Close()
	assert.True(t, d.Exists(context.Background(), "A1"))
	assert.False(t, d.Exists(context.Background(), "B1"))
}

func TestClaimIsExclusive(t *testing.T) {
	mr, client := newRedis(t)
	claimer := NewClaimer(client, 30*time.Second)
	ctx := context.Background()

	token, ok, err := claimer.TryClaim(ctx, "A1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = claimer.TryClaim(ctx, "A1")
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token does not release someone else's claim.
	require.NoError(t, claimer.Release(ctx, "A1", "other-token"))
	assert.True(t, mr.Exists("payrelay:dedup:claim:A1"))

	require.NoError(t, claimer.Release(ctx, "A1", token))
	assert.False(t, mr.Exists("payrelay:dedup:claim:A1"))

	_, ok, err = claimer.TryClaim(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimExpires(t *testing.T) {
	mr, client := newRedis(t)
	claimer := NewClaimer(client, 30*time.Second)
	ctx := context.Background()

	_, ok, err := claimer.TryClaim(ctx, "A1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(time.Minute)
	_, ok, err = claimer.TryClaim(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimerValidation(t *testing.T) {
	var nilClaimer *Claimer
	_, _, err := nilClaimer.TryClaim(context.Background(), "A1")
	assert.Error(t, err)
	assert.NoError(t, nilClaimer.Release(context.Background(), "A1", "t"))
	assert.Nil(t, NewClaimer(nil, time.Second))

	_, client := newRedis(t)
	_, _, err = NewClaimer(client, time.Second).TryClaim(context.Background(), " ")
	assert.Error(t, err)
	_, _, err = NewClaimer(client, 0).TryClaim(context.Background(), "A1")
	assert.Error(t, err)
}
