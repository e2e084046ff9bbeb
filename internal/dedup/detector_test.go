package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/payrelay/internal/clock"
	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	"github.com/smallbiznis/payrelay/internal/ledger/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func seededStore(t *testing.T, partitions map[string][]string) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for name, ids := range partitions {
		require.NoError(t, store.CreatePartition(ctx, name, ledgerdomain.Header))
		for _, id := range ids {
			require.NoError(t, store.AppendRow(ctx, name, []string{id, "t", "1.00"}))
		}
	}
	return store
}

func TestExistsScansEveryPartition(t *testing.T) {
	store := seededStore(t, map[string][]string{
		"600000":  {"A1", "A2"},
		"TEST001": {"B1"},
	})
	d := New(Options{Store: store, Timeout: time.Second, Log: zaptest.NewLogger(t)})
	ctx := context.Background()

	assert.True(t, d.Exists(ctx, "A2"))
	assert.True(t, d.Exists(ctx, "B1"))
	assert.False(t, d.Exists(ctx, "C1"))
	assert.False(t, d.Exists(ctx, ""))
	// Matching is exact and case sensitive.
	assert.False(t, d.Exists(ctx, "a2"))
}

func TestExistsDegradesToNotFound(t *testing.T) {
	store := seededStore(t, map[string][]string{"600000": {"A1"}})
	d := New(Options{Store: store, Timeout: time.Second, Log: zaptest.NewLogger(t)})

	store.Fail("Partitions", errors.New("sheet api down"))
	assert.False(t, d.Exists(context.Background(), "A1"))

	store.Fail("Partitions", nil)
	store.Fail("FirstColumn", errors.New("read failed"))
	assert.False(t, d.Exists(context.Background(), "A1"))
}

// flakyStore fails reads of one partition only.
type flakyStore struct {
	*memory.Store
	broken string
}

func (f flakyStore) FirstColumn(ctx context.Context, name string) ([]string, error) {
	if name == f.broken {
		return nil, errors.New("partition unreadable")
	}
	return f.Store.FirstColumn(ctx, name)
}

func TestExistsSkipsUnreadablePartition(t *testing.T) {
	inner := memory.New()
	ctx := context.Background()
	require.NoError(t, inner.CreatePartition(ctx, "bad", ledgerdomain.Header))
	require.NoError(t, inner.CreatePartition(ctx, "good", ledgerdomain.Header))
	require.NoError(t, inner.AppendRow(ctx, "good", []string{"X9"}))

	d := New(Options{Store: flakyStore{Store: inner, broken: "bad"}, Timeout: time.Second, Log: zaptest.NewLogger(t)})
	assert.True(t, d.Exists(ctx, "X9"))
}

func TestHintShortCircuitsScan(t *testing.T) {
	store := memory.New()
	store.Fail("Partitions", errors.New("must not be called"))
	hints := NewMemoryHints(time.Hour, clock.NewFakeClock(time.Now()))
	d := New(Options{Store: store, Hints: hints, Timeout: time.Second, Log: zaptest.NewLogger(t)})
	ctx := context.Background()

	assert.False(t, d.Exists(ctx, "A1"))
	d.Remember(ctx, "A1")
	assert.True(t, d.Exists(ctx, "A1"))
}

func TestHintMissFallsThroughToLedger(t *testing.T) {
	store := seededStore(t, map[string][]string{"600000": {"A1"}})
	hints := NewMemoryHints(time.Hour, clock.NewFakeClock(time.Now()))
	d := New(Options{Store: store, Hints: hints, Timeout: time.Second, Log: zaptest.NewLogger(t)})

	assert.True(t, d.Exists(context.Background(), "A1"))
}

func TestMemoryHintsExpire(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC))
	hints := NewMemoryHints(time.Minute, clk)
	ctx := context.Background()

	require.NoError(t, hints.Remember(ctx, "A1"))
	seen, err := hints.Seen(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, seen)

	clk.Advance(2 * time.Minute)
	seen, err = hints.Seen(ctx, "A1")
	require.NoError(t, err)
	assert.False(t, seen)

	assert.Error(t, hints.Remember(ctx, ""))
}
