// Package ledgertest holds behaviour checks shared by every ledger store.
package ledgertest

import (
	"context"
	"errors"
	"testing"

	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreSuite exercises the Store contract against a fresh store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) ledgerdomain.Store) {
	t.Run("empty store has no partitions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		names, err := store.Partitions(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		ok, err := store.HasPartition(ctx, "600000")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("create then append keeps header first", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.CreatePartition(ctx, "600000", ledgerdomain.Header))
		ok, err := store.HasPartition(ctx, "600000")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, store.AppendRow(ctx, "600000", []string{"X1", "t", "10.00"}))
		require.NoError(t, store.AppendRow(ctx, "600000", []string{"X2", "t", "20.00"}))

		col, err := store.FirstColumn(ctx, "600000")
		require.NoError(t, err)
		assert.Equal(t, []string{"Transaction ID", "X1", "X2"}, col)
	})

	t.Run("second create reports existing partition", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.CreatePartition(ctx, "TEST001", ledgerdomain.Header))
		err := store.CreatePartition(ctx, "TEST001", ledgerdomain.Header)
		assert.True(t, errors.Is(err, ledgerdomain.ErrPartitionExists), "got %v", err)
	})

	t.Run("partitions listed in creation order", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, name := range []string{"600001", "600000", "TEST002"} {
			require.NoError(t, store.CreatePartition(ctx, name, ledgerdomain.Header))
		}
		names, err := store.Partitions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"600001", "600000", "TEST002"}, names)
	})

	t.Run("append to missing partition fails", func(t *testing.T) {
		store := newStore(t)
		err := store.AppendRow(context.Background(), "missing", []string{"X"})
		assert.Error(t, err)
	})
}
