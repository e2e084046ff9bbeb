package memory

import (
	"context"
	"errors"
	"testing"

	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	"github.com/smallbiznis/payrelay/internal/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	ledgertest.RunStoreSuite(t, func(t *testing.T) ledgerdomain.Store { return New() })
}

func TestStoreFailureInjection(t *testing.T) {
	store := New()
	boom := errors.New("boom")
	store.Fail("Partitions", boom)

	_, err := store.Partitions(context.Background())
	assert.ErrorIs(t, err, boom)

	store.Fail("Partitions", nil)
	_, err = store.Partitions(context.Background())
	require.NoError(t, err)
}
