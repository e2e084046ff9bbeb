package source

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/directory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestParseRows(t *testing.T) {
	rows := [][]string{
		{"Account Number", "Team", "Phones"},
		{"600000", "Alpha Team", "0712345678, 254733000111"},
		{"", "Orphan", "0700000000"},
		{},
		{"600001"},
		{"600000", "Shadow", "0799999999"},
		{"TEST001", " ", "0711111111;0722222222 0733333333"},
	}

	accounts := ParseRows(rows, domain.SourceSheets, zaptest.NewLogger(t))
	require.Len(t, accounts, 3)

	assert.Equal(t, domain.Account{
		AccountNumber: "600000",
		TeamName:      "Alpha Team",
		ContactPhones: []string{"0712345678", "254733000111"},
		Source:        domain.SourceSheets,
	}, accounts[0])
	assert.Equal(t, "600001", accounts[1].TeamName)
	assert.Empty(t, accounts[1].ContactPhones)
	assert.Equal(t, []string{"0711111111", "0722222222", "0733333333"}, accounts[2].ContactPhones)
	assert.Equal(t, "TEST001", accounts[2].TeamName)
}

func TestParseRowsWithoutHeader(t *testing.T) {
	accounts := ParseRows([][]string{{"600000"}, {"accounting"}}, "test", nil)
	require.Len(t, accounts, 2)
	assert.Equal(t, "accounting", accounts[1].AccountNumber)
}

type stubReader struct {
	rows [][]string
	err  error
	rng  string
}

func (s *stubReader) ReadRange(ctx context.Context, a1Range string) ([][]string, error) {
	s.rng = a1Range
	return s.rows, s.err
}

func TestSheetsSource(t *testing.T) {
	reader := &stubReader{rows: [][]string{{"600000", "Alpha", "0712345678"}}}
	src := NewSheets(reader, "Accounts!A:C", zap.NewNop())

	accounts, err := src.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Accounts!A:C", reader.rng)
	require.Len(t, accounts, 1)
	assert.Equal(t, domain.SourceSheets, src.Name())

	reader.err = errors.New("quota exceeded")
	_, err = src.Accounts(context.Background())
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestLocalSourcePrecedence(t *testing.T) {
	holder := config.NewStaticAccountsHolder("accounts.yml", []config.AccountEntry{
		{AccountNumber: "600000", TeamName: "Alpha", ContactPhones: []string{"0712345678"}},
	})
	local := NewLocal(holder, config.DirectoryConfig{PredeterminedAccounts: []string{"600000", " 700000 ", ""}})

	accounts, err := local.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, domain.SourceFile, accounts[0].Source)
	assert.Equal(t, []string{"0712345678"}, accounts[0].ContactPhones)
	assert.Equal(t, "700000", accounts[1].AccountNumber)
	assert.Equal(t, domain.SourceEnv, accounts[1].Source)
}

func TestLocalSourceBuiltinFallback(t *testing.T) {
	local := NewLocal(nil, config.DirectoryConfig{})
	accounts, err := local.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, len(BuiltinAccounts))
	assert.Equal(t, "600000", accounts[0].AccountNumber)
	assert.Equal(t, domain.SourceBuiltin, accounts[0].Source)

	local = NewLocal(nil, config.DirectoryConfig{DisableBuiltinFallback: true})
	accounts, err = local.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
