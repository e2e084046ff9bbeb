package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestServeGraphIsComplete(t *testing.T) {
	for _, backend := range []string{
		config.LedgerBackendMemory,
		config.LedgerBackendWorkbook,
		config.LedgerBackendSheets,
		config.LedgerBackendSQL,
	} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Config{Ledger: config.LedgerConfig{Backend: backend}}
			require.NoError(t, fx.ValidateApp(serveOptions(cfg)...))
		})
	}
}

func TestServeOptionsWireDatabaseOnlyForSQL(t *testing.T) {
	memory := serveOptions(config.Config{Ledger: config.LedgerConfig{Backend: config.LedgerBackendMemory}})
	sql := serveOptions(config.Config{Ledger: config.LedgerConfig{Backend: config.LedgerBackendSQL}})
	assert.Len(t, sql, len(memory)+2)
}

func TestConfigCommandPrintsRedactedSummary(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", config.LedgerBackendMemory)
	t.Setenv("FASTMESSAGE_API_KEY", "super-secret")

	cmd := configCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	var summary map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, config.LedgerBackendMemory, summary["ledger_backend"])
	assert.Equal(t, "***", summary["sms_api_key"])
	assert.NotContains(t, out.String(), "super-secret")
}

func TestConfigCommandRejectsUnknownBackend(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "paper")

	cmd := configCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SilenceUsage = true
	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidLedgerBackend)
}
