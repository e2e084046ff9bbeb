package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/payrelay/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithTransactionID(ctx, "QK123")
	WithContext(ctx, base).Info("callback handled")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "QK123", fields["trans_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextWithoutValues(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("plain")

	require.Equal(t, 1, logs.Len())
	assert.Empty(t, logs.All()[0].ContextMap())
	assert.Nil(t, WithContext(context.Background(), nil))
}

func TestRecipientMasksAllButLastDigits(t *testing.T) {
	cases := map[string]string{
		"254712345678": "*********678",
		" 0712 ":       "*712",
		"12":           "**",
		"":             "",
	}
	for in, want := range cases {
		field := Recipient(in)
		assert.Equal(t, "recipient", field.Key)
		assert.Equal(t, want, field.String, in)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "chatty"})
	require.Error(t, err)
}

func TestNewDebugLowersLevel(t *testing.T) {
	log, err := New(nil, Config{Debug: true, Format: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM ledger_partitions WHERE name = ?", 0
	}, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "INSERT INTO ledger_rows (cells) VALUES (?)", 1
	}, errors.New("disk full"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "ledger.sql", entry.LoggerName)
	assert.Equal(t, "INSERT", entry.ContextMap()["operation"])

	gl.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT first_cell FROM ledger_rows", 3
	}, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func TestGormLoggerDropsParams(t *testing.T) {
	var filter gorm.ParamsFilter = NewGormLogger(nil, DefaultGormLoggerConfig())
	sql, params := filter.ParamsFilter(context.Background(), "SELECT 1 WHERE phone = ?", "254712345678")
	assert.Equal(t, "SELECT 1 WHERE phone = ?", sql)
	assert.Nil(t, params)
}
