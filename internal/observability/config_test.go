package observability

import (
	"testing"
	"time"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFallsBackToAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{AppName: "relay", Environment: "production", AppVersion: "1.2.3", OTLPEndpoint: "collector:4317"})

	assert.Equal(t, "relay", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 10*time.Second, cfg.MetricsInterval)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP/protobuf")
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "30s")
	t.Setenv("LOG_SAMPLE_FIRST", "-4")

	cfg := LoadConfig(config.Config{Environment: "production"})

	assert.Equal(t, "payrelay", cfg.ServiceName)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http/protobuf", cfg.OtelExporterProtocol)
	assert.Equal(t, 30*time.Second, cfg.MetricsInterval)
	assert.Equal(t, 100, cfg.LogSampleFirst)
	assert.True(t, cfg.Debug())
	assert.Equal(t, cfg.MetricsInterval, cfg.metrics().Interval)
	assert.True(t, cfg.logger().IncludeStackOnError)
}
