package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/payrelay/internal/config"
)

// Config is the observability slice of the process configuration. Values come
// from the standard OTEL_* and LOG_* variables with the app config as
// fallback.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel       string
	LogFormat      string
	LogSampleFirst int
	LogSampleAfter int

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
	MetricsInterval      time.Duration
}

func LoadConfig(cfg config.Config) Config {
	service := strings.TrimSpace(cfg.AppName)
	if service == "" {
		service = "payrelay"
	}

	protocol := envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	protocol = envString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", protocol)

	return Config{
		ServiceName:          service,
		Environment:          envString("DEPLOYMENT_ENV", cfg.Environment),
		Version:              envString("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             strings.ToLower(envString("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(envString("LOG_FORMAT", "json")),
		LogSampleFirst:       envInt("LOG_SAMPLE_FIRST", 100),
		LogSampleAfter:       envInt("LOG_SAMPLE_AFTER", 100),
		OtelEnabled:          envBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(protocol),
		OtelSamplingRatio:    envFloat("OTEL_SAMPLING_RATIO", 0.1),
		MetricsInterval:      envDuration("OTEL_METRIC_EXPORT_INTERVAL", 10*time.Second),
	}
}

// Debug is true for debug logging or any non-deployed environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func envString(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
