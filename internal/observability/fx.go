package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/payrelay/internal/observability/logger"
	"github.com/smallbiznis/payrelay/internal/observability/metrics"
	"github.com/smallbiznis/payrelay/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the logger, tracer provider, domain metrics and the
// Prometheus HTTP and notification collectors.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config { return cfg.logger() },
		func(cfg Config) tracing.Config { return cfg.tracing() },
		func(cfg Config) metrics.Config { return cfg.metrics() },
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.NewNotifyMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func (c Config) logger() logger.Config {
	debug := c.Debug()
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               debug,
		SamplingInitial:     c.LogSampleFirst,
		SamplingThereafter:  c.LogSampleAfter,
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}

func (c Config) tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
		Interval:         c.MetricsInterval,
	}
}
