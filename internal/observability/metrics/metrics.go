package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	Interval         time.Duration
}

// Metrics holds the relay's domain instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	callbacks     metric.Int64Counter
	ledgerAppends metric.Int64Counter
	ledgerLatency metric.Float64Histogram
	dedupHits     metric.Int64Counter
	smsSends      metric.Int64Counter
	accountLoads  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Named("metrics").Info("otlp metrics exporter ready",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New creates the domain instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "payrelay"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&m.callbacks, "payrelay_callbacks_total", "Gateway requests by endpoint and outcome"},
		{&m.ledgerAppends, "payrelay_ledger_appends_total", "Ledger row appends by backend and outcome"},
		{&m.dedupHits, "payrelay_duplicate_callbacks_total", "Callbacks rejected as already recorded"},
		{&m.smsSends, "payrelay_sms_sends_total", "SMS sends by provider and outcome"},
		{&m.accountLoads, "payrelay_account_loads_total", "Remote account directory fetches"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.target = counter
	}

	latency, err := meter.Float64Histogram("payrelay_ledger_append_duration_seconds",
		metric.WithDescription("Ledger append latency including partition creation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("histogram payrelay_ledger_append_duration_seconds: %w", err)
	}
	m.ledgerLatency = latency

	return m, nil
}

// RecordCallback counts a finished callback or validation request.
func (m *Metrics) RecordCallback(ctx context.Context, endpoint, result, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("result", strings.TrimSpace(result)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.callbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerAppend counts one append attempt and its latency.
func (m *Metrics) RecordLedgerAppend(ctx context.Context, backend string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	set := metric.WithAttributes(FilterAttributes(
		attribute.String("backend", strings.TrimSpace(backend)),
		attribute.String("result", resultLabel(ok)),
	)...)
	m.ledgerAppends.Add(ctx, 1, set)
	m.ledgerLatency.Record(ctx, elapsed.Seconds(), set)
}

// RecordDuplicate counts callbacks rejected as already recorded.
func (m *Metrics) RecordDuplicate(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.dedupHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSMSSend counts notification attempts.
func (m *Metrics) RecordSMSSend(ctx context.Context, provider string, ok bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("result", resultLabel(ok)),
	)
	m.smsSends.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAccountLoad counts account directory fetches per source.
func (m *Metrics) RecordAccountLoad(ctx context.Context, source string, ok bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("result", resultLabel(ok)),
	)
	m.accountLoads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"result":      {},
	"reason":      {},
	"backend":     {},
	"source":      {},
	"provider":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
