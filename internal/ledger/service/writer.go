package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/payrelay/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/payment/format"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxPartitionName = 100

type Params struct {
	fx.In

	Store      ledgerdomain.Store
	Cfg        config.Config
	Clock      clock.Clock
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Writer struct {
	store      ledgerdomain.Store
	timeout    time.Duration
	clock      clock.Clock
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
}

func NewWriter(p Params) *Writer {
	return &Writer{
		store:      p.Store,
		timeout:    p.Cfg.Ledger.Timeout,
		clock:      p.Clock,
		log:        p.Log.Named("ledger.writer"),
		obsMetrics: p.ObsMetrics,
	}
}

// Append writes rec as one row of the partition named after partitionKey,
// creating the partition and its header first when needed.
func (w *Writer) Append(ctx context.Context, partitionKey string, rec paymentdomain.PaymentRecord) bool {
	name := Sanitize(partitionKey)
	log := w.log.With(
		zap.String("trans_id", rec.TransactionID),
		zap.String("partition", name),
		zap.String("backend", w.store.Backend()),
	)

	ctx, span := otel.Tracer("payrelay/ledger").Start(ctx, "ledger.append")
	span.SetAttributes(attribute.String("ledger.backend", w.store.Backend()))
	defer span.End()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	err := w.append(ctx, name, rec)
	w.obsMetrics.RecordLedgerAppend(ctx, w.store.Backend(), err == nil, time.Since(start))
	if err != nil {
		span.RecordError(obstracing.SafeError(err))
		span.SetStatus(codes.Error, "ledger append failed")
		log.Error("ledger append failed, payment accepted but not recorded", zap.Error(err))
		return false
	}
	log.Info("ledger row appended")
	return true
}

func (w *Writer) append(ctx context.Context, name string, rec paymentdomain.PaymentRecord) error {
	exists, err := w.store.HasPartition(ctx, name)
	if err != nil {
		return fmt.Errorf("check partition: %w", err)
	}
	if !exists {
		err := w.store.CreatePartition(ctx, name, ledgerdomain.Header)
		switch {
		case errors.Is(err, ledgerdomain.ErrPartitionExists):
			w.log.Debug("partition created concurrently", zap.String("partition", name))
		case err != nil:
			return fmt.Errorf("create partition: %w", err)
		default:
			w.log.Info("ledger partition created", zap.String("partition", name))
		}
	}
	if err := w.store.AppendRow(ctx, name, Row(rec, w.clock.Now())); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// Row renders rec in header column order.
func Row(rec paymentdomain.PaymentRecord, recordedAt time.Time) []string {
	return []string{
		rec.TransactionID,
		format.Timestamp(rec.Timestamp),
		format.PlainAmount(rec.Amount),
		format.Name(rec.PayerName),
		format.Phone(rec.PayerPhone),
		rec.AccountNumber,
		recordedAt.UTC().Format(time.RFC3339),
	}
}

// Sanitize maps an account number to a partition name the remote
// spreadsheet accepts.
func Sanitize(key string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(key) {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':', '\'':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		return "_"
	}
	if utf8.RuneCountInString(name) > maxPartitionName {
		name = string([]rune(name)[:maxPartitionName])
	}
	return name
}

var _ ledgerdomain.Writer = (*Writer)(nil)
