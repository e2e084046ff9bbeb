// Package dedup answers whether a transaction id was already recorded.
package dedup

import (
	"context"
	"time"

	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const sourceLedger = "ledger"

type Options struct {
	Store   ledgerdomain.Store
	Hints   Hints
	Timeout time.Duration
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics
}

// Detector scans the ledger for a transaction id. Faults degrade to "not
// found" so an unavailable ledger never rejects a payment.
type Detector struct {
	store   ledgerdomain.Store
	hints   Hints
	timeout time.Duration
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func New(opts Options) *Detector {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{
		store:   opts.Store,
		hints:   opts.Hints,
		timeout: opts.Timeout,
		log:     log.Named("dedup"),
		metrics: opts.Metrics,
	}
}

// Exists reports whether transID appears in column A of any partition.
func (d *Detector) Exists(ctx context.Context, transID string) bool {
	if transID == "" {
		return false
	}
	log := d.log.With(zap.String("trans_id", transID))

	ctx, span := otel.Tracer("payrelay/dedup").Start(ctx, "dedup.exists")
	defer span.End()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if d.hints != nil {
		seen, err := d.hints.Seen(ctx, transID)
		switch {
		case err != nil:
			log.Warn("dedup hint lookup failed", zap.String("hints", d.hints.Name()), zap.Error(err))
		case seen:
			span.SetAttributes(attribute.String("dedup.source", d.hints.Name()))
			d.metrics.RecordDuplicate(ctx, d.hints.Name())
			return true
		}
	}

	found := d.scan(ctx, transID, log)
	span.SetAttributes(attribute.Bool("dedup.found", found))
	if found {
		d.metrics.RecordDuplicate(ctx, sourceLedger)
	}
	return found
}

func (d *Detector) scan(ctx context.Context, transID string, log *zap.Logger) bool {
	if d.store == nil {
		return false
	}
	partitions, err := d.store.Partitions(ctx)
	if err != nil {
		log.Warn("dedup partition listing failed, treating as new", zap.Error(err))
		return false
	}
	for _, name := range partitions {
		if ctx.Err() != nil {
			log.Warn("dedup scan interrupted, treating as new", zap.Error(ctx.Err()))
			return false
		}
		col, err := d.store.FirstColumn(ctx, name)
		if err != nil {
			log.Warn("dedup partition read failed, skipping", zap.String("partition", name), zap.Error(err))
			continue
		}
		for _, cell := range col {
			if cell == transID {
				log.Info("duplicate transaction found", zap.String("partition", name))
				return true
			}
		}
	}
	return false
}

// Remember records transID in the hint cache after a successful append.
func (d *Detector) Remember(ctx context.Context, transID string) {
	if d.hints == nil || transID == "" {
		return
	}
	if err := d.hints.Remember(ctx, transID); err != nil {
		d.log.Warn("dedup hint write failed", zap.String("trans_id", transID), zap.Error(err))
	}
}
