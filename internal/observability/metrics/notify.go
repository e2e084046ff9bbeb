package metrics

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	NotifyOutcomeSent    = "sent"
	NotifyOutcomeFailed  = "failed"
	NotifyOutcomeDropped = "dropped"
)

const (
	NotifyReasonDeadlineExceeded = "deadline_exceeded"
	NotifyReasonCanceled         = "canceled"
	NotifyReasonTransport        = "transport"
	NotifyReasonRejected         = "rejected"
	NotifyReasonQueueFull        = "queue_full"
	NotifyReasonUnknown          = "unknown"
)

// NotifyMetrics captures notification queue health.
type NotifyMetrics struct {
	jobs       *prometheus.CounterVec
	errors     *prometheus.CounterVec
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
}

// NewNotifyMetrics registers the notification queue collectors on registerer.
func NewNotifyMetrics(registerer prometheus.Registerer, cfg Config) (*NotifyMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "payrelay_notify_jobs_total",
		Help:        "Notification jobs by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "payrelay_notify_errors_total",
		Help:        "Notification failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "payrelay_notify_send_duration_seconds",
		Help:        "Time spent delivering a single notification.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		ConstLabels: constLabels,
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "payrelay_notify_queue_depth",
		Help:        "Notification jobs waiting for a worker.",
		ConstLabels: constLabels,
	})

	for _, collector := range []prometheus.Collector{jobs, errs, duration, queueDepth} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}

	return &NotifyMetrics{
		jobs:       jobs,
		errors:     errs,
		duration:   duration,
		queueDepth: queueDepth,
	}, nil
}

// ObserveJob records the outcome of one delivered or failed job.
func (m *NotifyMetrics) ObserveJob(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.jobs.WithLabelValues(NotifyOutcomeFailed).Inc()
		m.errors.WithLabelValues(ClassifyNotifyError(err)).Inc()
		return
	}
	m.jobs.WithLabelValues(NotifyOutcomeSent).Inc()
}

// ObserveDropped records a job that never reached a worker.
func (m *NotifyMetrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(NotifyOutcomeDropped).Inc()
	m.errors.WithLabelValues(NotifyReasonQueueFull).Inc()
}

func (m *NotifyMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// ClassifyNotifyError maps a delivery error to a metric reason.
func ClassifyNotifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NotifyReasonDeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return NotifyReasonCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NotifyReasonDeadlineExceeded
		}
		return NotifyReasonTransport
	}
	var rejected interface{ Rejected() bool }
	if errors.As(err, &rejected) && rejected.Rejected() {
		return NotifyReasonRejected
	}
	return NotifyReasonUnknown
}
