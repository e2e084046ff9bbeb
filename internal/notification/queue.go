package notification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/payrelay/internal/clock"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("notification_queue_full")
	ErrQueueClosed = errors.New("notification_queue_closed")
)

// Deliverer sends the notification for one payment.
type Deliverer interface {
	Deliver(ctx context.Context, rec paymentdomain.PaymentRecord) error
}

type Job struct {
	ID         ulid.ULID
	Record     paymentdomain.PaymentRecord
	EnqueuedAt time.Time
}

type Result struct {
	Job     Job
	Err     error
	Elapsed time.Duration
}

type QueueOptions struct {
	Workers   int
	QueueSize int
	// JobTimeout bounds one job across every contact. Zero means no bound
	// beyond the sender's own timeout.
	JobTimeout time.Duration
	Clock      clock.Clock
	Log        *zap.Logger
	Metrics    *obsmetrics.NotifyMetrics
	// OnResult is called from the worker goroutine after every job.
	OnResult func(Result)
}

// Queue runs notifications on a fixed worker pool fed by a bounded channel.
type Queue struct {
	deliverer Deliverer
	opts      QueueOptions
	log       *zap.Logger

	jobs     chan Job
	mu       sync.RWMutex
	started  bool
	closed   bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	entropyM sync.Mutex
	entropy  *ulid.MonotonicEntropy
}

func NewQueue(deliverer Deliverer, opts QueueOptions) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.Clock == nil {
		opts.Clock = clock.SystemClock{}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		deliverer: deliverer,
		opts:      opts,
		log:       log.Named("notification.queue"),
		jobs:      make(chan Job, opts.QueueSize),
		stopCh:    make(chan struct{}),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.log.Info("notification workers started",
		zap.Int("workers", q.opts.Workers),
		zap.Int("queue_size", q.opts.QueueSize),
	)
}

// Enqueue never blocks. A full queue drops the job.
func (q *Queue) Enqueue(ctx context.Context, rec paymentdomain.PaymentRecord) (ulid.ULID, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ulid.ULID{}, ErrQueueClosed
	}

	job := Job{ID: q.newID(), Record: rec, EnqueuedAt: q.opts.Clock.Now()}
	select {
	case q.jobs <- job:
		q.opts.Metrics.SetQueueDepth(len(q.jobs))
		q.log.Debug("notification queued",
			zap.String("job_id", job.ID.String()),
			zap.String("trans_id", rec.TransactionID),
		)
		return job.ID, nil
	default:
		q.opts.Metrics.ObserveDropped()
		q.log.Error("notification queue full, dropping job",
			zap.String("trans_id", rec.TransactionID),
			zap.Int("queue_size", q.opts.QueueSize),
		)
		return ulid.ULID{}, ErrQueueFull
	}
}

// Stop refuses new jobs, drains what is queued and waits for the workers
// or ctx, whichever ends first.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(q.stopCh)
		return fmt.Errorf("drain notification queue: %w", ctx.Err())
	}
}

func (q *Queue) Depth() int {
	return len(q.jobs)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		select {
		case <-q.stopCh:
			return
		default:
		}
		q.run(job)
	}
}

func (q *Queue) run(job Job) {
	ctx := context.Background()
	if q.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.JobTimeout)
		defer cancel()
	}

	start := q.opts.Clock.Now()
	err := q.deliver(ctx, job)
	elapsed := q.opts.Clock.Now().Sub(start)

	q.opts.Metrics.ObserveJob(elapsed, err)
	q.opts.Metrics.SetQueueDepth(len(q.jobs))
	if err != nil {
		q.log.Warn("notification job failed",
			zap.String("job_id", job.ID.String()),
			zap.String("trans_id", job.Record.TransactionID),
			zap.Error(err),
		)
	}
	if q.opts.OnResult != nil {
		q.opts.OnResult(Result{Job: job, Err: err, Elapsed: elapsed})
	}
}

func (q *Queue) deliver(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification panic: %v", r)
		}
	}()
	return q.deliverer.Deliver(ctx, job.Record)
}

func (q *Queue) newID() ulid.ULID {
	q.entropyM.Lock()
	defer q.entropyM.Unlock()
	return ulid.MustNew(ulid.Timestamp(q.opts.Clock.Now()), q.entropy)
}
