package service

import (
	"context"

	"github.com/oklog/ulid/v2"
	callbackdomain "github.com/smallbiznis/payrelay/internal/callback/domain"
	directorydomain "github.com/smallbiznis/payrelay/internal/directory/domain"
	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	obscontext "github.com/smallbiznis/payrelay/internal/observability/context"
	"github.com/smallbiznis/payrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/payment/normalizer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	EndpointCallback = "callback"
	EndpointValidate = "validate"
	EndpointDebug    = "debug_write"
)

// Metric reasons stay low-cardinality; the full text goes to ResultDesc.
const (
	reasonInvalidJSON    = "invalid_json"
	reasonValidation     = "validation"
	reasonDuplicate      = "duplicate"
	reasonInvalidAccount = "invalid_account"
)

type DuplicateDetector interface {
	Exists(ctx context.Context, transID string) bool
	Remember(ctx context.Context, transID string)
}

type Notifier interface {
	Enqueue(ctx context.Context, rec paymentdomain.PaymentRecord) (ulid.ULID, error)
}

type Claimer interface {
	TryClaim(ctx context.Context, transID string) (string, bool, error)
	Release(ctx context.Context, transID, token string) error
}

type Options struct {
	Detector  DuplicateDetector
	Directory directorydomain.Service
	Ledger    ledgerdomain.Writer
	// Notifier and Claimer are optional.
	Notifier Notifier
	Claimer  Claimer
	Log      *zap.Logger
	Metrics  *obsmetrics.Metrics
}

type Service struct {
	detector  DuplicateDetector
	directory directorydomain.Service
	ledger    ledgerdomain.Writer
	notifier  Notifier
	claimer   Claimer
	log       *zap.Logger
	metrics   *obsmetrics.Metrics
}

func New(opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		detector:  opts.Detector,
		directory: opts.Directory,
		ledger:    opts.Ledger,
		notifier:  opts.Notifier,
		claimer:   opts.Claimer,
		log:       log.Named("callback.service"),
		metrics:   opts.Metrics,
	}
}

// HandleCallback runs one gateway callback to its terminal result. Only
// input and business-rule failures reject; downstream faults are logged.
func (s *Service) HandleCallback(ctx context.Context, body []byte) callbackdomain.Result {
	ctx, span := otel.Tracer("payrelay/callback").Start(ctx, "callback.handle")
	defer span.End()

	result, reason := s.handle(ctx, body)
	span.SetAttributes(
		attribute.Int("callback.result_code", result.ResultCode),
		attribute.String("callback.reason", reason),
	)
	s.metrics.RecordCallback(ctx, EndpointCallback, outcome(result), reason)
	return result
}

func (s *Service) handle(ctx context.Context, body []byte) (callbackdomain.Result, string) {
	log := logger.WithContext(ctx, s.log)

	payload, err := normalizer.Decode(body)
	if err != nil {
		log.Warn("callback rejected, invalid json", zap.Error(err))
		return callbackdomain.Rejected(callbackdomain.ReasonInvalidJSON), reasonInvalidJSON
	}

	rec, violations := normalizer.Normalize(payload)
	if len(violations) > 0 {
		log.Warn("callback rejected, validation failed",
			zap.Strings("fields", violations.Fields()),
			zap.String("violations", violations.Error()),
		)
		return callbackdomain.Rejected(violations.Error()), reasonValidation
	}

	ctx = obscontext.WithTransactionID(ctx, rec.TransactionID)
	log = logger.WithTransaction(log, rec.TransactionID).With(
		zap.String("account_number", rec.AccountNumber),
		zap.String("schema", string(rec.Schema)),
	)

	release, claimed := s.claim(ctx, rec.TransactionID, log)
	if !claimed {
		log.Info("callback rejected, transaction already in flight")
		return callbackdomain.Rejected(callbackdomain.ReasonDuplicate), reasonDuplicate
	}
	defer release()

	if s.detector.Exists(ctx, rec.TransactionID) {
		log.Info("callback rejected, duplicate transaction")
		return callbackdomain.Rejected(callbackdomain.ReasonDuplicate), reasonDuplicate
	}

	if !s.directory.IsValid(ctx, rec.AccountNumber) {
		log.Info("callback rejected, account not in directory")
		return callbackdomain.Rejected(callbackdomain.ReasonInvalidAccount), reasonInvalidAccount
	}

	if s.ledger.Append(ctx, rec.AccountNumber, rec) {
		s.detector.Remember(ctx, rec.TransactionID)
	} else {
		log.Error("payment accepted without ledger record")
	}

	s.notify(ctx, rec, log)

	log.Info("callback accepted", zap.String("amount", rec.Amount.StringFixed(2)))
	return callbackdomain.Accepted(), ""
}

// claim returns ok=false only when another instance holds the claim. Redis
// faults proceed unclaimed.
func (s *Service) claim(ctx context.Context, transID string, log *zap.Logger) (func(), bool) {
	noop := func() {}
	if s.claimer == nil {
		return noop, true
	}
	token, ok, err := s.claimer.TryClaim(ctx, transID)
	if err != nil {
		log.Warn("transaction claim failed, continuing unclaimed", zap.Error(err))
		return noop, true
	}
	if !ok {
		return noop, false
	}
	return func() {
		if err := s.claimer.Release(context.WithoutCancel(ctx), transID, token); err != nil {
			log.Warn("transaction claim release failed", zap.Error(err))
		}
	}, true
}

func (s *Service) notify(ctx context.Context, rec paymentdomain.PaymentRecord, log *zap.Logger) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("notification enqueue panicked", zap.Any("panic", r))
		}
	}()
	jobID, err := s.notifier.Enqueue(context.WithoutCancel(ctx), rec)
	if err != nil {
		log.Error("notification not queued", zap.Error(err))
		return
	}
	log.Debug("notification queued", zap.String("job_id", jobID.String()))
}

// Validate answers the gateway's pre-validation probe. Only the billing
// reference is checked.
func (s *Service) Validate(ctx context.Context, body []byte) callbackdomain.Result {
	ctx, span := otel.Tracer("payrelay/callback").Start(ctx, "callback.validate")
	defer span.End()

	result, reason := s.validate(ctx, body)
	span.SetAttributes(attribute.Int("callback.result_code", result.ResultCode))
	s.metrics.RecordCallback(ctx, EndpointValidate, outcome(result), reason)
	return result
}

func (s *Service) validate(ctx context.Context, body []byte) (callbackdomain.Result, string) {
	log := logger.WithContext(ctx, s.log)

	payload, err := normalizer.Decode(body)
	if err != nil {
		log.Warn("validation rejected, invalid json", zap.Error(err))
		return callbackdomain.Rejected(callbackdomain.ReasonInvalidJSON), reasonInvalidJSON
	}
	billRef, violations := normalizer.BillRef(payload)
	if len(violations) > 0 {
		log.Warn("validation rejected", zap.String("violations", violations.Error()))
		return callbackdomain.Rejected(violations.Error()), reasonValidation
	}
	if !s.directory.IsValid(ctx, billRef) {
		log.Info("validation rejected, account not in directory", zap.String("account_number", billRef))
		return callbackdomain.Rejected(callbackdomain.ReasonInvalidAccount), reasonInvalidAccount
	}
	return callbackdomain.Accepted(), ""
}

// ForceWrite appends rec directly, for integration testing without a live
// gateway.
func (s *Service) ForceWrite(ctx context.Context, rec paymentdomain.PaymentRecord) (bool, paymentdomain.PaymentRecord) {
	log := logger.WithTransaction(logger.WithContext(ctx, s.log), rec.TransactionID)

	ok := s.ledger.Append(ctx, rec.AccountNumber, rec)
	if ok {
		s.detector.Remember(ctx, rec.TransactionID)
	}
	result := "accepted"
	if !ok {
		result = "failed"
	}
	s.metrics.RecordCallback(ctx, EndpointDebug, result, "")
	log.Info("debug ledger write", zap.Bool("success", ok), zap.String("account_number", rec.AccountNumber))
	return ok, rec
}

func outcome(r callbackdomain.Result) string {
	if r.IsAccepted() {
		return "accepted"
	}
	return "rejected"
}

var _ callbackdomain.Service = (*Service)(nil)
