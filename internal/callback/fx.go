package callback

import (
	callbackdomain "github.com/smallbiznis/payrelay/internal/callback/domain"
	"github.com/smallbiznis/payrelay/internal/callback/service"
	"github.com/smallbiznis/payrelay/internal/dedup"
	directorydomain "github.com/smallbiznis/payrelay/internal/directory/domain"
	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	"github.com/smallbiznis/payrelay/internal/notification"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("callback.service",
	fx.Provide(NewService),
	fx.Provide(func(s *service.Service) callbackdomain.Service { return s }),
)

type Params struct {
	fx.In

	Detector  *dedup.Detector
	Directory directorydomain.Service
	Ledger    ledgerdomain.Writer
	Queue     *notification.Queue `optional:"true"`
	Claimer   *dedup.Claimer      `optional:"true"`
	Log       *zap.Logger
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

func NewService(p Params) *service.Service {
	opts := service.Options{
		Detector:  p.Detector,
		Directory: p.Directory,
		Ledger:    p.Ledger,
		Log:       p.Log,
		Metrics:   p.Metrics,
	}
	// Nil pointers must not become non-nil interfaces.
	if p.Queue != nil {
		opts.Notifier = p.Queue
	}
	if p.Claimer != nil {
		opts.Claimer = p.Claimer
	}
	return service.New(opts)
}
