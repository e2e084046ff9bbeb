package notification

import (
	"context"

	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	directorydomain "github.com/smallbiznis/payrelay/internal/directory/domain"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	"github.com/smallbiznis/payrelay/internal/providers/sms"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(ProvideDispatcher),
	fx.Provide(ProvideQueue),
)

type Params struct {
	fx.In

	Directory directorydomain.Service
	Sender    sms.Provider
	Log       *zap.Logger
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

func ProvideDispatcher(p Params) *Dispatcher {
	return NewDispatcher(p.Directory, p.Sender, p.Log, p.Metrics)
}

type QueueParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Cfg        config.Config
	Dispatcher *Dispatcher
	Clock      clock.Clock
	Log        *zap.Logger
	Metrics    *obsmetrics.NotifyMetrics `optional:"true"`
}

// ProvideQueue returns nil when NOTIFY_ENABLED is false.
func ProvideQueue(p QueueParams) *Queue {
	if !p.Cfg.Notify.Enabled {
		p.Log.Named("notification").Info("notifications disabled")
		return nil
	}
	q := NewQueue(p.Dispatcher, QueueOptions{
		Workers:   p.Cfg.Notify.Workers,
		QueueSize: p.Cfg.Notify.QueueSize,
		Clock:     p.Clock,
		Log:       p.Log,
		Metrics:   p.Metrics,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			q.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return q.Stop(ctx)
		},
	})
	return q
}
