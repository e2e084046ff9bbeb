package directory

import (
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/directory/domain"
	"github.com/smallbiznis/payrelay/internal/directory/service"
	"github.com/smallbiznis/payrelay/internal/directory/source"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	"github.com/smallbiznis/payrelay/internal/providers/sheets"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("directory",
	fx.Provide(NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)

type Params struct {
	fx.In

	Cfg      config.Config
	Accounts *config.AccountsHolder
	Sheets   *sheets.Client `optional:"true"`
	Clock    clock.Clock
	Log      *zap.Logger
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

func NewService(p Params) *service.Service {
	opts := service.Options{
		Local:   source.NewLocal(p.Accounts, p.Cfg.Directory),
		Config:  p.Cfg.Directory,
		Clock:   p.Clock,
		Log:     p.Log,
		Metrics: p.Metrics,
	}
	if p.Sheets != nil {
		opts.Remote = source.NewSheets(p.Sheets, p.Cfg.Sheets.AccountsRange, p.Log)
	}
	return service.New(opts)
}
