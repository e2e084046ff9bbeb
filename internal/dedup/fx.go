package dedup

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dedup",
	fx.Provide(NewRedisClient),
	fx.Provide(NewHints),
	fx.Provide(NewDetector),
	fx.Provide(NewClaimerFromConfig),
)

// NewRedisClient returns nil when REDIS_ADDR is unset.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable, dedup hints degrade to ledger scan", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

type HintParams struct {
	fx.In

	Cfg    config.Config
	Clock  clock.Clock
	Client *redis.Client `optional:"true"`
}

func NewHints(p HintParams) Hints {
	if p.Client != nil {
		return NewRedisHints(p.Client, p.Cfg.Dedup.HintTTL)
	}
	return NewMemoryHints(p.Cfg.Dedup.HintTTL, p.Clock)
}

type DetectorParams struct {
	fx.In

	Store   ledgerdomain.Store
	Hints   Hints
	Cfg     config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewDetector(p DetectorParams) *Detector {
	return New(Options{
		Store:   p.Store,
		Hints:   p.Hints,
		Timeout: p.Cfg.Ledger.Timeout,
		Log:     p.Log,
		Metrics: p.Metrics,
	})
}

type ClaimerParams struct {
	fx.In

	Cfg    config.Config
	Client *redis.Client `optional:"true"`
}

// NewClaimerFromConfig returns nil unless DEDUP_CLAIM_ENABLED is set.
func NewClaimerFromConfig(p ClaimerParams) *Claimer {
	if !p.Cfg.Dedup.ClaimEnabled {
		return nil
	}
	return NewClaimer(p.Client, p.Cfg.Dedup.ClaimTTL)
}
