package config

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewAccountsHolder,
	),
	fx.Invoke(validateOnStart),
)

func validateOnStart(cfg Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info("configuration loaded", zap.Any("config", cfg.Summary()))
	return nil
}
