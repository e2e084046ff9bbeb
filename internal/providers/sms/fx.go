package sms

import (
	"github.com/smallbiznis/payrelay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.sms",
	fx.Provide(NewFromConfig),
)

// NewFromConfig falls back to the no-op provider when no Fast Message
// credentials are set.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	provider := NewFastMessage(Config{
		URL:       cfg.SMS.URL,
		APIKey:    cfg.SMS.APIKey,
		PartnerID: cfg.SMS.PartnerID,
		AppKey:    cfg.SMS.AppKey,
		AppToken:  cfg.SMS.AppToken,
		ShortCode: cfg.SMS.ShortCode,
		Timeout:   cfg.SMS.Timeout,
	})
	if !provider.Configured() {
		log.Named("providers.sms").Warn("fast message credentials not set, sms disabled")
		return &NoOpProvider{}
	}
	return provider
}
