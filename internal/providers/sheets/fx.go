package sheets

import (
	"context"

	"github.com/smallbiznis/payrelay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.sheets",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns nil when no spreadsheet is configured; consumers
// treat a nil client as "remote store unavailable".
func NewFromConfig(cfg config.Config, log *zap.Logger) (*Client, error) {
	if cfg.Sheets.SpreadsheetID == "" {
		log.Named("providers.sheets").Info("no spreadsheet configured, remote sheets disabled")
		return nil, nil
	}
	client, err := NewClient(context.Background(), cfg.Sheets)
	if err != nil {
		return nil, err
	}
	log.Named("providers.sheets").Info("sheets client ready",
		zap.Bool("env_credentials", cfg.Sheets.HasSplitCredentials()),
	)
	return client, nil
}
