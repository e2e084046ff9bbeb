package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/callback"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/dedup"
	"github.com/smallbiznis/payrelay/internal/directory"
	"github.com/smallbiznis/payrelay/internal/ledger"
	"github.com/smallbiznis/payrelay/internal/migration"
	"github.com/smallbiznis/payrelay/internal/notification"
	"github.com/smallbiznis/payrelay/internal/observability"
	"github.com/smallbiznis/payrelay/internal/providers"
	"github.com/smallbiznis/payrelay/internal/server"
	"github.com/smallbiznis/payrelay/pkg/db"
	"go.uber.org/fx"
)

// coreOptions is the infrastructure every command needs.
func coreOptions() []fx.Option {
	return []fx.Option{
		config.Module,
		observability.Module,
		clock.Module,
	}
}

// serveOptions composes the full relay. The database and its migrations are
// only wired when the ledger lives in SQL.
func serveOptions(cfg config.Config) []fx.Option {
	opts := coreOptions()
	opts = append(opts,
		fx.Provide(RegisterSnowflake),
		providers.Module,
		directory.Module,
		ledger.Module,
		dedup.Module,
		notification.Module,
		callback.Module,
		server.Module,
	)
	if cfg.Ledger.Backend == config.LedgerBackendSQL {
		opts = append(opts, db.Module, migration.Module)
	}
	return opts
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
