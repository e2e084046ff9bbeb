package ledger

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/config"
	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	"github.com/smallbiznis/payrelay/internal/ledger/memory"
	"github.com/smallbiznis/payrelay/internal/ledger/service"
	ledgersheets "github.com/smallbiznis/payrelay/internal/ledger/sheets"
	"github.com/smallbiznis/payrelay/internal/ledger/sqlstore"
	"github.com/smallbiznis/payrelay/internal/ledger/workbook"
	gsheets "github.com/smallbiznis/payrelay/internal/providers/sheets"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("ledger",
	fx.Provide(NewStore),
	fx.Provide(service.NewWriter),
	fx.Provide(func(w *service.Writer) ledgerdomain.Writer { return w }),
)

var ErrBackendUnavailable = errors.New("ledger_backend_unavailable")

type StoreParams struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Sheets *gsheets.Client `optional:"true"`
	DB     *gorm.DB        `optional:"true"`
	Node   *snowflake.Node `optional:"true"`
}

// NewStore selects the ledger backend named by LEDGER_BACKEND.
func NewStore(p StoreParams) (ledgerdomain.Store, error) {
	log := p.Log.Named("ledger")
	backend := p.Cfg.Ledger.Backend

	var store ledgerdomain.Store
	switch backend {
	case config.LedgerBackendSheets:
		if p.Sheets == nil {
			return nil, fmt.Errorf("%s: %w", backend, ErrBackendUnavailable)
		}
		store = ledgersheets.New(p.Sheets, ledgersheets.AccountsTab(p.Cfg.Sheets.AccountsRange))
	case config.LedgerBackendWorkbook:
		store = workbook.New(p.Cfg.Ledger.WorkbookPath)
	case config.LedgerBackendSQL:
		if p.DB == nil || p.Node == nil {
			return nil, fmt.Errorf("%s: %w", backend, ErrBackendUnavailable)
		}
		store = sqlstore.New(p.DB, p.Node)
	case config.LedgerBackendMemory, "":
		store = memory.New()
	default:
		return nil, fmt.Errorf("%q: %w", backend, config.ErrInvalidLedgerBackend)
	}

	log.Info("ledger backend selected", zap.String("backend", store.Backend()))
	return store, nil
}
