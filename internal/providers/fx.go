package providers

import (
	"github.com/smallbiznis/payrelay/internal/providers/sheets"
	"github.com/smallbiznis/payrelay/internal/providers/sms"
	"go.uber.org/fx"
)

// Module wires the outbound clients: the spreadsheet API and the SMS gateway.
var Module = fx.Module("providers",
	sheets.Module,
	sms.Module,
)
