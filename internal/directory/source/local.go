package source

import (
	"context"
	"strings"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/directory/domain"
)

// BuiltinAccounts are the gateway sandbox short codes and test references.
var BuiltinAccounts = []string{"600000", "600001", "600002", "TEST001", "TEST002"}

// Local merges the accounts.yml snapshot with PREDETERMINED_ACCOUNTS. The
// built-in sandbox list is used only when neither declares anything.
type Local struct {
	holder         *config.AccountsHolder
	predetermined  []string
	builtinAllowed bool
}

func NewLocal(holder *config.AccountsHolder, cfg config.DirectoryConfig) *Local {
	return &Local{
		holder:         holder,
		predetermined:  cfg.PredeterminedAccounts,
		builtinAllowed: !cfg.DisableBuiltinFallback,
	}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Accounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	seen := map[string]struct{}{}
	add := func(acc domain.Account) {
		if _, ok := seen[acc.AccountNumber]; ok {
			return
		}
		seen[acc.AccountNumber] = struct{}{}
		accounts = append(accounts, acc)
	}

	for _, entry := range l.holder.Get() {
		teamName := entry.TeamName
		if teamName == "" {
			teamName = entry.AccountNumber
		}
		add(domain.Account{
			AccountNumber: entry.AccountNumber,
			TeamName:      teamName,
			ContactPhones: append([]string(nil), entry.ContactPhones...),
			Source:        domain.SourceFile,
		})
	}
	for _, number := range l.predetermined {
		if number = strings.TrimSpace(number); number == "" {
			continue
		}
		add(domain.Account{AccountNumber: number, TeamName: number, Source: domain.SourceEnv})
	}

	if len(accounts) == 0 && l.builtinAllowed {
		for _, number := range BuiltinAccounts {
			add(domain.Account{AccountNumber: number, TeamName: number, Source: domain.SourceBuiltin})
		}
	}
	return accounts, nil
}
