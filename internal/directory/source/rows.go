package source

import (
	"strings"

	"github.com/smallbiznis/payrelay/internal/directory/domain"
	"go.uber.org/zap"
)

const minRowFields = 1

// ParseRows converts directory table rows into accounts. Columns are account
// number, team name and contact phones. Bad rows are skipped and logged.
func ParseRows(rows [][]string, sourceName string, log *zap.Logger) []domain.Account {
	if log == nil {
		log = zap.NewNop()
	}

	accounts := make([]domain.Account, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if len(row) < minRowFields {
			log.Debug("skipping empty directory row", zap.Int("row", i+1))
			continue
		}
		accountNumber := strings.TrimSpace(row[0])
		if i == 0 && isHeader(accountNumber) {
			continue
		}
		if accountNumber == "" {
			log.Warn("skipping directory row without account number", zap.Int("row", i+1))
			continue
		}
		if _, dup := seen[accountNumber]; dup {
			log.Warn("skipping duplicate directory row",
				zap.Int("row", i+1),
				zap.String("account_number", accountNumber),
			)
			continue
		}
		seen[accountNumber] = struct{}{}

		teamName := accountNumber
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			teamName = strings.TrimSpace(row[1])
		}
		var phones []string
		if len(row) > 2 {
			phones = SplitPhones(row[2])
		}

		accounts = append(accounts, domain.Account{
			AccountNumber: accountNumber,
			TeamName:      teamName,
			ContactPhones: phones,
			Source:        sourceName,
		})
	}
	return accounts
}

// SplitPhones splits a contact cell on commas, semicolons and whitespace.
func SplitPhones(cell string) []string {
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	phones := make([]string, 0, len(fields))
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			phones = append(phones, field)
		}
	}
	return phones
}

func isHeader(cell string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(cell)), "account")
}
