package domain

import (
	"context"
	"errors"
)

// Account is a billing account that may receive payments.
type Account struct {
	AccountNumber string   `json:"account_number"`
	TeamName      string   `json:"team_name"`
	ContactPhones []string `json:"contact_phones"`
	Source        string   `json:"source"`
}

// Source yields accounts from one backing store.
type Source interface {
	Name() string
	Accounts(ctx context.Context) ([]Account, error)
}

// Service answers authorization and contact lookups against the merged
// directory.
type Service interface {
	ListAccounts(ctx context.Context) []Account
	IsValid(ctx context.Context, accountNumber string) bool
	Resolve(ctx context.Context, accountNumber string) (Account, bool)
}

var (
	ErrSourceUnavailable = errors.New("directory_source_unavailable")
	ErrNoRows            = errors.New("directory_no_rows")
)

const (
	SourceSheets  = "sheets"
	SourceEnv     = "env"
	SourceFile    = "file"
	SourceBuiltin = "builtin"
)
