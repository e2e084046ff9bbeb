// Package sheets keeps the ledger in a Google spreadsheet, one tab per
// account.
package sheets

import (
	"context"
	"errors"
	"strings"

	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	gsheets "github.com/smallbiznis/payrelay/internal/providers/sheets"
)

// API is the subset of the Sheets client the store needs.
type API interface {
	SheetTitles(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, title string, header ...string) error
	ReadRange(ctx context.Context, a1Range string) ([][]string, error)
	AppendRows(ctx context.Context, a1Range string, rows [][]any) error
}

type Store struct {
	api      API
	reserved map[string]struct{}
}

// New returns a store over api. Tabs named in reserved, such as the
// accounts directory, are never treated as partitions.
func New(api API, reserved ...string) *Store {
	r := make(map[string]struct{}, len(reserved))
	for _, name := range reserved {
		if name = strings.TrimSpace(name); name != "" {
			r[name] = struct{}{}
		}
	}
	return &Store{api: api, reserved: r}
}

func (s *Store) Backend() string { return "sheets" }

func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	titles, err := s.api.SheetTitles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(titles))
	for _, title := range titles {
		if _, skip := s.reserved[title]; skip {
			continue
		}
		out = append(out, title)
	}
	return out, nil
}

func (s *Store) HasPartition(ctx context.Context, name string) (bool, error) {
	titles, err := s.api.SheetTitles(ctx)
	if err != nil {
		return false, err
	}
	for _, title := range titles {
		if title == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreatePartition(ctx context.Context, name string, header []string) error {
	if _, reserved := s.reserved[name]; reserved {
		return ledgerdomain.ErrInvalidPartition
	}
	err := s.api.AddSheet(ctx, name, header...)
	if errors.Is(err, gsheets.ErrSheetExists) {
		return ledgerdomain.ErrPartitionExists
	}
	return err
}

func (s *Store) AppendRow(ctx context.Context, name string, row []string) error {
	return s.api.AppendRows(ctx, gsheets.QuoteRange(name, "A1"), [][]any{toCells(row)})
}

func (s *Store) FirstColumn(ctx context.Context, name string) ([]string, error) {
	rows, err := s.api.ReadRange(ctx, gsheets.QuoteRange(name, "A:A"))
	if err != nil {
		return nil, err
	}
	col := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			col = append(col, "")
			continue
		}
		col = append(col, row[0])
	}
	return col, nil
}

// AccountsTab extracts the tab title from an A1 range such as Accounts!A:C.
func AccountsTab(a1Range string) string {
	title := a1Range
	if idx := strings.LastIndex(a1Range, "!"); idx >= 0 {
		title = a1Range[:idx]
	}
	title = strings.TrimSpace(title)
	if len(title) >= 2 && strings.HasPrefix(title, "'") && strings.HasSuffix(title, "'") {
		title = strings.ReplaceAll(title[1:len(title)-1], "''", "'")
	}
	return title
}

func toCells(values []string) []any {
	cells := make([]any, 0, len(values))
	for _, v := range values {
		cells = append(cells, v)
	}
	return cells
}

var (
	_ ledgerdomain.Store = (*Store)(nil)
	_ API                = (*gsheets.Client)(nil)
)
