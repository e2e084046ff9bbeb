package source

import (
	"context"
	"fmt"

	"github.com/smallbiznis/payrelay/internal/directory/domain"
	"go.uber.org/zap"
)

// RangeReader reads a spreadsheet range as strings.
type RangeReader interface {
	ReadRange(ctx context.Context, a1Range string) ([][]string, error)
}

// Sheets reads the directory table from a spreadsheet tab.
type Sheets struct {
	reader  RangeReader
	a1Range string
	log     *zap.Logger
}

func NewSheets(reader RangeReader, a1Range string, log *zap.Logger) *Sheets {
	return &Sheets{
		reader:  reader,
		a1Range: a1Range,
		log:     log.Named("directory.sheets"),
	}
}

func (s *Sheets) Name() string { return domain.SourceSheets }

func (s *Sheets) Accounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.reader.ReadRange(ctx, s.a1Range)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	return ParseRows(rows, domain.SourceSheets, s.log), nil
}
