// Package workbook keeps the ledger in a local .xlsx file, one worksheet per
// account.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet    = "Sheet1"
	maxSheetName    = 31
	firstDataColumn = 1
)

// Store opens the workbook for every operation and serializes access with
// a process-local mutex. Multiple processes must not share the file.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Backend() string { return "xlsx" }

func (s *Store) Path() string { return s.path }

func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func (s *Store) HasPartition(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheetName(name))
	if err != nil {
		return false, fmt.Errorf("lookup sheet: %w", err)
	}
	return idx >= 0, nil
}

func (s *Store) CreatePartition(ctx context.Context, name string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := sheetName(name)
	f, err := s.open(ctx)
	fresh := errors.Is(err, fs.ErrNotExist)
	switch {
	case fresh:
		f = excelize.NewFile()
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			_ = f.Close()
			return fmt.Errorf("name sheet: %w", err)
		}
	case err != nil:
		return err
	default:
		idx, err := f.GetSheetIndex(sheet)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("lookup sheet: %w", err)
		}
		if idx >= 0 {
			_ = f.Close()
			return ledgerdomain.ErrPartitionExists
		}
		if _, err := f.NewSheet(sheet); err != nil {
			_ = f.Close()
			return fmt.Errorf("new sheet: %w", err)
		}
	}
	defer f.Close()

	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	return s.save(f, fresh)
}

func (s *Store) AppendRow(ctx context.Context, name string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return ledgerdomain.ErrPartitionNotFound
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := sheetName(name)
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("lookup sheet: %w", err)
	}
	if idx < 0 {
		return ledgerdomain.ErrPartitionNotFound
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	if err := setRow(f, sheet, len(rows)+1, row); err != nil {
		return err
	}
	return s.save(f, false)
}

func (s *Store) FirstColumn(ctx context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ledgerdomain.ErrPartitionNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := sheetName(name)
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("lookup sheet: %w", err)
	}
	if idx < 0 {
		return nil, ledgerdomain.ErrPartitionNotFound
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
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

func (s *Store) open(ctx context.Context) (*excelize.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return f, nil
}

func (s *Store) save(f *excelize.File, fresh bool) error {
	if fresh {
		if dir := filepath.Dir(s.path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create workbook dir: %w", err)
			}
		}
		if err := f.SaveAs(s.path); err != nil {
			return fmt.Errorf("save workbook: %w", err)
		}
		return nil
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(firstDataColumn, rowNum)
	if err != nil {
		return err
	}
	cells := make([]interface{}, 0, len(values))
	for _, v := range values {
		cells = append(cells, v)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

// sheetName fits name into the worksheet name limit of the xlsx format.
// Long names keep a prefix and a hash of the full name, so names sharing
// the prefix still map to distinct worksheets.
func sheetName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxSheetName {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("~%08x", h.Sum32())
	return string(runes[:maxSheetName-len(suffix)]) + suffix
}

var _ ledgerdomain.Store = (*Store)(nil)
