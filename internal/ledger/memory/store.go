// Package memory is an in-process ledger store for tests and local runs.
package memory

import (
	"context"
	"sync"

	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
)

type Store struct {
	mu       sync.Mutex
	order    []string
	tables   map[string][][]string
	failures map[string]error
	appends  int
}

func New() *Store {
	return &Store{
		tables:   map[string][][]string{},
		failures: map[string]error{},
	}
}

func (s *Store) Backend() string { return "memory" }

// Fail makes every subsequent call of op return err until cleared with a
// nil err. op is a Store method name.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Partitions"); err != nil {
		return nil, err
	}
	return append([]string(nil), s.order...), nil
}

func (s *Store) HasPartition(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("HasPartition"); err != nil {
		return false, err
	}
	_, ok := s.tables[name]
	return ok, nil
}

func (s *Store) CreatePartition(ctx context.Context, name string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreatePartition"); err != nil {
		return err
	}
	if _, ok := s.tables[name]; ok {
		return ledgerdomain.ErrPartitionExists
	}
	s.order = append(s.order, name)
	s.tables[name] = [][]string{append([]string(nil), header...)}
	return nil
}

func (s *Store) AppendRow(ctx context.Context, name string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("AppendRow"); err != nil {
		return err
	}
	if _, ok := s.tables[name]; !ok {
		return ledgerdomain.ErrPartitionNotFound
	}
	s.tables[name] = append(s.tables[name], append([]string(nil), row...))
	s.appends++
	return nil
}

func (s *Store) FirstColumn(ctx context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FirstColumn"); err != nil {
		return nil, err
	}
	rows, ok := s.tables[name]
	if !ok {
		return nil, ledgerdomain.ErrPartitionNotFound
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

// Rows returns a copy of a partition including its header.
func (s *Store) Rows(name string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[name]
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, append([]string(nil), row...))
	}
	return out
}

// AppendCount reports how many data rows were appended across partitions.
func (s *Store) AppendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

var _ ledgerdomain.Store = (*Store)(nil)
