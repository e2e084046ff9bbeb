// Package sqlstore keeps the ledger in relational tables through gorm.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/payrelay/internal/ledger/domain"
	"github.com/smallbiznis/payrelay/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func New(conn *gorm.DB, genID *snowflake.Node) *Store {
	return &Store{db: conn, genID: genID}
}

func (s *Store) Backend() string { return "sql" }

func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&Partition{}).
		Order("id ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	return names, nil
}

func (s *Store) HasPartition(ctx context.Context, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Partition{}).
		Where("name = ?", name).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup partition: %w", err)
	}
	return count > 0, nil
}

// CreatePartition inserts the partition and its header row in one
// transaction. A concurrent creator loses on the unique name index.
func (s *Store) CreatePartition(ctx context.Context, name string, header []string) error {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		partition := Partition{
			ID:        s.genID.Generate(),
			Name:      name,
			Header:    datatypes.JSON(headerJSON),
			CreatedAt: now,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&partition)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ledgerdomain.ErrPartitionExists
		}
		return tx.Create(&Row{
			ID:          s.genID.Generate(),
			PartitionID: partition.ID,
			FirstCell:   firstCell(header),
			Cells:       datatypes.JSON(headerJSON),
			CreatedAt:   now,
		}).Error
	})
	switch {
	case errors.Is(err, ledgerdomain.ErrPartitionExists), db.IsDuplicateKeyErr(err):
		return ledgerdomain.ErrPartitionExists
	case err != nil:
		return fmt.Errorf("create partition: %w", err)
	}
	return nil
}

func (s *Store) AppendRow(ctx context.Context, name string, row []string) error {
	partitionID, err := s.partitionID(ctx, name)
	if err != nil {
		return err
	}
	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	err = s.db.WithContext(ctx).Create(&Row{
		ID:          s.genID.Generate(),
		PartitionID: partitionID,
		FirstCell:   firstCell(row),
		Cells:       datatypes.JSON(cells),
		CreatedAt:   time.Now().UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

func (s *Store) FirstColumn(ctx context.Context, name string) ([]string, error) {
	partitionID, err := s.partitionID(ctx, name)
	if err != nil {
		return nil, err
	}
	var cells []string
	err = s.db.WithContext(ctx).
		Model(&Row{}).
		Where("partition_id = ?", partitionID).
		Order("id ASC").
		Pluck("first_cell", &cells).Error
	if err != nil {
		return nil, fmt.Errorf("read first column: %w", err)
	}
	return cells, nil
}

// Rows decodes every row of a partition, header included.
func (s *Store) Rows(ctx context.Context, name string) ([][]string, error) {
	partitionID, err := s.partitionID(ctx, name)
	if err != nil {
		return nil, err
	}
	var rows []Row
	err = s.db.WithContext(ctx).
		Where("partition_id = ?", partitionID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		var cells []string
		if err := json.Unmarshal(row.Cells, &cells); err != nil {
			return nil, fmt.Errorf("decode row %s: %w", row.ID, err)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (s *Store) partitionID(ctx context.Context, name string) (snowflake.ID, error) {
	var partition Partition
	err := s.db.WithContext(ctx).
		Select("id").
		Where("name = ?", name).
		Take(&partition).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ledgerdomain.ErrPartitionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup partition: %w", err)
	}
	return partition.ID, nil
}

func firstCell(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

var _ ledgerdomain.Store = (*Store)(nil)
