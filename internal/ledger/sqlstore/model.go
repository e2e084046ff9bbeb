package sqlstore

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Partition is one account's ledger table.
type Partition struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	Name      string         `gorm:"type:varchar(100);not null;uniqueIndex:ux_ledger_partitions_name"`
	Header    datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (Partition) TableName() string { return "ledger_partitions" }

// Row is one appended ledger line. FirstCell duplicates column A so the
// duplicate scan never decodes Cells.
type Row struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	PartitionID snowflake.ID   `gorm:"not null;index:ix_ledger_rows_partition"`
	FirstCell   string         `gorm:"type:varchar(255);not null;index:ix_ledger_rows_first_cell"`
	Cells       datatypes.JSON `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null"`
}

func (Row) TableName() string { return "ledger_rows" }

// Models lists the tables owned by the SQL ledger, for AutoMigrate.
func Models() []any {
	return []any{&Partition{}, &Row{}}
}
