package domain

import (
	"context"
	"errors"

	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
)

// Header is written once as the first row of every partition.
var Header = []string{
	"Transaction ID",
	"Time",
	"Amount",
	"Name",
	"Phone",
	"Account Number",
	"Recorded At",
}

var (
	ErrPartitionExists   = errors.New("ledger_partition_exists")
	ErrPartitionNotFound = errors.New("ledger_partition_not_found")
	ErrInvalidPartition  = errors.New("ledger_invalid_partition")
)

// Store is a tabular backend holding one append-only partition per account.
// Partitions never lists tables the store reserves for other uses.
type Store interface {
	Backend() string
	Partitions(ctx context.Context) ([]string, error)
	HasPartition(ctx context.Context, name string) (bool, error)
	// CreatePartition creates name with header as its first row and returns
	// ErrPartitionExists if another writer got there first.
	CreatePartition(ctx context.Context, name string, header []string) error
	AppendRow(ctx context.Context, name string, row []string) error
	// FirstColumn returns column A of a partition, header included.
	FirstColumn(ctx context.Context, name string) ([]string, error)
}

// Writer appends payments to the ledger. Faults are logged and reported as
// false, never returned.
type Writer interface {
	Append(ctx context.Context, partitionKey string, rec paymentdomain.PaymentRecord) bool
}
