package ports

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
)

// RecordStore persists flat records with insert-or-ignore semantics.
//
// Lifecycle: CreateSchema must succeed before WriteBatch; after Close every
// call fails with domain.ErrStoreClosed.
type RecordStore interface {
	CreateSchema(ctx context.Context) error
	// WriteBatch inserts records into table in one transaction, skipping rows
	// whose primary key already exists. It returns the number of new rows.
	WriteBatch(ctx context.Context, table string, records []domain.Record) (int64, error)
	Close() error
}

// TableStats is a row count for one table.
type TableStats struct {
	Table   string
	Rows    int64
	Columns int
	Details []ColumnStats
}

// ColumnStats describes one column and its value in the table's first row.
// Sample is empty for an empty table.
type ColumnStats struct {
	Name   string
	Type   string
	Sample string
}

// SampleWidth caps the length of ColumnStats.Sample.
const SampleWidth = 50

// Sample renders v for ColumnStats.Sample.
func Sample(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		s = string(x)
	default:
		s = fmt.Sprint(x)
	}
	if r := []rune(s); len(r) > SampleWidth {
		return string(r[:SampleWidth])
	}
	return s
}

// Inspector summarizes persisted tables.
type Inspector interface {
	Inspect(ctx context.Context) ([]TableStats, error)
}
