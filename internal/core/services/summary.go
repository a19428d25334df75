package services

import (
	"fmt"
	"io"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
)

// KindStats counts fetch outcomes for one entity kind.
type KindStats struct {
	Kind      domain.Kind
	Requested int
	Fetched   int
	Failed    int
}

// TableResult is the outcome of writing one table's batch.
type TableResult struct {
	Table   string
	Records int
	Written int64
	Err     error
}

// Skipped is the number of records that were not inserted, either because
// their key already existed or because the batch failed.
func (r TableResult) Skipped() int64 {
	return int64(r.Records) - r.Written
}

// Summary describes a finished run.
type Summary struct {
	RunID  string
	Kinds  []KindStats
	Tables []TableResult
}

// FailedTables lists tables whose batch was rolled back.
func (s Summary) FailedTables() []string {
	var out []string
	for _, t := range s.Tables {
		if t.Err != nil {
			out = append(out, t.Table)
		}
	}
	return out
}

// Print writes a human-readable report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	for _, k := range s.Kinds {
		fmt.Fprintf(w, "  %-10s requested=%d fetched=%d failed=%d\n", k.Kind, k.Requested, k.Fetched, k.Failed)
	}
	for _, t := range s.Tables {
		if t.Err != nil {
			fmt.Fprintf(w, "  %-16s FAILED (%d records): %v\n", t.Table, t.Records, t.Err)
			continue
		}
		fmt.Fprintf(w, "  %-16s written=%d skipped=%d\n", t.Table, t.Written, t.Skipped())
	}
}
