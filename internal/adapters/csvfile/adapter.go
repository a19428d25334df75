// Package csvfile stores records as one CSV file per table instead of a
// database.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
)

type state int

const (
	stateUninitialized state = iota
	stateSchemaReady
	stateClosed
)

// Adapter writes <table>.csv files under a directory. Each write rewrites the
// file through a temp file and rename, so readers never see a partial table.
type Adapter struct {
	dir string

	mu    sync.Mutex
	state state
}

var (
	_ ports.RecordStore = (*Adapter)(nil)
	_ ports.Inspector   = (*Adapter)(nil)
)

func NewAdapter(dir string) *Adapter {
	return &Adapter{dir: dir}
}

// CreateSchema makes sure the output directory exists. Files are created on
// first write.
func (a *Adapter) CreateSchema(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateClosed {
		return domain.ErrStoreClosed
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("csv adapter: create %s: %w", a.dir, err)
	}
	a.state = stateSchemaReady
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateClosed {
		return domain.ErrStoreClosed
	}
	a.state = stateClosed
	return nil
}

func (a *Adapter) ready() error {
	switch a.state {
	case stateUninitialized:
		return domain.ErrSchemaNotReady
	case stateClosed:
		return domain.ErrStoreClosed
	}
	return nil
}

func (a *Adapter) path(table string) string {
	return filepath.Join(a.dir, table+".csv")
}

// WriteBatch appends records not already present (by primary key) to the
// table's file. The header is the records' field names.
func (a *Adapter) WriteBatch(ctx context.Context, table string, records []domain.Record) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ready(); err != nil {
		return 0, err
	}

	meta, columns, err := domain.ValidateBatch(table, records)
	if err != nil {
		return 0, &domain.PersistenceError{Table: table, Err: err}
	}
	if len(records) == 0 {
		return 0, nil
	}

	inserted, err := a.merge(ctx, meta, columns, records)
	if err != nil {
		return 0, &domain.PersistenceError{Table: table, Err: err}
	}
	return inserted, nil
}

func (a *Adapter) merge(ctx context.Context, table domain.Table, columns []string, records []domain.Record) (int64, error) {
	keyIdx := make([]int, len(table.PrimaryKey))
	for i, pk := range table.PrimaryKey {
		keyIdx[i] = slices.Index(columns, pk)
		if keyIdx[i] < 0 {
			return 0, fmt.Errorf("primary key column %q missing from batch", pk)
		}
	}
	rowKey := func(row []string) string {
		parts := make([]string, len(keyIdx))
		for i, idx := range keyIdx {
			parts[i] = row[idx]
		}
		return strings.Join(parts, domain.KeySeparator)
	}

	existing, err := readTable(a.path(table.Name))
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 && !slices.Equal(existing[0], columns) {
		return 0, fmt.Errorf("header %v does not match columns %v", existing[0], columns)
	}

	rows := existing
	if len(rows) == 0 {
		rows = [][]string{columns}
	}
	seen := make(map[string]bool, len(rows)+len(records))
	for _, row := range rows[1:] {
		seen[rowKey(row)] = true
	}

	var inserted int64
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		k := r.Key(table.PrimaryKey)
		if seen[k] {
			continue
		}
		seen[k] = true

		row := make([]string, len(columns))
		for i, c := range columns {
			v, _ := r.Value(c)
			row[i] = formatValue(v)
		}
		rows = append(rows, row)
		inserted++
	}

	if inserted == 0 {
		return 0, nil
	}
	if err := writeAtomic(a.path(table.Name), rows); err != nil {
		return 0, err
	}
	return inserted, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// readTable returns all rows of path including the header, or nil when the
// file does not exist yet.
func readTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func writeAtomic(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Inspect reports row and column counts per table file, with each header
// column and its first-row cell. Tables never written report zero of both.
func (a *Adapter) Inspect(ctx context.Context) ([]ports.TableStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ready(); err != nil {
		return nil, err
	}

	var stats []ports.TableStats
	for _, table := range domain.Schema() {
		rows, err := readTable(a.path(table.Name))
		if err != nil {
			return nil, fmt.Errorf("csv adapter: %w", err)
		}
		s := ports.TableStats{Table: table.Name}
		if len(rows) > 0 {
			s.Columns = len(rows[0])
			s.Rows = int64(len(rows) - 1)
			for i, name := range rows[0] {
				d := ports.ColumnStats{Name: name, Type: "TEXT"}
				if len(rows) > 1 && i < len(rows[1]) {
					d.Sample = ports.Sample(rows[1][i])
				}
				s.Details = append(s.Details, d)
			}
		}
		stats = append(stats, s)
	}
	return stats, nil
}
