// Package sqlite provides a SQLite-backed implementation of the record store port.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
)

// maxParams stays under SQLITE_MAX_VARIABLE_NUMBER of older builds.
const maxParams = 999

//go:embed schema/*.sql
var ddl embed.FS

type state int

const (
	stateUninitialized state = iota
	stateSchemaReady
	stateClosed
)

// Adapter implements the record store port for SQLite
type Adapter struct {
	db *sql.DB

	mu    sync.Mutex
	state state
}

var (
	_ ports.RecordStore = (*Adapter)(nil)
	_ ports.Inspector   = (*Adapter)(nil)
)

// NewAdapter opens the database file. The schema is created separately by
// CreateSchema.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// One connection, so ":memory:" databases are shared across calls.
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	return &Adapter{db: db}, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateClosed {
		return domain.ErrStoreClosed
	}
	a.state = stateClosed
	return a.db.Close()
}

// CreateSchema runs the static DDL for every table. Existing tables are kept.
func (a *Adapter) CreateSchema(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateClosed {
		return domain.ErrStoreClosed
	}

	for _, table := range domain.Schema() {
		stmt, err := ddl.ReadFile("schema/" + table.Name + ".sql")
		if err != nil {
			return fmt.Errorf("sqlite adapter: missing ddl for %s: %w", table.Name, err)
		}
		if _, err := a.db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("sqlite adapter: create %s: %w", table.Name, err)
		}
	}

	a.state = stateSchemaReady
	log.Printf("INFO sqlite adapter: schema ready (%d tables)", len(domain.Schema()))
	return nil
}

// WriteBatch inserts records into table in one transaction. Rows whose
// primary key already exists are ignored. It returns the number of rows
// actually inserted.
func (a *Adapter) WriteBatch(ctx context.Context, table string, records []domain.Record) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateUninitialized:
		return 0, domain.ErrSchemaNotReady
	case stateClosed:
		return 0, domain.ErrStoreClosed
	}

	_, columns, err := domain.ValidateBatch(table, records)
	if err != nil {
		return 0, &domain.PersistenceError{Table: table, Err: err}
	}
	if len(records) == 0 {
		return 0, nil
	}

	inserted, err := a.insert(ctx, table, columns, records)
	if err != nil {
		return 0, &domain.PersistenceError{Table: table, Err: err}
	}
	return inserted, nil
}

func (a *Adapter) insert(ctx context.Context, table string, columns []string, records []domain.Record) (int64, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	perChunk := maxParams / len(columns)
	var inserted int64
	for start := 0; start < len(records); start += perChunk {
		end := min(start+perChunk, len(records))
		chunk := records[start:end]

		query, args := insertStatement(table, columns, chunk)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert rows %d-%d: %w", start, end-1, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count inserted rows: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("transaction commit failed: %w", err)
	}
	return inserted, nil
}

// insertStatement builds one multi-row INSERT OR IGNORE. Identifiers come
// from the validated schema; values are always bound.
func insertStatement(table string, columns []string, records []domain.Record) (string, []any) {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	rows := make([]string, len(records))
	args := make([]any, 0, len(records)*len(columns))
	for i, r := range records {
		rows[i] = row
		for _, c := range columns {
			v, _ := r.Value(c)
			args = append(args, v)
		}
	}

	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(rows, ", "))
	return query, args
}
