// Package postgres provides a PostgreSQL-backed implementation of the record
// store port.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
)

// maxParams is the bind parameter limit of the wire protocol.
const maxParams = 65535

//go:embed schema/*.sql
var ddl embed.FS

// DB is the subset of *pgxpool.Pool the adapter uses. It can be mocked for
// testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type state int

const (
	stateUninitialized state = iota
	stateSchemaReady
	stateClosed
)

// Adapter implements the record store port for PostgreSQL.
type Adapter struct {
	db DB

	mu    sync.Mutex
	state state
}

var (
	_ ports.RecordStore = (*Adapter)(nil)
	_ ports.Inspector   = (*Adapter)(nil)
)

// Connect opens a pool for databaseURL and verifies it.
func Connect(ctx context.Context, databaseURL string) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return NewAdapter(pool), nil
}

// NewAdapter wraps an existing pool.
func NewAdapter(db DB) *Adapter {
	return &Adapter{db: db}
}

// Close releases the pool.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateClosed {
		return domain.ErrStoreClosed
	}
	a.state = stateClosed
	a.db.Close()
	return nil
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
			return fmt.Errorf("postgres adapter: missing ddl for %s: %w", table.Name, err)
		}
		if _, err := a.db.Exec(ctx, string(stmt)); err != nil {
			return fmt.Errorf("postgres adapter: create %s: %w", table.Name, err)
		}
	}

	a.state = stateSchemaReady
	log.Printf("INFO postgres adapter: schema ready (%d tables)", len(domain.Schema()))
	return nil
}

// WriteBatch inserts records into table in one transaction with
// ON CONFLICT DO NOTHING, returning the number of rows inserted.
func (a *Adapter) WriteBatch(ctx context.Context, table string, records []domain.Record) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ready(); err != nil {
		return 0, err
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

func (a *Adapter) ready() error {
	switch a.state {
	case stateUninitialized:
		return domain.ErrSchemaNotReady
	case stateClosed:
		return domain.ErrStoreClosed
	}
	return nil
}

func (a *Adapter) insert(ctx context.Context, table string, columns []string, records []domain.Record) (int64, error) {
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	perChunk := maxParams / len(columns)
	var inserted int64
	for start := 0; start < len(records); start += perChunk {
		end := min(start+perChunk, len(records))

		query, args := insertStatement(table, columns, records[start:end])
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert rows %d-%d: %w", start, end-1, err)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("transaction commit failed: %w", err)
	}
	return inserted, nil
}

// insertStatement builds one multi-row INSERT with numbered placeholders.
// Identifiers come from the validated schema; values are always bound.
func insertStatement(table string, columns []string, records []domain.Record) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	args := make([]any, 0, len(records)*len(columns))
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			v, _ := r.Value(c)
			args = append(args, v)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}
	b.WriteString(" ON CONFLICT DO NOTHING")
	return b.String(), args
}
