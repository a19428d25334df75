package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
)

// Inspect reports row and column counts for every table, with each column's
// declared type and its value in the first row.
func (a *Adapter) Inspect(ctx context.Context) ([]ports.TableStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateUninitialized:
		return nil, domain.ErrSchemaNotReady
	case stateClosed:
		return nil, domain.ErrStoreClosed
	}

	var stats []ports.TableStats
	for _, table := range domain.Schema() {
		s := ports.TableStats{Table: table.Name}
		if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table.Name).Scan(&s.Rows); err != nil {
			return nil, fmt.Errorf("sqlite adapter: count %s: %w", table.Name, err)
		}

		details, err := a.columnInfo(ctx, table.Name)
		if err != nil {
			return nil, err
		}
		if err := a.sampleFirstRow(ctx, table.Name, details); err != nil {
			return nil, err
		}
		s.Columns = len(details)
		s.Details = details
		stats = append(stats, s)
	}
	return stats, nil
}

// columns lists the column names of table as the database reports them.
func (a *Adapter) columns(ctx context.Context, table string) ([]string, error) {
	details, err := a.columnInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(details))
	for i, d := range details {
		names[i] = d.Name
	}
	return names, nil
}

func (a *Adapter) columnInfo(ctx context.Context, table string) ([]ports.ColumnStats, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("sqlite adapter: table info %s: %w", table, err)
	}
	defer rows.Close()

	var details []ports.ColumnStats
	for rows.Next() {
		var d ports.ColumnStats
		if err := rows.Scan(&d.Name, &d.Type); err != nil {
			return nil, fmt.Errorf("sqlite adapter: scan table info %s: %w", table, err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite adapter: iterate table info %s: %w", table, err)
	}
	return details, nil
}

// sampleFirstRow fills Sample from the first row of table, if any.
func (a *Adapter) sampleFirstRow(ctx context.Context, table string, details []ports.ColumnStats) error {
	values := make([]any, len(details))
	dest := make([]any, len(details))
	for i := range values {
		dest[i] = &values[i]
	}

	err := a.db.QueryRowContext(ctx, "SELECT * FROM "+table+" LIMIT 1").Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sqlite adapter: sample %s: %w", table, err)
	}
	for i, v := range values {
		details[i].Sample = ports.Sample(v)
	}
	return nil
}
