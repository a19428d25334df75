package postgres

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
)

const columnInfoQuery = `
	SELECT column_name, data_type
	FROM information_schema.columns
	WHERE table_schema = current_schema() AND table_name = $1
	ORDER BY ordinal_position
`

// Inspect reports row and column counts for every table, with each column's
// type and its value in the first row.
func (a *Adapter) Inspect(ctx context.Context) ([]ports.TableStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ready(); err != nil {
		return nil, err
	}

	var stats []ports.TableStats
	for _, table := range domain.Schema() {
		s := ports.TableStats{Table: table.Name}
		if err := a.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+table.Name).Scan(&s.Rows); err != nil {
			return nil, fmt.Errorf("postgres adapter: count %s: %w", table.Name, err)
		}

		details, err := a.columnInfo(ctx, table.Name)
		if err != nil {
			return nil, err
		}
		if s.Rows > 0 {
			if err := a.sampleFirstRow(ctx, table.Name, details); err != nil {
				return nil, err
			}
		}
		s.Columns = len(details)
		s.Details = details
		stats = append(stats, s)
	}
	return stats, nil
}

func (a *Adapter) columnInfo(ctx context.Context, table string) ([]ports.ColumnStats, error) {
	rows, err := a.db.Query(ctx, columnInfoQuery, table)
	if err != nil {
		return nil, fmt.Errorf("postgres adapter: columns of %s: %w", table, err)
	}
	defer rows.Close()

	var details []ports.ColumnStats
	for rows.Next() {
		var d ports.ColumnStats
		if err := rows.Scan(&d.Name, &d.Type); err != nil {
			return nil, fmt.Errorf("postgres adapter: scan columns of %s: %w", table, err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres adapter: iterate columns of %s: %w", table, err)
	}
	return details, nil
}

// sampleFirstRow fills Sample from the first row of table.
func (a *Adapter) sampleFirstRow(ctx context.Context, table string, details []ports.ColumnStats) error {
	rows, err := a.db.Query(ctx, "SELECT * FROM "+table+" LIMIT 1")
	if err != nil {
		return fmt.Errorf("postgres adapter: sample %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("postgres adapter: sample %s: %w", table, err)
		}
		return nil
	}
	values, err := rows.Values()
	if err != nil {
		return fmt.Errorf("postgres adapter: sample %s: %w", table, err)
	}
	for i := range details {
		if i < len(values) {
			details[i].Sample = ports.Sample(values[i])
		}
	}
	return nil
}
