package connection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/syssam/loom/dialect"
)

// execQuerier is the database/sql surface shared by *sql.DB, *sql.Conn
// and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn adapts an execQuerier to the dialect.ExecQuerier contract,
// projecting rows into column-keyed maps.
type conn struct {
	ex execQuerier
}

// Exec implements dialect.ExecQuerier.
func (c conn) Exec(ctx context.Context, query string, args []any) (dialect.Result, error) {
	res, err := c.ex.ExecContext(ctx, query, args...)
	if err != nil {
		return dialect.Result{}, fmt.Errorf("connection: exec: %w", err)
	}
	var out dialect.Result
	// Drivers without these capabilities report errors; zero is fine.
	out.RowsAffected, _ = res.RowsAffected()
	out.LastInsertID, _ = res.LastInsertId()
	return out, nil
}

// Query implements dialect.ExecQuerier.
func (c conn) Query(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	rows, err := c.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("connection: query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// scanRows projects every row into a map keyed by column name. Byte
// slices are copied into strings since drivers reuse their buffers
// between Next calls.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var _ dialect.ExecQuerier = conn{}
