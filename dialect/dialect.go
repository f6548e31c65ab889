// Package dialect provides database dialect abstraction for loom.
//
// It defines the dialect constants shared by the query grammars, the
// connection resolver and the migration platforms, plus the small driver
// contracts the execution layer is written against.
package dialect

import "context"

// Dialect names recognized across the toolkit.
const (
	// MySQL covers both MySQL and MariaDB.
	MySQL = "mysql"
	// Postgres is the PostgreSQL dialect.
	Postgres = "postgres"
	// SQLite is the SQLite dialect.
	SQLite = "sqlite"
	// MSSQL is the Microsoft SQL Server dialect.
	MSSQL = "mssql"
)

// All returns every supported dialect name.
func All() []string {
	return []string{MySQL, Postgres, SQLite, MSSQL}
}

// Valid reports whether name is a supported dialect.
func Valid(name string) bool {
	switch name {
	case MySQL, Postgres, SQLite, MSSQL:
		return true
	}
	return false
}

// Result reports the outcome of an Exec statement. LastInsertID is zero
// on drivers that do not surface it (PostgreSQL returns generated keys
// through RETURNING instead).
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// ExecQuerier wraps the raw statement methods of the execution layer.
// Both connections and open transactions implement it.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args []any) (Result, error)
	// Query executes a statement that returns rows, each projected into
	// a column-name keyed map.
	Query(ctx context.Context, query string, args []any) ([]map[string]any, error)
}

// Driver is the contract the connection resolver exposes per named
// connection.
type Driver interface {
	ExecQuerier
	// Dialect returns the dialect name of the underlying database.
	Dialect() string
	// Close closes the underlying connection pool.
	Close() error
}

// Tx extends ExecQuerier with transaction termination.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
