package connection_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom"
	"github.com/syssam/loom/connection"
)

func mockResolver(t *testing.T) (*connection.Resolver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	r := connection.NewResolver()
	r.UseDB("main", connection.Config{Driver: "sqlite"}, db)
	return r, mock
}

func TestStatementQuery(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE id = ?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Joe"))

	res, err := r.Statement(context.Background(), "SELECT * FROM users WHERE id = ?", []any{1}, "main")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Joe", res.Rows[0]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementExec(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = ?")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 4))

	res, err := r.Statement(context.Background(), "UPDATE users SET active = ?", []any{1}, "main")
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.RowsAffected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementWrapsDriverError(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectExec("DELETE FROM users").WillReturnError(errors.New("locked"))

	_, err := r.Statement(context.Background(), "DELETE FROM users", nil, "main")
	require.Error(t, err)
	var qe *loom.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "DELETE FROM users", qe.SQL)
}

func TestStatementUnknownConnection(t *testing.T) {
	t.Parallel()

	r, _ := mockResolver(t)
	_, err := r.Statement(context.Background(), "SELECT 1", nil, "missing")
	require.Error(t, err)
	assert.True(t, loom.IsConfigurationError(err))
}

func TestTransactionCommit(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (name) VALUES (?)")).
		WithArgs("Joe").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := r.Transaction(context.Background(), "main", func(ctx context.Context) error {
		_, err := r.Statement(ctx, "INSERT INTO users (name) VALUES (?)", []any{"Joe"}, "main")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollbackOnError(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("fail")
	err := r.Transaction(context.Background(), "main", func(context.Context) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollbackOnPanic(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = r.Transaction(context.Background(), "main", func(context.Context) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedTransactionsUseSavepoints(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT SP_1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT SP_1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	require.NoError(t, r.BeginTransaction(ctx, "main"))
	require.NoError(t, r.BeginTransaction(ctx, "main"))
	// Inner failure rolls back to the savepoint, outer commit still
	// applies.
	require.NoError(t, r.Rollback("main"))
	require.NoError(t, r.Commit("main"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedCommitReleasesSavepoint(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT SP_1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT SP_1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	require.NoError(t, r.BeginTransaction(ctx, "main"))
	require.NoError(t, r.BeginTransaction(ctx, "main"))
	require.NoError(t, r.Commit("main"))
	require.NoError(t, r.Commit("main"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitWithoutTransaction(t *testing.T) {
	t.Parallel()

	r, _ := mockResolver(t)
	require.Error(t, r.Commit("main"))
	require.Error(t, r.Rollback("main"))
}

func TestStatementsRouteThroughOpenTransaction(t *testing.T) {
	t.Parallel()

	r, mock := mockResolver(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectCommit()

	ctx := context.Background()
	require.NoError(t, r.BeginTransaction(ctx, "main"))
	_, err := r.Statement(ctx, "SELECT 1", nil, "main")
	require.NoError(t, err)
	require.NoError(t, r.Commit("main"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetConnectionDetailsValidates(t *testing.T) {
	t.Parallel()

	r := connection.NewResolver()
	err := r.SetConnectionDetails(connection.Details{})
	require.Error(t, err)

	err = r.SetConnectionDetails(connection.Details{
		Default: "main",
		Connections: map[string]connection.Config{
			"main": {Driver: "sqlite"},
		},
	})
	require.NoError(t, err)

	cfg, err := r.Connection("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect())
}
