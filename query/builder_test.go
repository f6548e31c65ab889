package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom"
	"github.com/syssam/loom/dialect"
	"github.com/syssam/loom/query"
)

// fakeExecutor records every dispatched statement and replays canned
// results in order.
type fakeExecutor struct {
	queries  []string
	bindings [][]any
	results  [][]query.Row
	execs    []dialect.Result
	err      error
}

func (f *fakeExecutor) Query(_ context.Context, q string, args []any) ([]query.Row, error) {
	f.queries = append(f.queries, q)
	f.bindings = append(f.bindings, args)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	rows := f.results[0]
	f.results = f.results[1:]
	return rows, nil
}

func (f *fakeExecutor) Exec(_ context.Context, q string, args []any) (dialect.Result, error) {
	f.queries = append(f.queries, q)
	f.bindings = append(f.bindings, args)
	if f.err != nil {
		return dialect.Result{}, f.err
	}
	if len(f.execs) == 0 {
		return dialect.Result{RowsAffected: 1}, nil
	}
	res := f.execs[0]
	f.execs = f.execs[1:]
	return res, nil
}

func TestGetExecutesCompiledQuery(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{"id": int64(1)}}}}
	rows, err := mysql().On(fake).Table("users").Where("active", 1).Get(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	require.Len(t, fake.queries, 1)
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`active` = ?", fake.queries[0])
	assert.Equal(t, []any{1}, fake.bindings[0])
}

func TestFirstLimitsToOne(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{"id": int64(7)}}}}
	row, err := mysql().On(fake).Table("users").First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), row["id"])
	assert.Contains(t, fake.queries[0], "LIMIT 1")
}

func TestFirstReturnsNilWhenEmpty(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	row, err := mysql().On(fake).Table("users").First(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestFirstOrFail(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	_, err := mysql().On(fake).Table("users").FirstOrFail(context.Background())
	require.Error(t, err)
	assert.True(t, loom.IsNotFound(err))
}

func TestFindUsesPrimaryKey(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{"id": int64(3)}}}}
	row, err := mysql().On(fake).Table("users").Find(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row["id"])
	assert.Contains(t, fake.queries[0], "`users`.`id` = ?")
	assert.Equal(t, []any{3}, fake.bindings[0])
}

func TestCountReadsAggregate(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{"aggregate": int64(42)}}}}
	n, err := mysql().On(fake).Table("users").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, "SELECT COUNT(*) AS `aggregate` FROM `users`", fake.queries[0])
}

func TestSumAvgMaxMin(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"aggregate": 10.5}},
		{{"aggregate": 5.25}},
		{{"aggregate": int64(9)}},
		{{"aggregate": int64(1)}},
	}}
	b := func() *query.Builder { return mysql().On(fake).Table("orders") }

	sum, err := b().Sum(context.Background(), "total")
	require.NoError(t, err)
	assert.Equal(t, 10.5, sum)

	avg, err := b().Avg(context.Background(), "total")
	require.NoError(t, err)
	assert.Equal(t, 5.25, avg)

	maxV, err := b().Max(context.Background(), "total")
	require.NoError(t, err)
	assert.Equal(t, int64(9), maxV)

	minV, err := b().Min(context.Background(), "total")
	require.NoError(t, err)
	assert.Equal(t, int64(1), minV)

	assert.Contains(t, fake.queries[0], "SUM(`orders`.`total`)")
	assert.Contains(t, fake.queries[1], "AVG(`orders`.`total`)")
	assert.Contains(t, fake.queries[2], "MAX(`orders`.`total`)")
	assert.Contains(t, fake.queries[3], "MIN(`orders`.`total`)")
}

func TestCreateUsesLastInsertID(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{execs: []dialect.Result{{RowsAffected: 1, LastInsertID: 11}}}
	row, err := mysql().On(fake).Table("users").Create(context.Background(), map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), row["id"])
	assert.Equal(t, "Joe", row["name"])
	assert.Equal(t, "INSERT INTO `users` (`name`) VALUES (?)", fake.queries[0])
}

func TestCreatePostgresReadsReturning(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{"id": int64(5)}}}}
	row, err := postgres().On(fake).Table("users").Create(context.Background(), map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), row["id"])
	assert.Contains(t, fake.queries[0], `RETURNING "id"`)
}

func TestUpdateReturnsAffected(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{execs: []dialect.Result{{RowsAffected: 3}}}
	n, err := mysql().On(fake).Table("users").Where("active", 0).
		Update(context.Background(), map[string]any{"active": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "UPDATE `users` SET `active` = ? WHERE `active` = ?", fake.queries[0])
	assert.Equal(t, []any{1, 0}, fake.bindings[0])
}

func TestIncrementAndDecrement(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	_, err := mysql().On(fake).Table("users").Where("id", 1).Increment(context.Background(), "visits")
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `visits` = `visits` + ? WHERE `id` = ?", fake.queries[0])
	assert.Equal(t, []any{1, 1}, fake.bindings[0])

	_, err = mysql().On(fake).Table("users").Where("id", 1).Decrement(context.Background(), "credits", 5)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `credits` = `credits` - ? WHERE `id` = ?", fake.queries[1])
	assert.Equal(t, []any{5, 1}, fake.bindings[1])
}

func TestDeleteCompiles(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{execs: []dialect.Result{{RowsAffected: 2}}}
	n, err := mysql().On(fake).Table("users").Where("admin", 1).Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "DELETE FROM `users` WHERE `admin` = ?", fake.queries[0])
}

func TestTruncateDispatchesEachStatement(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	err := mysql().On(fake).Table("users").Truncate(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"SET FOREIGN_KEY_CHECKS = 0",
		"TRUNCATE `users`",
		"SET FOREIGN_KEY_CHECKS = 1",
	}, fake.queries)
}

func TestQueryErrorWrapsDriverFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{err: errors.New("boom")}
	_, err := mysql().On(fake).Table("users").Where("id", 1).Get(context.Background())
	require.Error(t, err)
	var qe *loom.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`id` = ?", qe.SQL)
	assert.Equal(t, []any{1}, qe.Bindings)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"aggregate": int64(25)}},
		{{"id": int64(11)}, {"id": int64(12)}},
	}}
	page, err := mysql().On(fake).Table("users").Where("active", 1).
		Paginate(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 10, page.PerPage)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.LastPage)
	assert.Equal(t, 11, page.From)
	assert.Equal(t, 12, page.To)
	require.Len(t, fake.queries, 2)
	assert.Equal(t, "SELECT COUNT(*) AS `aggregate` FROM `users` WHERE `users`.`active` = ?", fake.queries[0])
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`active` = ? LIMIT 10 OFFSET 10", fake.queries[1])
}

func TestSimplePaginate(t *testing.T) {
	t.Parallel()

	rows := []query.Row{{"id": int64(1)}, {"id": int64(2)}, {"id": int64(3)}}
	fake := &fakeExecutor{results: [][]query.Row{rows}}
	page, err := mysql().On(fake).Table("users").SimplePaginate(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Len(t, page.Data, 2)
	assert.Contains(t, fake.queries[0], "LIMIT 3")
}

func TestChunkWalksOffsets(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"id": int64(1)}, {"id": int64(2)}},
		{{"id": int64(3)}},
	}}
	b := mysql().On(fake).Table("users")
	var batches [][]query.Row
	for rows, err := range b.Chunk(context.Background(), 2) {
		require.NoError(t, err)
		batches = append(batches, rows)
	}
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
	assert.Contains(t, fake.queries[0], "LIMIT 2")
	assert.Contains(t, fake.queries[1], "LIMIT 2 OFFSET 2")
}

func TestExists(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{"exists": int64(1)}}}}
	ok, err := mysql().On(fake).Table("users").Where("id", 9).Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "SELECT EXISTS (SELECT * FROM `users` WHERE `users`.`id` = ?) AS `exists`", fake.queries[0])
}

func TestNoExecutorBound(t *testing.T) {
	t.Parallel()

	_, err := mysql().Table("users").Get(context.Background())
	require.Error(t, err)
}
