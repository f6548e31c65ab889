package query_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom/query"
)

func mysql() *query.Builder    { return query.NewBuilder(query.MySQLGrammar()) }
func postgres() *query.Builder { return query.NewBuilder(query.PostgresGrammar()) }
func sqlite() *query.Builder   { return query.NewBuilder(query.SQLiteGrammar()) }
func mssql() *query.Builder    { return query.NewBuilder(query.MSSQLGrammar()) }

func TestCompileSelectBasicWheres(t *testing.T) {
	t.Parallel()

	sql, bindings, err := mysql().
		Table("users").
		Where("active", 1).
		Where("age", ">", 18).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`active` = ? AND `users`.`age` > ?", sql)
	assert.Equal(t, []any{1, 18}, bindings)
}

func TestCompileSelectEmptyWhereIn(t *testing.T) {
	t.Parallel()

	sql, bindings, err := mysql().
		Table("users").
		WhereIn("id", nil).
		ToQmark()
	require.NoError(t, err)
	assert.Contains(t, sql, "0 = 1")
	assert.Empty(t, bindings)
}

func TestCompileSelectEmptyWhereNotIn(t *testing.T) {
	t.Parallel()

	sql, _, err := mysql().
		Table("users").
		Where("active", 1).
		WhereNotIn("id", nil).
		ToQmark()
	require.NoError(t, err)
	assert.Contains(t, sql, "1 = 1")
	assert.Contains(t, sql, "`users`.`active` = ?")
}

func TestCompileSelectPostgresPlaceholders(t *testing.T) {
	t.Parallel()

	sql, bindings, err := postgres().
		Table("users").
		Where("email", "like", "a%").
		Limit(10).
		Offset(20).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "users"."email" LIKE $1 LIMIT 10 OFFSET 20`, sql)
	assert.Equal(t, []any{"a%"}, bindings)
}

func TestCompileSelectPostgresNumbersEveryPlaceholder(t *testing.T) {
	t.Parallel()

	sql, bindings, err := postgres().
		Table("users").
		Where("a", 1).
		Where("b", 2).
		WhereIn("c", []any{3, 4}).
		ToQmark()
	require.NoError(t, err)
	for _, mark := range []string{"$1", "$2", "$3", "$4"} {
		assert.Contains(t, sql, mark)
	}
	assert.NotContains(t, sql, "?")
	assert.Len(t, bindings, 4)
}

func TestBindingsMatchPlaceholderCount(t *testing.T) {
	t.Parallel()

	for name, b := range map[string]*query.Builder{
		"mysql":  mysql(),
		"sqlite": sqlite(),
		"mssql":  mssql(),
	} {
		sql, bindings, err := b.
			Table("orders").
			Where("status", "open").
			WhereIn("region", []any{"eu", "us"}).
			WhereBetween("total", 10, 100).
			Having("total", ">", 5).
			GroupBy("region").
			ToQmark()
		require.NoError(t, err, name)
		assert.Equal(t, len(bindings), strings.Count(sql, "?"), name)
	}
}

func TestCompileSelectQuotingPerDialect(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		b    *query.Builder
		want string
	}{
		"mysql":    {mysql(), "SELECT * FROM `users` WHERE `users`.`id` = ?"},
		"postgres": {postgres(), `SELECT * FROM "users" WHERE "users"."id" = $1`},
		"sqlite":   {sqlite(), `SELECT * FROM "users" WHERE "users"."id" = ?`},
		"mssql":    {mssql(), "SELECT * FROM [users] WHERE [users].[id] = ?"},
	}
	for name, tt := range cases {
		sql, _, err := tt.b.Table("users").Where("id", 1).ToQmark()
		require.NoError(t, err, name)
		assert.Equal(t, tt.want, sql, name)
	}
}

func TestCompileSelectDistinctOrderGroupHaving(t *testing.T) {
	t.Parallel()

	sql, bindings, err := mysql().
		Table("orders").
		Select("region").
		Distinct().
		GroupBy("region").
		Having("total", ">", 100).
		OrderBy("region", "desc").
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT DISTINCT `region` FROM `orders` GROUP BY `orders`.`region` HAVING `orders`.`total` > ? ORDER BY `orders`.`region` DESC",
		sql)
	assert.Equal(t, []any{100}, bindings)
}

func TestCompileSelectAggregateWinsOverColumns(t *testing.T) {
	t.Parallel()

	sql, _, err := mysql().
		Table("users").
		Select("name", "email").
		Aggregate("count", "*").
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS `aggregate` FROM `users`", sql)
}

func TestCompileSelectAlias(t *testing.T) {
	t.Parallel()

	sql, _, err := mysql().
		Table("users as u").
		Select("u.name as username").
		Where("active", 1).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `u`.`name` AS `username` FROM `users` AS `u` WHERE `u`.`active` = ?", sql)
}

func TestCompileJoins(t *testing.T) {
	t.Parallel()

	sql, _, err := mysql().
		Table("users").
		Join("contacts", "users.id", "=", "contacts.user_id").
		LeftJoin("orders", "users.id", "=", "orders.user_id").
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` "+
			"INNER JOIN `contacts` ON `users`.`id` = `contacts`.`user_id` "+
			"LEFT JOIN `orders` ON `users`.`id` = `orders`.`user_id`",
		sql)
}

func TestCompileJoinWherePredicates(t *testing.T) {
	t.Parallel()

	jc := query.NewJoinClause("inner", "contacts").
		On("users.id", "=", "contacts.user_id").
		Where("active", 1)
	sql, bindings, err := mysql().
		Table("users").
		JoinWith(jc).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` INNER JOIN `contacts` ON `users`.`id` = `contacts`.`user_id` AND `contacts`.`active` = ?",
		sql)
	assert.Equal(t, []any{1}, bindings)
}

func TestCompileNestedWhere(t *testing.T) {
	t.Parallel()

	sql, bindings, err := mysql().
		Table("users").
		Where("active", 1).
		WhereNested(func(q *query.Builder) *query.Builder {
			return q.Where("age", ">", 18).OrWhere("verified", true)
		}).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE `users`.`active` = ? AND (`users`.`age` > ? OR `users`.`verified` = ?)",
		sql)
	assert.Equal(t, []any{1, 18, true}, bindings)
}

func TestCompileWhereSubqueries(t *testing.T) {
	t.Parallel()

	sql, bindings, err := mysql().
		Table("users").
		WhereInQuery("id", func(q *query.Builder) *query.Builder {
			return q.Table("orders").Select("user_id").Where("total", ">", 50)
		}).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE `users`.`id` IN (SELECT `user_id` FROM `orders` WHERE `orders`.`total` > ?)",
		sql)
	assert.Equal(t, []any{50}, bindings)
}

func TestCompileWhereExists(t *testing.T) {
	t.Parallel()

	sql, _, err := mysql().
		Table("users").
		WhereExists(func(q *query.Builder) *query.Builder {
			return q.Table("orders").WhereColumn("orders.user_id", "users.id")
		}).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` WHERE EXISTS (SELECT * FROM `orders` WHERE `orders`.`user_id` = `users`.`id`)",
		sql)
}

func TestCompileWhereNullAndRaw(t *testing.T) {
	t.Parallel()

	sql, bindings, err := mysql().
		Table("users").
		WhereNull("deleted_at").
		WhereRaw("`score` > ?", 10).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`deleted_at` IS NULL AND `score` > ?", sql)
	assert.Equal(t, []any{10}, bindings)
}

func TestCompileMSSQLOffsetFetch(t *testing.T) {
	t.Parallel()

	sql, _, err := mssql().Table("users").Limit(10).Offset(20).ToQmark()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM [users] ORDER BY (SELECT NULL) OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY", sql)

	sql, _, err = mssql().Table("users").OrderBy("id", "asc").Limit(10).ToQmark()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM [users] ORDER BY [users].[id] ASC OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY", sql)
}

func TestCompileLocks(t *testing.T) {
	t.Parallel()

	sql, _, err := mysql().Table("users").Where("id", 1).LockForUpdate().ToQmark()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "FOR UPDATE"))

	sql, _, err = mysql().Table("users").SharedLock().ToQmark()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "LOCK IN SHARE MODE"))

	sql, _, err = postgres().Table("users").SharedLock().ToQmark()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "FOR SHARE"))

	// MSSQL emits a table hint instead of a suffix.
	sql, _, err = mssql().Table("users").LockForUpdate().ToQmark()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM [users] WITH (UPDLOCK, ROWLOCK)", sql)

	// SQLite has no lock clause.
	sql, _, err = sqlite().Table("users").LockForUpdate().ToQmark()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users"`, sql)
}

func TestCompileRegexpOperators(t *testing.T) {
	t.Parallel()

	sql, _, err := mysql().Table("users").Where("name", "regexp", "^a").ToQmark()
	require.NoError(t, err)
	assert.Contains(t, sql, "REGEXP ?")

	sql, _, err = postgres().Table("users").Where("name", "regexp", "^a").ToQmark()
	require.NoError(t, err)
	assert.Contains(t, sql, `~ $1`)

	sql, _, err = postgres().Table("users").Where("name", "not regexp", "^a").ToQmark()
	require.NoError(t, err)
	assert.Contains(t, sql, `!~ $1`)

	// MSSQL has no native regex.
	_, _, err = mssql().Table("users").Where("name", "regexp", "^a").ToQmark()
	require.Error(t, err)
}

func TestCompileInsert(t *testing.T) {
	t.Parallel()

	g := query.MySQLGrammar()
	sql, bindings, err := g.CompileInsert(mysql().Table("users"), map[string]any{
		"name":  "Joe",
		"email": "joe@example.com",
	})
	require.NoError(t, err)
	// Columns are emitted in sorted order for deterministic SQL.
	assert.Equal(t, "INSERT INTO `users` (`email`, `name`) VALUES (?, ?)", sql)
	assert.Equal(t, []any{"joe@example.com", "Joe"}, bindings)
}

func TestCompileInsertPostgresReturning(t *testing.T) {
	t.Parallel()

	g := query.PostgresGrammar()
	sql, _, err := g.CompileInsert(postgres().Table("users"), map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`, sql)
}

func TestCompileBulkInsert(t *testing.T) {
	t.Parallel()

	g := query.MySQLGrammar()
	sql, bindings, err := g.CompileBulkInsert(mysql().Table("users"), []map[string]any{
		{"name": "a"},
		{"name": "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`name`) VALUES (?), (?)", sql)
	assert.Equal(t, []any{"a", "b"}, bindings)

	_, _, err = g.CompileBulkInsert(mysql().Table("users"), []map[string]any{
		{"name": "a"},
		{"email": "b"},
	})
	require.Error(t, err)
}

func TestCompileUpdate(t *testing.T) {
	t.Parallel()

	g := query.MySQLGrammar()
	b := mysql().Table("users").Where("id", 1)
	sql, bindings, err := g.CompileUpdate(b, map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `name` = ? WHERE `id` = ?", sql)
	assert.Equal(t, []any{"Joe", 1}, bindings)
}

func TestCompileDelete(t *testing.T) {
	t.Parallel()

	g := query.MySQLGrammar()
	b := mysql().Table("users").Where("admin", 1)
	sql, bindings, err := g.CompileDelete(b)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users` WHERE `admin` = ?", sql)
	assert.Equal(t, []any{1}, bindings)
}

func TestCompileTruncate(t *testing.T) {
	t.Parallel()

	stmts, err := query.MySQLGrammar().CompileTruncate("users", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"TRUNCATE `users`"}, stmts)

	stmts, err = query.MySQLGrammar().CompileTruncate("users", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"SET FOREIGN_KEY_CHECKS = 0",
		"TRUNCATE `users`",
		"SET FOREIGN_KEY_CHECKS = 1",
	}, stmts)

	// SQLite has no TRUNCATE statement.
	stmts, err = query.SQLiteGrammar().CompileTruncate("users", false)
	require.NoError(t, err)
	assert.Equal(t, []string{`DELETE FROM "users"`}, stmts)

	stmts, err = query.PostgresGrammar().CompileTruncate("users", true)
	require.NoError(t, err)
	assert.Equal(t, []string{`TRUNCATE "users" RESTART IDENTITY CASCADE`}, stmts)

	stmts, err = query.MSSQLGrammar().CompileTruncate("users", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"TRUNCATE TABLE [users]"}, stmts)
}

func TestToSQLInterpolates(t *testing.T) {
	t.Parallel()

	sql, err := mysql().
		Table("users").
		Where("name", "O'Brien").
		Where("age", ">", 18).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`name` = 'O''Brien' AND `users`.`age` > 18", sql)
}

func TestToQmarkResetsState(t *testing.T) {
	t.Parallel()

	b := mysql().Table("users").Where("id", 1)
	first, bindings, err := b.ToQmark()
	require.NoError(t, err)
	assert.Contains(t, first, "WHERE")
	assert.Len(t, bindings, 1)

	second, bindings, err := b.ToQmark()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users`", second)
	assert.Empty(t, bindings)
}

func TestSelectRawAndAddSelect(t *testing.T) {
	t.Parallel()

	sql, bindings, err := mysql().
		Table("users").
		SelectRaw("COUNT(*) AS total").
		AddSelect("latest_order", func(q *query.Builder) *query.Builder {
			return q.Table("orders").Select("id").WhereColumn("orders.user_id", "users.id").Limit(1)
		}).
		ToQmark()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COUNT(*) AS total, (SELECT `id` FROM `orders` WHERE `orders`.`user_id` = `users`.`id` LIMIT 1) AS `latest_order` FROM `users`",
		sql)
	assert.Empty(t, bindings)
}

func TestWhenConditional(t *testing.T) {
	t.Parallel()

	sql, _, err := mysql().
		Table("users").
		When(true, func(q *query.Builder) *query.Builder { return q.Where("active", 1) }).
		When(false, func(q *query.Builder) *query.Builder { return q.Where("admin", 1) }).
		ToQmark()
	require.NoError(t, err)
	assert.Contains(t, sql, "`users`.`active` = ?")
	assert.NotContains(t, sql, "admin")
}

func TestGrammarFor(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"mysql", "mariadb", "postgres", "sqlite", "mssql"} {
		g, err := query.GrammarFor(name)
		require.NoError(t, err, name)
		assert.NotNil(t, g)
	}
	_, err := query.GrammarFor("oracle")
	require.Error(t, err)
}
