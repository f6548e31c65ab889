// Package query implements the database-agnostic query builder: an
// accumulator of expression nodes compiled by a dialect Grammar into SQL
// plus an in-order bindings vector, with terminal operations executing
// through a bound dialect.ExecQuerier.
package query

import (
	"context"
	"errors"
	"strconv"

	"github.com/syssam/loom"
	"github.com/syssam/loom/dialect"
)

// Row is a result row keyed by column name.
type Row = map[string]any

// Executor executes compiled statements. The connection resolver provides
// one per named connection; tests inject recording fakes.
type Executor = dialect.ExecQuerier

// Callable receives a builder (a nested group or a fresh subquery
// builder) and returns it after adding clauses.
type Callable func(*Builder) *Builder

// Builder is a fluent accumulator of query expression nodes. Every
// mutator returns the same builder so calls chain; terminal operations
// compile via the grammar and execute through the bound executor.
//
// A Builder is not safe for concurrent mutation; concurrent callers use
// independent builders.
type Builder struct {
	grammar  Grammar
	executor Executor

	table      string
	primaryKey string
	distinct   bool
	columns    []selectColumn
	wheres     []whereClause
	joins      []*JoinClause
	groups     []groupClause
	havings    []havingClause
	orders     []orderClause
	limit      int
	offset     int
	aggregate  *aggregateClause
	lock       lockMode
}

// NewBuilder returns a builder compiling through the given grammar.
func NewBuilder(g Grammar) *Builder {
	return &Builder{grammar: g, primaryKey: "id"}
}

// On binds the executor terminal operations run through.
func (b *Builder) On(exec Executor) *Builder {
	b.executor = exec
	return b
}

// Grammar returns the builder's grammar.
func (b *Builder) Grammar() Grammar { return b.grammar }

// Table sets the target table, accepting an " as " alias
// ("users as u").
func (b *Builder) Table(name string) *Builder {
	b.table = name
	return b
}

// TableName returns the target table reference.
func (b *Builder) TableName() string { return b.table }

// PrimaryKey overrides the primary key column used by Find and
// RETURNING clauses. Default is "id".
func (b *Builder) PrimaryKey(name string) *Builder {
	b.primaryKey = name
	return b
}

// PrimaryKeyName returns the configured primary key column.
func (b *Builder) PrimaryKeyName() string { return b.primaryKey }

func (b *Builder) tableRef() string { return b.table }

// qualifier is the identifier where/order/group columns are prefixed
// with: the table alias when set, the table name otherwise.
func (b *Builder) qualifier() string {
	if _, alias, ok := splitAlias(b.table); ok {
		return alias
	}
	return b.table
}

// fork spawns a sibling builder sharing grammar and executor, used for
// subqueries.
func (b *Builder) fork() *Builder {
	nb := NewBuilder(b.grammar)
	nb.executor = b.executor
	return nb
}

// forkTable spawns a sibling bound to the same table, used for nested
// where groups so columns qualify identically.
func (b *Builder) forkTable() *Builder {
	nb := b.fork()
	nb.table = b.table
	nb.primaryKey = b.primaryKey
	return nb
}

// clone returns a deep copy of the accumulated state. Emitted queries
// never share node slices with the source.
func (b *Builder) clone() *Builder {
	nb := &Builder{
		grammar:    b.grammar,
		executor:   b.executor,
		table:      b.table,
		primaryKey: b.primaryKey,
		distinct:   b.distinct,
		limit:      b.limit,
		offset:     b.offset,
		lock:       b.lock,
	}
	nb.columns = append([]selectColumn(nil), b.columns...)
	nb.wheres = append([]whereClause(nil), b.wheres...)
	nb.joins = append([]*JoinClause(nil), b.joins...)
	nb.groups = append([]groupClause(nil), b.groups...)
	nb.havings = append([]havingClause(nil), b.havings...)
	nb.orders = append([]orderClause(nil), b.orders...)
	if b.aggregate != nil {
		agg := *b.aggregate
		nb.aggregate = &agg
	}
	return nb
}

// reset clears accumulated clause state, keeping the table, grammar,
// executor and primary key.
func (b *Builder) reset() {
	b.distinct = false
	b.columns = nil
	b.wheres = nil
	b.joins = nil
	b.groups = nil
	b.havings = nil
	b.orders = nil
	b.limit = 0
	b.offset = 0
	b.aggregate = nil
	b.lock = lockNone
}

// Select sets the projected columns; an empty select list compiles to *.
func (b *Builder) Select(columns ...string) *Builder {
	for _, c := range columns {
		b.columns = append(b.columns, selectColumn{column: c})
	}
	return b
}

// SelectRaw appends a raw select fragment with optional bindings.
func (b *Builder) SelectRaw(sql string, bindings ...any) *Builder {
	b.columns = append(b.columns, selectColumn{isRaw: true, raw: NewRaw(sql, bindings...)})
	return b
}

// AddSelect appends a correlated subquery column aliased alias.
func (b *Builder) AddSelect(alias string, fn Callable) *Builder {
	sub := fn(b.fork())
	b.columns = append(b.columns, selectColumn{sub: sub, alias: alias})
	return b
}

// Distinct marks the query SELECT DISTINCT.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// splitOperator interprets the trailing arguments of Where and Having:
// one argument means equality, two mean (operator, value).
func splitOperator(args []any) (string, any) {
	switch len(args) {
	case 0:
		return "=", nil
	case 1:
		return "=", args[0]
	default:
		op, ok := args[0].(string)
		if !ok {
			return "=", args[0]
		}
		return op, args[1]
	}
}

// Where adds a basic predicate: Where("age", 18) compiles to equality,
// Where("age", ">", 18) uses the given operator.
func (b *Builder) Where(column string, args ...any) *Builder {
	op, value := splitOperator(args)
	b.wheres = append(b.wheres, whereClause{
		typ: whereBasic, column: column, operator: op, value: value, boolean: "AND",
	})
	return b
}

// OrWhere adds an OR-joined basic predicate.
func (b *Builder) OrWhere(column string, args ...any) *Builder {
	op, value := splitOperator(args)
	b.wheres = append(b.wheres, whereClause{
		typ: whereBasic, column: column, operator: op, value: value, boolean: "OR",
	})
	return b
}

// WhereMap adds AND-joined equalities for every entry, in sorted column
// order for deterministic SQL.
func (b *Builder) WhereMap(values map[string]any) *Builder {
	for _, c := range sortedKeys(values) {
		b.Where(c, values[c])
	}
	return b
}

// WhereNested adds a parenthesized predicate group built by fn.
func (b *Builder) WhereNested(fn Callable) *Builder {
	sub := fn(b.forkTable())
	b.wheres = append(b.wheres, whereClause{typ: whereNested, sub: sub, boolean: "AND"})
	return b
}

// OrWhereNested adds an OR-joined parenthesized predicate group.
func (b *Builder) OrWhereNested(fn Callable) *Builder {
	sub := fn(b.forkTable())
	b.wheres = append(b.wheres, whereClause{typ: whereNested, sub: sub, boolean: "OR"})
	return b
}

// WhereIn constrains column to the given list. An empty list compiles to
// 0 = 1 so the query returns no rows without a syntax error.
func (b *Builder) WhereIn(column string, values []any) *Builder {
	b.wheres = append(b.wheres, whereClause{
		typ: whereIn, column: column, values: values, boolean: "AND",
	})
	return b
}

// WhereNotIn excludes the given list. An empty list compiles to 1 = 1,
// returning all rows that satisfy the other predicates.
func (b *Builder) WhereNotIn(column string, values []any) *Builder {
	b.wheres = append(b.wheres, whereClause{
		typ: whereIn, column: column, values: values, boolean: "AND", negated: true,
	})
	return b
}

// WhereInQuery constrains column to the rows of a subquery built by fn.
func (b *Builder) WhereInQuery(column string, fn Callable) *Builder {
	sub := fn(b.fork())
	b.wheres = append(b.wheres, whereClause{
		typ: whereInSub, column: column, sub: sub, boolean: "AND",
	})
	return b
}

// WhereNotInQuery excludes the rows of a subquery built by fn.
func (b *Builder) WhereNotInQuery(column string, fn Callable) *Builder {
	sub := fn(b.fork())
	b.wheres = append(b.wheres, whereClause{
		typ: whereInSub, column: column, sub: sub, boolean: "AND", negated: true,
	})
	return b
}

// WhereBetween constrains column to the inclusive range [low, high].
func (b *Builder) WhereBetween(column string, low, high any) *Builder {
	b.wheres = append(b.wheres, whereClause{
		typ: whereBetween, column: column, low: low, high: high, boolean: "AND",
	})
	return b
}

// WhereNotBetween excludes the inclusive range [low, high].
func (b *Builder) WhereNotBetween(column string, low, high any) *Builder {
	b.wheres = append(b.wheres, whereClause{
		typ: whereBetween, column: column, low: low, high: high, boolean: "AND", negated: true,
	})
	return b
}

// WhereNull constrains column to IS NULL.
func (b *Builder) WhereNull(column string) *Builder {
	b.wheres = append(b.wheres, whereClause{typ: whereNull, column: column, boolean: "AND"})
	return b
}

// WhereNotNull constrains column to IS NOT NULL.
func (b *Builder) WhereNotNull(column string) *Builder {
	b.wheres = append(b.wheres, whereClause{typ: whereNull, column: column, boolean: "AND", negated: true})
	return b
}

// OrWhereNull adds an OR-joined IS NULL predicate.
func (b *Builder) OrWhereNull(column string) *Builder {
	b.wheres = append(b.wheres, whereClause{typ: whereNull, column: column, boolean: "OR"})
	return b
}

// WhereLike adds a LIKE predicate.
func (b *Builder) WhereLike(column string, value any) *Builder {
	return b.Where(column, "like", value)
}

// WhereNotLike adds a NOT LIKE predicate.
func (b *Builder) WhereNotLike(column string, value any) *Builder {
	return b.Where(column, "not like", value)
}

// WhereColumn compares two columns: WhereColumn("a", "b") for equality or
// WhereColumn("a", ">", "b") with an operator.
func (b *Builder) WhereColumn(first string, args ...string) *Builder {
	op, second := "=", ""
	switch len(args) {
	case 1:
		second = args[0]
	default:
		op, second = args[0], args[1]
	}
	b.wheres = append(b.wheres, whereClause{
		typ: whereColumn, column: first, operator: op, second: second, boolean: "AND",
	})
	return b
}

// WhereExists constrains on the existence of rows in the subquery built
// by fn.
func (b *Builder) WhereExists(fn Callable) *Builder {
	sub := fn(b.fork())
	b.wheres = append(b.wheres, whereClause{typ: whereExists, sub: sub, boolean: "AND"})
	return b
}

// WhereNotExists constrains on the absence of rows in the subquery built
// by fn.
func (b *Builder) WhereNotExists(fn Callable) *Builder {
	sub := fn(b.fork())
	b.wheres = append(b.wheres, whereClause{typ: whereExists, sub: sub, boolean: "AND", negated: true})
	return b
}

// WhereSub compares column against a scalar subquery built by fn.
func (b *Builder) WhereSub(column, operator string, fn Callable) *Builder {
	sub := fn(b.fork())
	b.wheres = append(b.wheres, whereClause{
		typ: whereSub, column: column, operator: operator, sub: sub, boolean: "AND",
	})
	return b
}

// WhereRaw embeds a raw predicate with optional bindings.
func (b *Builder) WhereRaw(sql string, bindings ...any) *Builder {
	b.wheres = append(b.wheres, whereClause{typ: whereRaw, raw: NewRaw(sql, bindings...), boolean: "AND"})
	return b
}

// OrWhereRaw embeds an OR-joined raw predicate.
func (b *Builder) OrWhereRaw(sql string, bindings ...any) *Builder {
	b.wheres = append(b.wheres, whereClause{typ: whereRaw, raw: NewRaw(sql, bindings...), boolean: "OR"})
	return b
}

// When invokes fn on the builder only if cond is true, enabling fluent
// conditionals.
func (b *Builder) When(cond bool, fn Callable) *Builder {
	if cond {
		return fn(b)
	}
	return b
}

// Join adds an INNER JOIN with a single column-to-column condition.
func (b *Builder) Join(table, first, operator, second string) *Builder {
	b.joins = append(b.joins, NewJoinClause("inner", table).On(first, operator, second))
	return b
}

// LeftJoin adds a LEFT JOIN with a single column-to-column condition.
func (b *Builder) LeftJoin(table, first, operator, second string) *Builder {
	b.joins = append(b.joins, NewJoinClause("left", table).On(first, operator, second))
	return b
}

// RightJoin adds a RIGHT JOIN with a single column-to-column condition.
func (b *Builder) RightJoin(table, first, operator, second string) *Builder {
	b.joins = append(b.joins, NewJoinClause("right", table).On(first, operator, second))
	return b
}

// JoinOn adds a join of the given kind whose conditions are built by fn.
func (b *Builder) JoinOn(kind, table string, fn func(*JoinClause)) *Builder {
	jc := NewJoinClause(kind, table)
	fn(jc)
	b.joins = append(b.joins, jc)
	return b
}

// JoinWith appends a prebuilt JoinClause.
func (b *Builder) JoinWith(jc *JoinClause) *Builder {
	b.joins = append(b.joins, jc)
	return b
}

// GroupBy appends grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	for _, c := range columns {
		b.groups = append(b.groups, groupClause{column: c})
	}
	return b
}

// GroupByRaw appends a raw grouping fragment.
func (b *Builder) GroupByRaw(sql string, bindings ...any) *Builder {
	b.groups = append(b.groups, groupClause{isRaw: true, raw: NewRaw(sql, bindings...)})
	return b
}

// Having adds a HAVING predicate, mirroring Where's argument forms.
func (b *Builder) Having(column string, args ...any) *Builder {
	if len(args) == 0 {
		b.havings = append(b.havings, havingClause{column: column, boolean: "AND"})
		return b
	}
	op, value := splitOperator(args)
	b.havings = append(b.havings, havingClause{
		column: column, operator: op, value: value, hasValue: true, boolean: "AND",
	})
	return b
}

// HavingRaw embeds a raw HAVING fragment with optional bindings.
func (b *Builder) HavingRaw(sql string, bindings ...any) *Builder {
	b.havings = append(b.havings, havingClause{isRaw: true, raw: NewRaw(sql, bindings...), boolean: "AND"})
	return b
}

// OrderBy appends an ordering; direction is "asc" or "desc".
func (b *Builder) OrderBy(column, direction string) *Builder {
	b.orders = append(b.orders, orderClause{column: column, direction: direction})
	return b
}

// OrderByRaw appends a raw ordering fragment.
func (b *Builder) OrderByRaw(sql string, bindings ...any) *Builder {
	b.orders = append(b.orders, orderClause{isRaw: true, raw: NewRaw(sql, bindings...)})
	return b
}

// Limit caps the number of returned rows.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// SharedLock requests a shared row lock (dialect-dependent clause).
func (b *Builder) SharedLock() *Builder {
	b.lock = lockShared
	return b
}

// LockForUpdate requests an exclusive row lock (FOR UPDATE; MSSQL emits
// a WITH (UPDLOCK, ROWLOCK) table hint instead).
func (b *Builder) LockForUpdate() *Builder {
	b.lock = lockUpdate
	return b
}

// Aggregate sets the aggregate projection; when present it wins over any
// explicit select columns.
func (b *Builder) Aggregate(fn, column string) *Builder {
	b.aggregate = &aggregateClause{fn: fn, column: column}
	return b
}

// ToSQL compiles the SELECT and interpolates bindings into the SQL, for
// debugging only. The builder state is left intact.
func (b *Builder) ToSQL() (string, error) {
	sql, args, err := b.grammar.CompileSelect(b)
	if err != nil {
		return "", err
	}
	if g, ok := b.grammar.(*grammar); ok {
		return g.interpolateAny(sql, args), nil
	}
	return sql, nil
}

// ToQmark compiles the SELECT into placeholder SQL plus the bindings
// vector, the form sent to the driver. As a documented side effect the
// builder's accumulated clause state is reset.
func (b *Builder) ToQmark() (string, []any, error) {
	sql, args, err := b.grammar.CompileSelect(b)
	if err != nil {
		return "", nil, err
	}
	b.reset()
	return sql, args, nil
}

func (b *Builder) requireExecutor() error {
	if b.executor == nil {
		return errors.New("query: no executor bound; call On first")
	}
	return nil
}

// wrapErr wraps driver errors into loom.QueryError; compile errors and
// already-wrapped errors pass through.
func wrapErr(sql string, args []any, err error) error {
	if err == nil {
		return nil
	}
	var qe *loom.QueryError
	if errors.As(err, &qe) {
		return err
	}
	return loom.NewQueryError(sql, args, err)
}

// Get executes the SELECT and returns all matching rows.
func (b *Builder) Get(ctx context.Context) ([]Row, error) {
	if err := b.requireExecutor(); err != nil {
		return nil, err
	}
	sql, args, err := b.ToQmark()
	if err != nil {
		return nil, err
	}
	rows, err := b.executor.Query(ctx, sql, args)
	if err != nil {
		return nil, wrapErr(sql, args, err)
	}
	return rows, nil
}

// All is an alias for Get.
func (b *Builder) All(ctx context.Context) ([]Row, error) { return b.Get(ctx) }

// First returns the first matching row, or nil when none matches.
func (b *Builder) First(ctx context.Context) (Row, error) {
	rows, err := b.Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FirstOrFail returns the first matching row or a NotFoundError.
func (b *Builder) FirstOrFail(ctx context.Context) (Row, error) {
	table := b.table
	row, err := b.First(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, loom.NewNotFoundError(table, nil)
	}
	return row, nil
}

// Find returns the row whose primary key equals id, or nil.
func (b *Builder) Find(ctx context.Context, id any) (Row, error) {
	return b.Where(b.primaryKey, id).First(ctx)
}

// FindOrFail returns the row whose primary key equals id or a
// NotFoundError carrying the key.
func (b *Builder) FindOrFail(ctx context.Context, id any) (Row, error) {
	table := b.table
	row, err := b.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, loom.NewNotFoundError(table, id)
	}
	return row, nil
}

// FindMany returns the rows whose primary keys are in ids.
func (b *Builder) FindMany(ctx context.Context, ids []any) ([]Row, error) {
	return b.WhereIn(b.primaryKey, ids).Get(ctx)
}

func (b *Builder) aggregateValue(ctx context.Context, fn, column string) (any, error) {
	rows, err := b.Aggregate(fn, column).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0]["aggregate"], nil
}

// Count executes COUNT over the accumulated predicates.
func (b *Builder) Count(ctx context.Context, column ...string) (int64, error) {
	col := "*"
	if len(column) > 0 {
		col = column[0]
	}
	v, err := b.aggregateValue(ctx, "count", col)
	if err != nil {
		return 0, err
	}
	return asInt64(v), nil
}

// Sum executes SUM over column.
func (b *Builder) Sum(ctx context.Context, column string) (float64, error) {
	v, err := b.aggregateValue(ctx, "sum", column)
	if err != nil {
		return 0, err
	}
	return asFloat64(v), nil
}

// Avg executes AVG over column.
func (b *Builder) Avg(ctx context.Context, column string) (float64, error) {
	v, err := b.aggregateValue(ctx, "avg", column)
	if err != nil {
		return 0, err
	}
	return asFloat64(v), nil
}

// Max executes MAX over column.
func (b *Builder) Max(ctx context.Context, column string) (any, error) {
	return b.aggregateValue(ctx, "max", column)
}

// Min executes MIN over column.
func (b *Builder) Min(ctx context.Context, column string) (any, error) {
	return b.aggregateValue(ctx, "min", column)
}

// Exists reports whether any row matches the accumulated predicates.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	if err := b.requireExecutor(); err != nil {
		return false, err
	}
	sql, args, err := b.grammar.CompileExists(b)
	if err != nil {
		return false, err
	}
	b.reset()
	rows, err := b.executor.Query(ctx, sql, args)
	if err != nil {
		return false, wrapErr(sql, args, err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	return asInt64(rows[0]["exists"]) > 0, nil
}

// Create inserts values as a single row and returns the row including the
// generated primary key when the driver surfaces it.
func (b *Builder) Create(ctx context.Context, values map[string]any) (Row, error) {
	if err := b.requireExecutor(); err != nil {
		return nil, err
	}
	sql, args, err := b.grammar.CompileInsert(b, values)
	if err != nil {
		return nil, err
	}
	out := make(Row, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	if b.grammar.SupportsReturning() && b.primaryKey != "" {
		rows, err := b.executor.Query(ctx, sql, args)
		if err != nil {
			return nil, wrapErr(sql, args, err)
		}
		if len(rows) > 0 {
			out[b.primaryKey] = rows[0][b.primaryKey]
		}
		b.reset()
		return out, nil
	}
	res, err := b.executor.Exec(ctx, sql, args)
	if err != nil {
		return nil, wrapErr(sql, args, err)
	}
	if _, set := out[b.primaryKey]; !set && res.LastInsertID != 0 {
		out[b.primaryKey] = res.LastInsertID
	}
	b.reset()
	return out, nil
}

// BulkCreate inserts rows in a single statement and returns the number
// of inserted rows.
func (b *Builder) BulkCreate(ctx context.Context, rows []map[string]any) (int64, error) {
	if err := b.requireExecutor(); err != nil {
		return 0, err
	}
	sql, args, err := b.grammar.CompileBulkInsert(b, rows)
	if err != nil {
		return 0, err
	}
	res, err := b.executor.Exec(ctx, sql, args)
	if err != nil {
		return 0, wrapErr(sql, args, err)
	}
	b.reset()
	return res.RowsAffected, nil
}

// Update applies values to the rows matching the accumulated predicates
// and returns the affected count.
func (b *Builder) Update(ctx context.Context, values map[string]any) (int64, error) {
	if err := b.requireExecutor(); err != nil {
		return 0, err
	}
	sql, args, err := b.grammar.CompileUpdate(b, values)
	if err != nil {
		return 0, err
	}
	res, err := b.executor.Exec(ctx, sql, args)
	if err != nil {
		return 0, wrapErr(sql, args, err)
	}
	b.reset()
	return res.RowsAffected, nil
}

// Delete removes the rows matching the accumulated predicates and
// returns the affected count.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	if err := b.requireExecutor(); err != nil {
		return 0, err
	}
	sql, args, err := b.grammar.CompileDelete(b)
	if err != nil {
		return 0, err
	}
	res, err := b.executor.Exec(ctx, sql, args)
	if err != nil {
		return 0, wrapErr(sql, args, err)
	}
	b.reset()
	return res.RowsAffected, nil
}

// Truncate clears the table. With foreignKeys set, referential checks
// are suspended around the truncation on dialects that need it.
func (b *Builder) Truncate(ctx context.Context, foreignKeys bool) error {
	if err := b.requireExecutor(); err != nil {
		return err
	}
	stmts, err := b.grammar.CompileTruncate(b.table, foreignKeys)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := b.executor.Exec(ctx, stmt, nil); err != nil {
			return wrapErr(stmt, nil, err)
		}
	}
	return nil
}

// Increment adds by (default 1) to column on the matching rows.
func (b *Builder) Increment(ctx context.Context, column string, by ...int) (int64, error) {
	return b.crement(ctx, column, "+", by)
}

// Decrement subtracts by (default 1) from column on the matching rows.
func (b *Builder) Decrement(ctx context.Context, column string, by ...int) (int64, error) {
	return b.crement(ctx, column, "-", by)
}

func (b *Builder) crement(ctx context.Context, column, op string, by []int) (int64, error) {
	amount := 1
	if len(by) > 0 {
		amount = by[0]
	}
	expr := NewRaw(b.grammar.Wrap(column)+" "+op+" ?", amount)
	return b.Update(ctx, map[string]any{column: expr})
}

// asInt64 coerces a driver value into int64.
func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case []byte:
		n, _ := strconv.ParseInt(string(t), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

// asFloat64 coerces a driver value into float64.
func asFloat64(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case []byte:
		f, _ := strconv.ParseFloat(string(t), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}

// interpolateAny handles both qmark and numbered placeholder forms.
func (g *grammar) interpolateAny(sql string, bindings []any) string {
	if g.numbered {
		return numberedRe.ReplaceAllStringFunc(sql, func(m string) string {
			n, err := strconv.Atoi(m[1:])
			if err != nil || n < 1 || n > len(bindings) {
				return m
			}
			return g.literal(bindings[n-1])
		})
	}
	return g.interpolate(sql, bindings)
}
