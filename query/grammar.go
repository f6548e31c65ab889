package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/syssam/loom/dialect"
)

var numberedRe = regexp.MustCompile(`\$\d+`)

// Grammar compiles accumulated builder state into dialect-specific SQL
// plus an in-order bindings vector. The AST always stores placeholders as
// `?`; grammars that use another form (PostgreSQL `$n`) rewrite them at
// the end of compilation.
type Grammar interface {
	// Dialect returns the dialect name this grammar compiles for.
	Dialect() string
	// Wrap quotes an identifier, handling dotted qualification and a
	// trailing case-insensitive " as " alias.
	Wrap(identifier string) string
	// WrapTable quotes a table reference with an optional alias.
	WrapTable(table string) string
	// SupportsReturning reports whether INSERT can append a RETURNING
	// clause to surface generated keys.
	SupportsReturning() bool

	CompileSelect(b *Builder) (string, []any, error)
	CompileExists(b *Builder) (string, []any, error)
	CompileInsert(b *Builder, values map[string]any) (string, []any, error)
	CompileBulkInsert(b *Builder, rows []map[string]any) (string, []any, error)
	CompileUpdate(b *Builder, values map[string]any) (string, []any, error)
	CompileDelete(b *Builder) (string, []any, error)
	CompileTruncate(table string, foreignKeys bool) ([]string, error)
}

// grammar is a data-driven Grammar implementation; the four dialects are
// instances of it with different conventions.
type grammar struct {
	name        string
	quoteOpen   string
	quoteClose  string
	numbered    bool
	offsetFetch bool
	tableHints  bool
	returning   bool
	noTruncate  bool
	regexpOp    string
	notRegexpOp string
	sharedLock  string
	updateLock  string
}

// MySQLGrammar returns the grammar for MySQL and MariaDB: backtick
// quoting, `?` placeholders, LIMIT/OFFSET, FOR UPDATE locks.
func MySQLGrammar() Grammar {
	return &grammar{
		name:        dialect.MySQL,
		quoteOpen:   "`",
		quoteClose:  "`",
		regexpOp:    "REGEXP",
		notRegexpOp: "NOT REGEXP",
		sharedLock:  "LOCK IN SHARE MODE",
		updateLock:  "FOR UPDATE",
	}
}

// PostgresGrammar returns the grammar for PostgreSQL: double-quote
// quoting, numbered `$n` placeholders, `~` regexp, RETURNING support.
func PostgresGrammar() Grammar {
	return &grammar{
		name:        dialect.Postgres,
		quoteOpen:   `"`,
		quoteClose:  `"`,
		numbered:    true,
		returning:   true,
		regexpOp:    "~",
		notRegexpOp: "!~",
		sharedLock:  "FOR SHARE",
		updateLock:  "FOR UPDATE",
	}
}

// SQLiteGrammar returns the grammar for SQLite: double-quote quoting,
// `?` placeholders, no lock clauses, DELETE in place of TRUNCATE.
func SQLiteGrammar() Grammar {
	return &grammar{
		name:        dialect.SQLite,
		quoteOpen:   `"`,
		quoteClose:  `"`,
		noTruncate:  true,
		regexpOp:    "REGEXP",
		notRegexpOp: "NOT REGEXP",
	}
}

// MSSQLGrammar returns the grammar for Microsoft SQL Server: bracket
// quoting, OFFSET/FETCH paging, table-hint locks, no regexp operator.
func MSSQLGrammar() Grammar {
	return &grammar{
		name:        dialect.MSSQL,
		quoteOpen:   "[",
		quoteClose:  "]",
		offsetFetch: true,
		tableHints:  true,
		sharedLock:  "WITH (HOLDLOCK, ROWLOCK)",
		updateLock:  "WITH (UPDLOCK, ROWLOCK)",
	}
}

// GrammarFor returns the grammar for the given dialect name.
func GrammarFor(name string) (Grammar, error) {
	switch name {
	case dialect.MySQL, "mariadb":
		return MySQLGrammar(), nil
	case dialect.Postgres:
		return PostgresGrammar(), nil
	case dialect.SQLite:
		return SQLiteGrammar(), nil
	case dialect.MSSQL:
		return MSSQLGrammar(), nil
	}
	return nil, fmt.Errorf("query: unknown dialect %q", name)
}

func (g *grammar) Dialect() string         { return g.name }
func (g *grammar) SupportsReturning() bool { return g.returning }

func (g *grammar) wrapOne(segment string) string {
	if segment == "*" {
		return segment
	}
	return g.quoteOpen + segment + g.quoteClose
}

// Wrap quotes an identifier: dotted segments are quoted individually and
// a case-insensitive " as " suffix becomes a quoted alias.
func (g *grammar) Wrap(identifier string) string {
	if expr, alias, ok := splitAlias(identifier); ok {
		return g.Wrap(expr) + " AS " + g.wrapOne(alias)
	}
	parts := strings.Split(identifier, ".")
	for i, p := range parts {
		parts[i] = g.wrapOne(p)
	}
	return strings.Join(parts, ".")
}

// WrapTable quotes a table reference, honoring an " as " alias.
func (g *grammar) WrapTable(table string) string {
	if expr, alias, ok := splitAlias(table); ok {
		return g.Wrap(expr) + " AS " + g.wrapOne(alias)
	}
	return g.Wrap(table)
}

// qualify wraps column, prefixing it with qualifier unless it is already
// qualified or raw star.
func (g *grammar) qualify(qualifier, column string) string {
	if qualifier == "" || strings.Contains(column, ".") {
		return g.Wrap(column)
	}
	return g.Wrap(qualifier + "." + column)
}

// splitAlias splits "expr as alias" on the first case-insensitive " as ".
func splitAlias(s string) (expr, alias string, ok bool) {
	lower := strings.ToLower(s)
	if i := strings.Index(lower, " as "); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+4:]), true
	}
	return s, "", false
}

// Binding buckets, concatenated in this order to form the final vector.
var bucketOrder = []string{"select", "from", "join", "where", "group", "having", "order", "limit"}

type argBuf struct {
	buckets map[string][]any
}

func newArgBuf() *argBuf {
	return &argBuf{buckets: make(map[string][]any)}
}

func (a *argBuf) add(bucket string, vals ...any) {
	a.buckets[bucket] = append(a.buckets[bucket], vals...)
}

func (a *argBuf) list() []any {
	out := []any{}
	for _, b := range bucketOrder {
		out = append(out, a.buckets[b]...)
	}
	return out
}

// operators accepted by basic where and having clauses.
var operators = map[string]string{
	"=": "=", "<": "<", ">": ">", "<=": "<=", ">=": ">=",
	"!=": "!=", "<>": "<>",
	"like": "LIKE", "not like": "NOT LIKE",
	"regexp": "regexp", "not regexp": "not regexp",
}

func (g *grammar) operator(op string) (string, error) {
	normalized, ok := operators[strings.ToLower(op)]
	if !ok {
		return "", fmt.Errorf("query: unsupported operator %q", op)
	}
	switch normalized {
	case "regexp":
		if g.regexpOp == "" {
			return "", fmt.Errorf("query: dialect %s has no regexp operator", g.name)
		}
		return g.regexpOp, nil
	case "not regexp":
		if g.notRegexpOp == "" {
			return "", fmt.Errorf("query: dialect %s has no regexp operator", g.name)
		}
		return g.notRegexpOp, nil
	}
	return normalized, nil
}

// CompileSelect compiles the full SELECT statement in clause order:
// columns, FROM, joins, WHERE, GROUP BY, HAVING, ORDER BY, LIMIT/OFFSET
// and the lock suffix.
func (g *grammar) CompileSelect(b *Builder) (string, []any, error) {
	args := newArgBuf()
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	cols, err := g.compileColumns(b, args)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(g.WrapTable(b.tableRef()))
	if g.tableHints && b.lock != lockNone {
		sb.WriteString(" " + g.lockClause(b.lock))
	}
	for _, j := range b.joins {
		jc, err := g.compileJoin(b, j, args)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" " + jc)
	}
	if len(b.wheres) > 0 {
		wc, err := g.compileWheres(b.wheres, b.qualifier(), "where", args)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE " + wc)
	}
	if len(b.groups) > 0 {
		parts := make([]string, len(b.groups))
		for i, grp := range b.groups {
			if grp.isRaw {
				parts[i] = grp.raw.SQL
				args.add("group", grp.raw.Bindings...)
			} else {
				parts[i] = g.qualify(b.qualifier(), grp.column)
			}
		}
		sb.WriteString(" GROUP BY " + strings.Join(parts, ", "))
	}
	if len(b.havings) > 0 {
		hc, err := g.compileHavings(b, args)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" HAVING " + hc)
	}
	if len(b.orders) > 0 {
		sb.WriteString(" ORDER BY " + g.compileOrders(b, args))
	}
	g.compileLimit(b, &sb)
	if !g.tableHints && b.lock != lockNone {
		if lc := g.lockClause(b.lock); lc != "" {
			sb.WriteString(" " + lc)
		}
	}
	return g.finalize(sb.String()), args.list(), nil
}

func (g *grammar) compileColumns(b *Builder, args *argBuf) (string, error) {
	// When both an aggregate and explicit columns are present the
	// aggregate wins and columns are discarded.
	if agg := b.aggregate; agg != nil {
		col := agg.column
		if col != "*" {
			col = g.qualify(b.qualifier(), col)
		}
		alias := agg.alias
		if alias == "" {
			alias = "aggregate"
		}
		return fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(agg.fn), col, g.wrapOne(alias)), nil
	}
	if len(b.columns) == 0 {
		return "*", nil
	}
	parts := make([]string, 0, len(b.columns))
	for _, c := range b.columns {
		switch {
		case c.isRaw:
			parts = append(parts, c.raw.SQL)
			args.add("select", c.raw.Bindings...)
		case c.sub != nil:
			sql, sargs, err := g.CompileSelect(c.sub)
			if err != nil {
				return "", err
			}
			sql = stripFinalized(g, sql)
			parts = append(parts, "("+sql+") AS "+g.wrapOne(c.alias))
			args.add("select", sargs...)
		default:
			parts = append(parts, g.Wrap(c.column))
		}
	}
	return strings.Join(parts, ", "), nil
}

func (g *grammar) compileJoin(b *Builder, j *JoinClause, args *argBuf) (string, error) {
	var conds []string
	for i, on := range j.ons {
		cond := g.Wrap(on.first) + " " + on.operator + " " + g.Wrap(on.second)
		if i > 0 {
			cond = on.boolean + " " + cond
		}
		conds = append(conds, cond)
	}
	if len(j.wheres) > 0 {
		wc, err := g.compileWheres(j.wheres, joinQualifier(j.table), "join", args)
		if err != nil {
			return "", err
		}
		if len(conds) > 0 {
			wc = "AND " + wc
		}
		conds = append(conds, wc)
	}
	return fmt.Sprintf("%s JOIN %s ON %s", j.kind, g.WrapTable(j.table), strings.Join(conds, " ")), nil
}

func joinQualifier(table string) string {
	if _, alias, ok := splitAlias(table); ok {
		return alias
	}
	return table
}

// compileWheres compiles a predicate list. The first clause omits its
// boolean connector.
func (g *grammar) compileWheres(wheres []whereClause, qualifier, bucket string, args *argBuf) (string, error) {
	var sb strings.Builder
	for i, w := range wheres {
		part, err := g.compileWhere(w, qualifier, bucket, args)
		if err != nil {
			return "", err
		}
		if i > 0 {
			sb.WriteString(" " + w.boolean + " ")
		}
		sb.WriteString(part)
	}
	return sb.String(), nil
}

func (g *grammar) compileWhere(w whereClause, qualifier, bucket string, args *argBuf) (string, error) {
	switch w.typ {
	case whereBasic:
		op, err := g.operator(w.operator)
		if err != nil {
			return "", err
		}
		if r, ok := w.value.(Raw); ok {
			args.add(bucket, r.Bindings...)
			return g.qualify(qualifier, w.column) + " " + op + " " + r.SQL, nil
		}
		args.add(bucket, w.value)
		return g.qualify(qualifier, w.column) + " " + op + " ?", nil
	case whereIn:
		// An empty list short-circuits so the query stays valid SQL.
		if len(w.values) == 0 {
			if w.negated {
				return "1 = 1", nil
			}
			return "0 = 1", nil
		}
		args.add(bucket, w.values...)
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(w.values)), ", ")
		if w.negated {
			return g.qualify(qualifier, w.column) + " NOT IN (" + marks + ")", nil
		}
		return g.qualify(qualifier, w.column) + " IN (" + marks + ")", nil
	case whereInSub:
		sql, sargs, err := g.CompileSelect(w.sub)
		if err != nil {
			return "", err
		}
		sql = stripFinalized(g, sql)
		args.add(bucket, sargs...)
		if w.negated {
			return g.qualify(qualifier, w.column) + " NOT IN (" + sql + ")", nil
		}
		return g.qualify(qualifier, w.column) + " IN (" + sql + ")", nil
	case whereBetween:
		args.add(bucket, w.low, w.high)
		if w.negated {
			return g.qualify(qualifier, w.column) + " NOT BETWEEN ? AND ?", nil
		}
		return g.qualify(qualifier, w.column) + " BETWEEN ? AND ?", nil
	case whereNull:
		if w.negated {
			return g.qualify(qualifier, w.column) + " IS NOT NULL", nil
		}
		return g.qualify(qualifier, w.column) + " IS NULL", nil
	case whereRaw:
		args.add(bucket, w.raw.Bindings...)
		return w.raw.SQL, nil
	case whereNested:
		inner, err := g.compileWheres(w.sub.wheres, w.sub.qualifier(), bucket, args)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case whereExists:
		sql, sargs, err := g.CompileSelect(w.sub)
		if err != nil {
			return "", err
		}
		sql = stripFinalized(g, sql)
		args.add(bucket, sargs...)
		if w.negated {
			return "NOT EXISTS (" + sql + ")", nil
		}
		return "EXISTS (" + sql + ")", nil
	case whereColumn:
		op, err := g.operator(w.operator)
		if err != nil {
			return "", err
		}
		return g.qualify(qualifier, w.column) + " " + op + " " + g.qualify(qualifier, w.second), nil
	case whereSub:
		op, err := g.operator(w.operator)
		if err != nil {
			return "", err
		}
		sql, sargs, err := g.CompileSelect(w.sub)
		if err != nil {
			return "", err
		}
		sql = stripFinalized(g, sql)
		args.add(bucket, sargs...)
		return g.qualify(qualifier, w.column) + " " + op + " (" + sql + ")", nil
	}
	return "", fmt.Errorf("query: unknown where clause type %d", w.typ)
}

func (g *grammar) compileHavings(b *Builder, args *argBuf) (string, error) {
	var sb strings.Builder
	for i, h := range b.havings {
		var part string
		if h.isRaw {
			part = h.raw.SQL
			args.add("having", h.raw.Bindings...)
		} else if h.hasValue {
			op, err := g.operator(h.operator)
			if err != nil {
				return "", err
			}
			part = g.qualify(b.qualifier(), h.column) + " " + op + " ?"
			args.add("having", h.value)
		} else {
			part = g.qualify(b.qualifier(), h.column)
		}
		if i > 0 {
			sb.WriteString(" " + h.boolean + " ")
		}
		sb.WriteString(part)
	}
	return sb.String(), nil
}

func (g *grammar) compileOrders(b *Builder, args *argBuf) string {
	parts := make([]string, len(b.orders))
	for i, o := range b.orders {
		if o.isRaw {
			parts[i] = o.raw.SQL
			args.add("order", o.raw.Bindings...)
			continue
		}
		dir := "ASC"
		if strings.EqualFold(o.direction, "desc") {
			dir = "DESC"
		}
		parts[i] = g.qualify(b.qualifier(), o.column) + " " + dir
	}
	return strings.Join(parts, ", ")
}

func (g *grammar) compileLimit(b *Builder, sb *strings.Builder) {
	if g.offsetFetch {
		if b.limit <= 0 && b.offset <= 0 {
			return
		}
		// OFFSET/FETCH requires an ORDER BY.
		if len(b.orders) == 0 {
			sb.WriteString(" ORDER BY (SELECT NULL)")
		}
		fmt.Fprintf(sb, " OFFSET %d ROWS", max(b.offset, 0))
		if b.limit > 0 {
			fmt.Fprintf(sb, " FETCH NEXT %d ROWS ONLY", b.limit)
		}
		return
	}
	if b.limit > 0 {
		fmt.Fprintf(sb, " LIMIT %d", b.limit)
	}
	if b.offset > 0 {
		fmt.Fprintf(sb, " OFFSET %d", b.offset)
	}
}

func (g *grammar) lockClause(mode lockMode) string {
	switch mode {
	case lockShared:
		return g.sharedLock
	case lockUpdate:
		return g.updateLock
	}
	return ""
}

// CompileExists wraps the SELECT into an existence probe aliased "exists".
func (g *grammar) CompileExists(b *Builder) (string, []any, error) {
	sel, args, err := g.CompileSelect(b)
	if err != nil {
		return "", nil, err
	}
	sel = stripFinalized(g, sel)
	var sql string
	if g.offsetFetch {
		sql = "SELECT CASE WHEN EXISTS (" + sel + ") THEN 1 ELSE 0 END AS " + g.wrapOne("exists")
	} else {
		sql = "SELECT EXISTS (" + sel + ") AS " + g.wrapOne("exists")
	}
	return g.finalize(sql), args, nil
}

// CompileInsert compiles a single-row INSERT with deterministically
// ordered columns. Grammars with RETURNING support append the primary key
// so generated values can be read back.
func (g *grammar) CompileInsert(b *Builder, values map[string]any) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("query: insert with no values")
	}
	cols := sortedKeys(values)
	args := make([]any, 0, len(cols))
	wrapped := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		wrapped[i] = g.Wrap(c)
		marks[i] = "?"
		args = append(args, values[c])
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		g.WrapTable(b.table), strings.Join(wrapped, ", "), strings.Join(marks, ", "))
	if g.returning && b.primaryKey != "" {
		sql += " RETURNING " + g.Wrap(b.primaryKey)
	}
	return g.finalize(sql), args, nil
}

// CompileBulkInsert compiles a multi-row INSERT. Every row must provide
// the same columns as the first.
func (g *grammar) CompileBulkInsert(b *Builder, rows []map[string]any) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("query: bulk insert with no rows")
	}
	cols := sortedKeys(rows[0])
	wrapped := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		wrapped[i] = g.Wrap(c)
		marks[i] = "?"
	}
	tuple := "(" + strings.Join(marks, ", ") + ")"
	tuples := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if len(row) != len(cols) {
			return "", nil, fmt.Errorf("query: bulk insert row %d has mismatched columns", i)
		}
		for _, c := range cols {
			v, ok := row[c]
			if !ok {
				return "", nil, fmt.Errorf("query: bulk insert row %d is missing column %q", i, c)
			}
			args = append(args, v)
		}
		tuples[i] = tuple
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		g.WrapTable(b.table), strings.Join(wrapped, ", "), strings.Join(tuples, ", "))
	return g.finalize(sql), args, nil
}

// CompileUpdate compiles an UPDATE with deterministically ordered SET
// columns; Raw values are embedded with their bindings.
func (g *grammar) CompileUpdate(b *Builder, values map[string]any) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("query: update with no values")
	}
	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	args := newArgBuf()
	for i, c := range cols {
		if r, ok := values[c].(Raw); ok {
			sets[i] = g.Wrap(c) + " = " + r.SQL
			args.add("select", r.Bindings...)
		} else {
			sets[i] = g.Wrap(c) + " = ?"
			args.add("select", values[c])
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET %s", g.WrapTable(b.table), strings.Join(sets, ", "))
	// Update predicates stay unqualified.
	if len(b.wheres) > 0 {
		wc, err := g.compileWheres(b.wheres, "", "where", args)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE " + wc)
	}
	return g.finalize(sb.String()), args.list(), nil
}

// CompileDelete compiles a DELETE with the accumulated predicates.
func (g *grammar) CompileDelete(b *Builder) (string, []any, error) {
	args := newArgBuf()
	var sb strings.Builder
	fmt.Fprintf(&sb, "DELETE FROM %s", g.WrapTable(b.table))
	if len(b.wheres) > 0 {
		wc, err := g.compileWheres(b.wheres, "", "where", args)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" WHERE " + wc)
	}
	return g.finalize(sb.String()), args.list(), nil
}

// CompileTruncate compiles the statements clearing a table. The
// foreignKeys flag additionally suspends referential checks where the
// dialect needs it.
func (g *grammar) CompileTruncate(table string, foreignKeys bool) ([]string, error) {
	wrapped := g.WrapTable(table)
	switch g.name {
	case dialect.MySQL:
		if foreignKeys {
			return []string{
				"SET FOREIGN_KEY_CHECKS = 0",
				"TRUNCATE " + wrapped,
				"SET FOREIGN_KEY_CHECKS = 1",
			}, nil
		}
		return []string{"TRUNCATE " + wrapped}, nil
	case dialect.Postgres:
		if foreignKeys {
			return []string{"TRUNCATE " + wrapped + " RESTART IDENTITY CASCADE"}, nil
		}
		return []string{"TRUNCATE " + wrapped}, nil
	case dialect.SQLite:
		// SQLite has no TRUNCATE statement.
		if foreignKeys {
			return []string{
				"PRAGMA foreign_keys = OFF",
				"DELETE FROM " + wrapped,
				"PRAGMA foreign_keys = ON",
			}, nil
		}
		return []string{"DELETE FROM " + wrapped}, nil
	case dialect.MSSQL:
		return []string{"TRUNCATE TABLE " + wrapped}, nil
	}
	return nil, fmt.Errorf("query: unknown dialect %q", g.name)
}

// finalize rewrites qmark placeholders into the dialect's native form.
func (g *grammar) finalize(sql string) string {
	if !g.numbered {
		return sql
	}
	var sb strings.Builder
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// stripFinalized undoes numbered placeholders on a nested compilation so
// the outer finalize renumbers the whole statement once.
func stripFinalized(g *grammar, sql string) string {
	if !g.numbered {
		return sql
	}
	return numberedRe.ReplaceAllString(sql, "?")
}

// interpolate substitutes bindings into a qmark statement for debugging
// output only; the result must never be executed.
func (g *grammar) interpolate(sql string, bindings []any) string {
	var sb strings.Builder
	i := 0
	for _, r := range sql {
		if r != '?' || i >= len(bindings) {
			sb.WriteRune(r)
			continue
		}
		sb.WriteString(g.literal(bindings[i]))
		i++
	}
	return sb.String()
}

func (g *grammar) literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if g.name == dialect.Postgres {
			if t {
				return "TRUE"
			}
			return "FALSE"
		}
		if t {
			return "1"
		}
		return "0"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case time.Time:
		return "'" + t.Format("2006-01-02 15:04:05") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(t), "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
