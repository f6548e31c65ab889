package migration

import (
	"fmt"
	"strings"

	"github.com/syssam/loom"
	"github.com/syssam/loom/dialect"
	"github.com/syssam/loom/query"
)

// platform compiles blueprints into one dialect's DDL. Identifier
// quoting is shared with the query grammar of the same dialect.
type platform struct {
	name    string
	grammar query.Grammar
}

func newPlatform(dialectName string) (*platform, error) {
	g, err := query.GrammarFor(dialectName)
	if err != nil {
		return nil, loom.NewConfigurationError("migration: %v", err)
	}
	return &platform{name: g.Dialect(), grammar: g}, nil
}

func (p *platform) wrap(identifier string) string { return p.grammar.Wrap(identifier) }

// typeSQL maps a blueprint column type to the dialect's native type.
func (p *platform) typeSQL(c *Column) (string, error) {
	switch c.typ {
	case TypeIncrements:
		switch p.name {
		case dialect.Postgres:
			return "SERIAL", nil
		case dialect.SQLite:
			return "INTEGER", nil
		case dialect.MSSQL:
			return "INT IDENTITY(1,1)", nil
		default:
			return "INT UNSIGNED AUTO_INCREMENT", nil
		}
	case TypeBigIncrements:
		switch p.name {
		case dialect.Postgres:
			return "BIGSERIAL", nil
		case dialect.SQLite:
			return "INTEGER", nil
		case dialect.MSSQL:
			return "BIGINT IDENTITY(1,1)", nil
		default:
			return "BIGINT UNSIGNED AUTO_INCREMENT", nil
		}
	case TypeUUID:
		switch p.name {
		case dialect.Postgres:
			return "UUID", nil
		case dialect.MSSQL:
			return "UNIQUEIDENTIFIER", nil
		default:
			return "CHAR(36)", nil
		}
	case TypeString:
		if p.name == dialect.MSSQL {
			return fmt.Sprintf("NVARCHAR(%d)", c.length), nil
		}
		return fmt.Sprintf("VARCHAR(%d)", c.length), nil
	case TypeChar:
		return fmt.Sprintf("CHAR(%d)", c.length), nil
	case TypeText:
		if p.name == dialect.MSSQL {
			return "NVARCHAR(MAX)", nil
		}
		return "TEXT", nil
	case TypeLongText:
		switch p.name {
		case dialect.MySQL:
			return "LONGTEXT", nil
		case dialect.MSSQL:
			return "NVARCHAR(MAX)", nil
		default:
			return "TEXT", nil
		}
	case TypeInteger:
		return "INTEGER", nil
	case TypeBigInteger:
		return "BIGINT", nil
	case TypeTinyInteger:
		switch p.name {
		case dialect.MySQL:
			return "TINYINT", nil
		default:
			return "SMALLINT", nil
		}
	case TypeSmallInteger:
		return "SMALLINT", nil
	case TypeUnsignedInteger:
		if p.name == dialect.MySQL {
			return "INT UNSIGNED", nil
		}
		return "INTEGER", nil
	case TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d, %d)", c.precision, c.scale), nil
	case TypeFloat:
		if p.name == dialect.Postgres {
			return "REAL", nil
		}
		return "FLOAT", nil
	case TypeDouble:
		switch p.name {
		case dialect.Postgres:
			return "DOUBLE PRECISION", nil
		case dialect.MSSQL:
			return "FLOAT", nil
		default:
			return "DOUBLE", nil
		}
	case TypeBoolean:
		switch p.name {
		case dialect.MySQL:
			return "TINYINT(1)", nil
		case dialect.MSSQL:
			return "BIT", nil
		default:
			return "BOOLEAN", nil
		}
	case TypeDate:
		return "DATE", nil
	case TypeDateTime:
		switch p.name {
		case dialect.Postgres:
			return "TIMESTAMP", nil
		case dialect.MSSQL:
			return "DATETIME2", nil
		default:
			return "DATETIME", nil
		}
	case TypeTime:
		return "TIME", nil
	case TypeTimestamp:
		switch p.name {
		case dialect.MSSQL:
			return "DATETIME2", nil
		default:
			return "TIMESTAMP", nil
		}
	case TypeJSON:
		switch p.name {
		case dialect.Postgres:
			return "JSONB", nil
		case dialect.MySQL:
			return "JSON", nil
		case dialect.MSSQL:
			return "NVARCHAR(MAX)", nil
		default:
			return "TEXT", nil
		}
	case TypeBinary:
		switch p.name {
		case dialect.Postgres:
			return "BYTEA", nil
		case dialect.MSSQL:
			return "VARBINARY(MAX)", nil
		default:
			return "BLOB", nil
		}
	case TypeEnum:
		if p.name == dialect.MySQL {
			quoted := make([]string, len(c.values))
			for i, v := range c.values {
				quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
			}
			return fmt.Sprintf("ENUM(%s)", strings.Join(quoted, ", ")), nil
		}
		return "VARCHAR(255)", nil
	}
	return "", loom.NewConfigurationError("migration: unknown column type %q", c.typ)
}

func (p *platform) defaultSQL(c *Column) string {
	if c.useCurrent {
		return " DEFAULT CURRENT_TIMESTAMP"
	}
	if !c.hasDefault {
		return ""
	}
	switch v := c.defaultVal.(type) {
	case string:
		return " DEFAULT '" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if p.name == dialect.Postgres {
			if v {
				return " DEFAULT TRUE"
			}
			return " DEFAULT FALSE"
		}
		if v {
			return " DEFAULT 1"
		}
		return " DEFAULT 0"
	case nil:
		return " DEFAULT NULL"
	default:
		return fmt.Sprintf(" DEFAULT %v", v)
	}
}

// columnSQL renders one column definition.
func (p *platform) columnSQL(c *Column) (string, error) {
	typ, err := p.typeSQL(c)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(p.wrap(c.name) + " " + typ)
	auto := c.typ == TypeIncrements || c.typ == TypeBigIncrements
	if c.nullable {
		sb.WriteString(" NULL")
	} else if !auto || p.name == dialect.SQLite {
		sb.WriteString(" NOT NULL")
	}
	sb.WriteString(p.defaultSQL(c))
	if c.primary {
		switch {
		case p.name == dialect.SQLite && auto:
			sb.WriteString(" PRIMARY KEY AUTOINCREMENT")
		default:
			sb.WriteString(" PRIMARY KEY")
		}
	}
	if c.unique {
		sb.WriteString(" UNIQUE")
	}
	if c.after != "" && p.name == dialect.MySQL {
		sb.WriteString(" AFTER " + p.wrap(c.after))
	}
	return sb.String(), nil
}

func (p *platform) indexName(table string, i *Index) string {
	if i.name != "" {
		return i.name
	}
	return fmt.Sprintf("%s_%s_%s", table, strings.Join(i.columns, "_"), i.kind)
}

func (p *platform) wrapColumns(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = p.wrap(c)
	}
	return strings.Join(parts, ", ")
}

func (p *platform) foreignSQL(table string, i *Index) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		p.wrap(p.indexName(table, i)), p.wrapColumns(i.columns),
		p.wrap(i.on), p.wrap(i.reference))
	if i.onDelete != "" {
		sb.WriteString(" ON DELETE " + strings.ToUpper(i.onDelete))
	}
	if i.onUpdate != "" {
		sb.WriteString(" ON UPDATE " + strings.ToUpper(i.onUpdate))
	}
	return sb.String()
}

// CompileCreate renders CREATE TABLE followed by one statement per
// unique, plain or full-text index. Column definitions, composite primary
// keys and foreign key constraints are all emitted inside the CREATE TABLE
// statement, so foreign keys come before the index statements.
func (p *platform) CompileCreate(b *Blueprint, ifNotExists bool) ([]string, error) {
	defs := make([]string, 0, len(b.columns)+len(b.indexes))
	for _, c := range b.columns {
		def, err := p.columnSQL(c)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	var after []string
	for _, i := range b.indexes {
		switch i.kind {
		case KindPrimary:
			defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", p.wrapColumns(i.columns)))
		case KindForeign:
			defs = append(defs, p.foreignSQL(b.table, i))
		case KindUnique:
			after = append(after, fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
				p.wrap(p.indexName(b.table, i)), p.wrap(b.table), p.wrapColumns(i.columns)))
		case KindFullText:
			if p.name == dialect.MySQL {
				after = append(after, fmt.Sprintf("CREATE FULLTEXT INDEX %s ON %s (%s)",
					p.wrap(p.indexName(b.table, i)), p.wrap(b.table), p.wrapColumns(i.columns)))
				continue
			}
			after = append(after, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				p.wrap(p.indexName(b.table, i)), p.wrap(b.table), p.wrapColumns(i.columns)))
		default:
			after = append(after, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				p.wrap(p.indexName(b.table, i)), p.wrap(b.table), p.wrapColumns(i.columns)))
		}
	}
	create := "CREATE TABLE "
	if ifNotExists && p.name != dialect.MSSQL {
		create += "IF NOT EXISTS "
	}
	create += fmt.Sprintf("%s (%s)", p.wrap(b.table), strings.Join(defs, ", "))
	return append([]string{create}, after...), nil
}

// CompileAlter renders the ALTER TABLE statement list: column
// additions and modifications, renames, drops, then indexes and foreign
// keys.
func (p *platform) CompileAlter(b *Blueprint) ([]string, error) {
	table := p.wrap(b.table)
	var stmts []string
	for _, c := range b.columns {
		def, err := p.columnSQL(c)
		if err != nil {
			return nil, err
		}
		if !c.change {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def))
			continue
		}
		switch p.name {
		case dialect.MySQL:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", table, def))
		case dialect.Postgres:
			typ, _ := p.typeSQL(c)
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, p.wrap(c.name), typ))
			if c.nullable {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, p.wrap(c.name)))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, p.wrap(c.name)))
			}
		case dialect.MSSQL:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s", table, def))
		case dialect.SQLite:
			return nil, loom.NewConfigurationError("migration: sqlite does not support column modification")
		}
	}
	for _, r := range b.renames {
		if p.name == dialect.MSSQL {
			stmts = append(stmts, fmt.Sprintf("EXEC sp_rename '%s.%s', '%s', 'COLUMN'", b.table, r[0], r[1]))
			continue
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", table, p.wrap(r[0]), p.wrap(r[1])))
	}
	for _, d := range b.drops {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, p.wrap(d)))
	}
	for _, i := range b.indexes {
		switch i.kind {
		case KindForeign:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s", table, p.foreignSQL(b.table, i)))
		case KindPrimary:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", table, p.wrapColumns(i.columns)))
		case KindUnique:
			stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
				p.wrap(p.indexName(b.table, i)), table, p.wrapColumns(i.columns)))
		default:
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				p.wrap(p.indexName(b.table, i)), table, p.wrapColumns(i.columns)))
		}
	}
	return stmts, nil
}

// CompileDrop renders DROP TABLE.
func (p *platform) CompileDrop(table string, ifExists bool) []string {
	stmt := "DROP TABLE "
	if ifExists && p.name != dialect.MSSQL {
		stmt += "IF EXISTS "
	}
	return []string{stmt + p.wrap(table)}
}
