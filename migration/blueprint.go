// Package migration implements the schema builder: a Blueprint DSL for
// table, column, index and foreign key definitions compiled into
// dialect-specific DDL, plus the ledger-driven migration runner.
package migration

// ColumnType names a blueprint column type; the platform maps it to the
// dialect's native type.
type ColumnType string

// Blueprint column types.
const (
	TypeIncrements      ColumnType = "increments"
	TypeBigIncrements   ColumnType = "big_increments"
	TypeUUID            ColumnType = "uuid"
	TypeString          ColumnType = "string"
	TypeChar            ColumnType = "char"
	TypeText            ColumnType = "text"
	TypeLongText        ColumnType = "long_text"
	TypeInteger         ColumnType = "integer"
	TypeBigInteger      ColumnType = "big_integer"
	TypeTinyInteger     ColumnType = "tiny_integer"
	TypeSmallInteger    ColumnType = "small_integer"
	TypeUnsignedInteger ColumnType = "unsigned_integer"
	TypeDecimal         ColumnType = "decimal"
	TypeFloat           ColumnType = "float"
	TypeDouble          ColumnType = "double"
	TypeBoolean         ColumnType = "boolean"
	TypeDate            ColumnType = "date"
	TypeDateTime        ColumnType = "datetime"
	TypeTime            ColumnType = "time"
	TypeTimestamp       ColumnType = "timestamp"
	TypeJSON            ColumnType = "json"
	TypeBinary          ColumnType = "binary"
	TypeEnum            ColumnType = "enum"
)

// Column is one column definition with its modifiers. Modifier methods
// return the column for chaining:
//
//	table.String("email").Nullable().Unique()
type Column struct {
	name       string
	typ        ColumnType
	length     int
	precision  int
	scale      int
	values     []string
	nullable   bool
	unique     bool
	unsigned   bool
	primary    bool
	useCurrent bool
	change     bool
	hasDefault bool
	defaultVal any
	after      string
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Nullable allows NULL values.
func (c *Column) Nullable() *Column { c.nullable = true; return c }

// Unique adds a single-column unique constraint.
func (c *Column) Unique() *Column { c.unique = true; return c }

// Unsigned marks an integer column unsigned where the dialect supports
// it.
func (c *Column) Unsigned() *Column { c.unsigned = true; return c }

// Primary marks the column as the primary key.
func (c *Column) Primary() *Column { c.primary = true; return c }

// Default sets a literal default value.
func (c *Column) Default(v any) *Column {
	c.hasDefault = true
	c.defaultVal = v
	return c
}

// UseCurrent defaults the column to CURRENT_TIMESTAMP.
func (c *Column) UseCurrent() *Column { c.useCurrent = true; return c }

// After positions the column after another (MySQL only).
func (c *Column) After(column string) *Column { c.after = column; return c }

// Change marks an existing column for modification in an alter
// blueprint.
func (c *Column) Change() *Column { c.change = true; return c }

// IndexKind names a blueprint index kind.
type IndexKind string

// Blueprint index kinds.
const (
	KindPrimary  IndexKind = "primary"
	KindUnique   IndexKind = "unique"
	KindIndex    IndexKind = "index"
	KindFullText IndexKind = "fulltext"
	KindForeign  IndexKind = "foreign"
)

// Index is an index or constraint definition. Foreign keys chain their
// target:
//
//	table.Foreign("user_id").References("id").On("users").OnDelete("cascade")
type Index struct {
	kind      IndexKind
	columns   []string
	name      string
	on        string
	reference string
	onUpdate  string
	onDelete  string
}

// Named overrides the generated index name.
func (i *Index) Named(name string) *Index { i.name = name; return i }

// References sets the referenced column of a foreign key.
func (i *Index) References(column string) *Index { i.reference = column; return i }

// On sets the referenced table of a foreign key.
func (i *Index) On(table string) *Index { i.on = table; return i }

// OnUpdate sets the referential update action.
func (i *Index) OnUpdate(action string) *Index { i.onUpdate = action; return i }

// OnDelete sets the referential delete action.
func (i *Index) OnDelete(action string) *Index { i.onDelete = action; return i }

// Blueprint modes.
const (
	modeCreate = "create"
	modeAlter  = "table"
	modeDrop   = "drop"
)

// Blueprint accumulates column and constraint definitions for one table
// under a create, alter or drop mode.
type Blueprint struct {
	table   string
	mode    string
	columns []*Column
	indexes []*Index
	drops   []string
	renames [][2]string
}

func newBlueprint(table, mode string) *Blueprint {
	return &Blueprint{table: table, mode: mode}
}

// Table returns the blueprint's table name.
func (b *Blueprint) Table() string { return b.table }

func (b *Blueprint) column(name string, typ ColumnType) *Column {
	c := &Column{name: name, typ: typ}
	b.columns = append(b.columns, c)
	return c
}

// Increments adds an auto-incrementing integer primary key.
func (b *Blueprint) Increments(name string) *Column {
	return b.column(name, TypeIncrements).Primary()
}

// BigIncrements adds an auto-incrementing big integer primary key.
func (b *Blueprint) BigIncrements(name string) *Column {
	return b.column(name, TypeBigIncrements).Primary()
}

// UUID adds a UUID column.
func (b *Blueprint) UUID(name string) *Column { return b.column(name, TypeUUID) }

// String adds a VARCHAR column, length 255 by default.
func (b *Blueprint) String(name string, length ...int) *Column {
	c := b.column(name, TypeString)
	c.length = 255
	if len(length) > 0 {
		c.length = length[0]
	}
	return c
}

// Char adds a CHAR column, length 255 by default.
func (b *Blueprint) Char(name string, length ...int) *Column {
	c := b.column(name, TypeChar)
	c.length = 255
	if len(length) > 0 {
		c.length = length[0]
	}
	return c
}

// Text adds a TEXT column.
func (b *Blueprint) Text(name string) *Column { return b.column(name, TypeText) }

// LongText adds a LONGTEXT column.
func (b *Blueprint) LongText(name string) *Column { return b.column(name, TypeLongText) }

// Integer adds an INTEGER column.
func (b *Blueprint) Integer(name string) *Column { return b.column(name, TypeInteger) }

// BigInteger adds a BIGINT column.
func (b *Blueprint) BigInteger(name string) *Column { return b.column(name, TypeBigInteger) }

// TinyInteger adds a TINYINT column.
func (b *Blueprint) TinyInteger(name string) *Column { return b.column(name, TypeTinyInteger) }

// SmallInteger adds a SMALLINT column.
func (b *Blueprint) SmallInteger(name string) *Column { return b.column(name, TypeSmallInteger) }

// UnsignedInteger adds an unsigned INTEGER column.
func (b *Blueprint) UnsignedInteger(name string) *Column {
	return b.column(name, TypeUnsignedInteger).Unsigned()
}

// Decimal adds a DECIMAL column with the given precision and scale.
func (b *Blueprint) Decimal(name string, precision, scale int) *Column {
	c := b.column(name, TypeDecimal)
	c.precision = precision
	c.scale = scale
	return c
}

// Float adds a FLOAT column.
func (b *Blueprint) Float(name string) *Column { return b.column(name, TypeFloat) }

// Double adds a DOUBLE column.
func (b *Blueprint) Double(name string) *Column { return b.column(name, TypeDouble) }

// Boolean adds a BOOLEAN column.
func (b *Blueprint) Boolean(name string) *Column { return b.column(name, TypeBoolean) }

// Date adds a DATE column.
func (b *Blueprint) Date(name string) *Column { return b.column(name, TypeDate) }

// DateTime adds a DATETIME column.
func (b *Blueprint) DateTime(name string) *Column { return b.column(name, TypeDateTime) }

// Time adds a TIME column.
func (b *Blueprint) Time(name string) *Column { return b.column(name, TypeTime) }

// Timestamp adds a TIMESTAMP column.
func (b *Blueprint) Timestamp(name string) *Column { return b.column(name, TypeTimestamp) }

// Timestamps adds the created_at/updated_at pair defaulting to the
// current instant.
func (b *Blueprint) Timestamps() {
	b.Timestamp("created_at").Nullable().UseCurrent()
	b.Timestamp("updated_at").Nullable().UseCurrent()
}

// SoftDeletes adds a nullable deletion timestamp, deleted_at by default.
func (b *Blueprint) SoftDeletes(name ...string) *Column {
	col := "deleted_at"
	if len(name) > 0 && name[0] != "" {
		col = name[0]
	}
	return b.Timestamp(col).Nullable()
}

// JSON adds a JSON column.
func (b *Blueprint) JSON(name string) *Column { return b.column(name, TypeJSON) }

// Binary adds a binary blob column.
func (b *Blueprint) Binary(name string) *Column { return b.column(name, TypeBinary) }

// Enum adds an enumeration column over the given values.
func (b *Blueprint) Enum(name string, values ...string) *Column {
	c := b.column(name, TypeEnum)
	c.values = values
	return c
}

// Primary records a composite primary key constraint.
func (b *Blueprint) Primary(columns ...string) *Index {
	return b.index(KindPrimary, columns)
}

// Unique records a unique index over the columns.
func (b *Blueprint) Unique(columns ...string) *Index {
	return b.index(KindUnique, columns)
}

// Index records a plain index over the columns.
func (b *Blueprint) Index(columns ...string) *Index {
	return b.index(KindIndex, columns)
}

// FullText records a full-text index over the columns.
func (b *Blueprint) FullText(columns ...string) *Index {
	return b.index(KindFullText, columns)
}

// Foreign starts a foreign key constraint on the column.
func (b *Blueprint) Foreign(column string) *Index {
	return b.index(KindForeign, []string{column})
}

func (b *Blueprint) index(kind IndexKind, columns []string) *Index {
	i := &Index{kind: kind, columns: columns}
	b.indexes = append(b.indexes, i)
	return i
}

// DropColumn records column removals in an alter blueprint.
func (b *Blueprint) DropColumn(names ...string) {
	b.drops = append(b.drops, names...)
}

// RenameColumn records a column rename in an alter blueprint.
func (b *Blueprint) RenameColumn(from, to string) {
	b.renames = append(b.renames, [2]string{from, to})
}
