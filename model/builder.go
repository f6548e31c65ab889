package model

import (
	"context"
	"iter"
	"time"

	"github.com/syssam/loom"
	"github.com/syssam/loom/collection"
	"github.com/syssam/loom/query"
)

// Builder is the model-bound query builder: it carries the underlying
// query.Builder plus the class metadata, applies global scopes before
// every terminal operation and hydrates results into instances.
type Builder struct {
	class *Class
	qb    *query.Builder
	err   error

	eager         []string
	counts        []countSpec
	withoutScopes map[string]bool
	withTrashed   bool
	onlyTrashed   bool
	forceDelete   bool
	timestamps    bool
	scopesApplied bool
}

type countSpec struct {
	name   string
	filter func(*Builder) *Builder
}

// Query starts a builder for the class, preloading the class's default
// eager loads and select override.
func (c *Class) Query() *Builder {
	c.boot()
	b := &Builder{class: c, timestamps: true}
	b.eager = append(b.eager, c.def.With...)
	return b
}

// ensure lazily constructs the underlying query builder; resolution
// errors surface at the terminal operation.
func (b *Builder) ensure() *query.Builder {
	if b.qb != nil {
		return b.qb
	}
	g, err := b.class.grammarFor()
	if err == nil {
		var exec query.Executor
		exec, err = b.class.executorFor()
		if err == nil {
			b.qb = query.NewBuilder(g).
				On(exec).
				Table(b.class.prefixedTable()).
				PrimaryKey(b.class.primaryKey)
			if len(b.class.def.Selects) > 0 {
				b.qb.Select(b.class.def.Selects...)
			}
			return b.qb
		}
	}
	b.err = err
	b.qb = query.NewBuilder(query.MySQLGrammar()).Table(b.class.table)
	return b.qb
}

// queryBuilder returns the underlying query builder and any resolution
// error.
func (b *Builder) queryBuilder() (*query.Builder, error) {
	qb := b.ensure()
	return qb, b.err
}

// applyScopes applies the class's global scopes exactly once per
// emitted query, honoring WithoutGlobalScope.
func (b *Builder) applyScopes() {
	if b.scopesApplied {
		return
	}
	b.scopesApplied = true
	b.ensure()
	for _, s := range b.class.scopes {
		if b.withoutScopes[s.ScopeName()] {
			continue
		}
		s.Apply(b)
	}
}

// Fluent passthroughs; each returns the same builder.

// Where adds a basic predicate, mirroring query.Builder.Where.
func (b *Builder) Where(column string, args ...any) *Builder {
	b.ensure().Where(column, args...)
	return b
}

// OrWhere adds an OR-joined predicate.
func (b *Builder) OrWhere(column string, args ...any) *Builder {
	b.ensure().OrWhere(column, args...)
	return b
}

// WhereMap adds AND-joined equalities.
func (b *Builder) WhereMap(values map[string]any) *Builder {
	b.ensure().WhereMap(values)
	return b
}

// WhereIn constrains column to the list.
func (b *Builder) WhereIn(column string, values []any) *Builder {
	b.ensure().WhereIn(column, values)
	return b
}

// WhereNotIn excludes the list.
func (b *Builder) WhereNotIn(column string, values []any) *Builder {
	b.ensure().WhereNotIn(column, values)
	return b
}

// WhereNull constrains column to IS NULL.
func (b *Builder) WhereNull(column string) *Builder {
	b.ensure().WhereNull(column)
	return b
}

// WhereNotNull constrains column to IS NOT NULL.
func (b *Builder) WhereNotNull(column string) *Builder {
	b.ensure().WhereNotNull(column)
	return b
}

// WhereLike adds a LIKE predicate.
func (b *Builder) WhereLike(column string, value any) *Builder {
	b.ensure().WhereLike(column, value)
	return b
}

// WhereNotLike adds a NOT LIKE predicate.
func (b *Builder) WhereNotLike(column string, value any) *Builder {
	b.ensure().WhereNotLike(column, value)
	return b
}

// WhereBetween constrains column to [low, high].
func (b *Builder) WhereBetween(column string, low, high any) *Builder {
	b.ensure().WhereBetween(column, low, high)
	return b
}

// WhereRaw embeds a raw predicate.
func (b *Builder) WhereRaw(sql string, bindings ...any) *Builder {
	b.ensure().WhereRaw(sql, bindings...)
	return b
}

// WhereColumn compares two columns.
func (b *Builder) WhereColumn(first string, args ...string) *Builder {
	b.ensure().WhereColumn(first, args...)
	return b
}

// When invokes fn only if cond is true.
func (b *Builder) When(cond bool, fn func(*Builder) *Builder) *Builder {
	if cond {
		return fn(b)
	}
	return b
}

// Select sets the projected columns.
func (b *Builder) Select(columns ...string) *Builder {
	b.ensure().Select(columns...)
	return b
}

// SelectRaw appends a raw select fragment.
func (b *Builder) SelectRaw(sql string, bindings ...any) *Builder {
	b.ensure().SelectRaw(sql, bindings...)
	return b
}

// Distinct marks the query SELECT DISTINCT.
func (b *Builder) Distinct() *Builder {
	b.ensure().Distinct()
	return b
}

// OrderBy appends an ordering.
func (b *Builder) OrderBy(column, direction string) *Builder {
	b.ensure().OrderBy(column, direction)
	return b
}

// OrderByRaw appends a raw ordering fragment.
func (b *Builder) OrderByRaw(sql string, bindings ...any) *Builder {
	b.ensure().OrderByRaw(sql, bindings...)
	return b
}

// GroupBy appends grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.ensure().GroupBy(columns...)
	return b
}

// Having adds a HAVING predicate.
func (b *Builder) Having(column string, args ...any) *Builder {
	b.ensure().Having(column, args...)
	return b
}

// Limit caps the number of returned rows.
func (b *Builder) Limit(n int) *Builder {
	b.ensure().Limit(n)
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.ensure().Offset(n)
	return b
}

// SharedLock requests a shared row lock.
func (b *Builder) SharedLock() *Builder {
	b.ensure().SharedLock()
	return b
}

// LockForUpdate requests an exclusive row lock.
func (b *Builder) LockForUpdate() *Builder {
	b.ensure().LockForUpdate()
	return b
}

// JoinRelation resolves a relationship name into join clauses built
// from the relationship's key pairs.
func (b *Builder) JoinRelation(name, kind string) *Builder {
	rel, err := b.class.Relation(name)
	if err != nil {
		b.err = err
		return b
	}
	b.ensure()
	if err := rel.Join(b, kind); err != nil {
		b.err = err
	}
	return b
}

// Scope invokes a registered local scope by name.
func (b *Builder) Scope(name string, args ...any) *Builder {
	fn, ok := b.class.def.LocalScopes[name]
	if !ok {
		b.err = loom.NewConfigurationError("model %s: unknown scope %q", b.class.name, name)
		return b
	}
	return fn(b, args...)
}

// With registers eager-load paths; dot paths load nested relations.
func (b *Builder) With(paths ...string) *Builder {
	b.eager = append(b.eager, paths...)
	return b
}

// WithCount emits a correlated subquery aliased <name>_count instead of
// a second query.
func (b *Builder) WithCount(name string, filter ...func(*Builder) *Builder) *Builder {
	spec := countSpec{name: name}
	if len(filter) > 0 {
		spec.filter = filter[0]
	}
	b.counts = append(b.counts, spec)
	return b
}

// WithTrashed disables the soft-delete scope for this query.
func (b *Builder) WithTrashed() *Builder {
	b.withTrashed = true
	return b
}

// OnlyTrashed inverts the soft-delete scope, returning only trashed
// rows.
func (b *Builder) OnlyTrashed() *Builder {
	b.onlyTrashed = true
	return b
}

// WithoutGlobalScope opts the query out of a named global scope.
func (b *Builder) WithoutGlobalScope(name string) *Builder {
	if b.withoutScopes == nil {
		b.withoutScopes = make(map[string]bool)
	}
	b.withoutScopes[name] = true
	return b
}

// ActivateTimestamps toggles the automatic updated_at on updates issued
// through this builder. The explicit call wins over any force-update
// configuration.
func (b *Builder) ActivateTimestamps(on bool) *Builder {
	b.timestamps = on
	return b
}

func (b *Builder) withForceDelete() *Builder {
	b.forceDelete = true
	return b
}

// Has constrains the query to parents having at least one related row.
func (b *Builder) Has(name string) *Builder {
	return b.WhereHas(name, nil)
}

// WhereHas is Has with an extra filter applied to the related subquery.
func (b *Builder) WhereHas(name string, filter func(*Builder) *Builder) *Builder {
	rel, err := b.class.Relation(name)
	if err != nil {
		b.err = err
		return b
	}
	sub, err := rel.Existence(filter)
	if err != nil {
		b.err = err
		return b
	}
	b.ensure().WhereExists(sub)
	return b
}

// DoesntHave constrains the query to parents with no related rows.
func (b *Builder) DoesntHave(name string) *Builder {
	rel, err := b.class.Relation(name)
	if err != nil {
		b.err = err
		return b
	}
	sub, err := rel.Existence(nil)
	if err != nil {
		b.err = err
		return b
	}
	b.ensure().WhereNotExists(sub)
	return b
}

// applyCounts attaches the WithCount correlated subqueries to the
// select list.
func (b *Builder) applyCounts() error {
	if len(b.counts) == 0 {
		return nil
	}
	qb := b.ensure()
	qb.Select("*")
	for _, spec := range b.counts {
		rel, err := b.class.Relation(spec.name)
		if err != nil {
			return err
		}
		sub, err := rel.CountSubquery(spec.filter)
		if err != nil {
			return err
		}
		qb.AddSelect(spec.name+"_count", sub)
	}
	return nil
}

// prepare runs scope application and count attachment before a read.
func (b *Builder) prepare() (*query.Builder, error) {
	qb, err := b.queryBuilder()
	if err != nil {
		return nil, err
	}
	b.applyScopes()
	if err := b.applyCounts(); err != nil {
		return nil, err
	}
	return qb, b.err
}

// hydrateAll projects raw rows into instances.
func (b *Builder) hydrateAll(rows []query.Row) []*Instance {
	out := make([]*Instance, len(rows))
	for i, row := range rows {
		out[i] = b.class.hydrate(row)
	}
	return out
}

// Get executes the query, hydrates the rows and runs the eager loader
// over the registered paths.
func (b *Builder) Get(ctx context.Context) (*collection.Collection[*Instance], error) {
	qb, err := b.prepare()
	if err != nil {
		return nil, err
	}
	rows, err := qb.Get(ctx)
	if err != nil {
		return nil, err
	}
	items := b.hydrateAll(rows)
	if err := loadRelations(ctx, b.class, items, b.eager); err != nil {
		return nil, err
	}
	return collection.New(items...), nil
}

// All is an alias for Get.
func (b *Builder) All(ctx context.Context) (*collection.Collection[*Instance], error) {
	return b.Get(ctx)
}

// First returns the first matching instance, or nil.
func (b *Builder) First(ctx context.Context) (*Instance, error) {
	items, err := b.Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if items.IsEmpty() {
		return nil, nil
	}
	return items.First(), nil
}

// FirstOrFail returns the first matching instance or a NotFoundError.
func (b *Builder) FirstOrFail(ctx context.Context) (*Instance, error) {
	m, err := b.First(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, loom.NewNotFoundError(b.class.name, nil)
	}
	return m, nil
}

// Find returns the instance whose primary key equals id, or nil.
func (b *Builder) Find(ctx context.Context, id any) (*Instance, error) {
	return b.Where(b.class.primaryKey, id).First(ctx)
}

// FindOrFail returns the instance whose primary key equals id or a
// NotFoundError carrying the key.
func (b *Builder) FindOrFail(ctx context.Context, id any) (*Instance, error) {
	m, err := b.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, loom.NewNotFoundError(b.class.name, id)
	}
	return m, nil
}

// FindMany returns the instances whose primary keys are in ids.
func (b *Builder) FindMany(ctx context.Context, ids []any) (*collection.Collection[*Instance], error) {
	return b.WhereIn(b.class.primaryKey, ids).Get(ctx)
}

// Count executes COUNT with the scopes applied.
func (b *Builder) Count(ctx context.Context, column ...string) (int64, error) {
	qb, err := b.prepare()
	if err != nil {
		return 0, err
	}
	return qb.Count(ctx, column...)
}

// Sum executes SUM over column.
func (b *Builder) Sum(ctx context.Context, column string) (float64, error) {
	qb, err := b.prepare()
	if err != nil {
		return 0, err
	}
	return qb.Sum(ctx, column)
}

// Avg executes AVG over column.
func (b *Builder) Avg(ctx context.Context, column string) (float64, error) {
	qb, err := b.prepare()
	if err != nil {
		return 0, err
	}
	return qb.Avg(ctx, column)
}

// Max executes MAX over column.
func (b *Builder) Max(ctx context.Context, column string) (any, error) {
	qb, err := b.prepare()
	if err != nil {
		return nil, err
	}
	return qb.Max(ctx, column)
}

// Min executes MIN over column.
func (b *Builder) Min(ctx context.Context, column string) (any, error) {
	qb, err := b.prepare()
	if err != nil {
		return nil, err
	}
	return qb.Min(ctx, column)
}

// Exists reports whether any row matches.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	qb, err := b.prepare()
	if err != nil {
		return false, err
	}
	return qb.Exists(ctx)
}

// Page is a length-aware pagination result of hydrated instances.
type Page struct {
	Data        *collection.Collection[*Instance] `json:"data"`
	Total       int64                             `json:"total"`
	PerPage     int                               `json:"per_page"`
	CurrentPage int                               `json:"current_page"`
	LastPage    int                               `json:"last_page"`
	From        int                               `json:"from"`
	To          int                               `json:"to"`
}

// SimplePage is a has-more pagination result of hydrated instances.
type SimplePage struct {
	Data        *collection.Collection[*Instance] `json:"data"`
	PerPage     int                               `json:"per_page"`
	CurrentPage int                               `json:"current_page"`
	HasMore     bool                              `json:"has_more"`
}

// Paginate issues the main query plus a count over the same predicate
// set and hydrates the page.
func (b *Builder) Paginate(ctx context.Context, perPage, page int) (*Page, error) {
	qb, err := b.prepare()
	if err != nil {
		return nil, err
	}
	raw, err := qb.Paginate(ctx, perPage, page)
	if err != nil {
		return nil, err
	}
	items := b.hydrateAll(raw.Data)
	if err := loadRelations(ctx, b.class, items, b.eager); err != nil {
		return nil, err
	}
	return &Page{
		Data:        collection.New(items...),
		Total:       raw.Total,
		PerPage:     raw.PerPage,
		CurrentPage: raw.CurrentPage,
		LastPage:    raw.LastPage,
		From:        raw.From,
		To:          raw.To,
	}, nil
}

// SimplePaginate fetches one row past the page to detect more results.
func (b *Builder) SimplePaginate(ctx context.Context, perPage, page int) (*SimplePage, error) {
	qb, err := b.prepare()
	if err != nil {
		return nil, err
	}
	raw, err := qb.SimplePaginate(ctx, perPage, page)
	if err != nil {
		return nil, err
	}
	items := b.hydrateAll(raw.Data)
	if err := loadRelations(ctx, b.class, items, b.eager); err != nil {
		return nil, err
	}
	return &SimplePage{
		Data:        collection.New(items...),
		PerPage:     raw.PerPage,
		CurrentPage: raw.CurrentPage,
		HasMore:     raw.HasMore,
	}, nil
}

// Chunk yields successive hydrated batches of the given size.
func (b *Builder) Chunk(ctx context.Context, size int) iter.Seq2[*collection.Collection[*Instance], error] {
	return func(yield func(*collection.Collection[*Instance], error) bool) {
		qb, err := b.prepare()
		if err != nil {
			yield(nil, err)
			return
		}
		for rows, err := range qb.Chunk(ctx, size) {
			if err != nil {
				yield(nil, err)
				return
			}
			items := b.hydrateAll(rows)
			if err := loadRelations(ctx, b.class, items, b.eager); err != nil {
				yield(nil, err)
				return
			}
			if !yield(collection.New(items...), nil) {
				return
			}
		}
	}
}

// Create mass-assigns values into a new instance and saves it.
func (b *Builder) Create(ctx context.Context, values map[string]any) (*Instance, error) {
	m := b.class.NewInstance()
	if _, err := m.Fill(values); err != nil {
		return nil, err
	}
	if err := m.Save(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// BulkCreate inserts every row in one statement, applying the
// mass-assignment filter and timestamps per row.
func (b *Builder) BulkCreate(ctx context.Context, rows []map[string]any) (int64, error) {
	qb, err := b.queryBuilder()
	if err != nil {
		return 0, err
	}
	prepared := make([]map[string]any, len(rows))
	now := time.Now().In(b.class.timezone)
	for i, row := range rows {
		allowed, err := b.class.filterAssignable(row)
		if err != nil {
			return 0, err
		}
		if b.class.timestamps {
			if _, ok := allowed["created_at"]; !ok {
				allowed["created_at"] = now
			}
			if _, ok := allowed["updated_at"]; !ok {
				allowed["updated_at"] = now
			}
		}
		prepared[i] = allowed
	}
	return qb.BulkCreate(ctx, prepared)
}

// Update mass-updates the rows matching the accumulated predicates,
// stamping updated_at unless ActivateTimestamps(false) was called.
func (b *Builder) Update(ctx context.Context, values map[string]any) (int64, error) {
	qb, err := b.queryBuilder()
	if err != nil {
		return 0, err
	}
	allowed, err := b.class.filterAssignable(values)
	if err != nil {
		return 0, err
	}
	if b.class.timestamps && b.timestamps {
		if _, ok := allowed["updated_at"]; !ok {
			allowed["updated_at"] = time.Now().In(b.class.timezone)
		}
	}
	b.applyScopes()
	return qb.Update(ctx, allowed)
}

// Delete removes the matching rows. Global scopes may rewrite the
// statement: with SoftDeletes it becomes a deletion-timestamp update
// unless ForceDelete was requested.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	qb, err := b.queryBuilder()
	if err != nil {
		return 0, err
	}
	for _, s := range b.class.scopes {
		if b.withoutScopes[s.ScopeName()] {
			continue
		}
		if d, ok := s.(deleteOverrider); ok {
			n, handled, err := d.PerformDelete(ctx, b)
			if handled {
				return n, err
			}
		}
	}
	return qb.Delete(ctx)
}

// ForceDelete bypasses the soft-delete rewrite for this query.
func (b *Builder) ForceDelete(ctx context.Context) (int64, error) {
	return b.withForceDelete().Delete(ctx)
}

// Restore clears the deletion timestamp of the matching trashed rows.
func (b *Builder) Restore(ctx context.Context) (int64, error) {
	sd := b.class.softDeleteScope()
	if sd == nil {
		return 0, loom.NewConfigurationError("model %s has no soft-delete scope", b.class.name)
	}
	qb, err := b.queryBuilder()
	if err != nil {
		return 0, err
	}
	return qb.Update(ctx, map[string]any{sd.Column: nil})
}

// Increment adds by (default 1) to column on the matching rows.
func (b *Builder) Increment(ctx context.Context, column string, by ...int) (int64, error) {
	qb, err := b.queryBuilder()
	if err != nil {
		return 0, err
	}
	b.applyScopes()
	return qb.Increment(ctx, column, by...)
}

// Decrement subtracts by (default 1) from column on the matching rows.
func (b *Builder) Decrement(ctx context.Context, column string, by ...int) (int64, error) {
	qb, err := b.queryBuilder()
	if err != nil {
		return 0, err
	}
	b.applyScopes()
	return qb.Decrement(ctx, column, by...)
}

// ToSQL compiles the query with interpolated bindings, for debugging.
func (b *Builder) ToSQL() (string, error) {
	qb, err := b.prepare()
	if err != nil {
		return "", err
	}
	return qb.ToSQL()
}

// ToQmark compiles the query into placeholder SQL plus bindings,
// resetting the accumulated state.
func (b *Builder) ToQmark() (string, []any, error) {
	qb, err := b.prepare()
	if err != nil {
		return "", nil, err
	}
	b.scopesApplied = false
	return qb.ToQmark()
}

// Class-level conveniences.

// All returns every row of the class's table (scopes applied).
func (c *Class) All(ctx context.Context) (*collection.Collection[*Instance], error) {
	return c.Query().Get(ctx)
}

// Find returns the instance with the given primary key, or nil.
func (c *Class) Find(ctx context.Context, id any) (*Instance, error) {
	return c.Query().Find(ctx, id)
}

// FindOrFail returns the instance with the given primary key or a
// NotFoundError.
func (c *Class) FindOrFail(ctx context.Context, id any) (*Instance, error) {
	return c.Query().FindOrFail(ctx, id)
}

// Create mass-assigns values into a new instance and saves it.
func (c *Class) Create(ctx context.Context, values map[string]any) (*Instance, error) {
	return c.Query().Create(ctx, values)
}

// Where starts a builder with a predicate.
func (c *Class) Where(column string, args ...any) *Builder {
	return c.Query().Where(column, args...)
}

// With starts a builder with eager-load paths.
func (c *Class) With(paths ...string) *Builder {
	return c.Query().With(paths...)
}

// WithTrashed starts a builder including soft-deleted rows.
func (c *Class) WithTrashed() *Builder {
	return c.Query().WithTrashed()
}

// OnlyTrashed starts a builder over soft-deleted rows only.
func (c *Class) OnlyTrashed() *Builder {
	return c.Query().OnlyTrashed()
}

// FirstOrCreate returns the first instance matching attributes, creating
// it (merged with values) when none exists.
func (c *Class) FirstOrCreate(ctx context.Context, attributes, values map[string]any) (*Instance, error) {
	m, err := c.Query().WhereMap(attributes).First(ctx)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	merged := make(map[string]any, len(attributes)+len(values))
	for k, v := range attributes {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	return c.Create(ctx, merged)
}

// UpdateOrCreate updates the first instance matching attributes with
// values, creating it when none exists.
func (c *Class) UpdateOrCreate(ctx context.Context, attributes, values map[string]any) (*Instance, error) {
	m, err := c.Query().WhereMap(attributes).First(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return c.FirstOrCreate(ctx, attributes, values)
	}
	if err := m.Update(ctx, values); err != nil {
		return nil, err
	}
	return m, nil
}

// Attach links the parent to a related key through the named
// belongs-to-many relationship's pivot table.
func (c *Class) Attach(ctx context.Context, parent *Instance, relation string, relatedID any, extra ...map[string]any) error {
	rel, err := c.Relation(relation)
	if err != nil {
		return err
	}
	btm, ok := rel.(*belongsToMany)
	if !ok {
		return loom.NewConfigurationError("model %s: %q is not a belongs-to-many relationship", c.name, relation)
	}
	var fields map[string]any
	if len(extra) > 0 {
		fields = extra[0]
	}
	return btm.Attach(ctx, parent, relatedID, fields)
}

// Detach unlinks the parent from related keys through the named
// belongs-to-many relationship; no keys means every link.
func (c *Class) Detach(ctx context.Context, parent *Instance, relation string, relatedIDs ...any) error {
	rel, err := c.Relation(relation)
	if err != nil {
		return err
	}
	btm, ok := rel.(*belongsToMany)
	if !ok {
		return loom.NewConfigurationError("model %s: %q is not a belongs-to-many relationship", c.name, relation)
	}
	return btm.Detach(ctx, parent, relatedIDs...)
}
