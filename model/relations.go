package model

import (
	"context"
	"strings"

	"github.com/syssam/loom"
	"github.com/syssam/loom/collection"
	"github.com/syssam/loom/internal/naming"
	"github.com/syssam/loom/query"
)

// throughKeyAlias is the aliased intermediate key selected by *_through
// relations to group far rows by parent.
const throughKeyAlias = "loom_through_key"

// pivotPrefix is the alias prefix pivot columns are selected under
// before hydration moves them into the pivot record.
const pivotPrefix = "pivot_"

// Relation is a relationship descriptor registered on a class. Each
// carries a thunk returning the related class to break declaration
// cycles.
type Relation interface {
	RelName() string
	Related() *Class
	// Single reports whether the relation resolves to one instance
	// (belongs_to, has_one, has_one_through) instead of a collection.
	Single() bool
	// ParentKey returns the value collected from a parent to batch and
	// match related rows.
	ParentKey(parent *Instance) any
	// Batch builds the one query loading all related rows for keys.
	Batch(keys []any) (*Builder, error)
	// GroupKey returns the value on a loaded row matched against
	// ParentKey.
	GroupKey(child *Instance) any
	// Join adds this relation's join clauses to a parent query.
	Join(b *Builder, kind string) error
	// Existence returns a subquery callable correlated to the parent
	// table, used by WhereHas.
	Existence(filter func(*Builder) *Builder) (query.Callable, error)
	// CountSubquery returns the correlated COUNT subquery callable used
	// by WithCount.
	CountSubquery(filter func(*Builder) *Builder) (query.Callable, error)

	loadOne(ctx context.Context, parent *Instance) (any, error)
	afterLoad(children []*Instance) error
}

// Registrar registers relationship descriptors during class boot.
type Registrar struct {
	class *Class
}

// RelOption overrides a relationship's conventional keys.
type RelOption func(*relOpts)

type relOpts struct {
	foreignKey string
	localKey   string
	ownerKey   string

	pivotTable      string
	foreignPivotKey string
	relatedPivotKey string
	parentKey       string
	relatedKey      string
	pivotID         string
	pivotIDSet      bool
	withTimestamps  bool
	pivotFields     []string
	pivotAttribute  string

	firstKey       string
	secondKey      string
	secondLocalKey string
}

// ForeignKey overrides the foreign key column.
func ForeignKey(column string) RelOption {
	return func(o *relOpts) { o.foreignKey = column }
}

// LocalKey overrides the local key column.
func LocalKey(column string) RelOption {
	return func(o *relOpts) { o.localKey = column }
}

// OwnerKey overrides the owner key column of a belongs-to.
func OwnerKey(column string) RelOption {
	return func(o *relOpts) { o.ownerKey = column }
}

// PivotTable overrides the derived pivot table name.
func PivotTable(table string) RelOption {
	return func(o *relOpts) { o.pivotTable = table }
}

// PivotKeys overrides the pivot's foreign and related key columns.
func PivotKeys(foreignPivot, relatedPivot string) RelOption {
	return func(o *relOpts) {
		o.foreignPivotKey = foreignPivot
		o.relatedPivotKey = relatedPivot
	}
}

// ParentKey overrides the parent key column of a belongs-to-many.
func ParentKey(column string) RelOption {
	return func(o *relOpts) { o.parentKey = column }
}

// RelatedKey overrides the related key column of a belongs-to-many.
func RelatedKey(column string) RelOption {
	return func(o *relOpts) { o.relatedKey = column }
}

// PivotID overrides the pivot primary key column; an empty column means
// the pivot has no individually addressable key.
func PivotID(column string) RelOption {
	return func(o *relOpts) {
		o.pivotID = column
		o.pivotIDSet = true
	}
}

// WithPivotTimestamps selects created_at/updated_at from the pivot.
func WithPivotTimestamps() RelOption {
	return func(o *relOpts) { o.withTimestamps = true }
}

// PivotFields selects extra pivot columns into the pivot record.
func PivotFields(columns ...string) RelOption {
	return func(o *relOpts) { o.pivotFields = append(o.pivotFields, columns...) }
}

// PivotAttribute renames the attribute the pivot record is stored under
// (default "pivot").
func PivotAttribute(name string) RelOption {
	return func(o *relOpts) { o.pivotAttribute = name }
}

// ThroughKeys overrides the intermediate and far foreign keys of a
// through relation.
func ThroughKeys(onIntermediate, onFar string) RelOption {
	return func(o *relOpts) {
		o.firstKey = onIntermediate
		o.secondKey = onFar
	}
}

// ThroughLocalKeys overrides the parent and intermediate local keys of
// a through relation.
func ThroughLocalKeys(onParent, onIntermediate string) RelOption {
	return func(o *relOpts) {
		o.localKey = onParent
		o.secondLocalKey = onIntermediate
	}
}

func applyOpts(opts []RelOption) relOpts {
	var o relOpts
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// relCore carries what every descriptor shares.
type relCore struct {
	name    string
	parent  *Class
	related func() *Class
	opts    relOpts
}

func (r *relCore) RelName() string { return r.name }

func (r *relCore) Related() *Class {
	c := r.related()
	if c == nil {
		panic(loom.NewConfigurationError("model %s: relationship %q resolved to nil class", r.parent.name, r.name))
	}
	return c
}

func (r *relCore) afterLoad([]*Instance) error { return nil }

// BelongsTo registers an inverse one-to-one: the foreign key lives on
// this model.
func (r *Registrar) BelongsTo(name string, related func() *Class, opts ...RelOption) {
	r.class.relations[name] = &belongsTo{relCore{name, r.class, related, applyOpts(opts)}}
}

// HasOne registers a one-to-one: the foreign key lives on the related
// model.
func (r *Registrar) HasOne(name string, related func() *Class, opts ...RelOption) {
	r.class.relations[name] = &hasOneOrMany{relCore{name, r.class, related, applyOpts(opts)}, true}
}

// HasMany registers a one-to-many.
func (r *Registrar) HasMany(name string, related func() *Class, opts ...RelOption) {
	r.class.relations[name] = &hasOneOrMany{relCore{name, r.class, related, applyOpts(opts)}, false}
}

// BelongsToMany registers a many-to-many through a pivot table.
func (r *Registrar) BelongsToMany(name string, related func() *Class, opts ...RelOption) {
	r.class.relations[name] = &belongsToMany{relCore: relCore{name, r.class, related, applyOpts(opts)}}
}

// HasOneThrough registers a one-to-one reached through an intermediate
// model.
func (r *Registrar) HasOneThrough(name string, related, through func() *Class, opts ...RelOption) {
	r.class.relations[name] = &hasThrough{relCore{name, r.class, related, applyOpts(opts)}, through, true}
}

// HasManyThrough registers a one-to-many reached through an
// intermediate model.
func (r *Registrar) HasManyThrough(name string, related, through func() *Class, opts ...RelOption) {
	r.class.relations[name] = &hasThrough{relCore{name, r.class, related, applyOpts(opts)}, through, false}
}

// loadRelated runs the batch query for one parent and extracts the
// value shaped for the relation's cardinality.
func loadRelated(ctx context.Context, rel Relation, parent *Instance) (any, error) {
	key := rel.ParentKey(parent)
	if key == nil {
		if rel.Single() {
			return nil, nil
		}
		return collection.New[*Instance](), nil
	}
	b, err := rel.Batch([]any{key})
	if err != nil {
		return nil, err
	}
	items, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := rel.afterLoad(items.All()); err != nil {
		return nil, err
	}
	if rel.Single() {
		if items.IsEmpty() {
			return nil, nil
		}
		return items.First(), nil
	}
	return items, nil
}

// ---------------------------------------------------------------------
// belongs_to

type belongsTo struct {
	relCore
}

func (r *belongsTo) foreignKey() string {
	if r.opts.foreignKey != "" {
		return r.opts.foreignKey
	}
	return naming.Singularize(r.Related().table) + "_id"
}

func (r *belongsTo) ownerKey() string {
	if r.opts.ownerKey != "" {
		return r.opts.ownerKey
	}
	return r.Related().primaryKey
}

func (r *belongsTo) Single() bool { return true }

func (r *belongsTo) ParentKey(parent *Instance) any {
	return parent.GetRaw(r.foreignKey())
}

func (r *belongsTo) Batch(keys []any) (*Builder, error) {
	return whereKeys(r.Related().Query(), r.ownerKey(), keys), nil
}

func (r *belongsTo) GroupKey(child *Instance) any {
	return child.GetRaw(r.ownerKey())
}

func (r *belongsTo) Join(b *Builder, kind string) error {
	related := r.Related()
	b.qb.JoinWith(query.NewJoinClause(kind, related.table).
		On(r.parent.table+"."+r.foreignKey(), "=", related.table+"."+r.ownerKey()))
	return nil
}

func (r *belongsTo) Existence(filter func(*Builder) *Builder) (query.Callable, error) {
	return existenceFor(r.Related(), r.Related().table+"."+r.ownerKey(), r.parent.table+"."+r.foreignKey(), filter), nil
}

func (r *belongsTo) CountSubquery(filter func(*Builder) *Builder) (query.Callable, error) {
	return countFor(r.Related(), r.Related().table+"."+r.ownerKey(), r.parent.table+"."+r.foreignKey(), filter), nil
}

func (r *belongsTo) loadOne(ctx context.Context, parent *Instance) (any, error) {
	return loadRelated(ctx, r, parent)
}

// ---------------------------------------------------------------------
// has_one / has_many

type hasOneOrMany struct {
	relCore
	single bool
}

func (r *hasOneOrMany) foreignKey() string {
	if r.opts.foreignKey != "" {
		return r.opts.foreignKey
	}
	return naming.Singularize(r.parent.table) + "_id"
}

func (r *hasOneOrMany) localKey() string {
	if r.opts.localKey != "" {
		return r.opts.localKey
	}
	return r.parent.primaryKey
}

func (r *hasOneOrMany) Single() bool { return r.single }

func (r *hasOneOrMany) ParentKey(parent *Instance) any {
	return parent.GetRaw(r.localKey())
}

func (r *hasOneOrMany) Batch(keys []any) (*Builder, error) {
	return whereKeys(r.Related().Query(), r.foreignKey(), keys), nil
}

func (r *hasOneOrMany) GroupKey(child *Instance) any {
	return child.GetRaw(r.foreignKey())
}

func (r *hasOneOrMany) Join(b *Builder, kind string) error {
	related := r.Related()
	b.qb.JoinWith(query.NewJoinClause(kind, related.table).
		On(r.parent.table+"."+r.localKey(), "=", related.table+"."+r.foreignKey()))
	return nil
}

func (r *hasOneOrMany) Existence(filter func(*Builder) *Builder) (query.Callable, error) {
	return existenceFor(r.Related(), r.Related().table+"."+r.foreignKey(), r.parent.table+"."+r.localKey(), filter), nil
}

func (r *hasOneOrMany) CountSubquery(filter func(*Builder) *Builder) (query.Callable, error) {
	return countFor(r.Related(), r.Related().table+"."+r.foreignKey(), r.parent.table+"."+r.localKey(), filter), nil
}

func (r *hasOneOrMany) loadOne(ctx context.Context, parent *Instance) (any, error) {
	return loadRelated(ctx, r, parent)
}

// ---------------------------------------------------------------------
// belongs_to_many

type belongsToMany struct {
	relCore
	pivotClassCache *Class
}

func (r *belongsToMany) pivotTable() string {
	if r.opts.pivotTable != "" {
		return r.opts.pivotTable
	}
	return naming.PivotTable(r.parent.table, r.Related().table)
}

func (r *belongsToMany) foreignPivotKey() string {
	if r.opts.foreignPivotKey != "" {
		return r.opts.foreignPivotKey
	}
	return naming.Singularize(r.parent.table) + "_id"
}

func (r *belongsToMany) relatedPivotKey() string {
	if r.opts.relatedPivotKey != "" {
		return r.opts.relatedPivotKey
	}
	return naming.Singularize(r.Related().table) + "_id"
}

func (r *belongsToMany) parentKey() string {
	if r.opts.parentKey != "" {
		return r.opts.parentKey
	}
	return r.parent.primaryKey
}

func (r *belongsToMany) relatedKey() string {
	if r.opts.relatedKey != "" {
		return r.opts.relatedKey
	}
	return r.Related().primaryKey
}

func (r *belongsToMany) pivotID() string {
	if r.opts.pivotIDSet {
		return r.opts.pivotID
	}
	return "id"
}

func (r *belongsToMany) pivotAttribute() string {
	if r.opts.pivotAttribute != "" {
		return r.opts.pivotAttribute
	}
	return "pivot"
}

// pivotColumns lists the pivot columns selected into aliased fields.
func (r *belongsToMany) pivotColumns() []string {
	cols := []string{r.foreignPivotKey(), r.relatedPivotKey()}
	if id := r.pivotID(); id != "" {
		cols = append(cols, id)
	}
	if r.opts.withTimestamps {
		cols = append(cols, "created_at", "updated_at")
	}
	cols = append(cols, r.opts.pivotFields...)
	return cols
}

// pivotClass returns the lightweight model class for pivot records.
func (r *belongsToMany) pivotClass() *Class {
	if r.pivotClassCache == nil {
		ts := false
		r.pivotClassCache = MustDefine(Definition{
			Name:       naming.Camel(naming.Singularize(r.pivotTable())),
			Table:      r.pivotTable(),
			PrimaryKey: r.pivotID(),
			Connection: r.parent.conn,
			Timestamps: &ts,
		})
		r.pivotClassCache.resolver = r.parent.resolver
		r.pivotClassCache.executor = r.parent.executor
		r.pivotClassCache.grammar = r.parent.grammar
	}
	return r.pivotClassCache
}

func (r *belongsToMany) Single() bool { return false }

func (r *belongsToMany) ParentKey(parent *Instance) any {
	return parent.GetRaw(r.parentKey())
}

func (r *belongsToMany) Batch(keys []any) (*Builder, error) {
	related := r.Related()
	pivot := r.pivotTable()
	b := related.Query()
	b.Select(related.table + ".*")
	for _, col := range r.pivotColumns() {
		b.Select(pivot + "." + col + " as " + pivotPrefix + col)
	}
	b.qb.JoinWith(query.NewJoinClause("inner", pivot).
		On(related.table+"."+r.relatedKey(), "=", pivot+"."+r.relatedPivotKey()))
	return whereKeys(b, pivot+"."+r.foreignPivotKey(), keys), nil
}

// GroupKey reads the foreign pivot value from the hydrated pivot
// record.
func (r *belongsToMany) GroupKey(child *Instance) any {
	if p, ok := child.Relation(r.pivotAttribute()).(*Instance); ok && p != nil {
		return p.GetRaw(r.foreignPivotKey())
	}
	return child.GetRaw(pivotPrefix + r.foreignPivotKey())
}

// afterLoad moves the aliased pivot_* columns of every loaded row into
// a pivot record stored under the configured attribute name.
func (r *belongsToMany) afterLoad(children []*Instance) error {
	pc := r.pivotClass()
	for _, child := range children {
		attrs := make(map[string]any)
		for k, v := range child.attributes {
			if strings.HasPrefix(k, pivotPrefix) {
				attrs[strings.TrimPrefix(k, pivotPrefix)] = v
				delete(child.attributes, k)
				delete(child.original, k)
			}
		}
		child.SetRelation(r.pivotAttribute(), pc.hydrate(attrs))
	}
	return nil
}

func (r *belongsToMany) Join(b *Builder, kind string) error {
	related := r.Related()
	pivot := r.pivotTable()
	b.qb.JoinWith(query.NewJoinClause(kind, pivot).
		On(r.parent.table+"."+r.parentKey(), "=", pivot+"."+r.foreignPivotKey()))
	b.qb.JoinWith(query.NewJoinClause(kind, related.table).
		On(pivot+"."+r.relatedPivotKey(), "=", related.table+"."+r.relatedKey()))
	return nil
}

func (r *belongsToMany) Existence(filter func(*Builder) *Builder) (query.Callable, error) {
	pivot := r.pivotTable()
	parentCol := r.parent.table + "." + r.parentKey()
	return func(sub *query.Builder) *query.Builder {
		if filter == nil {
			return sub.Table(pivot).WhereColumn(pivot+"."+r.foreignPivotKey(), parentCol)
		}
		related := r.Related()
		sub.Table(related.table).
			JoinWith(query.NewJoinClause("inner", pivot).
				On(related.table+"."+r.relatedKey(), "=", pivot+"."+r.relatedPivotKey())).
			WhereColumn(pivot+"."+r.foreignPivotKey(), parentCol)
		applyRelatedFilter(related, sub, filter)
		return sub
	}, nil
}

func (r *belongsToMany) CountSubquery(filter func(*Builder) *Builder) (query.Callable, error) {
	pivot := r.pivotTable()
	parentCol := r.parent.table + "." + r.parentKey()
	return func(sub *query.Builder) *query.Builder {
		if filter == nil {
			return sub.Table(pivot).
				Aggregate("count", "*").
				WhereColumn(pivot+"."+r.foreignPivotKey(), parentCol)
		}
		related := r.Related()
		sub.Table(related.table).
			Aggregate("count", "*").
			JoinWith(query.NewJoinClause("inner", pivot).
				On(related.table+"."+r.relatedKey(), "=", pivot+"."+r.relatedPivotKey())).
			WhereColumn(pivot+"."+r.foreignPivotKey(), parentCol)
		applyRelatedFilter(related, sub, filter)
		return sub
	}, nil
}

func (r *belongsToMany) loadOne(ctx context.Context, parent *Instance) (any, error) {
	return loadRelated(ctx, r, parent)
}

// Attach inserts a pivot row linking parent and the related key.
func (r *belongsToMany) Attach(ctx context.Context, parent *Instance, relatedID any, extra map[string]any) error {
	values := map[string]any{
		r.foreignPivotKey(): parent.GetRaw(r.parentKey()),
		r.relatedPivotKey(): relatedID,
	}
	for k, v := range extra {
		values[k] = v
	}
	qb, err := r.pivotClass().Query().queryBuilder()
	if err != nil {
		return err
	}
	_, err = qb.Create(ctx, values)
	return err
}

// Detach removes the pivot rows linking parent and the related keys;
// with no keys every link of the parent is removed.
func (r *belongsToMany) Detach(ctx context.Context, parent *Instance, relatedIDs ...any) error {
	qb, err := r.pivotClass().Query().queryBuilder()
	if err != nil {
		return err
	}
	qb.Where(r.foreignPivotKey(), parent.GetRaw(r.parentKey()))
	if len(relatedIDs) > 0 {
		qb.WhereIn(r.relatedPivotKey(), relatedIDs)
	}
	_, err = qb.Delete(ctx)
	return err
}

// ---------------------------------------------------------------------
// has_one_through / has_many_through

type hasThrough struct {
	relCore
	through func() *Class
	single  bool
}

func (r *hasThrough) throughClass() *Class { return r.through() }

// firstKey is the foreign key on the intermediate referencing the
// parent.
func (r *hasThrough) firstKey() string {
	if r.opts.firstKey != "" {
		return r.opts.firstKey
	}
	return naming.Singularize(r.parent.table) + "_id"
}

// secondKey is the foreign key on the far table referencing the
// intermediate.
func (r *hasThrough) secondKey() string {
	if r.opts.secondKey != "" {
		return r.opts.secondKey
	}
	return naming.Singularize(r.throughClass().table) + "_id"
}

func (r *hasThrough) localKey() string {
	if r.opts.localKey != "" {
		return r.opts.localKey
	}
	return r.parent.primaryKey
}

func (r *hasThrough) secondLocalKey() string {
	if r.opts.secondLocalKey != "" {
		return r.opts.secondLocalKey
	}
	return r.throughClass().primaryKey
}

func (r *hasThrough) Single() bool { return r.single }

func (r *hasThrough) ParentKey(parent *Instance) any {
	return parent.GetRaw(r.localKey())
}

func (r *hasThrough) Batch(keys []any) (*Builder, error) {
	related := r.Related()
	through := r.throughClass()
	b := related.Query()
	b.Select(related.table+".*",
		through.table+"."+r.firstKey()+" as "+throughKeyAlias)
	b.qb.JoinWith(query.NewJoinClause("inner", through.table).
		On(through.table+"."+r.secondLocalKey(), "=", related.table+"."+r.secondKey()))
	return whereKeys(b, through.table+"."+r.firstKey(), keys), nil
}

func (r *hasThrough) GroupKey(child *Instance) any {
	return child.GetRaw(throughKeyAlias)
}

func (r *hasThrough) Join(b *Builder, kind string) error {
	related := r.Related()
	through := r.throughClass()
	b.qb.JoinWith(query.NewJoinClause(kind, through.table).
		On(r.parent.table+"."+r.localKey(), "=", through.table+"."+r.firstKey()))
	b.qb.JoinWith(query.NewJoinClause(kind, related.table).
		On(through.table+"."+r.secondLocalKey(), "=", related.table+"."+r.secondKey()))
	return nil
}

func (r *hasThrough) Existence(filter func(*Builder) *Builder) (query.Callable, error) {
	through := r.throughClass()
	parentCol := r.parent.table + "." + r.localKey()
	return func(sub *query.Builder) *query.Builder {
		if filter == nil {
			return sub.Table(through.table).
				WhereColumn(through.table+"."+r.firstKey(), parentCol)
		}
		related := r.Related()
		sub.Table(related.table).
			JoinWith(query.NewJoinClause("inner", through.table).
				On(through.table+"."+r.secondLocalKey(), "=", related.table+"."+r.secondKey())).
			WhereColumn(through.table+"."+r.firstKey(), parentCol)
		applyRelatedFilter(related, sub, filter)
		return sub
	}, nil
}

func (r *hasThrough) CountSubquery(filter func(*Builder) *Builder) (query.Callable, error) {
	related := r.Related()
	through := r.throughClass()
	parentCol := r.parent.table + "." + r.localKey()
	return func(sub *query.Builder) *query.Builder {
		sub.Table(related.table).
			Aggregate("count", "*").
			JoinWith(query.NewJoinClause("inner", through.table).
				On(through.table+"."+r.secondLocalKey(), "=", related.table+"."+r.secondKey())).
			WhereColumn(through.table+"."+r.firstKey(), parentCol)
		applyRelatedFilter(related, sub, filter)
		return sub
	}, nil
}

func (r *hasThrough) loadOne(ctx context.Context, parent *Instance) (any, error) {
	return loadRelated(ctx, r, parent)
}

// whereKeys constrains a builder to the collected parent keys, using a
// plain equality for the single-key case.
func whereKeys(b *Builder, column string, keys []any) *Builder {
	if len(keys) == 1 {
		return b.Where(column, keys[0])
	}
	return b.WhereIn(column, keys)
}

// existenceFor builds the correlated EXISTS subquery shared by the
// single-hop relations.
func existenceFor(related *Class, childCol, parentCol string, filter func(*Builder) *Builder) query.Callable {
	return func(sub *query.Builder) *query.Builder {
		sub.Table(related.table).WhereColumn(childCol, parentCol)
		if sd := related.softDeleteScope(); sd != nil {
			sub.WhereNull(related.table + "." + sd.Column)
		}
		applyRelatedFilter(related, sub, filter)
		return sub
	}
}

// countFor builds the correlated COUNT subquery shared by the
// single-hop relations.
func countFor(related *Class, childCol, parentCol string, filter func(*Builder) *Builder) query.Callable {
	return func(sub *query.Builder) *query.Builder {
		sub.Table(related.table).
			Aggregate("count", "*").
			WhereColumn(childCol, parentCol)
		if sd := related.softDeleteScope(); sd != nil {
			sub.WhereNull(related.table + "." + sd.Column)
		}
		applyRelatedFilter(related, sub, filter)
		return sub
	}
}

// applyRelatedFilter runs a model-level filter against a raw subquery
// by wrapping it in a transient model builder.
func applyRelatedFilter(related *Class, sub *query.Builder, filter func(*Builder) *Builder) {
	if filter == nil {
		return
	}
	wrapper := &Builder{class: related, qb: sub}
	filter(wrapper)
}
