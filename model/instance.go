package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/loom"
	"github.com/syssam/loom/collection"
)

// Instance is one row projected into the active-record layer: the
// attribute store as last loaded, the original snapshot dirty tracking
// compares against, and the loaded relations.
//
// An Instance is not safe for concurrent mutation.
type Instance struct {
	class       *Class
	attributes  map[string]any
	original    map[string]any
	relations   map[string]any
	exists      bool
	forceUpdate bool
}

// NewInstance returns a fresh, non-persisted instance of the class.
func (c *Class) NewInstance() *Instance {
	c.boot()
	return &Instance{
		class:      c,
		attributes: make(map[string]any),
		original:   make(map[string]any),
		relations:  make(map[string]any),
	}
}

// hydrate materializes a database row into an instance, firing the
// hydrating/hydrated events and snapshotting the original state.
func (c *Class) hydrate(row map[string]any) *Instance {
	m := c.NewInstance()
	m.events("hydrating")
	m.attributes = make(map[string]any, len(row))
	for k, v := range row {
		m.attributes[k] = v
	}
	m.original = cloneAttributes(m.attributes)
	m.exists = true
	m.events("hydrated")
	return m
}

func (m *Instance) events(event string) bool {
	return m.class.events.fire(event, m)
}

// Class returns the instance's metadata handle.
func (m *Instance) Class() *Class { return m.class }

// Exists reports whether the instance is backed by a database row.
func (m *Instance) Exists() bool { return m.exists }

// ForceUpdate makes the next update emit SQL even with no dirty columns.
func (m *Instance) ForceUpdate() *Instance {
	m.forceUpdate = true
	return m
}

// Get reads an attribute. Lookup order: registered accessor, loaded
// relation, cast-applied attribute. Unknown names return nil.
func (m *Instance) Get(name string) any {
	if acc, ok := m.class.def.Accessors[name]; ok {
		return acc(m)
	}
	if rel, ok := m.relations[name]; ok {
		return rel
	}
	if v, ok := m.attributes[name]; ok {
		return castGet(m.class.def.Casts[name], v, m.class.timezone)
	}
	return nil
}

// GetRaw reads the stored attribute without accessor or cast.
func (m *Instance) GetRaw(name string) any { return m.attributes[name] }

// GetString reads an attribute coerced to string.
func (m *Instance) GetString(name string) string {
	v := m.Get(name)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// GetInt reads an attribute coerced to int64.
func (m *Instance) GetInt(name string) int64 {
	if v, ok := castInt(m.Get(name)).(int64); ok {
		return v
	}
	return 0
}

// Set writes an attribute. A registered mutator runs first, then the
// cast coercion, then the value is stored, marking the model dirty.
func (m *Instance) Set(name string, value any) *Instance {
	if mut, ok := m.class.def.Mutators[name]; ok {
		value = mut(m, value)
	}
	value = castSet(m.class.def.Casts[name], value, m.class.timezone)
	m.attributes[name] = value
	return m
}

// SetRaw stores an attribute bypassing mutators and casts.
func (m *Instance) SetRaw(name string, value any) *Instance {
	m.attributes[name] = value
	return m
}

// Fill mass-assigns values through the fillable/guarded filter.
func (m *Instance) Fill(values map[string]any) (*Instance, error) {
	allowed, err := m.class.filterAssignable(values)
	if err != nil {
		return m, err
	}
	for k, v := range allowed {
		m.Set(k, v)
	}
	return m, nil
}

// PrimaryKey returns the primary key value.
func (m *Instance) PrimaryKey() any {
	return m.attributes[m.class.primaryKey]
}

// GetOriginal returns the attribute value as of the last hydrate or
// save.
func (m *Instance) GetOriginal(name string) any {
	return m.original[name]
}

// serializeValue normalizes a value for dirty comparison.
func serializeValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// IsDirty reports whether any (or any of the given) attributes differ
// from the original snapshot.
func (m *Instance) IsDirty(columns ...string) bool {
	if len(columns) == 0 {
		return len(m.DirtyColumns()) > 0
	}
	for _, c := range columns {
		if serializeValue(m.attributes[c]) != serializeValue(m.original[c]) {
			return true
		}
	}
	return false
}

// DirtyColumns returns the attributes differing from the original
// snapshot.
func (m *Instance) DirtyColumns() []string {
	var out []string
	for k, v := range m.attributes {
		if serializeValue(v) != serializeValue(m.original[k]) {
			out = append(out, k)
		}
	}
	for k := range m.original {
		if _, ok := m.attributes[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// dirtyValues returns the changed attribute map sent to UPDATE.
func (m *Instance) dirtyValues() map[string]any {
	out := make(map[string]any)
	for _, c := range m.DirtyColumns() {
		if v, ok := m.attributes[c]; ok {
			out[c] = v
		} else {
			out[c] = nil
		}
	}
	return out
}

// syncOriginal snapshots attributes as the new original state.
func (m *Instance) syncOriginal() {
	m.original = cloneAttributes(m.attributes)
}

// cloneAttributes deep-copies the attribute map through a msgpack
// round-trip so nested values never alias between attributes and
// original.
func cloneAttributes(attrs map[string]any) map[string]any {
	data, err := msgpack.Marshal(attrs)
	if err == nil {
		var out map[string]any
		if err := msgpack.Unmarshal(data, &out); err == nil && out != nil {
			return out
		}
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// SetRelation caches a loaded relation value.
func (m *Instance) SetRelation(name string, value any) *Instance {
	m.relations[name] = value
	return m
}

// RelationLoaded reports whether the named relation has been loaded.
func (m *Instance) RelationLoaded(name string) bool {
	_, ok := m.relations[name]
	return ok
}

// Relation returns the cached relation value, nil when not loaded.
func (m *Instance) Relation(name string) any { return m.relations[name] }

// Related returns the relation value, executing its query and caching
// the result on first access.
func (m *Instance) Related(ctx context.Context, name string) (any, error) {
	if v, ok := m.relations[name]; ok {
		return v, nil
	}
	rel, err := m.class.Relation(name)
	if err != nil {
		return nil, err
	}
	v, err := rel.loadOne(ctx, m)
	if err != nil {
		return nil, err
	}
	m.relations[name] = v
	return v, nil
}

// Save persists the instance: INSERT when it does not exist yet, UPDATE
// of the dirty columns otherwise. A cancelled *ing event returns the
// unchanged model with no error.
func (m *Instance) Save(ctx context.Context) error {
	if m.exists {
		return m.performUpdate(ctx, nil, false, true)
	}
	return m.performInsert(ctx)
}

// Update merges values into the attributes and persists the dirty
// columns. With no dirty columns the SQL emission is skipped entirely
// unless force is set or ForceUpdate was called.
func (m *Instance) Update(ctx context.Context, values map[string]any, force ...bool) error {
	allowed, err := m.class.filterAssignable(values)
	if err != nil {
		return err
	}
	for k, v := range allowed {
		m.Set(k, v)
	}
	return m.performUpdate(ctx, nil, len(force) > 0 && force[0], true)
}

func (m *Instance) performInsert(ctx context.Context) error {
	c := m.class
	c.boot()
	if !m.events("saving") || !m.events("creating") {
		return nil
	}
	for _, s := range c.scopes {
		if h, ok := s.(insertHooker); ok {
			if err := h.PerformInsert(m); err != nil {
				return err
			}
		}
	}
	if c.timestamps {
		now := time.Now().In(c.timezone)
		if _, ok := m.attributes["created_at"]; !ok {
			m.attributes["created_at"] = now
		}
		if _, ok := m.attributes["updated_at"]; !ok {
			m.attributes["updated_at"] = now
		}
	}
	qb, err := c.Query().queryBuilder()
	if err != nil {
		return err
	}
	row, err := qb.Create(ctx, m.attributes)
	if err != nil {
		return err
	}
	if pk, ok := row[c.primaryKey]; ok {
		m.attributes[c.primaryKey] = pk
	}
	m.exists = true
	m.syncOriginal()
	m.events("created")
	m.events("saved")
	return nil
}

// performUpdate writes the dirty columns. The timestamps flag reflects
// ActivateTimestamps on the issuing builder; an explicit false wins
// over any force-update setting.
func (m *Instance) performUpdate(ctx context.Context, b *Builder, force, timestamps bool) error {
	c := m.class
	c.boot()
	force = force || m.forceUpdate || c.def.ForceUpdate
	dirty := m.dirtyValues()
	if len(dirty) == 0 && !force {
		return nil
	}
	if !m.events("saving") || !m.events("updating") {
		return nil
	}
	if c.timestamps && timestamps {
		m.attributes["updated_at"] = time.Now().In(c.timezone)
		dirty["updated_at"] = m.attributes["updated_at"]
	}
	if len(dirty) == 0 {
		// Forced update with nothing changed still touches the row.
		dirty = cloneAttributes(m.attributes)
		delete(dirty, c.primaryKey)
	}
	if b == nil {
		b = c.Query()
	}
	qb, err := b.queryBuilder()
	if err != nil {
		return err
	}
	if _, err := qb.Where(c.primaryKey, m.PrimaryKey()).Update(ctx, dirty); err != nil {
		return err
	}
	m.syncOriginal()
	m.events("updated")
	m.events("saved")
	return nil
}

// Delete removes the row. With a SoftDeletes scope the delete is
// rewritten into a deletion-timestamp update unless force is set.
func (m *Instance) Delete(ctx context.Context, force ...bool) error {
	c := m.class
	c.boot()
	if !m.events("deleting") {
		return nil
	}
	b := c.Query().Where(c.primaryKey, m.PrimaryKey())
	if len(force) > 0 && force[0] {
		b = b.withForceDelete()
	}
	if _, err := b.Delete(ctx); err != nil {
		return err
	}
	if sd := c.softDeleteScope(); sd != nil && !(len(force) > 0 && force[0]) {
		m.attributes[sd.Column] = time.Now().In(c.timezone)
		m.syncOriginal()
	} else {
		m.exists = false
	}
	m.events("deleted")
	return nil
}

// Touch persists only a fresh updated_at.
func (m *Instance) Touch(ctx context.Context) error {
	if !m.class.timestamps || !m.exists {
		return nil
	}
	return m.Update(ctx, nil, true)
}

// Fresh re-fetches the row by primary key, failing with NotFoundError
// when it no longer exists.
func (m *Instance) Fresh(ctx context.Context) (*Instance, error) {
	fresh, err := m.class.Query().Find(ctx, m.PrimaryKey())
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, loom.NewNotFoundError(m.class.name, m.PrimaryKey())
	}
	return fresh, nil
}

// Serialize projects the instance into a plain map: attributes filtered
// by hidden/visible, loaded relations serialized recursively, appends
// computed and date columns formatted ISO-8601. Unloaded relations are
// omitted.
func (m *Instance) Serialize() map[string]any {
	out, _ := m.serialize(false)
	return out
}

// SerializeStrict is Serialize failing with NotLoadedError when a
// registered relation was never loaded.
func (m *Instance) SerializeStrict() (map[string]any, error) {
	return m.serialize(true)
}

func (m *Instance) serialize(strict bool) (map[string]any, error) {
	c := m.class
	out := make(map[string]any, len(m.attributes))
	for k, v := range m.attributes {
		if c.isHidden(k) {
			continue
		}
		if c.isDateColumn(k) {
			out[k] = formatDate(v, c.timezone)
			continue
		}
		out[k] = castGet(c.def.Casts[k], v, c.timezone)
	}
	for _, a := range c.def.Appends {
		out[a] = m.Get(a)
	}
	c.boot()
	for name := range c.relations {
		v, loaded := m.relations[name]
		if !loaded {
			if strict {
				return nil, loom.NewNotLoadedError(name)
			}
			continue
		}
		out[name] = serializeRelation(v)
	}
	return out, nil
}

func serializeRelation(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Instance:
		return t.Serialize()
	case *collection.Collection[*Instance]:
		return t.Serialize()
	}
	return v
}

// ToJSON renders the serialized instance as UTF-8 JSON.
func (m *Instance) ToJSON() ([]byte, error) {
	return json.Marshal(m.Serialize())
}

var _ collection.Serializer = (*Instance)(nil)
