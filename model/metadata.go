// Package model implements the active-record layer: per-class metadata,
// row hydration into instances with dirty tracking, casts, lifecycle
// events and observers, global and local scopes, relationship
// descriptors and the batched eager loader.
package model

import (
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/loom"
	"github.com/syssam/loom/connection"
	"github.com/syssam/loom/internal/naming"
	"github.com/syssam/loom/query"
)

// Cast names a column coercion applied on attribute read and write.
type Cast string

// Supported casts.
const (
	CastInt      Cast = "int"
	CastBool     Cast = "bool"
	CastJSON     Cast = "json"
	CastDateTime Cast = "datetime"
)

// Accessor computes an attribute value on read, taking precedence over
// the stored attribute.
type Accessor func(*Instance) any

// Mutator coerces an attribute value on write before it is stored.
type Mutator func(*Instance, any) any

// ScopeFunc is a local scope: a named query fragment invoked explicitly
// through Builder.Scope.
type ScopeFunc func(*Builder, ...any) *Builder

// GlobalScope applies to every query built from the class unless opted
// out with WithoutGlobalScope. Scopes may additionally override delete
// and insert behavior by implementing deleteOverrider or insertHooker.
type GlobalScope interface {
	ScopeName() string
	Apply(*Builder)
}

// Definition declares a model class. Zero values fall back to
// conventions: table from the pluralized snake-case name, primary key
// "id", timestamps on, UTC timezone.
type Definition struct {
	Name       string
	Table      string
	PrimaryKey string
	Connection string

	Timestamps  *bool
	Timezone    string
	DateColumns []string

	Fillable []string
	Guarded  []string
	Hidden   []string
	Visible  []string
	Appends  []string
	Casts    map[string]Cast
	Selects  []string
	With     []string

	ForceUpdate      bool
	StrictAssignment bool
	StrictRelations  bool

	Scopes      []GlobalScope
	LocalScopes map[string]ScopeFunc
	Accessors   map[string]Accessor
	Mutators    map[string]Mutator

	// Relationships registers the class's relationship descriptors on
	// first use; the deferred call breaks declaration-order cycles.
	Relationships func(*Registrar)

	// Observers registered at definition time; more may be added with
	// Observe.
	Observers []Observer
}

// Class is the computed metadata handle for a model: the entry point for
// building queries and creating instances.
type Class struct {
	def        Definition
	name       string
	table      string
	primaryKey string
	conn       string
	timestamps bool
	timezone   *time.Location

	relations map[string]Relation
	scopes    []GlobalScope
	events    *bus

	resolver *connection.Resolver
	executor query.Executor
	grammar  query.Grammar

	bootGroup singleflight.Group
	booted    bool
}

// Define computes the metadata for a model definition. It fails with a
// ConfigurationError when hidden and visible are both set or the
// definition is otherwise invalid.
func Define(def Definition) (*Class, error) {
	if def.Name == "" {
		return nil, loom.NewConfigurationError("model definition requires a name")
	}
	if len(def.Hidden) > 0 && len(def.Visible) > 0 {
		return nil, loom.NewConfigurationError("model %s: hidden and visible are mutually exclusive", def.Name)
	}
	c := &Class{
		def:        def,
		name:       def.Name,
		table:      def.Table,
		primaryKey: def.PrimaryKey,
		conn:       def.Connection,
		timestamps: def.Timestamps == nil || *def.Timestamps,
		relations:  make(map[string]Relation),
		scopes:     def.Scopes,
		events:     newBus(),
		resolver:   connection.Default(),
	}
	if c.table == "" {
		c.table = naming.TableFor(def.Name)
	}
	if c.primaryKey == "" {
		c.primaryKey = "id"
	}
	tz := def.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, loom.NewConfigurationError("model %s: unknown timezone %q", def.Name, tz)
	}
	c.timezone = loc
	for _, o := range def.Observers {
		c.Observe(o)
	}
	return c, nil
}

// MustDefine is Define, panicking on configuration errors. Intended for
// package-level model declarations.
func MustDefine(def Definition) *Class {
	c, err := Define(def)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the model name.
func (c *Class) Name() string { return c.name }

// TableName returns the resolved table name.
func (c *Class) TableName() string { return c.table }

// PrimaryKeyName returns the resolved primary key column.
func (c *Class) PrimaryKeyName() string { return c.primaryKey }

// ConnectionName returns the configured connection name; empty means the
// resolver default.
func (c *Class) ConnectionName() string { return c.conn }

// Timezone returns the location timestamps are generated in.
func (c *Class) Timezone() *time.Location { return c.timezone }

// UseResolver overrides the connection resolver, for injection in tests.
func (c *Class) UseResolver(r *connection.Resolver) *Class {
	c.resolver = r
	return c
}

// Use binds an explicit executor and grammar, bypassing the resolver.
func (c *Class) Use(exec query.Executor, g query.Grammar) *Class {
	c.executor = exec
	c.grammar = g
	return c
}

// boot runs the once-per-class boot sequence: the booting/booted event
// pair and relationship registration. Concurrent first uses share one
// boot through singleflight.
func (c *Class) boot() {
	if c.booted {
		return
	}
	c.bootGroup.Do("boot", func() (any, error) {
		if c.booted {
			return nil, nil
		}
		c.events.fireClass("booting", c)
		if c.def.Relationships != nil {
			c.def.Relationships(&Registrar{class: c})
		}
		c.booted = true
		c.events.fireClass("booted", c)
		return nil, nil
	})
}

// executorFor resolves the executor terminal operations run on.
func (c *Class) executorFor() (query.Executor, error) {
	if c.executor != nil {
		return c.executor, nil
	}
	return c.resolver.Executor(c.conn), nil
}

// grammarFor resolves the grammar queries compile through.
func (c *Class) grammarFor() (query.Grammar, error) {
	if c.grammar != nil {
		return c.grammar, nil
	}
	cfg, err := c.resolver.Connection(c.conn)
	if err != nil {
		return nil, err
	}
	return query.GrammarFor(cfg.Dialect())
}

// prefixedTable applies the connection's table prefix when configured.
func (c *Class) prefixedTable() string {
	if c.executor != nil {
		return c.table
	}
	cfg, err := c.resolver.Connection(c.conn)
	if err != nil || cfg.Prefix == "" {
		return c.table
	}
	return cfg.Prefix + c.table
}

// Relation returns the named relationship descriptor.
func (c *Class) Relation(name string) (Relation, error) {
	c.boot()
	rel, ok := c.relations[name]
	if !ok {
		return nil, loom.NewConfigurationError("model %s: unknown relationship %q", c.name, name)
	}
	return rel, nil
}

// scope lookup helpers.

func (c *Class) softDeleteScope() *SoftDeletes {
	for _, s := range c.scopes {
		if sd, ok := s.(*SoftDeletes); ok {
			return sd
		}
	}
	return nil
}

func (c *Class) fillableAllows(column string) bool {
	// Guarded takes precedence on conflict; fillable ["*"] disables
	// filtering.
	for _, g := range c.def.Guarded {
		if g == column {
			return false
		}
	}
	if len(c.def.Fillable) == 0 {
		return true
	}
	for _, f := range c.def.Fillable {
		if f == "*" || f == column {
			return true
		}
	}
	return false
}

// filterAssignable drops (or rejects, under strict assignment) columns
// that are not mass assignable.
func (c *Class) filterAssignable(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if c.fillableAllows(k) {
			out[k] = v
			continue
		}
		if c.def.StrictAssignment {
			return nil, loom.NewMassAssignmentError(c.name, k)
		}
	}
	return out, nil
}

func (c *Class) isDateColumn(column string) bool {
	if c.def.Casts[column] == CastDateTime {
		return true
	}
	for _, d := range c.def.DateColumns {
		if d == column {
			return true
		}
	}
	switch column {
	case "created_at", "updated_at", "deleted_at":
		return true
	}
	if sd := c.softDeleteScope(); sd != nil && sd.Column == column {
		return true
	}
	return false
}

func (c *Class) isHidden(column string) bool {
	if len(c.def.Visible) > 0 {
		for _, v := range c.def.Visible {
			if v == column {
				return false
			}
		}
		return true
	}
	for _, h := range c.def.Hidden {
		if h == column {
			return true
		}
	}
	return false
}

// splitPath splits an eager-load dot path into head and tail.
func splitPath(path string) (head, tail string) {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}
