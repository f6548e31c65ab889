package migration

import (
	"context"

	"github.com/syssam/loom"
	"github.com/syssam/loom/connection"
	"github.com/syssam/loom/dialect"
)

// Schema is the facade migrations build against: it compiles blueprints
// through the connection's platform and executes (or, under dry run,
// collects) the resulting DDL.
type Schema struct {
	resolver    *connection.Resolver
	executor    dialect.ExecQuerier
	dialectName string
	conn        string
	dryRun      bool
	collected   []string
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// OnConnection targets the named connection instead of the default.
func OnConnection(name string) SchemaOption {
	return func(s *Schema) { s.conn = name }
}

// WithResolver overrides the connection resolver.
func WithResolver(r *connection.Resolver) SchemaOption {
	return func(s *Schema) { s.resolver = r }
}

// WithExecutor binds an explicit executor and dialect, bypassing the
// resolver. Used by tests.
func WithExecutor(exec dialect.ExecQuerier, dialectName string) SchemaOption {
	return func(s *Schema) {
		s.executor = exec
		s.dialectName = dialectName
	}
}

// DryRun collects the compiled SQL instead of executing it.
func DryRun() SchemaOption {
	return func(s *Schema) { s.dryRun = true }
}

// NewSchema returns a schema facade on the default connection.
func NewSchema(opts ...SchemaOption) *Schema {
	s := &Schema{resolver: connection.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Schema) platform() (*platform, error) {
	name := s.dialectName
	if name == "" {
		cfg, err := s.resolver.Connection(s.conn)
		if err != nil {
			return nil, err
		}
		name = cfg.Dialect()
	}
	return newPlatform(name)
}

func (s *Schema) execute(ctx context.Context, stmts []string) error {
	if s.dryRun {
		s.collected = append(s.collected, stmts...)
		return nil
	}
	exec := s.executor
	if exec == nil {
		exec = s.resolver.Executor(s.conn)
	}
	for _, stmt := range stmts {
		if _, err := exec.Exec(ctx, stmt, nil); err != nil {
			return loom.NewQueryError(stmt, nil, err)
		}
	}
	return nil
}

// Statements returns the SQL collected under dry run.
func (s *Schema) Statements() []string { return s.collected }

// Create builds and runs a CREATE TABLE blueprint.
func (s *Schema) Create(ctx context.Context, table string, fn func(*Blueprint)) error {
	return s.create(ctx, table, fn, false)
}

// CreateIfNotExists is Create with IF NOT EXISTS on dialects that
// support it.
func (s *Schema) CreateIfNotExists(ctx context.Context, table string, fn func(*Blueprint)) error {
	return s.create(ctx, table, fn, true)
}

func (s *Schema) create(ctx context.Context, table string, fn func(*Blueprint), ifNotExists bool) error {
	p, err := s.platform()
	if err != nil {
		return err
	}
	bp := newBlueprint(table, modeCreate)
	fn(bp)
	stmts, err := p.CompileCreate(bp, ifNotExists)
	if err != nil {
		return err
	}
	return s.execute(ctx, stmts)
}

// Table builds and runs an ALTER TABLE blueprint.
func (s *Schema) Table(ctx context.Context, table string, fn func(*Blueprint)) error {
	p, err := s.platform()
	if err != nil {
		return err
	}
	bp := newBlueprint(table, modeAlter)
	fn(bp)
	stmts, err := p.CompileAlter(bp)
	if err != nil {
		return err
	}
	return s.execute(ctx, stmts)
}

// Drop removes a table.
func (s *Schema) Drop(ctx context.Context, table string) error {
	p, err := s.platform()
	if err != nil {
		return err
	}
	return s.execute(ctx, p.CompileDrop(table, false))
}

// DropIfExists removes a table when present.
func (s *Schema) DropIfExists(ctx context.Context, table string) error {
	p, err := s.platform()
	if err != nil {
		return err
	}
	return s.execute(ctx, p.CompileDrop(table, true))
}
