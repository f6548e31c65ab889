package migration

import (
	"context"
	"sort"

	"github.com/syssam/loom"
	"github.com/syssam/loom/internal/naming"
	"github.com/syssam/loom/query"
)

// LedgerTable is the table recording applied migrations.
const LedgerTable = "migrations"

// Migration is one registered migration source. Name carries the
// file-style ordering prefix (2026_01_01_000000_create_users_table);
// migrations run in lexicographic name order.
type Migration interface {
	Name() string
	Up(ctx context.Context, s *Schema) error
	Down(ctx context.Context, s *Schema) error
}

// Status is one row of the migrate:status report.
type Status struct {
	Migration string
	Title     string
	Ran       bool
	Batch     int
}

// Runner applies registered migrations against the ledger: each
// unapplied migration's forward statements run in the next batch
// number, each file in its own transaction. Note that only PostgreSQL
// rolls DDL back on failure; MySQL commits DDL implicitly.
type Runner struct {
	schema     *Schema
	migrations []Migration
}

// NewRunner returns a runner over the migrations, accepting the same
// options as NewSchema (connection, resolver, executor, dry run).
func NewRunner(migrations []Migration, opts ...SchemaOption) *Runner {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })
	return &Runner{schema: NewSchema(opts...), migrations: sorted}
}

// Schema returns the runner's schema facade, exposing collected SQL
// under dry run.
func (r *Runner) Schema() *Schema { return r.schema }

// builder returns a query builder over the ledger table.
func (r *Runner) builder() (*query.Builder, error) {
	p, err := r.schema.platform()
	if err != nil {
		return nil, err
	}
	exec := r.schema.executor
	if exec == nil {
		exec = r.schema.resolver.Executor(r.schema.conn)
	}
	return query.NewBuilder(p.grammar).On(exec).Table(LedgerTable), nil
}

// ensureLedger creates the migrations table when missing. The unique
// migration name resolves concurrent migrate runs: the loser fails its
// insert.
func (r *Runner) ensureLedger(ctx context.Context) error {
	return r.schema.CreateIfNotExists(ctx, LedgerTable, func(t *Blueprint) {
		t.Increments("id")
		t.String("migration").Unique()
		t.Integer("batch")
	})
}

// applied returns the ledger contents keyed by migration name, plus the
// highest batch number.
func (r *Runner) applied(ctx context.Context) (map[string]int, int, error) {
	b, err := r.builder()
	if err != nil {
		return nil, 0, err
	}
	rows, err := b.Get(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make(map[string]int, len(rows))
	maxBatch := 0
	for _, row := range rows {
		name, _ := row["migration"].(string)
		batch := int(asLedgerInt(row["batch"]))
		out[name] = batch
		if batch > maxBatch {
			maxBatch = batch
		}
	}
	return out, maxBatch, nil
}

func asLedgerInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		var n int64
		for _, r := range t {
			if r < '0' || r > '9' {
				break
			}
			n = n*10 + int64(r-'0')
		}
		return n
	}
	return 0
}

// runOne executes fn for one migration file, in its own transaction
// when a resolver backs the schema.
func (r *Runner) runOne(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var err error
	if r.schema.executor == nil && !r.schema.dryRun {
		err = r.schema.resolver.Transaction(ctx, r.schema.conn, fn)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return loom.NewMigrationError(name, err)
	}
	return nil
}

// Migrate applies every unapplied migration in the next batch and
// returns the applied names. Under dry run the SQL is collected on the
// schema instead of executed and the ledger stays untouched.
func (r *Runner) Migrate(ctx context.Context) ([]string, error) {
	var (
		appliedNames []string
		ledger       map[string]int
		batch        int
	)
	if !r.schema.dryRun {
		if err := r.ensureLedger(ctx); err != nil {
			return nil, err
		}
		var err error
		var maxBatch int
		ledger, maxBatch, err = r.applied(ctx)
		if err != nil {
			return nil, err
		}
		batch = maxBatch + 1
	}
	for _, m := range r.migrations {
		if _, ok := ledger[m.Name()]; ok {
			continue
		}
		err := r.runOne(ctx, m.Name(), func(ctx context.Context) error {
			if err := m.Up(ctx, r.schema); err != nil {
				return err
			}
			if r.schema.dryRun {
				return nil
			}
			b, err := r.builder()
			if err != nil {
				return err
			}
			_, err = b.Create(ctx, map[string]any{
				"migration": m.Name(),
				"batch":     batch,
			})
			return err
		})
		if err != nil {
			return appliedNames, err
		}
		appliedNames = append(appliedNames, m.Name())
	}
	return appliedNames, nil
}

// Rollback reverses the migrations of the last batch, newest first, and
// returns the rolled-back names. Under dry run the ledger is not read:
// every registered migration's Down is collected, newest first.
func (r *Runner) Rollback(ctx context.Context) ([]string, error) {
	if r.schema.dryRun {
		return r.rollbackDry(ctx)
	}
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}
	ledger, maxBatch, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	if maxBatch == 0 {
		return nil, nil
	}
	var rolled []string
	for i := len(r.migrations) - 1; i >= 0; i-- {
		m := r.migrations[i]
		if ledger[m.Name()] != maxBatch {
			continue
		}
		err := r.runOne(ctx, m.Name(), func(ctx context.Context) error {
			if err := m.Down(ctx, r.schema); err != nil {
				return err
			}
			b, err := r.builder()
			if err != nil {
				return err
			}
			_, err = b.Where("migration", m.Name()).Delete(ctx)
			return err
		})
		if err != nil {
			return rolled, err
		}
		rolled = append(rolled, m.Name())
	}
	return rolled, nil
}

func (r *Runner) rollbackDry(ctx context.Context) ([]string, error) {
	var rolled []string
	for i := len(r.migrations) - 1; i >= 0; i-- {
		m := r.migrations[i]
		if err := m.Down(ctx, r.schema); err != nil {
			return rolled, loom.NewMigrationError(m.Name(), err)
		}
		rolled = append(rolled, m.Name())
	}
	return rolled, nil
}

// Reset rolls back every applied batch.
func (r *Runner) Reset(ctx context.Context) ([]string, error) {
	if r.schema.dryRun {
		return r.rollbackDry(ctx)
	}
	var all []string
	for {
		rolled, err := r.Rollback(ctx)
		if err != nil {
			return all, err
		}
		if len(rolled) == 0 {
			return all, nil
		}
		all = append(all, rolled...)
	}
}

// Refresh resets every batch and migrates from scratch.
func (r *Runner) Refresh(ctx context.Context) ([]string, error) {
	if _, err := r.Reset(ctx); err != nil {
		return nil, err
	}
	return r.Migrate(ctx)
}

// StatusReport lists every registered migration with its ledger state.
func (r *Runner) StatusReport(ctx context.Context) ([]Status, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}
	ledger, _, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, len(r.migrations))
	for i, m := range r.migrations {
		batch, ran := ledger[m.Name()]
		out[i] = Status{
			Migration: m.Name(),
			Title:     naming.Humanize(m.Name()),
			Ran:       ran,
			Batch:     batch,
		}
	}
	return out, nil
}
