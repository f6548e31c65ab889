package connection

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/syssam/loom"
	"github.com/syssam/loom/dialect"
)

// QueryLogChannel is the slog channel attribute every logged statement
// carries.
const QueryLogChannel = "loom.connection.queries"

// Resolver is the named-connection registry. It opens pooled handles
// lazily, routes statements through the open transaction of a connection
// name when one exists, and logs compiled statements for connections
// with LogQueries enabled.
//
// The process-wide default resolver is initialized once through
// SetConnectionDetails; tests inject their own instances.
type Resolver struct {
	mu      sync.RWMutex
	details Details
	pools   map[string]*sql.DB
	txs     map[string]*txStack
	logger  *slog.Logger
}

type txStack struct {
	tx    *sql.Tx
	depth int
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		pools:  make(map[string]*sql.DB),
		txs:    make(map[string]*txStack),
		logger: slog.With("channel", QueryLogChannel),
	}
}

var (
	defaultMu       sync.RWMutex
	defaultResolver = NewResolver()
)

// Default returns the process-wide resolver.
func Default() *Resolver {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultResolver
}

// SetConnectionDetails replaces the default resolver's registry
// atomically.
func SetConnectionDetails(d Details) error {
	return Default().SetConnectionDetails(d)
}

// SetConnectionDetails replaces the resolver's registry. Previously
// opened pools are closed.
func (r *Resolver) SetConnectionDetails(d Details) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, db := range r.pools {
		db.Close()
	}
	r.details = d
	r.pools = make(map[string]*sql.DB)
	r.txs = make(map[string]*txStack)
	return nil
}

// resolveName maps the empty name to the configured default connection.
func (r *Resolver) resolveName(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if r.details.Default == "" {
		return "", loom.NewConfigurationError("no default connection configured")
	}
	return r.details.Default, nil
}

// Connection returns the configuration of the named connection, or the
// default one for an empty name.
func (r *Resolver) Connection(name string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolved, err := r.resolveName(name)
	if err != nil {
		return Config{}, err
	}
	cfg, ok := r.details.Connections[resolved]
	if !ok {
		return Config{}, loom.NewConfigurationError("connection %q is not configured", resolved)
	}
	return cfg, nil
}

// db returns the lazily-opened pool for the named connection.
func (r *Resolver) db(name string) (*sql.DB, Config, error) {
	cfg, err := r.Connection(name)
	if err != nil {
		return nil, Config{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved, _ := r.resolveName(name)
	if db, ok := r.pools[resolved]; ok {
		return db, cfg, nil
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, Config{}, err
	}
	db, err := sql.Open(cfg.driverName(), dsn)
	if err != nil {
		return nil, Config{}, loom.NewConfigurationError("open %q: %v", resolved, err)
	}
	r.pools[resolved] = db
	return db, cfg, nil
}

// UseDB installs an already-open pool for the named connection, used by
// tests with mock drivers.
func (r *Resolver) UseDB(name string, cfg Config, db *sql.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.details.Connections == nil {
		r.details.Connections = map[string]Config{}
	}
	if r.details.Default == "" {
		r.details.Default = name
	}
	r.details.Connections[name] = cfg
	r.pools[name] = db
}

// target returns the execution surface for the named connection: the
// open transaction when one exists, the pool otherwise.
func (r *Resolver) target(name string) (execQuerier, Config, error) {
	db, cfg, err := r.db(name)
	if err != nil {
		return nil, Config{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolved, _ := r.resolveName(name)
	if st, ok := r.txs[resolved]; ok && st.tx != nil {
		return st.tx, cfg, nil
	}
	return db, cfg, nil
}

// logQuery emits the compiled statement on the query log channel. It
// runs after parameter binding and before driver dispatch so failing
// statements are still logged.
func (r *Resolver) logQuery(ctx context.Context, name, query string, bindings []any) {
	r.logger.DebugContext(ctx, "query", "connection", name, "query", query, "bindings", bindings)
}

// Executor returns the dialect.ExecQuerier for the named connection.
// Statements route through the connection's open transaction when one
// exists.
func (r *Resolver) Executor(name string) dialect.ExecQuerier {
	return &boundExecutor{r: r, name: name}
}

type boundExecutor struct {
	r    *Resolver
	name string
}

func (e *boundExecutor) Exec(ctx context.Context, query string, args []any) (dialect.Result, error) {
	ex, cfg, err := e.r.target(e.name)
	if err != nil {
		return dialect.Result{}, err
	}
	if cfg.LogQueries {
		e.r.logQuery(ctx, e.name, query, args)
	}
	return conn{ex: ex}.Exec(ctx, query, args)
}

func (e *boundExecutor) Query(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	ex, cfg, err := e.r.target(e.name)
	if err != nil {
		return nil, err
	}
	if cfg.LogQueries {
		e.r.logQuery(ctx, e.name, query, args)
	}
	return conn{ex: ex}.Query(ctx, query, args)
}

// selectPrefixes mark statements dispatched through Query rather than
// Exec.
var selectPrefixes = []string{"select", "show", "pragma", "explain", "with"}

// StatementResult is the outcome of a raw statement: rows for reads,
// counts for writes.
type StatementResult struct {
	Rows         []map[string]any
	RowsAffected int64
	LastInsertID int64
}

// Statement executes raw SQL with bindings on the named connection
// (default connection for an empty name). Driver errors are wrapped in
// loom.QueryError.
func (r *Resolver) Statement(ctx context.Context, query string, bindings []any, connection string) (*StatementResult, error) {
	ex := r.Executor(connection)
	var head string
	if fields := strings.Fields(query); len(fields) > 0 {
		head = strings.ToLower(fields[0])
	}
	for _, p := range selectPrefixes {
		if head == p {
			rows, err := ex.Query(ctx, query, bindings)
			if err != nil {
				return nil, loom.NewQueryError(query, bindings, err)
			}
			return &StatementResult{Rows: rows}, nil
		}
	}
	res, err := ex.Exec(ctx, query, bindings)
	if err != nil {
		return nil, loom.NewQueryError(query, bindings, err)
	}
	return &StatementResult{RowsAffected: res.RowsAffected, LastInsertID: res.LastInsertID}, nil
}

// BeginTransaction opens a transaction on the named connection, or adds
// a SAVEPOINT SP_<depth> level when one is already open.
func (r *Resolver) BeginTransaction(ctx context.Context, name string) error {
	db, _, err := r.db(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved, _ := r.resolveName(name)
	st := r.txs[resolved]
	if st == nil || st.tx == nil {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return loom.NewQueryError("BEGIN", nil, err)
		}
		r.txs[resolved] = &txStack{tx: tx, depth: 1}
		return nil
	}
	sp := fmt.Sprintf("SAVEPOINT SP_%d", st.depth)
	if _, err := st.tx.ExecContext(ctx, sp); err != nil {
		return loom.NewQueryError(sp, nil, err)
	}
	st.depth++
	return nil
}

// Commit commits the outermost transaction level or releases the
// current savepoint.
func (r *Resolver) Commit(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved, err := r.resolveName(name)
	if err != nil {
		return err
	}
	st := r.txs[resolved]
	if st == nil || st.tx == nil {
		return loom.NewConfigurationError("no transaction open on %q", resolved)
	}
	if st.depth <= 1 {
		delete(r.txs, resolved)
		if err := st.tx.Commit(); err != nil {
			return loom.NewQueryError("COMMIT", nil, err)
		}
		return nil
	}
	st.depth--
	sp := fmt.Sprintf("RELEASE SAVEPOINT SP_%d", st.depth)
	if _, err := st.tx.Exec(sp); err != nil {
		return loom.NewQueryError(sp, nil, err)
	}
	return nil
}

// Rollback rolls back the outermost transaction level, or back to the
// current savepoint leaving the outer transaction alive.
func (r *Resolver) Rollback(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved, err := r.resolveName(name)
	if err != nil {
		return err
	}
	st := r.txs[resolved]
	if st == nil || st.tx == nil {
		return loom.NewConfigurationError("no transaction open on %q", resolved)
	}
	if st.depth <= 1 {
		delete(r.txs, resolved)
		if err := st.tx.Rollback(); err != nil {
			return loom.NewQueryError("ROLLBACK", nil, err)
		}
		return nil
	}
	st.depth--
	sp := fmt.Sprintf("ROLLBACK TO SAVEPOINT SP_%d", st.depth)
	if _, err := st.tx.Exec(sp); err != nil {
		return loom.NewQueryError(sp, nil, err)
	}
	return nil
}

// Transaction runs fn inside a transaction scope on the named
// connection: commit on nil return, rollback on error or panic (the
// panic is re-raised after rollback). Nested calls use savepoints, so an
// inner failure rolls back to its savepoint only.
func (r *Resolver) Transaction(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	if err := r.BeginTransaction(ctx, name); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = r.Rollback(name)
			panic(p)
		}
	}()
	if err := fn(ctx); err != nil {
		if rbErr := r.Rollback(name); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return r.Commit(name)
}
