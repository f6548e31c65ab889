package model_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom"
	"github.com/syssam/loom/dialect"
	"github.com/syssam/loom/model"
	"github.com/syssam/loom/query"
)

// fakeExecutor records every dispatched statement and replays canned
// results in order.
type fakeExecutor struct {
	queries  []string
	bindings [][]any
	results  [][]query.Row
	execs    []dialect.Result
}

func (f *fakeExecutor) Query(_ context.Context, q string, args []any) ([]query.Row, error) {
	f.queries = append(f.queries, q)
	f.bindings = append(f.bindings, args)
	if len(f.results) == 0 {
		return nil, nil
	}
	rows := f.results[0]
	f.results = f.results[1:]
	return rows, nil
}

func (f *fakeExecutor) Exec(_ context.Context, q string, args []any) (dialect.Result, error) {
	f.queries = append(f.queries, q)
	f.bindings = append(f.bindings, args)
	if len(f.execs) == 0 {
		return dialect.Result{RowsAffected: 1}, nil
	}
	res := f.execs[0]
	f.execs = f.execs[1:]
	return res, nil
}

func noTimestamps() *bool {
	off := false
	return &off
}

func defineUsers(t *testing.T, fake *fakeExecutor, def model.Definition) *model.Class {
	t.Helper()
	if def.Name == "" {
		def.Name = "User"
	}
	if def.Timestamps == nil {
		def.Timestamps = noTimestamps()
	}
	c, err := model.Define(def)
	require.NoError(t, err)
	return c.Use(fake, query.MySQLGrammar())
}

func TestDefineDerivesTableAndKey(t *testing.T) {
	t.Parallel()

	c, err := model.Define(model.Definition{Name: "UserProfile"})
	require.NoError(t, err)
	assert.Equal(t, "user_profiles", c.TableName())
	assert.Equal(t, "id", c.PrimaryKeyName())
}

func TestDefineRejectsHiddenAndVisible(t *testing.T) {
	t.Parallel()

	_, err := model.Define(model.Definition{
		Name:    "User",
		Hidden:  []string{"password"},
		Visible: []string{"name"},
	})
	require.Error(t, err)
	assert.True(t, loom.IsConfigurationError(err))
}

func TestFindHydratesInstance(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"id": int64(1), "name": "Joe"}},
	}}
	users := defineUsers(t, fake, model.Definition{})

	m, err := users.Find(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Exists())
	assert.Equal(t, "Joe", m.GetString("name"))
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`id` = ? LIMIT 1", fake.queries[0])
}

func TestDirtyLaw(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"id": int64(1), "name": "Joe"}},
	}}
	users := defineUsers(t, fake, model.Definition{})
	ctx := context.Background()

	m, err := users.Find(ctx, 1)
	require.NoError(t, err)
	assert.False(t, m.IsDirty())

	m.Set("name", "Jane")
	assert.True(t, m.IsDirty())
	assert.True(t, m.IsDirty("name"))
	assert.False(t, m.IsDirty("id"))
	assert.Equal(t, "Joe", m.GetOriginal("name"))

	require.NoError(t, m.Save(ctx))
	assert.False(t, m.IsDirty())
	assert.Equal(t, "Jane", m.GetOriginal("name"))
	assert.Equal(t, "UPDATE `users` SET `name` = ? WHERE `id` = ?", fake.queries[1])
	assert.Equal(t, []any{"Jane", int64(1)}, fake.bindings[1])
}

func TestSaveSkipsSQLWhenClean(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"id": int64(1), "name": "Joe"}},
	}}
	users := defineUsers(t, fake, model.Definition{})
	ctx := context.Background()

	m, err := users.Find(ctx, 1)
	require.NoError(t, err)
	before := len(fake.queries)
	require.NoError(t, m.Save(ctx))
	assert.Len(t, fake.queries, before)
}

func TestForceUpdateEmitsSQL(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"id": int64(1), "name": "Joe"}},
	}}
	users := defineUsers(t, fake, model.Definition{})
	ctx := context.Background()

	m, err := users.Find(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, m.ForceUpdate().Save(ctx))
	assert.Contains(t, fake.queries[1], "UPDATE `users` SET")
}

func TestCreateInsertsAndSetsKey(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{execs: []dialect.Result{{RowsAffected: 1, LastInsertID: 11}}}
	users := defineUsers(t, fake, model.Definition{})

	m, err := users.Create(context.Background(), map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.True(t, m.Exists())
	assert.False(t, m.IsDirty())
	assert.Equal(t, int64(11), m.GetInt("id"))
	assert.Equal(t, "INSERT INTO `users` (`name`) VALUES (?)", fake.queries[0])
}

func TestCreateStampsTimestamps(t *testing.T) {
	t.Parallel()

	on := true
	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{Timestamps: &on})

	_, err := users.Create(context.Background(), map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`created_at`, `name`, `updated_at`) VALUES (?, ?, ?)", fake.queries[0])
}

func TestUpdateStampsUpdatedAtUnlessDeactivated(t *testing.T) {
	t.Parallel()

	on := true
	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{Timestamps: &on})
	ctx := context.Background()

	_, err := users.Query().Where("id", 1).Update(ctx, map[string]any{"name": "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `name` = ?, `updated_at` = ? WHERE `id` = ?", fake.queries[0])

	_, err = users.Query().ActivateTimestamps(false).Where("id", 1).
		Update(ctx, map[string]any{"name": "Jo"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `name` = ? WHERE `id` = ?", fake.queries[1])
}

func TestMassAssignmentFilter(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{
		Fillable: []string{"name", "email"},
		Guarded:  []string{"is_admin"},
	})

	_, err := users.Create(context.Background(), map[string]any{
		"name":     "Joe",
		"is_admin": true,
		"token":    "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`name`) VALUES (?)", fake.queries[0])
}

func TestMassAssignmentStrict(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{
		Guarded:          []string{"is_admin"},
		StrictAssignment: true,
	})

	_, err := users.Create(context.Background(), map[string]any{"is_admin": true})
	require.Error(t, err)
	assert.True(t, loom.IsMassAssignmentError(err))
	assert.Empty(t, fake.queries)
}

func TestFillableStarDisablesFiltering(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{Fillable: []string{"*"}})

	_, err := users.Create(context.Background(), map[string]any{"anything": 1})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`anything`) VALUES (?)", fake.queries[0])
}

func TestCasts(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{
		"id":       int64(1),
		"active":   "0",
		"age":      "42",
		"settings": `{"theme":"dark"}`,
	}}}}
	users := defineUsers(t, fake, model.Definition{
		Casts: map[string]model.Cast{
			"active":   model.CastBool,
			"age":      model.CastInt,
			"settings": model.CastJSON,
		},
	})

	m, err := users.Find(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, false, m.Get("active"))
	assert.Equal(t, int64(42), m.Get("age"))
	assert.Equal(t, map[string]any{"theme": "dark"}, m.Get("settings"))

	// JSON casts encode on write.
	m.Set("settings", map[string]any{"theme": "light"})
	assert.JSONEq(t, `{"theme":"light"}`, m.GetRaw("settings").(string))
}

func TestAccessorsAndMutators(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{
		"id": int64(1), "first": "Joe", "last": "Bloggs",
	}}}}
	users := defineUsers(t, fake, model.Definition{
		Accessors: map[string]model.Accessor{
			"full_name": func(m *model.Instance) any {
				return m.GetString("first") + " " + m.GetString("last")
			},
		},
		Mutators: map[string]model.Mutator{
			"first": func(_ *model.Instance, v any) any {
				s, _ := v.(string)
				return "Mr " + s
			},
		},
	})

	m, err := users.Find(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Joe Bloggs", m.Get("full_name"))

	m.Set("first", "Jim")
	assert.Equal(t, "Mr Jim", m.GetRaw("first"))
}

func TestSerializeHiddenAppendsAndDates(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeExecutor{results: [][]query.Row{{{
		"id":         int64(1),
		"name":       "Joe",
		"password":   "secret",
		"created_at": created,
	}}}}
	users := defineUsers(t, fake, model.Definition{
		Hidden:  []string{"password"},
		Appends: []string{"shout"},
		Accessors: map[string]model.Accessor{
			"shout": func(m *model.Instance) any { return m.GetString("name") + "!" },
		},
	})

	m, err := users.Find(context.Background(), 1)
	require.NoError(t, err)
	out := m.Serialize()
	assert.NotContains(t, out, "password")
	assert.Equal(t, "Joe!", out["shout"])
	assert.Equal(t, "2026-01-02T03:04:05Z", out["created_at"])
}

func TestSerializeVisibleOnly(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{
		"id": int64(1), "name": "Joe", "email": "j@example.com",
	}}}}
	users := defineUsers(t, fake, model.Definition{Visible: []string{"name"}})

	m, err := users.Find(context.Background(), 1)
	require.NoError(t, err)
	out := m.Serialize()
	assert.Equal(t, map[string]any{"name": "Joe"}, out)
}

func TestEventsCancelCreating(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{})
	users.On("creating", func(*model.Instance) bool { return false })

	m, err := users.Create(context.Background(), map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.False(t, m.Exists())
	assert.Empty(t, fake.queries)
}

func TestObserverReceivesLifecycle(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{execs: []dialect.Result{{RowsAffected: 1, LastInsertID: 1}}}
	users := defineUsers(t, fake, model.Definition{})

	var events []string
	record := func(name string) model.Handler {
		return func(*model.Instance) bool {
			events = append(events, name)
			return true
		}
	}
	users.Observe(model.Observer{
		Saving:   record("saving"),
		Creating: record("creating"),
		Created:  record("created"),
		Saved:    record("saved"),
	})

	_, err := users.Create(context.Background(), map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.Equal(t, []string{"saving", "creating", "created", "saved"}, events)
}

func TestLocalScope(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{
		LocalScopes: map[string]model.ScopeFunc{
			"adults": func(b *model.Builder, _ ...any) *model.Builder {
				return b.Where("age", ">=", 18)
			},
		},
	})

	_, err := users.Query().Scope("adults").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`age` >= ?", fake.queries[0])
	assert.Equal(t, []any{18}, fake.bindings[0])
}

func TestSoftDeleteScoping(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{
		Scopes: []model.GlobalScope{model.NewSoftDeletes()},
	})
	ctx := context.Background()

	_, err := users.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`deleted_at` IS NULL", fake.queries[0])

	_, err = users.WithTrashed().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users`", fake.queries[1])

	_, err = users.OnlyTrashed().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `users`.`deleted_at` IS NOT NULL", fake.queries[2])
}

func TestSoftDeleteRewritesDelete(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{
		Scopes: []model.GlobalScope{model.NewSoftDeletes()},
	})
	ctx := context.Background()

	_, err := users.Query().Where("id", 1).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `deleted_at` = ? WHERE `id` = ?", fake.queries[0])

	_, err = users.Query().Where("admin", 1).ForceDelete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users` WHERE `admin` = ?", fake.queries[1])
}

func TestSoftDeleteRestore(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{
		Scopes: []model.GlobalScope{model.NewSoftDeletes()},
	})

	_, err := users.Query().Where("id", 1).Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `deleted_at` = ? WHERE `id` = ?", fake.queries[0])
	assert.Equal(t, []any{nil, 1}, fake.bindings[0])
}

func TestUUIDPrimaryKeyScope(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{
		Scopes: []model.GlobalScope{model.NewUUIDPrimaryKey()},
	})

	m, err := users.Create(context.Background(), map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.Len(t, m.GetString("id"), 36)
	assert.Equal(t, "INSERT INTO `users` (`id`, `name`) VALUES (?, ?)", fake.queries[0])
}

func TestWithoutGlobalScope(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{}
	users := defineUsers(t, fake, model.Definition{
		Scopes: []model.GlobalScope{model.NewSoftDeletes()},
	})

	_, err := users.Query().WithoutGlobalScope("soft_deletes").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users`", fake.queries[0])
}

func TestFirstOrCreate(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{}, // no match
	}}
	users := defineUsers(t, fake, model.Definition{})

	m, err := users.FirstOrCreate(context.Background(),
		map[string]any{"email": "j@example.com"},
		map[string]any{"name": "Joe"})
	require.NoError(t, err)
	assert.True(t, m.Exists())
	assert.Contains(t, fake.queries[0], "`users`.`email` = ?")
	assert.Equal(t, "INSERT INTO `users` (`email`, `name`) VALUES (?, ?)", fake.queries[1])
}

func TestFreshRefetchesRow(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"id": int64(1), "name": "Joe"}},
		{{"id": int64(1), "name": "Updated"}},
	}}
	users := defineUsers(t, fake, model.Definition{})
	ctx := context.Background()

	m, err := users.Find(ctx, 1)
	require.NoError(t, err)
	fresh, err := m.Fresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Updated", fresh.GetString("name"))
}

func TestFreshFailsWhenGone(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{
		{{"id": int64(1)}},
		{},
	}}
	users := defineUsers(t, fake, model.Definition{})
	ctx := context.Background()

	m, err := users.Find(ctx, 1)
	require.NoError(t, err)
	_, err = m.Fresh(ctx)
	require.Error(t, err)
	assert.True(t, loom.IsNotFound(err))
}

func TestSerializationStability(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{results: [][]query.Row{{{
		"id": int64(1), "name": "Joe",
	}}}}
	users := defineUsers(t, fake, model.Definition{})

	m, err := users.Find(context.Background(), 1)
	require.NoError(t, err)
	first := m.Serialize()
	second := m.Serialize()
	assert.Equal(t, first, second)

	// Re-applying the serialized attributes leaves the model clean.
	for k, v := range first {
		m.Set(k, v)
	}
	assert.False(t, m.IsDirty())
}
