package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksjs/qb/internal/dialect"
	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/qerr"
)

// fakeExec simulates a database: it records every statement, keeps the
// recorded migration set in memory, and can be told to fail on a substring.
type fakeExec struct {
	stmts    []string
	recorded []string
	failOn   string
}

func (f *fakeExec) Execute(ctx context.Context, sqlText string) ([]Row, error) {
	if f.failOn != "" && strings.Contains(sqlText, f.failOn) {
		return nil, errors.New("simulated failure")
	}
	f.stmts = append(f.stmts, sqlText)

	if strings.HasPrefix(strings.TrimSpace(sqlText), "SELECT") {
		rows := make([]Row, 0, len(f.recorded))
		for _, name := range f.recorded {
			rows = append(rows, Row{"migration": name})
		}
		return rows, nil
	}
	return nil, nil
}

func (f *fakeExec) ExecuteParams(ctx context.Context, sqlText string, params []any) ([]Row, error) {
	f.stmts = append(f.stmts, sqlText)
	if name, ok := params[0].(string); ok {
		f.recorded = append(f.recorded, name)
	}
	return nil, nil
}

func (f *fakeExec) WithFreshConnection(ctx context.Context, fn func(Executor) error) error {
	return fn(f)
}

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644))
}

func newTestRunner(t *testing.T, dir string) (*Runner, *fakeExec) {
	t.Helper()
	drv, err := dialect.New(plan.Postgres)
	require.NoError(t, err)
	exec := &fakeExec{}
	return NewRunner(exec, drv, dir), exec
}

func TestApplyRecordsPermanentAndDeletesTransient(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240601120000-001-create-users.sql", `CREATE TABLE "users" ("id" serial PRIMARY KEY);`)
	writeMigration(t, dir, "20240601120000-002-alter-users.sql", `ALTER TABLE "users" ADD COLUMN "age" integer;`)

	runner, exec := newTestRunner(t, dir)

	ran, err := runner.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20240601120000-001-create-users.sql",
		"20240601120000-002-alter-users.sql",
	}, ran)

	// Only the permanent file is recorded.
	assert.Equal(t, []string{"20240601120000-001-create-users.sql"}, exec.recorded)

	// The transient file is deleted after success.
	_, err = os.Stat(filepath.Join(dir, "20240601120000-002-alter-users.sql"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "20240601120000-001-create-users.sql"))
	assert.NoError(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240601120000-001-create-users.sql", `CREATE TABLE "users" ("id" serial PRIMARY KEY);`)
	writeMigration(t, dir, "20240601120000-002-alter-users.sql", `ALTER TABLE "users" ADD COLUMN "age" integer;`)

	runner, exec := newTestRunner(t, dir)

	_, err := runner.Apply(context.Background())
	require.NoError(t, err)

	ran, err := runner.Apply(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ran)
	assert.Len(t, exec.recorded, 1)

	// No orphaned transient files remain.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "20240601120000-001-create-users.sql", entries[0].Name())
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240601120000-001-create-users.sql", `CREATE TABLE "users" ("id" serial PRIMARY KEY);`)
	writeMigration(t, dir, "20240601120000-002-create-posts.sql", `CREATE TABLE "posts" ("id" serial PRIMARY KEY);`)
	writeMigration(t, dir, "20240601120000-003-create-tags.sql", `CREATE TABLE "tags" ("id" serial PRIMARY KEY);`)

	runner, exec := newTestRunner(t, dir)
	exec.failOn = `"posts"`

	ran, err := runner.Apply(context.Background())
	require.Error(t, err)
	assert.Equal(t, qerr.KindExecutorFailure, qerr.KindOf(err))
	assert.Contains(t, err.Error(), `CREATE TABLE "posts"`)
	assert.Equal(t, []string{"20240601120000-001-create-users.sql"}, ran)
	assert.Equal(t, []string{"20240601120000-001-create-users.sql"}, exec.recorded)

	// Retry after fixing the cause replays from the first pending file.
	exec.failOn = ""
	ran, err = runner.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20240601120000-002-create-posts.sql",
		"20240601120000-003-create-tags.sql",
	}, ran)
	assert.Len(t, exec.recorded, 3)
}

func TestApplyBootstrapsMigrationsTable(t *testing.T) {
	runner, exec := newTestRunner(t, t.TempDir())

	_, err := runner.Apply(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, exec.stmts)
	assert.Contains(t, exec.stmts[0], `CREATE TABLE IF NOT EXISTS "migrations"`)
}

func TestStatusList(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240601120000-001-create-users.sql", `CREATE TABLE "users" ("id" serial PRIMARY KEY);`)
	writeMigration(t, dir, "20240601120000-002-alter-users.sql", `ALTER TABLE "users" ADD COLUMN "age" integer;`)

	runner, exec := newTestRunner(t, dir)
	exec.recorded = []string{"20240601120000-001-create-users.sql"}

	statuses, err := runner.StatusList(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.True(t, statuses[0].Applied)
	assert.False(t, statuses[0].Transient)
	assert.False(t, statuses[1].Applied)
	assert.True(t, statuses[1].Transient)
}

func TestResetDropsInReverseTopologicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240601120000-001-create-users.sql", "...")

	drv, err := dialect.New(plan.MySQL)
	require.NoError(t, err)
	exec := &fakeExec{}
	runner := NewRunner(exec, drv, dir)

	p := &plan.Plan{
		Dialect:       plan.MySQL,
		SchemaVersion: plan.SchemaVersion,
		Tables: []plan.TableSpec{
			{Name: "users", PrimaryKey: []string{"id"}},
			{Name: "posts", PrimaryKey: []string{"id"}, ForeignKeys: []plan.FKSpec{
				{Column: "user_id", RefTable: "users", RefColumn: "id"},
			}},
		},
	}

	require.NoError(t, runner.Reset(context.Background(), p))

	joined := strings.Join(exec.stmts, "\n")
	migrationsAt := strings.Index(joined, "DROP TABLE IF EXISTS `migrations`")
	postsAt := strings.Index(joined, "DROP TABLE IF EXISTS `posts`")
	usersAt := strings.Index(joined, "DROP TABLE IF EXISTS `users`")
	require.GreaterOrEqual(t, migrationsAt, 0)
	require.GreaterOrEqual(t, postsAt, 0)
	require.GreaterOrEqual(t, usersAt, 0)

	// Tracking table first, then posts before users (reverse dependency order).
	assert.Less(t, migrationsAt, postsAt)
	assert.Less(t, postsAt, usersAt)

	// Every drop runs under the FK guard.
	assert.Contains(t, joined, "SET FOREIGN_KEY_CHECKS = 0;")
	assert.Contains(t, joined, "SET FOREIGN_KEY_CHECKS = 1;")

	// Migration files are cleared.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResetDropsEnumTypesOnPostgres(t *testing.T) {
	runner, exec := newTestRunner(t, t.TempDir())

	p := &plan.Plan{
		Dialect:       plan.Postgres,
		SchemaVersion: plan.SchemaVersion,
		Enums:         []plan.EnumSpec{{Name: "role_type", Values: []string{"a"}}},
	}

	require.NoError(t, runner.Reset(context.Background(), p))
	assert.Contains(t, strings.Join(exec.stmts, "\n"), `DROP TYPE IF EXISTS "role_type";`)
}

func TestExecutorFailureCarriesSQL(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240601120000-001-create-users.sql", `CREATE TABLE "users" ("id" serial PRIMARY KEY);`)

	runner, exec := newTestRunner(t, dir)
	exec.failOn = `"users"`

	_, err := runner.Apply(context.Background())
	require.Error(t, err)

	var qe *qerr.Error
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, qerr.KindExecutorFailure, qe.Kind)
	assert.Equal(t, "executor", qe.Component)
	assert.Contains(t, qe.SQL, `CREATE TABLE "users"`)
}

func TestRowString(t *testing.T) {
	assert.Equal(t, "a.sql", rowString(Row{"migration": "a.sql"}, "migration"))
	assert.Equal(t, "b.sql", rowString(Row{"migration": []byte("b.sql")}, "migration"))
	assert.Equal(t, "c.sql", rowString(Row{"anything": "c.sql"}, "migration"))
	assert.Equal(t, "", rowString(Row{"migration": 42}, "migration"))
}
