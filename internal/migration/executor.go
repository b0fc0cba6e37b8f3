package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stacksjs/qb/internal/dialect"
	"github.com/stacksjs/qb/internal/output"
	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/qerr"
)

// Row is one result row from the injected executor.
type Row map[string]any

// Executor is the injected asynchronous SQL interface. The core never opens
// connections itself; it consumes this contract.
type Executor interface {
	// Execute runs unsafe SQL text, possibly multiple statements.
	Execute(ctx context.Context, sqlText string) ([]Row, error)

	// ExecuteParams runs one parameterized statement.
	ExecuteParams(ctx context.Context, sqlText string, params []any) ([]Row, error)

	// WithFreshConnection runs fn against an isolated connection, released
	// on all exit paths.
	WithFreshConnection(ctx context.Context, fn func(Executor) error) error
}

// Runner applies migration files in order, recording permanent ones in the
// tracking table and deleting transient ones after success. Migrations are
// forward-only: a failure stops the run and nothing is rolled back.
type Runner struct {
	exec   Executor
	driver dialect.Driver
	dir    string
}

// NewRunner creates a runner over a migrations directory.
func NewRunner(exec Executor, driver dialect.Driver, dir string) *Runner {
	return &Runner{exec: exec, driver: driver, dir: dir}
}

// Status describes one migration file's position in the lifecycle.
type Status struct {
	File      string
	Transient bool
	Applied   bool
}

// Apply bootstraps the tracking table, then walks pending files in lexical
// order: permanent files are skipped when recorded and recorded after
// execution; transient files always execute and are deleted on success.
// Returns the filenames executed this run.
func (r *Runner) Apply(ctx context.Context) ([]string, error) {
	if _, err := r.exec.Execute(ctx, r.driver.CreateMigrationsTable()); err != nil {
		return nil, qerr.ExecutorFailure(r.driver.CreateMigrationsTable(), err)
	}

	applied, err := r.Executed(ctx)
	if err != nil {
		return nil, err
	}

	names, err := r.listFiles()
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, name := range names {
		transient := Transient(name)
		if !transient && applied[name] {
			output.Verbose(fmt.Sprintf("skipping %s (already applied)", name))
			continue
		}

		path := filepath.Join(r.dir, name)
		sqlText, err := os.ReadFile(path)
		if err != nil {
			return ran, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		if _, err := r.exec.Execute(ctx, string(sqlText)); err != nil {
			return ran, qerr.ExecutorFailure(string(sqlText), err)
		}
		ran = append(ran, name)

		if transient {
			if err := os.Remove(path); err != nil {
				return ran, fmt.Errorf("failed to delete transient migration %s: %w", name, err)
			}
			output.Verbose(fmt.Sprintf("applied %s (transient, deleted)", name))
			continue
		}

		record := r.driver.RecordMigrationQuery()
		if _, err := r.exec.ExecuteParams(ctx, record, []any{name}); err != nil {
			return ran, qerr.ExecutorFailure(record, err)
		}
		output.Verbose(fmt.Sprintf("applied %s (recorded)", name))
	}

	return ran, nil
}

// Executed loads the applied set from the tracking table.
func (r *Runner) Executed(ctx context.Context) (map[string]bool, error) {
	query := r.driver.ExecutedMigrationsQuery()
	rows, err := r.exec.Execute(ctx, query)
	if err != nil {
		return nil, qerr.ExecutorFailure(query, err)
	}

	applied := make(map[string]bool, len(rows))
	for _, row := range rows {
		if name := rowString(row, "migration"); name != "" {
			applied[name] = true
		}
	}
	return applied, nil
}

// StatusList reports every migration file with its applied state.
func (r *Runner) StatusList(ctx context.Context) ([]Status, error) {
	if _, err := r.exec.Execute(ctx, r.driver.CreateMigrationsTable()); err != nil {
		return nil, qerr.ExecutorFailure(r.driver.CreateMigrationsTable(), err)
	}
	applied, err := r.Executed(ctx)
	if err != nil {
		return nil, err
	}
	names, err := r.listFiles()
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		statuses = append(statuses, Status{
			File:      name,
			Transient: Transient(name),
			Applied:   applied[name],
		})
	}
	return statuses, nil
}

// Reset drops the tracking table, the application tables in reverse
// topological order, and any enum types, then clears migration files. Every
// drop runs on a fresh connection scope so a poisoned transaction from an
// earlier failure cannot leak into later drops.
func (r *Runner) Reset(ctx context.Context, p *plan.Plan) error {
	if err := r.dropFresh(ctx, r.driver.DropTableSQL("migrations")); err != nil {
		return err
	}

	for i := len(p.Tables) - 1; i >= 0; i-- {
		if err := r.dropFresh(ctx, r.driver.DropTableSQL(p.Tables[i].Name)); err != nil {
			return err
		}
	}

	for _, e := range p.Enums {
		sqlText, ok := r.driver.DropEnumTypeSQL(e.Name)
		if !ok {
			continue
		}
		if err := r.dropFresh(ctx, sqlText); err != nil {
			return err
		}
	}

	names, err := r.listFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil {
			return fmt.Errorf("failed to delete migration %s: %w", name, err)
		}
	}

	return nil
}

// dropFresh executes one drop under the FK guard on an isolated connection.
// The guard is per-connection state (session variable or pragma), so it must
// share the scope with the drop itself.
func (r *Runner) dropFresh(ctx context.Context, sqlText string) error {
	return r.exec.WithFreshConnection(ctx, func(e Executor) error {
		disable, enable := r.driver.ForeignKeyGuard()
		if disable != "" {
			if _, err := e.Execute(ctx, disable); err != nil {
				return qerr.ExecutorFailure(disable, err)
			}
		}
		if _, err := e.Execute(ctx, sqlText); err != nil {
			return qerr.ExecutorFailure(sqlText, err)
		}
		if enable != "" {
			if _, err := e.Execute(ctx, enable); err != nil {
				return qerr.ExecutorFailure(enable, err)
			}
		}
		return nil
	})
}

func (r *Runner) listFiles() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Transient reports whether a migration filename names a transient file:
// the kind segment is alter or fk. Everything else, including filenames
// that do not parse, is treated as permanent.
func Transient(name string) bool {
	parts := strings.SplitN(strings.TrimSuffix(name, ".sql"), "-", 4)
	if len(parts) < 4 {
		return false
	}
	return parts[2] == "alter" || parts[2] == "fk"
}

func rowString(row Row, key string) string {
	v, ok := row[key]
	if !ok {
		for _, fallback := range row {
			v = fallback
			break
		}
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}
