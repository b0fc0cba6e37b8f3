// Package db adapts database/sql to the executor contract the migration
// runner consumes. It registers the postgres, mysql, and sqlite drivers.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/stacksjs/qb/internal/config"
	"github.com/stacksjs/qb/internal/migration"
	"github.com/stacksjs/qb/internal/plan"
)

// SQL wraps a *sql.DB as a migration.Executor.
type SQL struct {
	db *sql.DB
}

// Open connects to the configured database.
func Open(cfg *config.Config) (*SQL, error) {
	dialect, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	var driverName string
	switch dialect {
	case plan.Postgres:
		driverName = "postgres"
	case plan.MySQL:
		driverName = "mysql"
	default:
		driverName = "sqlite3"
	}

	handle, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}
	return &SQL{db: handle}, nil
}

// Close releases the underlying pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

// Execute runs unsafe SQL text. Text that starts with SELECT (all upper or
// all lower case) is queried and its rows returned; everything else is
// executed directly and returns no rows.
func (s *SQL) Execute(ctx context.Context, sqlText string) ([]migration.Row, error) {
	return execute(ctx, s.db, sqlText, nil)
}

// ExecuteParams runs one parameterized statement.
func (s *SQL) ExecuteParams(ctx context.Context, sqlText string, params []any) ([]migration.Row, error) {
	return execute(ctx, s.db, sqlText, params)
}

// WithFreshConnection runs fn against a single dedicated connection from
// the pool, released on all exit paths.
func (s *SQL) WithFreshConnection(ctx context.Context, fn func(migration.Executor) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(&connExecutor{conn: conn})
}

// connExecutor pins all statements to one connection, so per-connection
// state like PRAGMA foreign_keys or SET FOREIGN_KEY_CHECKS holds for the
// whole scope.
type connExecutor struct {
	conn *sql.Conn
}

func (c *connExecutor) Execute(ctx context.Context, sqlText string) ([]migration.Row, error) {
	return execute(ctx, c.conn, sqlText, nil)
}

func (c *connExecutor) ExecuteParams(ctx context.Context, sqlText string, params []any) ([]migration.Row, error) {
	return execute(ctx, c.conn, sqlText, params)
}

func (c *connExecutor) WithFreshConnection(ctx context.Context, fn func(migration.Executor) error) error {
	// Already scoped to one connection; nesting reuses it.
	return fn(c)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execute(ctx context.Context, q querier, sqlText string, params []any) ([]migration.Row, error) {
	if !returnsRows(sqlText) {
		if _, err := q.ExecContext(ctx, sqlText, params...); err != nil {
			return nil, err
		}
		return nil, nil
	}

	rows, err := q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []migration.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(migration.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func returnsRows(sqlText string) bool {
	for i := 0; i < len(sqlText); i++ {
		switch sqlText[i] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		rest := sqlText[i:]
		return len(rest) >= 6 && (rest[:6] == "SELECT" || rest[:6] == "select")
	}
	return false
}
