// Package dialect renders plan operations into dialect-accurate SQL for
// PostgreSQL, MySQL, and SQLite, and provides the bootstrap queries the
// migration executor needs.
//
// The dialect is modeled as a capability interface, not subclassing:
// rendering takes (Driver, Op, Plan) and returns a string.
package dialect

import (
	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/qerr"
)

// Driver is the capability set a dialect implementation provides.
type Driver interface {
	// Name returns the dialect tag this driver renders.
	Name() plan.Dialect

	// QuoteIdent quotes an identifier. Identifiers are quoted
	// unconditionally when rendering.
	QuoteIdent(name string) string

	// MapType maps a logical column type to the dialect's physical type.
	// The plan is needed to resolve enum type names.
	MapType(col plan.ColumnSpec, p *plan.Plan) string

	// RenderOp renders one plan operation to SQL. An empty string means the
	// operation is a no-op for this dialect (e.g. enum types outside
	// Postgres) and produces no statement.
	RenderOp(op plan.Op, p *plan.Plan) (string, error)

	// CreateMigrationsTable returns DDL that bootstraps the tracking table
	// if absent.
	CreateMigrationsTable() string

	// ExecutedMigrationsQuery returns the query listing applied filenames.
	ExecutedMigrationsQuery() string

	// RecordMigrationQuery returns the insert recording one filename; it
	// takes exactly one parameter.
	RecordMigrationQuery() string

	// ListTablesQuery returns the query listing application tables.
	ListTablesQuery() string

	// DropTableSQL renders an unconditional table drop, used by reset.
	DropTableSQL(name string) string

	// DropEnumTypeSQL renders an enum type drop. ok is false when the
	// dialect has no enum types to drop.
	DropEnumTypeSQL(name string) (sql string, ok bool)

	// ForeignKeyGuard returns the statements that disable and re-enable
	// FK enforcement around sequences that drop or alter tables. Both are
	// empty when the dialect needs no guard.
	ForeignKeyGuard() (disable, enable string)
}

// New returns the driver for a dialect.
func New(d plan.Dialect) (Driver, error) {
	switch d {
	case plan.Postgres:
		return &postgresDriver{}, nil
	case plan.MySQL:
		return &mysqlDriver{}, nil
	case plan.SQLite:
		return &sqliteDriver{}, nil
	default:
		return nil, qerr.DialectUnsupported("unknown dialect %q (supported: postgres, mysql, sqlite)", d)
	}
}
