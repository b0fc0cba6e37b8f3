package dialect

import (
	"fmt"
	"strings"

	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/qerr"
)

type sqliteDriver struct{}

func (d *sqliteDriver) Name() plan.Dialect {
	return plan.SQLite
}

func (d *sqliteDriver) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *sqliteDriver) MapType(col plan.ColumnSpec, p *plan.Plan) string {
	switch col.Type {
	case "string", "text", "json", "enum":
		return "TEXT"
	case "integer", "smallint", "bigint", "boolean":
		return "INTEGER"
	case "float", "double", "decimal":
		return "REAL"
	case "date":
		return "DATE"
	case "datetime", "timestamp", "timestamp_tz":
		return "DATETIME"
	case "time":
		return "TIME"
	case "blob":
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (d *sqliteDriver) RenderOp(op plan.Op, p *plan.Plan) (string, error) {
	switch o := op.(type) {
	case plan.CreateEnum, plan.DropEnum, plan.AlterEnum:
		// Enums are TEXT columns with CHECK constraints; the column ops
		// carry the change.
		return "", nil
	case plan.CreateTable:
		return renderCreateTable(d, o.Table, p), nil
	case plan.DropTable:
		return d.DropTableSQL(o.Name), nil
	case plan.AddColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", d.QuoteIdent(o.Table), d.columnDef(o.Column, p)), nil
	case plan.DropColumn:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", d.QuoteIdent(o.Table), d.QuoteIdent(o.Column)), nil
	case plan.AlterColumn:
		return d.renderAlterColumn(o, p), nil
	case plan.AddIndex:
		return renderCreateIndex(d, o.Table, o.Index), nil
	case plan.DropIndex:
		return fmt.Sprintf("DROP INDEX IF EXISTS %s;", d.QuoteIdent(o.Name)), nil
	case plan.AddForeignKey, plan.DropForeignKey:
		// SQLite FK constraints live only inline in CREATE TABLE; adding
		// or dropping one standalone would need a full table rebuild, and
		// enforcement is per-connection via PRAGMA anyway.
		return "", nil
	default:
		return "", qerr.DialectUnsupported("sqlite driver cannot render %T", op)
	}
}

// renderAlterColumn rewrites a column through a temporary column swap, since
// SQLite has no ALTER COLUMN. Requires SQLite 3.35+ for DROP COLUMN.
func (d *sqliteDriver) renderAlterColumn(o plan.AlterColumn, p *plan.Plan) string {
	table := d.QuoteIdent(o.Table)
	oldCol := d.QuoteIdent(o.From.Name)
	tmpName := o.To.Name + "__new"
	tmp := d.QuoteIdent(tmpName)

	tmpSpec := o.To
	tmpSpec.Name = tmpName
	// The staging column is nullable so existing rows survive the copy. It
	// stays nullable after the rename: a NOT NULL on To is not applied.
	tmpSpec.Nullable = true

	return strings.Join([]string{
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, d.columnDef(tmpSpec, p)),
		fmt.Sprintf("UPDATE %s SET %s = %s;", table, tmp, oldCol),
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", table, oldCol),
		fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;", table, tmp, d.QuoteIdent(o.To.Name)),
	}, "\n")
}

func (d *sqliteDriver) columnDef(col plan.ColumnSpec, p *plan.Plan) string {
	def := d.QuoteIdent(col.Name) + " " + d.MapType(col, p)
	if !col.Nullable {
		def += " NOT NULL"
	}
	if col.Default != "" {
		if expr := d.defaultExpr(col.Default); expr != "" {
			def += " DEFAULT " + expr
		}
	}
	if col.Type == "enum" {
		def += fmt.Sprintf(" CHECK (%s IN (%s))", d.QuoteIdent(col.Name), quoteValues(col.EnumValues))
	}
	return def
}

func (d *sqliteDriver) pkColumnDef(col plan.ColumnSpec, p *plan.Plan) string {
	switch col.Type {
	case "integer", "bigint", "smallint":
		return d.QuoteIdent(col.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return d.columnDef(col, p) + " PRIMARY KEY"
	}
}

func (d *sqliteDriver) defaultExpr(v string) string {
	switch v {
	case plan.DefaultNow:
		return "CURRENT_TIMESTAMP"
	case plan.DefaultUUID:
		// No built-in UUID function; the application supplies the value.
		return ""
	default:
		return v
	}
}

func (d *sqliteDriver) CreateMigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS "migrations" (
  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
  "migration" TEXT NOT NULL UNIQUE,
  "batch" INTEGER NOT NULL DEFAULT 1,
  "executed_at" DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
}

func (d *sqliteDriver) ExecutedMigrationsQuery() string {
	return `SELECT "migration" FROM "migrations" ORDER BY "id"`
}

func (d *sqliteDriver) RecordMigrationQuery() string {
	return `INSERT INTO "migrations" ("migration") VALUES (?)`
}

func (d *sqliteDriver) ListTablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`
}

func (d *sqliteDriver) DropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QuoteIdent(name))
}

func (d *sqliteDriver) DropEnumTypeSQL(name string) (string, bool) {
	return "", false
}

func (d *sqliteDriver) ForeignKeyGuard() (string, string) {
	return "PRAGMA foreign_keys = OFF;", "PRAGMA foreign_keys = ON;"
}
