package dialect

import (
	"fmt"
	"strings"

	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/qerr"
)

type postgresDriver struct{}

func (d *postgresDriver) Name() plan.Dialect {
	return plan.Postgres
}

func (d *postgresDriver) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *postgresDriver) MapType(col plan.ColumnSpec, p *plan.Plan) string {
	switch col.Type {
	case "string":
		return "varchar(255)"
	case "text":
		return "text"
	case "integer":
		return "integer"
	case "smallint":
		return "smallint"
	case "bigint":
		return "bigint"
	case "float":
		return "real"
	case "double":
		return "double precision"
	case "decimal":
		return "numeric(12, 2)"
	case "boolean":
		return "boolean"
	case "date":
		return "date"
	case "datetime":
		return "timestamp"
	case "time":
		return "time"
	case "timestamp":
		return "timestamp"
	case "timestamp_tz":
		return "timestamptz"
	case "json":
		return "jsonb"
	case "blob":
		return "bytea"
	case "enum":
		if spec := p.EnumForValues(col.EnumValues); spec != nil {
			return d.QuoteIdent(spec.Name)
		}
		return "text"
	default:
		return "text"
	}
}

func (d *postgresDriver) RenderOp(op plan.Op, p *plan.Plan) (string, error) {
	switch o := op.(type) {
	case plan.CreateEnum:
		return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", d.QuoteIdent(o.Enum.Name), quoteValues(o.Enum.Values)), nil
	case plan.DropEnum:
		return fmt.Sprintf("DROP TYPE IF EXISTS %s;", d.QuoteIdent(o.Name)), nil
	case plan.AlterEnum:
		var stmts []string
		for _, v := range o.AddValues {
			stmts = append(stmts, fmt.Sprintf("ALTER TYPE %s ADD VALUE %s;", d.QuoteIdent(o.Name), quoteValue(v)))
		}
		return strings.Join(stmts, "\n"), nil
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
	case plan.AddForeignKey:
		return renderAddForeignKey(d, o.Table, o.FK), nil
	case plan.DropForeignKey:
		return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;",
			d.QuoteIdent(o.Table), d.QuoteIdent(fkConstraintName(o.Table, o.FK))), nil
	default:
		return "", qerr.DialectUnsupported("postgres driver cannot render %T", op)
	}
}

// renderAlterColumn restates type, nullability, and default as separate
// ALTER clauses. An enum value set that shrank or reordered cannot be
// altered in place; the type is recreated and swapped under the same name.
func (d *postgresDriver) renderAlterColumn(o plan.AlterColumn, p *plan.Plan) string {
	table := d.QuoteIdent(o.Table)
	column := d.QuoteIdent(o.To.Name)
	var stmts []string

	if o.From.Type == "enum" && o.To.Type == "enum" && !sameValues(o.From.EnumValues, o.To.EnumValues) {
		spec := p.EnumForValues(o.To.EnumValues)
		name := o.To.Name + "_type"
		if spec != nil {
			name = spec.Name
		}
		tmp := name + "_new"
		stmts = append(stmts,
			fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", d.QuoteIdent(tmp), quoteValues(o.To.EnumValues)),
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::text::%s;",
				table, column, d.QuoteIdent(tmp), column, d.QuoteIdent(tmp)),
			fmt.Sprintf("DROP TYPE %s;", d.QuoteIdent(name)),
			fmt.Sprintf("ALTER TYPE %s RENAME TO %s;", d.QuoteIdent(tmp), d.QuoteIdent(name)),
		)
	} else if o.From.Type != o.To.Type {
		newType := d.MapType(o.To, p)
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s;",
			table, column, newType, column, newType))
	}

	if o.From.Nullable != o.To.Nullable {
		if o.To.Nullable {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", table, column))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", table, column))
		}
	}

	if o.From.Default != o.To.Default {
		if o.To.Default == "" {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, column))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;",
				table, column, d.defaultExpr(o.To.Default)))
		}
	}

	return strings.Join(stmts, "\n")
}

// columnDef renders one column definition line. The primary key notation is
// handled by renderCreateTable; this covers standalone adds.
func (d *postgresDriver) columnDef(col plan.ColumnSpec, p *plan.Plan) string {
	def := d.QuoteIdent(col.Name) + " " + d.MapType(col, p)
	if !col.Nullable {
		def += " NOT NULL"
	}
	if col.Default != "" {
		def += " DEFAULT " + d.defaultExpr(col.Default)
	}
	return def
}

func (d *postgresDriver) defaultExpr(v string) string {
	switch v {
	case plan.DefaultNow:
		return "NOW()"
	case plan.DefaultUUID:
		return "gen_random_uuid()"
	default:
		return v
	}
}

func (d *postgresDriver) pkColumnDef(col plan.ColumnSpec, p *plan.Plan) string {
	if serial, ok := d.serialType(col); ok {
		return d.QuoteIdent(col.Name) + " " + serial + " PRIMARY KEY"
	}
	return d.columnDef(col, p) + " PRIMARY KEY"
}

// serialType returns the auto-increment form of an integer primary key.
func (d *postgresDriver) serialType(col plan.ColumnSpec) (string, bool) {
	switch col.Type {
	case "integer":
		return "serial", true
	case "bigint":
		return "bigserial", true
	case "smallint":
		return "smallserial", true
	default:
		return "", false
	}
}

func (d *postgresDriver) CreateMigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS "migrations" (
  "id" serial PRIMARY KEY,
  "migration" varchar(255) NOT NULL UNIQUE,
  "batch" integer NOT NULL DEFAULT 1,
  "executed_at" timestamp NOT NULL DEFAULT NOW()
);`
}

func (d *postgresDriver) ExecutedMigrationsQuery() string {
	return `SELECT "migration" FROM "migrations" ORDER BY "id"`
}

func (d *postgresDriver) RecordMigrationQuery() string {
	return `INSERT INTO "migrations" ("migration") VALUES ($1)`
}

func (d *postgresDriver) ListTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`
}

func (d *postgresDriver) DropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QuoteIdent(name))
}

func (d *postgresDriver) DropEnumTypeSQL(name string) (string, bool) {
	return fmt.Sprintf("DROP TYPE IF EXISTS %s;", d.QuoteIdent(name)), true
}

func (d *postgresDriver) ForeignKeyGuard() (string, string) {
	return "", ""
}
