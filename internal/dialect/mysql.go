package dialect

import (
	"fmt"
	"strings"

	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/qerr"
)

type mysqlDriver struct{}

func (d *mysqlDriver) Name() plan.Dialect {
	return plan.MySQL
}

func (d *mysqlDriver) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *mysqlDriver) MapType(col plan.ColumnSpec, p *plan.Plan) string {
	switch col.Type {
	case "string":
		return "varchar(255)"
	case "text":
		return "text"
	case "integer":
		return "int"
	case "smallint":
		return "smallint"
	case "bigint":
		return "bigint"
	case "float":
		return "float"
	case "double":
		return "double"
	case "decimal":
		return "decimal(12, 2)"
	case "boolean":
		return "tinyint(1)"
	case "date":
		return "date"
	case "datetime":
		return "datetime"
	case "time":
		return "time"
	case "timestamp":
		return "timestamp"
	case "timestamp_tz":
		return "timestamp"
	case "json":
		return "json"
	case "blob":
		return "blob"
	case "enum":
		return fmt.Sprintf("ENUM(%s)", quoteValues(col.EnumValues))
	default:
		return "text"
	}
}

func (d *mysqlDriver) RenderOp(op plan.Op, p *plan.Plan) (string, error) {
	switch o := op.(type) {
	case plan.CreateEnum, plan.DropEnum, plan.AlterEnum:
		// MySQL enums are inline column types; the column ops carry the
		// change.
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
		return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;", d.QuoteIdent(o.Table), d.columnDef(o.To, p)), nil
	case plan.AddIndex:
		return renderCreateIndex(d, o.Table, o.Index), nil
	case plan.DropIndex:
		return fmt.Sprintf("DROP INDEX %s ON %s;", d.QuoteIdent(o.Name), d.QuoteIdent(o.Table)), nil
	case plan.AddForeignKey:
		return renderAddForeignKey(d, o.Table, o.FK), nil
	case plan.DropForeignKey:
		return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s;",
			d.QuoteIdent(o.Table), d.QuoteIdent(fkConstraintName(o.Table, o.FK))), nil
	default:
		return "", qerr.DialectUnsupported("mysql driver cannot render %T", op)
	}
}

func (d *mysqlDriver) columnDef(col plan.ColumnSpec, p *plan.Plan) string {
	def := d.QuoteIdent(col.Name) + " " + d.MapType(col, p)
	if !col.Nullable {
		def += " NOT NULL"
	}
	if col.Default != "" {
		def += " DEFAULT " + d.defaultExpr(col.Default)
	}
	return def
}

func (d *mysqlDriver) pkColumnDef(col plan.ColumnSpec, p *plan.Plan) string {
	switch col.Type {
	case "integer", "bigint", "smallint":
		return fmt.Sprintf("%s %s NOT NULL AUTO_INCREMENT PRIMARY KEY", d.QuoteIdent(col.Name), d.MapType(col, p))
	default:
		return d.columnDef(col, p) + " PRIMARY KEY"
	}
}

func (d *mysqlDriver) defaultExpr(v string) string {
	switch v {
	case plan.DefaultNow:
		return "CURRENT_TIMESTAMP"
	case plan.DefaultUUID:
		return "(UUID())"
	default:
		return v
	}
}

func (d *mysqlDriver) CreateMigrationsTable() string {
	return "CREATE TABLE IF NOT EXISTS `migrations` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
		"  `migration` varchar(255) NOT NULL UNIQUE,\n" +
		"  `batch` int NOT NULL DEFAULT 1,\n" +
		"  `executed_at` timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP\n" +
		");"
}

func (d *mysqlDriver) ExecutedMigrationsQuery() string {
	return "SELECT `migration` FROM `migrations` ORDER BY `id`"
}

func (d *mysqlDriver) RecordMigrationQuery() string {
	return "INSERT INTO `migrations` (`migration`) VALUES (?)"
}

func (d *mysqlDriver) ListTablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'"
}

func (d *mysqlDriver) DropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QuoteIdent(name))
}

func (d *mysqlDriver) DropEnumTypeSQL(name string) (string, bool) {
	return "", false
}

func (d *mysqlDriver) ForeignKeyGuard() (string, string) {
	return "SET FOREIGN_KEY_CHECKS = 0;", "SET FOREIGN_KEY_CHECKS = 1;"
}
