package dialect

import (
	"fmt"
	"strings"

	"github.com/stacksjs/qb/internal/plan"
)

// sqlRenderer is the per-driver surface the shared rendering helpers need.
type sqlRenderer interface {
	QuoteIdent(name string) string
	MapType(col plan.ColumnSpec, p *plan.Plan) string
	columnDef(col plan.ColumnSpec, p *plan.Plan) string
	pkColumnDef(col plan.ColumnSpec, p *plan.Plan) string
}

// renderCreateTable renders a full CREATE TABLE with inline primary key and
// foreign-key constraints. Indexes are separate ops.
func renderCreateTable(r sqlRenderer, t plan.TableSpec, p *plan.Plan) string {
	var lines []string

	singlePK := len(t.PrimaryKey) == 1

	for _, col := range t.Columns {
		if singlePK && col.Name == t.PrimaryKey[0] {
			lines = append(lines, r.pkColumnDef(col, p))
			continue
		}
		lines = append(lines, r.columnDef(col, p))
	}

	if !singlePK && len(t.PrimaryKey) > 0 {
		quoted := make([]string, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			quoted[i] = r.QuoteIdent(c)
		}
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	for _, fk := range t.ForeignKeys {
		lines = append(lines, renderFKConstraint(r, t.Name, fk))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", r.QuoteIdent(t.Name), strings.Join(lines, ",\n  "))
}

func renderFKConstraint(r sqlRenderer, table string, fk plan.FKSpec) string {
	def := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		r.QuoteIdent(fkConstraintName(table, fk)),
		r.QuoteIdent(fk.Column),
		r.QuoteIdent(fk.RefTable),
		r.QuoteIdent(fk.RefColumn))
	if fk.OnDelete != "" {
		def += " ON DELETE " + fk.OnDelete
	}
	if fk.OnUpdate != "" {
		def += " ON UPDATE " + fk.OnUpdate
	}
	return def
}

func renderCreateIndex(r sqlRenderer, table string, idx plan.IndexSpec) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	quoted := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		quoted[i] = r.QuoteIdent(c)
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
		unique, r.QuoteIdent(idx.Name), r.QuoteIdent(table), strings.Join(quoted, ", "))
}

func renderAddForeignKey(r sqlRenderer, table string, fk plan.FKSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", r.QuoteIdent(table), renderFKConstraint(r, table, fk))
}

// fkConstraintName derives the constraint name for an FK edge.
func fkConstraintName(table string, fk plan.FKSpec) string {
	return fmt.Sprintf("fk_%s_%s", table, fk.Column)
}

func quoteValue(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func quoteValues(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = quoteValue(v)
	}
	return strings.Join(quoted, ", ")
}

func sameValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
