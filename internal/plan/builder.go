package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stacksjs/qb/internal/model"
	"github.com/stacksjs/qb/internal/qerr"
)

// Build walks the model registry and produces the canonical migration plan
// for a dialect. Building is deterministic: the same registry and dialect
// always yield byte-identical serialized plans.
func Build(reg *model.Registry, dialect Dialect) (*Plan, error) {
	if !ValidDialect(dialect) {
		return nil, qerr.DialectUnsupported("unknown dialect %q (supported: postgres, mysql, sqlite)", dialect)
	}

	b := &builder{
		registry: reg,
		tables:   make(map[string]*TableSpec),
	}

	defs := reg.All()

	// 1. Normalize each definition into a table draft with trait columns at
	// their fixed positions.
	for _, def := range defs {
		if err := b.normalize(def); err != nil {
			return nil, err
		}
	}

	// 2. Resolve relations: FK columns and edges for belongs_to, pivot
	// tables for belongs_to_many.
	for _, def := range defs {
		if err := b.resolveRelations(def); err != nil {
			return nil, err
		}
	}

	// 3. Emit enum types, merging duplicates by value-set equality.
	b.emitEnums()

	// 4. Derive indexes, then sort them by name.
	if err := b.deriveIndexes(); err != nil {
		return nil, err
	}

	// 5. Topologically sort tables so an FK source never precedes its
	// target, alphabetical tie-break.
	sorted, err := b.sortTables()
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Dialect:       dialect,
		SchemaVersion: SchemaVersion,
		Tables:        sorted,
		Enums:         b.enums,
	}

	if err := validateForeignKeys(p); err != nil {
		return nil, err
	}

	return p, nil
}

type builder struct {
	registry *model.Registry
	tables   map[string]*TableSpec
	order    []string // table names in emission order, pre-topo-sort
	enums    []EnumSpec
}

// normalize folds one definition into its interior table form: implicit
// primary key first, uuid second, declared attributes, then the timestamp
// and soft-delete tail.
func (b *builder) normalize(def *model.Definition) error {
	tableName := model.SnakeCase(def.TableName())
	if _, exists := b.tables[tableName]; exists {
		return qerr.InvalidModel("duplicate table %q: two models yield the same table name", tableName)
	}

	pk := def.PrimaryKeyName()
	table := &TableSpec{
		Name:       tableName,
		PrimaryKey: []string{pk},
	}

	table.Columns = append(table.Columns, ColumnSpec{
		Name: pk,
		Type: model.TypeInteger,
	})

	if def.Traits.UseUUID {
		table.Columns = append(table.Columns, ColumnSpec{
			Name:    "uuid",
			Type:    model.TypeString,
			Unique:  true,
			Default: DefaultUUID,
		})
	}

	for _, attr := range orderedAttributes(def.Attributes) {
		name := model.SnakeCase(attr.Name)
		col := ColumnSpec{
			Name:       name,
			Type:       attr.Type,
			Nullable:   attr.Nullable,
			Unique:     attr.Unique,
			Default:    renderDefault(attr),
			EnumValues: attr.EnumValues,
		}
		if name == pk {
			// An attribute may restate the primary key to change its type.
			table.Columns[0] = col
			table.Columns[0].Nullable = false
			continue
		}
		if existing := table.Column(name); existing != nil {
			// A declared attribute overrides a trait-injected column.
			*existing = col
			continue
		}
		table.Columns = append(table.Columns, col)
	}

	// Explicitly declared columns win over trait injection.
	if def.Traits.UseTimestamps {
		if table.Column("created_at") == nil {
			table.Columns = append(table.Columns,
				ColumnSpec{Name: "created_at", Type: model.TypeDatetime, Default: DefaultNow})
		}
		if table.Column("updated_at") == nil {
			table.Columns = append(table.Columns,
				ColumnSpec{Name: "updated_at", Type: model.TypeDatetime, Default: DefaultNow})
		}
	}
	if def.Traits.UseSoftDeletes && table.Column("deleted_at") == nil {
		table.Columns = append(table.Columns,
			ColumnSpec{Name: "deleted_at", Type: model.TypeDatetime, Nullable: true},
		)
	}

	b.tables[tableName] = table
	b.order = append(b.order, tableName)
	return nil
}

// orderedAttributes applies explicit ordering: attributes with a non-zero
// order come first, sorted by it; the rest keep declaration order.
func orderedAttributes(attrs []model.Attribute) []model.Attribute {
	out := make([]model.Attribute, len(attrs))
	copy(out, attrs)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].Order, out[j].Order
		if oi == 0 {
			return false
		}
		if oj == 0 {
			return true
		}
		return oi < oj
	})
	return out
}

// resolveRelations emits FK columns for belongs_to and synthesizes pivot
// tables for belongs_to_many. has_one/has_many add no columns; their edges
// are implied by the owning side's foreign key.
func (b *builder) resolveRelations(def *model.Definition) error {
	table := b.tables[model.SnakeCase(def.TableName())]

	for _, rel := range def.Relations {
		target := b.registry.Get(rel.Model)
		if target == nil {
			return qerr.InvalidModel("model %q: relation %q references unknown model %q", def.Name, rel.Name, rel.Model)
		}

		switch rel.Kind {
		case model.BelongsTo:
			fkColumn := rel.ForeignKey
			if fkColumn == "" {
				fkColumn = model.Singularize(model.SnakeCase(target.Name)) + "_id"
			}
			refColumn := rel.OwnerKey
			if refColumn == "" {
				refColumn = target.PrimaryKeyName()
			}

			b.insertFKColumn(table, ColumnSpec{
				Name: model.SnakeCase(fkColumn),
				Type: model.TypeInteger,
			})
			table.ForeignKeys = append(table.ForeignKeys, FKSpec{
				Column:    model.SnakeCase(fkColumn),
				RefTable:  model.SnakeCase(target.TableName()),
				RefColumn: model.SnakeCase(refColumn),
				OnDelete:  "CASCADE",
				OnUpdate:  "CASCADE",
			})

		case model.BelongsToMany:
			if err := b.synthesizePivot(def, rel, target); err != nil {
				return err
			}

		case model.HasOne, model.HasMany:
			// Inverse side only; the owning table carries the FK column.
		}
	}

	return nil
}

// insertFKColumn places an FK column after the declared attributes but
// before the trait-injected timestamp tail, so trait columns keep their
// fixed positions.
func (b *builder) insertFKColumn(table *TableSpec, col ColumnSpec) {
	if table.Column(col.Name) != nil {
		// The attribute already declares the FK column; keep its spec.
		return
	}

	tail := 0
	for i := len(table.Columns) - 1; i >= 0; i-- {
		name := table.Columns[i].Name
		if name == "created_at" || name == "updated_at" || name == "deleted_at" {
			tail++
			continue
		}
		break
	}

	at := len(table.Columns) - tail
	table.Columns = append(table.Columns, ColumnSpec{})
	copy(table.Columns[at+1:], table.Columns[at:])
	table.Columns[at] = col
}

// synthesizePivot creates the junction table for a belongs_to_many relation
// with a composite primary key, unless one with the same name exists already
// (the inverse side declares the same relation).
func (b *builder) synthesizePivot(def *model.Definition, rel model.Relation, target *model.Definition) error {
	left := model.Singularize(model.SnakeCase(def.Name))
	right := model.Singularize(model.SnakeCase(target.Name))

	pivotName := rel.Pivot
	if pivotName == "" {
		// Alphabetical join of the two singular model names.
		if left < right {
			pivotName = left + "_" + right
		} else {
			pivotName = right + "_" + left
		}
	}
	pivotName = model.SnakeCase(pivotName)

	if _, exists := b.tables[pivotName]; exists {
		return nil
	}

	leftCol := left + "_id"
	rightCol := right + "_id"

	pivot := &TableSpec{
		Name:       pivotName,
		PrimaryKey: []string{leftCol, rightCol},
		Columns: []ColumnSpec{
			{Name: leftCol, Type: model.TypeInteger},
			{Name: rightCol, Type: model.TypeInteger},
		},
		ForeignKeys: []FKSpec{
			{
				Column:    leftCol,
				RefTable:  model.SnakeCase(def.TableName()),
				RefColumn: def.PrimaryKeyName(),
				OnDelete:  "CASCADE",
				OnUpdate:  "CASCADE",
			},
			{
				Column:    rightCol,
				RefTable:  model.SnakeCase(target.TableName()),
				RefColumn: target.PrimaryKeyName(),
				OnDelete:  "CASCADE",
				OnUpdate:  "CASCADE",
			},
		},
	}

	b.tables[pivotName] = pivot
	b.order = append(b.order, pivotName)
	return nil
}

// emitEnums collects enum columns into plan-level enum types. Duplicate
// value sets merge into one type; the first occurrence's name wins. A name
// clash between distinct value sets is disambiguated with the table name.
func (b *builder) emitEnums() {
	taken := make(map[string]bool)

	for _, tableName := range b.order {
		table := b.tables[tableName]
		for _, col := range table.Columns {
			if col.Type != model.TypeEnum {
				continue
			}
			if b.enumForValues(col.EnumValues) != nil {
				continue
			}
			name := col.Name + "_type"
			if taken[name] {
				name = table.Name + "_" + col.Name + "_type"
			}
			taken[name] = true
			b.enums = append(b.enums, EnumSpec{Name: name, Values: col.EnumValues})
		}
	}
}

func (b *builder) enumForValues(vals []string) *EnumSpec {
	for i := range b.enums {
		if equalStrings(b.enums[i].Values, vals) {
			return &b.enums[i]
		}
	}
	return nil
}

// deriveIndexes builds each table's index list: unique attributes first,
// then one non-unique index per FK column, then trait-driven indexes. The
// final list is sorted by name; names must be globally unique.
func (b *builder) deriveIndexes() error {
	seen := make(map[string]string) // index name -> table

	for _, tableName := range b.order {
		table := b.tables[tableName]

		for _, col := range table.Columns {
			if col.Unique {
				table.Indexes = append(table.Indexes, IndexSpec{
					Name:    fmt.Sprintf("%s_%s_unique", table.Name, col.Name),
					Columns: []string{col.Name},
					Unique:  true,
				})
			}
		}

		for _, fk := range table.ForeignKeys {
			table.Indexes = append(table.Indexes, IndexSpec{
				Name:    fmt.Sprintf("%s_%s_index", table.Name, fk.Column),
				Columns: []string{fk.Column},
			})
		}

		if table.Column("deleted_at") != nil {
			table.Indexes = append(table.Indexes, IndexSpec{
				Name:    fmt.Sprintf("%s_deleted_at_index", table.Name),
				Columns: []string{"deleted_at"},
			})
		}

		sort.Slice(table.Indexes, func(i, j int) bool {
			return table.Indexes[i].Name < table.Indexes[j].Name
		})

		for _, idx := range table.Indexes {
			if other, dup := seen[idx.Name]; dup {
				return qerr.InvalidModel("index name %q is not unique: used by tables %q and %q", idx.Name, other, table.Name)
			}
			seen[idx.Name] = table.Name
		}
	}

	return nil
}

// sortTables returns table specs in topological order.
func (b *builder) sortTables() ([]TableSpec, error) {
	graph := newDependencyGraph()
	for _, name := range b.order {
		graph.addNode(name)
	}
	for _, name := range b.order {
		for _, fk := range b.tables[name].ForeignKeys {
			graph.addEdge(name, fk.RefTable)
		}
	}

	names, err := graph.topologicalSort()
	if err != nil {
		return nil, err
	}

	sorted := make([]TableSpec, 0, len(names))
	for _, name := range names {
		sorted = append(sorted, *b.tables[name])
	}
	return sorted, nil
}

// validateForeignKeys enforces the plan boundary invariant: every FK target
// table exists and the referenced column is its primary key or unique.
func validateForeignKeys(p *Plan) error {
	for _, table := range p.Tables {
		for _, fk := range table.ForeignKeys {
			target := p.Table(fk.RefTable)
			if target == nil {
				return qerr.InvalidModel("table %q: foreign key on %q references unknown table %q", table.Name, fk.Column, fk.RefTable)
			}
			if isPrimaryKey(target, fk.RefColumn) {
				continue
			}
			if col := target.Column(fk.RefColumn); col != nil && col.Unique {
				continue
			}
			return qerr.InvalidModel("table %q: foreign key on %q references %s.%s, which is neither the primary key nor unique",
				table.Name, fk.Column, fk.RefTable, fk.RefColumn)
		}
	}
	return nil
}

func isPrimaryKey(t *TableSpec, column string) bool {
	return len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == column
}

// renderDefault normalizes an attribute default to its plan-level string
// form: symbolic markers pass through, strings are single-quoted, numbers
// and booleans render bare.
func renderDefault(attr model.Attribute) string {
	if attr.Default == nil {
		return ""
	}

	switch v := attr.Default.(type) {
	case string:
		if v == DefaultNow || v == DefaultUUID {
			return v
		}
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
