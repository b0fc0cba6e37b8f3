package plan

import (
	"github.com/stacksjs/qb/internal/qerr"
)

// Diff structurally compares two plans and emits the ordered op sequence
// that transforms a database materializing previous into one materializing
// current. A nil previous yields the full create sequence.
//
// Ops are emitted in eight phases: dependent-object drops, table drops
// (reverse topological), enum drops, enum creates, table creates
// (topological), column changes, index changes, FK changes. Within one
// pipeline invocation the SQL statement order equals this op order.
func Diff(previous, current *Plan) ([]Op, error) {
	if previous == nil {
		previous = &Plan{Dialect: current.Dialect, SchemaVersion: current.SchemaVersion}
	}

	d := &differ{
		prev:       previous,
		cur:        current,
		droppedIdx: make(map[string]bool),
		droppedFK:  make(map[fkKey]bool),
	}

	d.analyzeTables()
	if err := d.analyzeColumns(); err != nil {
		return nil, err
	}

	d.phaseDependentDrops()
	d.phaseTableDrops()
	d.phaseEnumDrops()
	d.phaseEnumCreates()
	d.phaseTableCreates()
	if err := d.phaseColumnChanges(); err != nil {
		return nil, err
	}
	d.phaseIndexChanges()
	d.phaseForeignKeyChanges()

	return d.ops, nil
}

type fkKey struct {
	table string
	fk    FKSpec
}

type columnDelta struct {
	added   []ColumnSpec
	altered []AlterColumn
	dropped []string
	// names of columns that will change or disappear; dependent indexes
	// and FKs must drop before the change lands
	changing map[string]bool
}

type differ struct {
	prev, cur *Plan

	survivors []string // tables in both, current order
	created   []string // tables only in current, topological order
	removed   map[string]bool

	deltas     map[string]*columnDelta
	enumAdds   []AlterEnum
	droppedIdx map[string]bool
	droppedFK  map[fkKey]bool

	ops []Op
}

func (d *differ) analyzeTables() {
	d.removed = make(map[string]bool)
	for _, t := range d.prev.Tables {
		if d.cur.Table(t.Name) == nil {
			d.removed[t.Name] = true
		}
	}
	for _, t := range d.cur.Tables {
		if d.prev.Table(t.Name) == nil {
			d.created = append(d.created, t.Name)
		} else {
			d.survivors = append(d.survivors, t.Name)
		}
	}
}

// analyzeColumns computes per-survivor column deltas. A column of the same
// name differs iff type, nullable, default, unique, or enumValues differ. An
// enum column whose only change is an additive value extension becomes an
// AlterEnum when the dialect supports in-place addition.
func (d *differ) analyzeColumns() error {
	d.deltas = make(map[string]*columnDelta)

	for _, name := range d.survivors {
		prevT := d.prev.Table(name)
		curT := d.cur.Table(name)
		delta := &columnDelta{changing: make(map[string]bool)}

		for _, col := range curT.Columns {
			if prevT.Column(col.Name) == nil {
				delta.added = append(delta.added, col)
			}
		}

		for _, prevCol := range prevT.Columns {
			curCol := curT.Column(prevCol.Name)
			if curCol == nil {
				delta.dropped = append(delta.dropped, prevCol.Name)
				delta.changing[prevCol.Name] = true
				continue
			}
			if equalColumns(prevCol, *curCol) {
				continue
			}
			if d.recordEnumAddition(prevCol, *curCol) {
				continue
			}
			delta.altered = append(delta.altered, AlterColumn{Table: name, From: prevCol, To: *curCol})
			delta.changing[prevCol.Name] = true
		}

		d.deltas[name] = delta
	}

	return nil
}

// recordEnumAddition handles the one alter shape that avoids a column
// change: same column, same type, enum values extended in order, on a
// dialect with ALTER TYPE ... ADD VALUE. Returns true when absorbed.
func (d *differ) recordEnumAddition(from, to ColumnSpec) bool {
	if d.cur.Dialect != Postgres {
		return false
	}
	if from.Type != "enum" || to.Type != "enum" {
		return false
	}
	same := from.Nullable == to.Nullable && from.Default == to.Default && from.Unique == to.Unique
	if !same {
		return false
	}
	addValues, additive := additiveValues(from.EnumValues, to.EnumValues)
	if !additive {
		return false
	}

	spec := d.cur.EnumForValues(to.EnumValues)
	if spec == nil {
		return false
	}
	for _, pending := range d.enumAdds {
		if pending.Name == spec.Name {
			return true
		}
	}
	d.enumAdds = append(d.enumAdds, AlterEnum{Name: spec.Name, AddValues: addValues})
	return true
}

// additiveValues reports whether to extends from while preserving the
// relative order of existing values, and returns the new values.
func additiveValues(from, to []string) ([]string, bool) {
	if len(to) <= len(from) {
		return nil, false
	}
	have := make(map[string]bool, len(to))
	for _, v := range to {
		have[v] = true
	}
	pos := -1
	for _, v := range from {
		if !have[v] {
			return nil, false
		}
		next := indexOf(to, v)
		if next < pos {
			return nil, false
		}
		pos = next
	}
	prior := make(map[string]bool, len(from))
	for _, v := range from {
		prior[v] = true
	}
	var added []string
	for _, v := range to {
		if !prior[v] {
			added = append(added, v)
		}
	}
	return added, true
}

func indexOf(vals []string, v string) int {
	for i, x := range vals {
		if x == v {
			return i
		}
	}
	return -1
}

// Phase A: drop indexes and foreign keys that reference columns that will
// change or disappear, and FKs pointing into tables about to drop.
func (d *differ) phaseDependentDrops() {
	for _, t := range d.prev.Tables {
		if d.removed[t.Name] {
			continue
		}
		delta := d.deltas[t.Name]

		for _, idx := range t.Indexes {
			if touchesAny(idx.Columns, delta.changing) {
				d.ops = append(d.ops, DropIndex{Table: t.Name, Name: idx.Name})
				d.droppedIdx[idx.Name] = true
			}
		}

		for _, fk := range t.ForeignKeys {
			if delta.changing[fk.Column] || d.removed[fk.RefTable] || d.targetColumnChanging(fk) {
				d.ops = append(d.ops, DropForeignKey{Table: t.Name, FK: fk})
				d.droppedFK[fkKey{t.Name, fk}] = true
			}
		}
	}
}

func (d *differ) targetColumnChanging(fk FKSpec) bool {
	delta, ok := d.deltas[fk.RefTable]
	return ok && delta.changing[fk.RefColumn]
}

func touchesAny(columns []string, changing map[string]bool) bool {
	for _, c := range columns {
		if changing[c] {
			return true
		}
	}
	return false
}

// Phase B: drop removed tables in reverse topological order of the
// previous plan, so no table drops before its dependents.
func (d *differ) phaseTableDrops() {
	for i := len(d.prev.Tables) - 1; i >= 0; i-- {
		if d.removed[d.prev.Tables[i].Name] {
			d.ops = append(d.ops, DropTable{Name: d.prev.Tables[i].Name})
		}
	}
}

// Phase C: drop enum types no longer present.
func (d *differ) phaseEnumDrops() {
	for _, e := range d.prev.Enums {
		if d.cur.Enum(e.Name) == nil {
			d.ops = append(d.ops, DropEnum{Name: e.Name})
		}
	}
}

// Phase D: create new enum types, then in-place value additions.
func (d *differ) phaseEnumCreates() {
	for _, e := range d.cur.Enums {
		if d.prev.Enum(e.Name) == nil {
			d.ops = append(d.ops, CreateEnum{Enum: e})
		}
	}
	for _, alter := range d.enumAdds {
		d.ops = append(d.ops, alter)
	}
}

// Phase E: create new tables in topological order. Foreign keys render
// inline; indexes follow as separate ops in phase G.
func (d *differ) phaseTableCreates() {
	for _, name := range d.created {
		d.ops = append(d.ops, CreateTable{Table: *d.cur.Table(name)})
	}
}

// Phase F: column changes on surviving tables, adds before drops so that
// data-carrying transitions stay possible.
func (d *differ) phaseColumnChanges() error {
	for _, name := range d.survivors {
		delta := d.deltas[name]

		for _, col := range delta.added {
			if !col.Nullable && col.Default == "" {
				return qerr.UnresolvableDiff(
					"adding non-null column %s.%s with no default would fail on populated tables; make it nullable or give it a default",
					name, col.Name)
			}
			d.ops = append(d.ops, AddColumn{Table: name, Column: col})
		}
		for _, alter := range delta.altered {
			d.ops = append(d.ops, alter)
		}
		for _, col := range delta.dropped {
			d.ops = append(d.ops, DropColumn{Table: name, Column: col})
		}
	}
	return nil
}

// Phase G: index changes, drops before adds. New tables contribute all of
// their indexes; phase-A casualties that survive unchanged are re-created.
func (d *differ) phaseIndexChanges() {
	for _, name := range d.survivors {
		prevT := d.prev.Table(name)
		curT := d.cur.Table(name)
		for _, idx := range prevT.Indexes {
			if d.droppedIdx[idx.Name] {
				continue
			}
			cur := findIndex(curT.Indexes, idx.Name)
			if cur == nil || !equalIndexes(idx, *cur) {
				d.ops = append(d.ops, DropIndex{Table: name, Name: idx.Name})
				d.droppedIdx[idx.Name] = true
			}
		}
	}

	for _, t := range d.cur.Tables {
		prevT := d.prev.Table(t.Name)
		for _, idx := range t.Indexes {
			if prevT == nil {
				d.ops = append(d.ops, AddIndex{Table: t.Name, Index: idx})
				continue
			}
			old := findIndex(prevT.Indexes, idx.Name)
			if old == nil || !equalIndexes(*old, idx) || d.droppedIdx[idx.Name] {
				d.ops = append(d.ops, AddIndex{Table: t.Name, Index: idx})
			}
		}
	}
}

// Phase H: foreign-key changes, drops before adds. New tables carry their
// FKs inline in CreateTable and add nothing here.
func (d *differ) phaseForeignKeyChanges() {
	for _, name := range d.survivors {
		prevT := d.prev.Table(name)
		curT := d.cur.Table(name)
		for _, fk := range prevT.ForeignKeys {
			if d.droppedFK[fkKey{name, fk}] {
				continue
			}
			if !containsFK(curT.ForeignKeys, fk) {
				d.ops = append(d.ops, DropForeignKey{Table: name, FK: fk})
				d.droppedFK[fkKey{name, fk}] = true
			}
		}
	}

	for _, name := range d.survivors {
		prevT := d.prev.Table(name)
		curT := d.cur.Table(name)
		for _, fk := range curT.ForeignKeys {
			if !containsFK(prevT.ForeignKeys, fk) || d.droppedFK[fkKey{name, fk}] {
				d.ops = append(d.ops, AddForeignKey{Table: name, FK: fk})
			}
		}
	}
}

func findIndex(indexes []IndexSpec, name string) *IndexSpec {
	for i := range indexes {
		if indexes[i].Name == name {
			return &indexes[i]
		}
	}
	return nil
}

func containsFK(fks []FKSpec, fk FKSpec) bool {
	for _, f := range fks {
		if equalFKs(f, fk) {
			return true
		}
	}
	return false
}
