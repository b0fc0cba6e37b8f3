// Package plan derives a dialect-tagged migration plan from a model
// registry, and computes ordered structural diffs between two plans.
//
// A plan is the canonical snapshot of the intended schema: two plans built
// from semantically equal models serialize to byte-identical JSON. Plans are
// immutable once built.
package plan

import (
	"encoding/json"
	"fmt"
)

// Dialect identifies the SQL dialect a plan targets.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ValidDialect reports whether d names a supported dialect.
func ValidDialect(d Dialect) bool {
	return d == Postgres || d == MySQL || d == SQLite
}

// SchemaVersion is bumped on incompatible plan shape changes. Snapshots with
// a different version are treated as absent.
const SchemaVersion = 1

// Plan is the canonical, dialect-tagged snapshot of the intended schema.
// Tables are in topological order: an FK source never precedes its target.
type Plan struct {
	Dialect       Dialect     `json:"dialect"`
	SchemaVersion int         `json:"schemaVersion"`
	Tables        []TableSpec `json:"tables"`
	Enums         []EnumSpec  `json:"enums,omitempty"`
}

// TableSpec describes one physical table. Column order is semantic; indexes
// are sorted lexicographically by name to keep diffs stable.
type TableSpec struct {
	Name        string       `json:"table"`
	PrimaryKey  []string     `json:"primaryKey"`
	Columns     []ColumnSpec `json:"columns"`
	Indexes     []IndexSpec  `json:"indexes,omitempty"`
	ForeignKeys []FKSpec     `json:"foreignKeys,omitempty"`
}

// ColumnSpec describes one column. Default holds either a rendered literal
// ('admin', 42, true) or a symbolic marker (now, uuid) that drivers map to
// dialect functions; empty means no default. If Type is enum, EnumValues is
// non-empty and matches an EnumSpec in the enclosing plan.
type ColumnSpec struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Nullable   bool     `json:"nullable"`
	Default    string   `json:"default,omitempty"`
	Unique     bool     `json:"unique,omitempty"`
	EnumValues []string `json:"enumValues,omitempty"`
}

// Symbolic column defaults, mapped per dialect at render time.
const (
	DefaultNow  = "now"
	DefaultUUID = "uuid"
)

// IndexSpec describes one index. Names are globally unique within a plan.
type IndexSpec struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// FKSpec describes one foreign-key edge. RefTable always exists in the plan;
// RefColumn is its primary key or a unique column.
type FKSpec struct {
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
	OnDelete  string `json:"onDelete,omitempty"`
	OnUpdate  string `json:"onUpdate,omitempty"`
}

// EnumSpec names an ordered tuple of string literals.
type EnumSpec struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Table returns the spec for a table name, or nil.
func (p *Plan) Table(name string) *TableSpec {
	for i := range p.Tables {
		if p.Tables[i].Name == name {
			return &p.Tables[i]
		}
	}
	return nil
}

// Enum returns the enum spec with the given name, or nil.
func (p *Plan) Enum(name string) *EnumSpec {
	for i := range p.Enums {
		if p.Enums[i].Name == name {
			return &p.Enums[i]
		}
	}
	return nil
}

// EnumForValues returns the enum spec whose values equal vals, or nil.
// Duplicate value sets are merged at build time, so at most one matches.
func (p *Plan) EnumForValues(vals []string) *EnumSpec {
	for i := range p.Enums {
		if equalStrings(p.Enums[i].Values, vals) {
			return &p.Enums[i]
		}
	}
	return nil
}

// Column returns the column spec for table.column, or nil.
func (t *TableSpec) Column(name string) *ColumnSpec {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// MarshalCanonical serializes the plan to its canonical JSON form: indented,
// struct field order, no dialect-dependent variation. Snapshot hashes and
// the determinism guarantee are defined over this encoding.
func (p *Plan) MarshalCanonical() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}
	return append(data, '\n'), nil
}

func equalStrings(a, b []string) bool {
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

func equalColumns(a, b ColumnSpec) bool {
	return a.Name == b.Name &&
		a.Type == b.Type &&
		a.Nullable == b.Nullable &&
		a.Default == b.Default &&
		a.Unique == b.Unique &&
		equalStrings(a.EnumValues, b.EnumValues)
}

func equalIndexes(a, b IndexSpec) bool {
	return a.Name == b.Name && a.Unique == b.Unique && equalStrings(a.Columns, b.Columns)
}

func equalFKs(a, b FKSpec) bool {
	return a == b
}
