// Package model defines qb model definitions: logical entities with typed
// attributes, traits, and relations. Definitions are parsed from .qb.yml
// documents or registered programmatically; the plan package derives the
// physical schema from them.
package model

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition represents a parsed and validated model definition.
type Definition struct {
	Name       string      `yaml:"name"`
	Table      string      `yaml:"table,omitempty"`
	PrimaryKey string      `yaml:"primary_key,omitempty"`
	Traits     Traits      `yaml:"traits,omitempty"`
	Attributes []Attribute `yaml:"attributes"`
	Relations  []Relation  `yaml:"relations,omitempty"`
}

// Traits are opt-in behaviors that inject columns at fixed positions.
type Traits struct {
	UseUUID        bool `yaml:"use_uuid,omitempty"`
	UseTimestamps  bool `yaml:"use_timestamps,omitempty"`
	UseSoftDeletes bool `yaml:"use_soft_deletes,omitempty"`
	UseAPI         bool `yaml:"use_api,omitempty"`
}

// Attribute is a single typed attribute of a model. Declaration order is
// semantic: it determines physical column order.
type Attribute struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	EnumValues []string `yaml:"enum_values,omitempty"`
	Fillable   bool     `yaml:"fillable,omitempty"`
	Unique     bool     `yaml:"unique,omitempty"`
	Hidden     bool     `yaml:"hidden,omitempty"`
	Guarded    bool     `yaml:"guarded,omitempty"`
	Nullable   bool     `yaml:"nullable,omitempty"`
	Default    any      `yaml:"default,omitempty"`
	Order      int      `yaml:"order,omitempty"`
}

// Relation links one model to another.
type Relation struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"` // belongs_to, has_one, has_many, belongs_to_many
	Model      string `yaml:"model"`
	ForeignKey string `yaml:"foreign_key,omitempty"`
	OwnerKey   string `yaml:"owner_key,omitempty"`
	LocalKey   string `yaml:"local_key,omitempty"`
	Pivot      string `yaml:"pivot,omitempty"`
}

// Relation kinds.
const (
	BelongsTo     = "belongs_to"
	HasOne        = "has_one"
	HasMany       = "has_many"
	BelongsToMany = "belongs_to_many"
)

// Attribute types form a closed set. Enum attributes additionally carry a
// non-empty ordered tuple of string literals.
const (
	TypeString      = "string"
	TypeText        = "text"
	TypeInteger     = "integer"
	TypeSmallint    = "smallint"
	TypeBigint      = "bigint"
	TypeFloat       = "float"
	TypeDouble      = "double"
	TypeDecimal     = "decimal"
	TypeBoolean     = "boolean"
	TypeDate        = "date"
	TypeDatetime    = "datetime"
	TypeTime        = "time"
	TypeTimestamp   = "timestamp"
	TypeTimestampTz = "timestamp_tz"
	TypeJSON        = "json"
	TypeBlob        = "blob"
	TypeEnum        = "enum"
)

var attributeTypes = map[string]bool{
	TypeString: true, TypeText: true, TypeInteger: true, TypeSmallint: true,
	TypeBigint: true, TypeFloat: true, TypeDouble: true, TypeDecimal: true,
	TypeBoolean: true, TypeDate: true, TypeDatetime: true, TypeTime: true,
	TypeTimestamp: true, TypeTimestampTz: true, TypeJSON: true, TypeBlob: true,
	TypeEnum: true,
}

// ValidAttributeType reports whether t is a member of the closed type set.
func ValidAttributeType(t string) bool {
	return attributeTypes[t]
}

var relationKinds = map[string]bool{
	BelongsTo: true, HasOne: true, HasMany: true, BelongsToMany: true,
}

// TableName returns the physical table name: the explicit table if set,
// otherwise the snake-cased plural of the model name.
func (d *Definition) TableName() string {
	if d.Table != "" {
		return d.Table
	}
	return SnakeCase(Pluralize(d.Name))
}

// PrimaryKeyName returns the primary key column, defaulting to "id".
func (d *Definition) PrimaryKeyName() string {
	if d.PrimaryKey != "" {
		return SnakeCase(d.PrimaryKey)
	}
	return "id"
}

// Parse reads and validates a model definition file.
func Parse(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes reads and validates a model definition from bytes. Decoding is
// strict: unknown or misspelled fields are an error.
func ParseBytes(data []byte) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse model (check for unknown/misspelled fields): %w", err)
	}

	if err := Validate(&def); err != nil {
		return nil, err
	}

	return &def, nil
}
