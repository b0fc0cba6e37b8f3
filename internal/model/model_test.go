package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytes(t *testing.T) {
	data := []byte(`
name: Post
traits:
  use_timestamps: true
attributes:
  - name: title
    type: string
    fillable: true
  - name: status
    type: enum
    enum_values: [draft, published]
    default: draft
relations:
  - name: author
    kind: belongs_to
    model: User
`)

	def, err := ParseBytes(data)
	require.NoError(t, err)

	assert.Equal(t, "Post", def.Name)
	assert.Equal(t, "posts", def.TableName())
	assert.Equal(t, "id", def.PrimaryKeyName())
	assert.True(t, def.Traits.UseTimestamps)
	require.Len(t, def.Attributes, 2)
	assert.Equal(t, []string{"draft", "published"}, def.Attributes[1].EnumValues)
	require.Len(t, def.Relations, 1)
	assert.Equal(t, BelongsTo, def.Relations[0].Kind)
}

func TestParseBytesRejectsUnknownFields(t *testing.T) {
	data := []byte(`
name: Post
atributes:
  - name: title
    type: string
`)

	_, err := ParseBytes(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown/misspelled")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr string
	}{
		{
			name:    "missing name",
			def:     Definition{Attributes: []Attribute{{Name: "a", Type: "string"}}},
			wantErr: "model name is required",
		},
		{
			name:    "no attributes",
			def:     Definition{Name: "User"},
			wantErr: "at least one attribute",
		},
		{
			name: "unknown type",
			def: Definition{Name: "User", Attributes: []Attribute{
				{Name: "a", Type: "varchar"},
			}},
			wantErr: `unknown attribute type "varchar"`,
		},
		{
			name: "enum without values",
			def: Definition{Name: "User", Attributes: []Attribute{
				{Name: "role", Type: "enum"},
			}},
			wantErr: "non-empty ordered tuple",
		},
		{
			name: "enum values on non-enum",
			def: Definition{Name: "User", Attributes: []Attribute{
				{Name: "a", Type: "string", EnumValues: []string{"x"}},
			}},
			wantErr: "only valid for type enum",
		},
		{
			name: "duplicate attribute",
			def: Definition{Name: "User", Attributes: []Attribute{
				{Name: "email", Type: "string"},
				{Name: "Email", Type: "string"},
			}},
			wantErr: `duplicate attribute "email"`,
		},
		{
			name: "unknown relation kind",
			def: Definition{Name: "User",
				Attributes: []Attribute{{Name: "a", Type: "string"}},
				Relations:  []Relation{{Name: "posts", Kind: "has_lots", Model: "Post"}},
			},
			wantErr: `unknown relation kind "has_lots"`,
		},
		{
			name: "table not snake case",
			def: Definition{Name: "User", Table: "UserTable",
				Attributes: []Attribute{{Name: "a", Type: "string"}},
			},
			wantErr: "not lower_snake_case",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	writeModel := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	writeModel("user.qb.yml", "name: User\nattributes:\n  - name: name\n    type: string\n")
	writeModel("post.qb.yml", "name: Post\nattributes:\n  - name: title\n    type: string\n")
	writeModel("readme.txt", "not a model")

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	// Sorted file order: post before user.
	defs := reg.All()
	assert.Equal(t, "Post", defs[0].Name)
	assert.Equal(t, "User", defs[1].Name)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	def := &Definition{Name: "User", Attributes: []Attribute{{Name: "a", Type: "string"}}}
	require.NoError(t, reg.Register(def))
	require.Error(t, reg.Register(def))
}
