package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry holds a set of model definitions keyed by model name, preserving
// registration order. The plan builder consumes a Registry; how definitions
// get in (file discovery, programmatic registration) is the caller's concern.
type Registry struct {
	order []string
	defs  map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. Registering the same model name twice is an
// error; redefinition is almost always a loader bug.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("cannot register unnamed model")
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("model %q is already registered", def.Name)
	}
	r.order = append(r.order, def.Name)
	r.defs[def.Name] = def
	return nil
}

// Get returns the definition for a model name, or nil.
func (r *Registry) Get(name string) *Definition {
	return r.defs[name]
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.order)
}

// All returns definitions in registration order.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// LoadDir discovers *.qb.yml files in dir, parses and validates each, and
// returns a populated registry. Files are visited in sorted name order so
// registration order is stable across runs.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".qb.yml") || strings.HasSuffix(entry.Name(), ".qb.yaml") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	reg := NewRegistry()
	for _, name := range files {
		path := filepath.Join(dir, name)
		def, err := Parse(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return reg, nil
}
