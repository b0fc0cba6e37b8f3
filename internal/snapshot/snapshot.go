// Package snapshot persists the last accepted migration plan per dialect.
// The stored plan is the diff baseline for the next generate run.
package snapshot

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/stacksjs/qb/internal/output"
	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/qerr"
)

// Envelope is the on-disk snapshot format.
type Envelope struct {
	Plan      *plan.Plan   `json:"plan"`
	Hash      string       `json:"hash"`
	Dialect   plan.Dialect `json:"dialect"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Store reads and writes snapshots under <workspace>/.qb.
type Store struct {
	workspace string
	now       func() time.Time
}

// NewStore creates a store rooted at the workspace directory.
func NewStore(workspace string) *Store {
	return &Store{workspace: workspace, now: time.Now}
}

// NewStoreAt creates a store with an injected clock, for tests.
func NewStoreAt(workspace string, now func() time.Time) *Store {
	return &Store{workspace: workspace, now: now}
}

// Path returns the snapshot file location for a dialect.
func (s *Store) Path(d plan.Dialect) string {
	return filepath.Join(s.workspace, ".qb", fmt.Sprintf("model-snapshot.%s.json", d))
}

// legacyPath is the pre-.qb location, consulted once and deleted on the
// next save.
func (s *Store) legacyPath(d plan.Dialect) string {
	return filepath.Join(s.workspace, fmt.Sprintf("model-snapshot.%s.json", d))
}

// Load returns the last accepted plan for a dialect, or nil if none exists.
// A structurally invalid file is treated as absent with a warning; the next
// generate rebuilds the baseline from scratch.
func (s *Store) Load(d plan.Dialect) (*plan.Plan, error) {
	path := s.Path(d)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		path = s.legacyPath(d)
		data, err = os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	env, err := decode(data, d)
	if err != nil {
		output.Warn(fmt.Sprintf("ignoring corrupt snapshot %s: %v", path, err))
		return nil, nil
	}
	return env.Plan, nil
}

// LoadHash returns the stored content hash, or "" when no snapshot exists.
func (s *Store) LoadHash(d plan.Dialect) string {
	data, err := os.ReadFile(s.Path(d))
	if err != nil {
		return ""
	}
	env, err := decode(data, d)
	if err != nil {
		return ""
	}
	return env.Hash
}

func decode(data []byte, d plan.Dialect) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, qerr.SnapshotCorrupt("snapshot", err)
	}
	if env.Plan == nil {
		return nil, qerr.SnapshotCorrupt("snapshot", fmt.Errorf("missing plan"))
	}
	if env.Dialect != d || env.Plan.Dialect != d {
		return nil, qerr.SnapshotCorrupt("snapshot", fmt.Errorf("dialect mismatch: %s", env.Dialect))
	}
	if env.Plan.SchemaVersion != plan.SchemaVersion {
		return nil, qerr.SnapshotCorrupt("snapshot", fmt.Errorf("schema version %d, want %d", env.Plan.SchemaVersion, plan.SchemaVersion))
	}
	return &env, nil
}

// Save atomically writes the snapshot (write-to-temp, rename) so an
// interrupt never leaves a half-written baseline, and removes the legacy
// location if present.
func (s *Store) Save(d plan.Dialect, p *plan.Plan) error {
	hash, err := Hash(p)
	if err != nil {
		return err
	}

	env := Envelope{
		Plan:      p,
		Hash:      hash,
		Dialect:   d,
		UpdatedAt: s.now().UTC(),
	}
	data, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.Path(d))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "model-snapshot.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(d)); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	os.Remove(s.legacyPath(d))
	return nil
}

// Remove deletes the snapshot for a dialect, used by reset.
func (s *Store) Remove(d plan.Dialect) error {
	if err := os.Remove(s.Path(d)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	os.Remove(s.legacyPath(d))
	return nil
}

// Hash computes the 64-bit content hash over the plan's canonical JSON,
// hex-encoded. Equal plans hash equal; the hash short-circuits diffing.
func Hash(p *plan.Plan) (string, error) {
	data, err := p.MarshalCanonical()
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
