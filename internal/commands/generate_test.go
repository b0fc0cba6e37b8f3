package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksjs/qb/internal/qerr"
)

func setupWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "models"), 0o755))
	return ws
}

func writeUserModel(t *testing.T, ws string, extraAttrs string) {
	t.Helper()
	content := `name: User
attributes:
  - name: name
    type: string
  - name: email
    type: string
    unique: true
` + extraAttrs
	require.NoError(t, os.WriteFile(filepath.Join(ws, "models", "user.qb.yml"), []byte(content), 0o644))
}

func migrationFiles(t *testing.T, ws string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(ws, "database", "migrations"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestGenerateFirstMigration(t *testing.T) {
	ws := setupWorkspace(t)
	writeUserModel(t, ws, "")

	require.NoError(t, runGenerate(ws, false))

	files := migrationFiles(t, ws)
	require.Len(t, files, 2)
	assert.Contains(t, files[0], "-001-create-users.sql")
	assert.Contains(t, files[1], "-002-index-users_email_unique.sql")

	data, err := os.ReadFile(filepath.Join(ws, "database", "migrations", files[0]))
	require.NoError(t, err)
	assert.Contains(t, string(data), `CREATE TABLE "users"`)
	assert.Contains(t, string(data), `"id" serial PRIMARY KEY`)

	// The snapshot is written alongside.
	_, err = os.Stat(filepath.Join(ws, ".qb", "model-snapshot.postgres.json"))
	assert.NoError(t, err)
}

func TestGenerateIsStableWhenNothingChanged(t *testing.T) {
	ws := setupWorkspace(t)
	writeUserModel(t, ws, "")

	require.NoError(t, runGenerate(ws, false))
	before := migrationFiles(t, ws)

	// The hash short-circuit means no new files on the second run.
	require.NoError(t, runGenerate(ws, false))
	assert.Equal(t, before, migrationFiles(t, ws))
}

func TestGenerateIncrementalAlter(t *testing.T) {
	ws := setupWorkspace(t)
	writeUserModel(t, ws, "")
	require.NoError(t, runGenerate(ws, false))

	writeUserModel(t, ws, `  - name: age
    type: integer
    nullable: true
`)
	require.NoError(t, runGenerate(ws, false))

	files := migrationFiles(t, ws)
	require.Len(t, files, 3)

	var alter string
	for _, f := range files {
		if strings.Contains(f, "-alter-users.sql") {
			alter = f
		}
	}
	require.NotEmpty(t, alter, "expected an alter migration, got %v", files)

	data, err := os.ReadFile(filepath.Join(ws, "database", "migrations", alter))
	require.NoError(t, err)
	assert.Contains(t, string(data), `ADD COLUMN "age" integer;`)
}

func TestGenerateUnresolvableDiff(t *testing.T) {
	ws := setupWorkspace(t)
	writeUserModel(t, ws, "")
	require.NoError(t, runGenerate(ws, false))

	// A non-null column without a default cannot be added safely.
	writeUserModel(t, ws, `  - name: age
    type: integer
`)
	err := runGenerate(ws, false)
	require.Error(t, err)
	assert.Equal(t, qerr.KindUnresolvableDiff, qerr.KindOf(err))
}

func TestGenerateDryRunWritesNothing(t *testing.T) {
	ws := setupWorkspace(t)
	writeUserModel(t, ws, "")

	require.NoError(t, runGenerate(ws, true))

	assert.Empty(t, migrationFiles(t, ws))
	_, err := os.Stat(filepath.Join(ws, ".qb", "model-snapshot.postgres.json"))
	assert.True(t, os.IsNotExist(err))
}
