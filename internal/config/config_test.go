package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksjs/qb/internal/plan"
)

func TestLoadDefaults(t *testing.T) {
	ws := t.TempDir()

	cfg, err := Load(ws)
	require.NoError(t, err)

	d, err := cfg.Dialect()
	require.NoError(t, err)
	assert.Equal(t, plan.Postgres, d)
	assert.Equal(t, filepath.Join(ws, "models"), cfg.ModelsDir)
	assert.Equal(t, filepath.Join(ws, "database", "migrations"), cfg.MigrationsDir())
}

func TestLoadFromFile(t *testing.T) {
	ws := t.TempDir()
	content := `
database:
  driver: mysql
  host: localhost
  port: 3306
  name: app
  user: root
  password: secret
models:
  dir: app/models
`
	require.NoError(t, os.WriteFile(filepath.Join(ws, "qb.yml"), []byte(content), 0o644))

	cfg, err := Load(ws)
	require.NoError(t, err)

	d, err := cfg.Dialect()
	require.NoError(t, err)
	assert.Equal(t, plan.MySQL, d)
	assert.Equal(t, filepath.Join(ws, "app", "models"), cfg.ModelsDir)

	dsn, err := cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t, "root:secret@tcp(localhost:3306)/app?multiStatements=true&parseTime=true", dsn)
	assert.NotContains(t, cfg.MaskedDSN(), "secret")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "qb.yml"), []byte("database:\n  driver: oracle\n"), 0o644))

	_, err := Load(ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		Workspace: ".",
		Driver:    "postgres",
		Host:      "db.internal",
		Port:      5432,
		Name:      "app",
		User:      "qb",
		Password:  "p@ss",
	}

	dsn, err := cfg.DSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestSQLiteDSNDefaultsToWorkspaceFile(t *testing.T) {
	cfg := &Config{Workspace: "/srv/app", Driver: "sqlite"}

	dsn, err := cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/app", "database", "qb.sqlite"), dsn)
}
