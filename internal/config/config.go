// Package config loads workspace configuration from qb.yml.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/stacksjs/qb/internal/plan"
)

// Config holds database connection information and workspace layout.
type Config struct {
	Workspace string

	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	ModelsDir string
}

// Load reads qb.yml from the workspace root. A missing file yields the
// defaults: postgres dialect, models under <workspace>/models. Environment
// variables prefixed QB_ override file values.
func Load(workspace string) (*Config, error) {
	cfg := &Config{
		Workspace: workspace,
		Driver:    "postgres",
		ModelsDir: filepath.Join(workspace, "models"),
	}

	v := viper.New()
	v.SetConfigName("qb")
	v.SetConfigType("yaml")
	v.AddConfigPath(workspace)

	v.AutomaticEnv()
	v.SetEnvPrefix("QB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if _, err := os.Stat(filepath.Join(workspace, "qb.yml")); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read qb.yml: %w", err)
		}
	}

	if driver := v.GetString("database.driver"); driver != "" {
		cfg.Driver = driver
	}
	cfg.Host = v.GetString("database.host")
	cfg.Port = v.GetInt("database.port")
	cfg.Name = v.GetString("database.name")
	cfg.User = v.GetString("database.user")
	cfg.Password = v.GetString("database.password")
	cfg.SSLMode = v.GetString("database.sslmode")

	if dir := v.GetString("models.dir"); dir != "" {
		if filepath.IsAbs(dir) {
			cfg.ModelsDir = dir
		} else {
			cfg.ModelsDir = filepath.Join(workspace, dir)
		}
	}

	if _, err := cfg.Dialect(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Dialect maps the configured driver name to a plan dialect.
func (c *Config) Dialect() (plan.Dialect, error) {
	switch c.Driver {
	case "postgres", "postgresql":
		return plan.Postgres, nil
	case "mysql":
		return plan.MySQL, nil
	case "sqlite", "sqlite3":
		return plan.SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", c.Driver)
	}
}

// MigrationsDir returns <workspace>/database/migrations.
func (c *Config) MigrationsDir() string {
	return filepath.Join(c.Workspace, "database", "migrations")
}

// DSN builds the driver-specific connection string.
func (c *Config) DSN() (string, error) {
	d, err := c.Dialect()
	if err != nil {
		return "", err
	}
	switch d {
	case plan.Postgres:
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   c.Name,
		}
		query := url.Values{}
		query.Set("sslmode", sslmode)
		u.RawQuery = query.Encode()
		return u.String(), nil
	case plan.MySQL:
		// multiStatements lets one migration file carry several statements.
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?multiStatements=true&parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Name), nil
	default:
		if c.Name == "" {
			return filepath.Join(c.Workspace, "database", "qb.sqlite"), nil
		}
		return c.Name, nil
	}
}

// MaskedDSN is the DSN with the password replaced, for verbose output.
func (c *Config) MaskedDSN() string {
	dsn, err := c.DSN()
	if err != nil {
		return ""
	}
	if c.Password != "" {
		return strings.ReplaceAll(dsn, c.Password, "****")
	}
	return dsn
}
