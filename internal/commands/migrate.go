package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stacksjs/qb/internal/config"
	"github.com/stacksjs/qb/internal/db"
	"github.com/stacksjs/qb/internal/dialect"
	"github.com/stacksjs/qb/internal/migration"
	"github.com/stacksjs/qb/internal/model"
	"github.com/stacksjs/qb/internal/output"
	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/snapshot"
)

// MigrateCmd creates the migrate command with subcommands.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Apply generated migrations against the configured database.

Examples:
  qb migrate up      # Apply pending migrations
  qb migrate status  # List migrations with applied markers
  qb migrate fresh   # Drop everything and clear migration state`,
	}

	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateStatusCmd())
	cmd.AddCommand(migrateFreshCmd())

	return cmd
}

// session bundles the objects every migrate subcommand needs.
type session struct {
	cfg     *config.Config
	dialect plan.Dialect
	driver  dialect.Driver
	sql     *db.SQL
	runner  *migration.Runner
}

func openSession(workspace string) (*session, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	d, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	drv, err := dialect.New(d)
	if err != nil {
		return nil, err
	}
	handle, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	output.Verbose(fmt.Sprintf("database: %s", cfg.MaskedDSN()))

	return &session{
		cfg:     cfg,
		dialect: d,
		driver:  drv,
		sql:     handle,
		runner:  migration.NewRunner(handle, drv, cfg.MigrationsDir()),
	}, nil
}

func (s *session) close() {
	s.sql.Close()
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runMigrateUp("."); err != nil {
				output.Error(err.Error())
				os.Exit(1)
			}
		},
	}
}

func runMigrateUp(workspace string) error {
	s, err := openSession(workspace)
	if err != nil {
		return err
	}
	defer s.close()

	ran, err := s.runner.Apply(context.Background())
	if err != nil {
		return err
	}
	if len(ran) == 0 {
		output.Info("No pending migrations")
		return nil
	}
	output.Success(fmt.Sprintf("Applied %d migration(s)", len(ran)))
	return nil
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations with applied markers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runMigrateStatus("."); err != nil {
				output.Error(err.Error())
				os.Exit(1)
			}
		},
	}
}

func runMigrateStatus(workspace string) error {
	s, err := openSession(workspace)
	if err != nil {
		return err
	}
	defer s.close()

	statuses, err := s.runner.StatusList(context.Background())
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		output.Info("No migrations found")
		return nil
	}

	output.Info(fmt.Sprintf("Found %d migration(s):", len(statuses)))
	for _, st := range statuses {
		marker := "pending"
		if st.Applied {
			marker = "applied"
		} else if st.Transient {
			marker = "transient"
		}
		output.Step(fmt.Sprintf("%-9s %s", marker, st.File))
	}
	return nil
}

func migrateFreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fresh",
		Short: "Drop all tables, enum types, and migration state",
		Long: `Drops the migrations table, every application table in reverse dependency
order, and any enum types, then deletes migration files and the snapshot.
Each drop runs on a fresh connection scope.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runMigrateFresh("."); err != nil {
				output.Error(err.Error())
				os.Exit(1)
			}
		},
	}
}

func runMigrateFresh(workspace string) error {
	s, err := openSession(workspace)
	if err != nil {
		return err
	}
	defer s.close()

	store := snapshot.NewStore(s.cfg.Workspace)
	p, err := store.Load(s.dialect)
	if err != nil {
		return err
	}
	if p == nil {
		// No snapshot: rebuild the plan from the models so drops still
		// happen in reverse dependency order.
		reg, err := model.LoadDir(s.cfg.ModelsDir)
		if err != nil {
			return err
		}
		p, err = plan.Build(reg, s.dialect)
		if err != nil {
			return err
		}
	}

	if err := s.runner.Reset(context.Background(), p); err != nil {
		return err
	}
	if err := store.Remove(s.dialect); err != nil {
		return err
	}

	output.Success("Database reset")
	return nil
}
