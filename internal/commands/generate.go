package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacksjs/qb/internal/config"
	"github.com/stacksjs/qb/internal/dialect"
	"github.com/stacksjs/qb/internal/migration"
	"github.com/stacksjs/qb/internal/model"
	"github.com/stacksjs/qb/internal/output"
	"github.com/stacksjs/qb/internal/plan"
	"github.com/stacksjs/qb/internal/qerr"
	"github.com/stacksjs/qb/internal/snapshot"
)

// GenerateCmd creates the generate command.
func GenerateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate schema migrations from model definitions",
		Long: `Builds the migration plan from the model set, diffs it against the last
accepted snapshot, and writes migration files to database/migrations.

With --dry-run the op stream is printed and nothing is written.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runGenerate(".", dryRun); err != nil {
				output.Error(err.Error())
				if qerr.KindOf(err) == qerr.KindUnresolvableDiff {
					os.Exit(2)
				}
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the generated migrations without writing files")

	return cmd
}

func runGenerate(workspace string, dryRun bool) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	d, err := cfg.Dialect()
	if err != nil {
		return err
	}
	output.Verbose(fmt.Sprintf("dialect: %s", d))

	reg, err := model.LoadDir(cfg.ModelsDir)
	if err != nil {
		return err
	}
	output.Verbose(fmt.Sprintf("loaded %d model(s) from %s", reg.Len(), cfg.ModelsDir))

	current, err := plan.Build(reg, d)
	if err != nil {
		return err
	}

	store := snapshot.NewStore(cfg.Workspace)

	// The content hash short-circuits diffing when nothing changed.
	hash, err := snapshot.Hash(current)
	if err != nil {
		return err
	}
	if stored := store.LoadHash(d); stored != "" && stored == hash {
		output.Info("No schema changes")
		return nil
	}

	previous, err := store.Load(d)
	if err != nil {
		return err
	}

	ops, err := plan.Diff(previous, current)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		output.Info("No schema changes")
		return store.Save(d, current)
	}

	drv, err := dialect.New(d)
	if err != nil {
		return err
	}

	if dryRun {
		files := migration.Render(ops, drv, current, time.Now())
		output.Info(fmt.Sprintf("Would write %d migration file(s):", len(files)))
		for _, f := range files {
			output.Step(f.Name)
			fmt.Print(f.SQL)
		}
		return nil
	}

	files, err := migration.Write(ops, drv, current, cfg.MigrationsDir(), time.Now())
	if err != nil {
		return err
	}
	for _, f := range files {
		output.Step(f.Name)
	}

	if err := store.Save(d, current); err != nil {
		return err
	}

	output.Success(fmt.Sprintf("Generated %d migration file(s)", len(files)))
	return nil
}
