// Package migration turns plan operations into SQL migration files and
// applies them through an injected executor, tracking progress in a
// bootstrap table.
package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stacksjs/qb/internal/dialect"
	"github.com/stacksjs/qb/internal/plan"
)

// File describes one written migration file.
type File struct {
	Name      string
	Path      string
	Permanent bool
	SQL       string
}

// Write renders the op stream into migration files under dir. Filenames are
// <UTC-yyyymmddHHmmss>-<seq>-<kind>-<subject>.sql so lexical order equals
// execution order. Consecutive ops of the same kind and subject merge into
// one file. The result is deterministic for a given (ops, dialect, now).
func Write(ops []plan.Op, drv dialect.Driver, p *plan.Plan, dir string, now time.Time) ([]File, error) {
	files := Render(ops, drv, p, now)
	if err := RenderErr(ops, drv, p); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	for i := range files {
		files[i].Path = filepath.Join(dir, files[i].Name)
		if err := os.WriteFile(files[i].Path, []byte(files[i].SQL), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write migration %s: %w", files[i].Name, err)
		}
	}

	return files, nil
}

// Render produces the file set without touching the filesystem, for
// dry runs and tests.
func Render(ops []plan.Op, drv dialect.Driver, p *plan.Plan, now time.Time) []File {
	ts := now.UTC().Format("20060102150405")

	var files []File
	seq := 0

	for _, group := range groupOps(ops) {
		var stmts []string
		for _, op := range group {
			sqlText, err := drv.RenderOp(op, p)
			if err != nil || sqlText == "" {
				continue
			}
			stmts = append(stmts, sqlText)
		}
		if len(stmts) == 0 {
			continue
		}

		kind := dialect.Kind(group[0])
		body := strings.Join(stmts, "\n")

		// Sequences that drop or alter tables run under the dialect's FK
		// guard to avoid ordering failures.
		if kind == "drop" || kind == "alter" {
			disable, enable := drv.ForeignKeyGuard()
			if disable != "" {
				body = disable + "\n" + body + "\n" + enable
			}
		}

		seq++
		files = append(files, File{
			Name:      fmt.Sprintf("%s-%03d-%s-%s.sql", ts, seq, kind, dialect.Subject(group[0])),
			Permanent: dialect.Permanent(group[0]),
			SQL:       body + "\n",
		})
	}

	return files
}

// RenderErr surfaces the first render error in the op stream; Render itself
// skips unrenderable ops so the file set stays deterministic.
func RenderErr(ops []plan.Op, drv dialect.Driver, p *plan.Plan) error {
	for _, op := range ops {
		if _, err := drv.RenderOp(op, p); err != nil {
			return err
		}
	}
	return nil
}

// groupOps merges consecutive ops of the same kind and subject so that, for
// example, several column changes on one table land in one alter file.
func groupOps(ops []plan.Op) [][]plan.Op {
	var groups [][]plan.Op
	for _, op := range ops {
		n := len(groups)
		if n > 0 {
			last := groups[n-1][0]
			if dialect.Kind(last) == dialect.Kind(op) && dialect.Subject(last) == dialect.Subject(op) {
				groups[n-1] = append(groups[n-1], op)
				continue
			}
		}
		groups = append(groups, []plan.Op{op})
	}
	return groups
}
