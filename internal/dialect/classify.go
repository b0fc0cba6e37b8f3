package dialect

import "github.com/stacksjs/qb/internal/plan"

// Kind names the migration file kind an op belongs to. It becomes the third
// segment of the migration filename and drives the executor's partitioning.
func Kind(op plan.Op) string {
	switch op.(type) {
	case plan.CreateTable:
		return "create"
	case plan.DropTable:
		return "drop"
	case plan.AddColumn, plan.DropColumn, plan.AlterColumn:
		return "alter"
	case plan.AddIndex, plan.DropIndex:
		return "index"
	case plan.AddForeignKey, plan.DropForeignKey:
		return "fk"
	case plan.CreateEnum, plan.DropEnum, plan.AlterEnum:
		return "enum"
	default:
		return "alter"
	}
}

// Permanent reports whether an op yields a permanent migration: recorded in
// the tracking table once applied and never replayed. Column and FK changes
// are transient: executed unconditionally and deleted on success.
func Permanent(op plan.Op) bool {
	switch Kind(op) {
	case "create", "drop", "index", "enum":
		return true
	default:
		return false
	}
}

// Subject names the object an op concerns, used in the migration filename.
func Subject(op plan.Op) string {
	switch o := op.(type) {
	case plan.CreateTable:
		return o.Table.Name
	case plan.DropTable:
		return o.Name
	case plan.AddColumn:
		return o.Table
	case plan.DropColumn:
		return o.Table
	case plan.AlterColumn:
		return o.Table
	case plan.AddIndex:
		return o.Index.Name
	case plan.DropIndex:
		return o.Name
	case plan.AddForeignKey:
		return o.Table
	case plan.DropForeignKey:
		return o.Table
	case plan.CreateEnum:
		return o.Enum.Name
	case plan.DropEnum:
		return o.Name
	case plan.AlterEnum:
		return o.Name
	default:
		return "schema"
	}
}
