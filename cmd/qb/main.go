package main

import (
	"os"

	"github.com/stacksjs/qb/internal/commands"
)

func main() {
	rootCmd := commands.RootCmd()
	rootCmd.AddCommand(commands.GenerateCmd())
	rootCmd.AddCommand(commands.MigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
