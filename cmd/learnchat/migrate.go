package main

import (
	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/spf13/cobra"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if migrateDown {
			return repository.RollbackDB(db, log)
		}
		return repository.MigrateDB(db, log)
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back every migration instead")
}
