package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fescue/pkg/database"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations from DB_MIGRATION_FOLDER_PATH",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			db, err := database.Connect(ctx, databaseConfig(a.cfg), a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return a.migrate(db)
		},
	}
}

func (a *app) migrate(db database.DB) error {
	version := a.cfg.DatabaseMigrationVersion
	if version < 0 {
		version = 0
	}

	service := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(version),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})

	return service.MigratePostgres(db, a.cfg.DatabaseName)
}
