package main

import (
	"fmt"

	"github.com/emmanuel-dcoder/teevil-api/internal/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var withCollaborators bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.NewDB(&cfg.Database)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if withCollaborators {
				if err := database.MigrateCollaborators(db); err != nil {
					return fmt.Errorf("migrate collaborators: %w", err)
				}
			}
			log.Info().Str("driver", cfg.Database.Driver).Bool("collaborators", withCollaborators).Msg("migration complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withCollaborators, "with-collaborators", false, "also create users and jobs tables (local development)")
	return cmd
}
