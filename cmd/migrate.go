package cmd

import (
	"example.com/backstage/services/fleet/repository"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := repository.Connect(cfg.DB)
		if err != nil {
			return err
		}
		defer func() {
			if err := repository.Close(db); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}()

		return repository.AutoMigrate(db)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
