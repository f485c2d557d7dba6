package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/terminal-bench/fleetcompliance/internal/store/sqlstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseDriver == "memory" {
			return errors.New("the memory driver has no schema to migrate")
		}

		s, err := sqlstore.Open(cmd.Context(), cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Migrate(cmd.Context()); err != nil {
			return err
		}
		log.WithField("driver", cfg.DatabaseDriver).Info("schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
