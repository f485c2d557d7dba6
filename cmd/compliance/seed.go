package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/terminal-bench/fleetcompliance/internal/models"
	"github.com/terminal-bench/fleetcompliance/internal/store/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load route fixtures",
	Long:  "Upserts routes from a YAML fixture, or the built-in reference routes when --file is not given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		var routes []models.Route
		if file != "" {
			routes, err = seed.LoadFile(file)
		} else {
			routes, err = seed.Default()
		}
		if err != nil {
			return err
		}

		s, err := openStore(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := seed.Apply(cmd.Context(), s, routes)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"routes": n, "file": file}).Info("routes seeded")
		return nil
	},
}

func init() {
	seedCmd.Flags().StringP("file", "f", "", "YAML route fixture")
	rootCmd.AddCommand(seedCmd)
}
