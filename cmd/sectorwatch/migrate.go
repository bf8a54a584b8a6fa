package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and load the seed file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := initLogger(cfg.Logging, cmd.ErrOrStderr())

		if cfg.Database.Driver == "memory" {
			logger.Info("memory driver has no schema, nothing to migrate")
			return nil
		}

		// opening a SQL store migrates it and applies seed_file
		st, err := openStore(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		logger.Info("migrations applied", "driver", cfg.Database.Driver)
		return nil
	},
}
