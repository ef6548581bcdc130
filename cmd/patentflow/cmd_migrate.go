package main

import (
	"errors"

	"github.com/spf13/cobra"

	"patentflow/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the run registry and LLM audit schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.PostgresURL == "" {
			return errors.New("PATENTFLOW_POSTGRES_URL is not set")
		}
		db, err := storage.NewDB(cmd.Context(), cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}
