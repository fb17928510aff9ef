package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/tutorbot/internal/database"
	"github.com/example/tutorbot/internal/logger"
	"github.com/example/tutorbot/pkg/models"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Backend != "sql" {
				return fmt.Errorf("migrate needs the sql storage backend (got %q)", cfg.Storage.Backend)
			}
			log := logger.New(cfg.Log)

			db, err := database.Open(cmd.Context(), database.Config{Driver: cfg.Storage.DBType, DSN: cfg.Storage.DSN})
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			for _, m := range applied {
				log.Info("migration applied", slog.Int64("version", m.Version), slog.String("path", m.Path))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", len(applied))
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many learners are at each level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.NewWithWriter(cfg.Log, cmd.ErrOrStderr())

			backend, err := openStore(cmd.Context(), cfg.Storage, log)
			if err != nil {
				return err
			}
			defer backend.Close()

			counts, err := backend.Store.CountByLevel(cmd.Context())
			if err != nil {
				return err
			}
			total := 0
			for _, level := range models.Levels {
				total += counts[level]
				fmt.Fprintf(cmd.OutOrStdout(), "%-13s %d\n", level, counts[level])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-13s %d\n", "total", total)
			return nil
		},
	}
}
