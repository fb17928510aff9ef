package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/tutorbot/internal/bot"
	"github.com/example/tutorbot/internal/logger"
	"github.com/example/tutorbot/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	backend, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open profile store: %w", err)
	}
	defer backend.Close()

	orchestrator, selector, closeLocker, err := newOrchestrator(cfg, backend.Store, log)
	if err != nil {
		return err
	}
	defer closeLocker()
	log.Info("lesson catalog loaded", slog.Int("lessons", selector.Catalog().Len()))

	b, err := bot.New(bot.FromAppConfig(cfg.Telegram), orchestrator, backend.Store, log.With(slog.String("component", "bot")))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})

	if cfg.Scheduler.Enabled {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.ReminderEvery = cfg.Scheduler.ReminderEvery
		schedCfg.IdleAfter = cfg.Scheduler.IdleAfter
		schedCfg.StartHour = cfg.Scheduler.StartHour
		schedCfg.EndHour = cfg.Scheduler.EndHour
		schedCfg.BackupEvery = cfg.Scheduler.BackupEvery
		schedCfg.BackupDir = cfg.Storage.BackupDir

		sched := scheduler.New(schedCfg, backend.Store, b, selector, backend.Backup, log.With(slog.String("component", "scheduler")))
		if err := sched.Start(); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			sched.Stop()
			return nil
		})
	}

	log.Info("tutorbot started", slog.String("storage", cfg.Storage.Backend), slog.String("ai_provider", cfg.AI.Provider))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("tutorbot stopped")
	return nil
}
