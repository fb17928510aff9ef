package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/tutorbot/internal/ai"
	"github.com/example/tutorbot/internal/config"
	"github.com/example/tutorbot/internal/correction"
	"github.com/example/tutorbot/internal/database"
	"github.com/example/tutorbot/internal/excel"
	"github.com/example/tutorbot/internal/lessons"
	"github.com/example/tutorbot/internal/session"
	"github.com/example/tutorbot/pkg/models"
)

// Store is what the commands need from a profile store
type Store interface {
	session.ProfileStore
	session.ProfileLister
	Stalled(ctx context.Context, before time.Time) ([]*models.UserProfile, error)
	CountByLevel(ctx context.Context) (map[models.Level]int, error)
}

// Backend is an opened profile store with its optional capabilities
type Backend struct {
	Store Store
	// Backup is nil for stores that are not backed up by the scheduler
	Backup interface {
		Backup(ctx context.Context, dir string) (string, error)
	}
	Close func() error
}

// openStore opens the configured profile store, migrating SQL databases when enabled
func openStore(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (*Backend, error) {
	switch cfg.Backend {
	case "memory":
		return &Backend{Store: session.NewMemoryStore(), Close: func() error { return nil }}, nil
	case "xlsx":
		store := excel.NewProfileStore(cfg.WorkbookPath)
		return &Backend{Store: store, Backup: store, Close: func() error { return nil }}, nil
	case "sql":
		db, err := database.Open(ctx, database.Config{Driver: cfg.DBType, DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			applied, err := database.Migrate(ctx, db)
			if err != nil {
				db.Close()
				return nil, err
			}
			for _, m := range applied {
				log.Info("migration applied", slog.Int64("version", m.Version), slog.String("path", m.Path))
			}
		}
		return &Backend{Store: database.NewProfileStore(db), Close: db.Close}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// newProvider returns the correction provider for the configured AI service
func newProvider(cfg config.AIConfig) (correction.Provider, error) {
	switch cfg.Provider {
	case "groq":
		return ai.NewChatGPT(cfg.APIKey, orDefault(cfg.BaseURL, ai.GroqURL), cfg.Model), nil
	case "openai":
		return ai.NewChatGPT(cfg.APIKey, orDefault(cfg.BaseURL, ai.OpenAIURL), cfg.Model), nil
	case "anthropic":
		return ai.NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// newLocker returns the per-user lock and a function releasing its resources
func newLocker(cfg config.LockConfig) (session.Locker, func() error, error) {
	switch cfg.Backend {
	case "memory":
		return session.NewKeyedLocker(), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return session.NewRedisLocker(client, cfg.TTL), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

// lockMargin covers the store round trips around a correction
const lockMargin = 10 * time.Second

// lockTTL keeps a distributed lock alive for at least the slowest possible exchange
func lockTTL(configured time.Duration, gw correction.Config) time.Duration {
	return max(configured, gw.MaxDuration()+lockMargin)
}

// loadCatalog loads the configured lesson catalog or the built-in one
func loadCatalog(cfg config.LessonsConfig) (*lessons.Catalog, error) {
	if cfg.CatalogPath == "" {
		return lessons.Default()
	}
	return lessons.LoadFile(cfg.CatalogPath)
}

// boundedLocker caps how long an exchange waits for a busy learner
type boundedLocker struct {
	session.Locker
	wait time.Duration
}

func (l boundedLocker) Lock(ctx context.Context, userID string) (func(), error) {
	if l.wait <= 0 {
		return l.Locker.Lock(ctx, userID)
	}
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	return l.Locker.Lock(waitCtx, userID)
}

// newOrchestrator wires the orchestrator from configuration
func newOrchestrator(cfg *config.Config, store session.ProfileStore, log *slog.Logger) (*session.Orchestrator, *lessons.Selector, func() error, error) {
	catalog, err := loadCatalog(cfg.Lessons)
	if err != nil {
		return nil, nil, nil, err
	}
	provider, err := newProvider(cfg.AI)
	if err != nil {
		return nil, nil, nil, err
	}
	gwConfig := correction.Config{
		Timeout:    cfg.Correction.Timeout,
		MaxRetries: cfg.Correction.MaxRetries,
		BaseDelay:  cfg.Correction.BaseDelay,
	}
	lockConfig := cfg.Lock
	lockConfig.TTL = lockTTL(cfg.Lock.TTL, gwConfig)
	locker, closeLocker, err := newLocker(lockConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	gateway := correction.NewGateway(provider, gwConfig, log)
	selector := lessons.NewSelector(catalog)
	o := session.NewOrchestrator(store, selector, gateway,
		boundedLocker{Locker: locker, wait: cfg.Lock.WaitTimeout}, log)
	return o, selector, closeLocker, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
