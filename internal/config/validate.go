package config

import (
	"fmt"
	"slices"
)

// Default models per provider
const (
	DefaultGroqModel      = "llama-3.1-70b-versatile"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Validate checks enums and ranges and fills provider-dependent defaults.
// Load calls it automatically.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"sql", "xlsx", "memory"}, c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be sql, xlsx or memory (got %q)", c.Storage.Backend)
	}
	if c.Storage.Backend == "sql" && !slices.Contains([]string{"sqlite3", "postgres"}, c.Storage.DBType) {
		return fmt.Errorf("storage.db_type must be sqlite3 or postgres (got %q)", c.Storage.DBType)
	}

	switch c.AI.Provider {
	case "groq":
		c.AI.Model = orDefault(c.AI.Model, DefaultGroqModel)
	case "openai":
		c.AI.Model = orDefault(c.AI.Model, DefaultOpenAIModel)
	case "anthropic":
		c.AI.Model = orDefault(c.AI.Model, DefaultAnthropicModel)
	default:
		return fmt.Errorf("ai.provider must be groq, openai or anthropic (got %q)", c.AI.Provider)
	}

	if c.Correction.Timeout <= 0 {
		return fmt.Errorf("correction.timeout must be > 0 (got %v)", c.Correction.Timeout)
	}
	if c.Correction.MaxRetries < 0 {
		return fmt.Errorf("correction.max_retries must be >= 0 (got %d)", c.Correction.MaxRetries)
	}

	if !slices.Contains([]string{"memory", "redis"}, c.Lock.Backend) {
		return fmt.Errorf("lock.backend must be memory or redis (got %q)", c.Lock.Backend)
	}

	if err := c.Scheduler.validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn or error (got %q)", c.Log.Level)
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 0 || s.EndHour > 23 {
		return fmt.Errorf("notification hours must be within 0-23 (got %d-%d)", s.StartHour, s.EndHour)
	}
	if s.StartHour > s.EndHour {
		return fmt.Errorf("start_hour %d is after end_hour %d", s.StartHour, s.EndHour)
	}
	return nil
}

// RequireTelegram reports an error if the bot token is missing
func (c *Config) RequireTelegram() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
