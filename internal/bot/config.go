package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/tutorbot/internal/config"
)

// Config represents the configuration for the bot
type Config struct {
	Token string
	// APIEndpoint is the Bot API URL template, with placeholders for the token and method
	APIEndpoint string
	// Long polling timeout in seconds
	UpdateTimeout int
	Debug         bool
	AdminUserIDs  map[int64]bool
}

// DefaultConfig returns the default bot configuration for token
func DefaultConfig(token string) Config {
	return Config{
		Token:         token,
		APIEndpoint:   tgbotapi.APIEndpoint,
		UpdateTimeout: 60,
		AdminUserIDs:  map[int64]bool{},
	}
}

// FromAppConfig builds the bot configuration from the application settings
func FromAppConfig(c config.TelegramConfig) Config {
	cfg := DefaultConfig(c.Token)
	if c.UpdateTimeout > 0 {
		cfg.UpdateTimeout = c.UpdateTimeout
	}
	cfg.Debug = c.Debug
	cfg.AdminUserIDs = c.AdminUserIDs()
	return cfg
}
