// Package bot connects the tutoring orchestrator to Telegram. Every text
// message is one exchange: the learner's Telegram id is the user id and the
// orchestrator's reply is sent back to the same chat.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/tutorbot/pkg/models"
)

// MessageHandler runs one exchange for a learner
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, text string) (string, error)
}

// StatsSource reports how many learners sit at each level
type StatsSource interface {
	CountByLevel(ctx context.Context) (map[models.Level]int, error)
}

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Bot represents the Telegram bot application
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     Config
	handler MessageHandler
	stats   StatsSource
	log     *slog.Logger

	wg sync.WaitGroup
}

// New authorizes against the Bot API. stats may be nil, which disables /stats.
func New(cfg Config, handler MessageHandler, stats StatsSource, log *slog.Logger) (*Bot, error) {
	return newWithClient(cfg, handler, stats, log, &http.Client{})
}

func newWithClient(cfg Config, handler MessageHandler, stats StatsSource, log *slog.Logger, client tgbotapi.HTTPClient) (*Bot, error) {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	api.Debug = cfg.Debug
	log.Info("authorized on telegram", slog.String("account", api.Self.UserName))

	return &Bot{
		api:     api,
		cfg:     cfg,
		handler: handler,
		stats:   stats,
		log:     log,
	}, nil
}

// Run polls for updates until ctx is done. Each update is handled on its own
// goroutine; messages from one learner are serialized by the orchestrator.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.cfg.UpdateTimeout

	updates := b.api.GetUpdatesChan(updateConfig)
	b.log.Info("bot started", slog.Int("update_timeout", b.cfg.UpdateTimeout))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.log.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// SendReminder implements the scheduler.Notifier interface. In private chats
// the chat id equals the user id.
func (b *Bot) SendReminder(ctx context.Context, userID string, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("user %q is not a telegram id: %w", userID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	return b.send(msg)
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.cfg.AdminUserIDs[userID]
}

func (b *Bot) send(msg tgbotapi.Chattable) error {
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
