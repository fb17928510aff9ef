package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/tutorbot/pkg/models"
)

// Callback data carries the command text the button stands for
const callbackPrefix = "cmd:"

const (
	msgSomethingWrong = "⚠️ Something went wrong, please try again."
	msgAdminOnly      = "This command is only available for administrators."
	msgTextOnly       = "Please send your answer as text."
	msgMenu           = "Main Menu - choose an option:"
)

// MainMenuButtons returns the buttons for the main menu
func MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "📚 Start lesson", CallbackData: callbackPrefix + "start lesson"},
			{Text: "📊 Progress", CallbackData: callbackPrefix + "progress"},
		},
		{
			{Text: "🔄 Reset", CallbackData: callbackPrefix + "reset"},
			{Text: "❓ Help", CallbackData: callbackPrefix + "help"},
		},
	}
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		return
	}
	chatID := message.Chat.ID

	if message.IsCommand() {
		switch message.Command() {
		case "menu":
			b.reply(chatID, msgMenu, true)
			return
		case "stats":
			if !b.isAdmin(message.From.ID) {
				b.reply(chatID, msgAdminOnly, true)
				return
			}
			b.handleAdminStats(ctx, chatID)
			return
		}
	}

	if strings.TrimSpace(message.Text) == "" {
		b.reply(chatID, msgTextOnly, false)
		return
	}
	// /start is the first thing a new learner sends; it starts a lesson and shows the menu
	b.exchange(ctx, chatID, message.From.ID, message.Text, message.IsCommand() && message.Command() == "start")
}

// handleCallbackQuery handles callback queries from buttons
func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Warn("failed to answer callback", slog.Any("error", err))
	}
	if callback.From == nil || callback.Message == nil || callback.Message.Chat == nil {
		return
	}
	text, ok := strings.CutPrefix(callback.Data, callbackPrefix)
	if !ok {
		b.log.Warn("unknown callback data", slog.String("data", callback.Data))
		return
	}
	b.exchange(ctx, callback.Message.Chat.ID, callback.From.ID, text, false)
}

// exchange hands the text to the orchestrator and sends whatever it replies
func (b *Bot) exchange(ctx context.Context, chatID, userID int64, text string, withMenu bool) {
	reply, err := b.handler.HandleMessage(ctx, strconv.FormatInt(userID, 10), text)
	if err != nil {
		b.log.Warn("exchange failed", slog.Int64("user_id", userID), slog.Any("error", err))
		if ctx.Err() != nil {
			return
		}
		if reply == "" {
			reply = msgSomethingWrong
		}
	}
	if reply == "" {
		return
	}
	b.reply(chatID, reply, withMenu)
}

func (b *Bot) handleAdminStats(ctx context.Context, chatID int64) {
	if b.stats == nil {
		b.reply(chatID, "Statistics are not available for this storage backend.", false)
		return
	}
	counts, err := b.stats.CountByLevel(ctx)
	if err != nil {
		b.log.Error("failed to count learners", slog.Any("error", err))
		b.reply(chatID, msgSomethingWrong, false)
		return
	}
	b.reply(chatID, formatStats(counts, time.Now().UTC()), false)
}

// formatStats renders the admin statistics message
func formatStats(counts map[models.Level]int, now time.Time) string {
	var sb strings.Builder
	total := 0
	sb.WriteString("System Statistics\n\n")
	for _, level := range models.Levels {
		total += counts[level]
		fmt.Fprintf(&sb, "%s: %d\n", level, counts[level])
	}
	fmt.Fprintf(&sb, "Total learners: %d\n", total)
	fmt.Fprintf(&sb, "Server time: %s\n", now.Format("2006-01-02 15:04:05"))
	return sb.String()
}

func (b *Bot) reply(chatID int64, text string, withMenu bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if withMenu {
		msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	}
	if err := b.send(msg); err != nil {
		b.log.Error("failed to reply", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
