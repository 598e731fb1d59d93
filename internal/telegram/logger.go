package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/mindvoice/internal/config"
)

// Logger forwards error reports to a Telegram log chat. A zero chat id
// disables it.
type Logger struct {
	bot    *bot.Bot
	chatID int64
}

func NewLogger(b *bot.Bot, chatID int64) *Logger {
	return &Logger{bot: b, chatID: chatID}
}

func (l *Logger) Log(message string) {
	if l == nil || l.chatID == 0 {
		return
	}

	message = Truncate(message, config.MaxTelegramMessageLen)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    l.chatID,
		Text:      message,
		ParseMode: "Markdown",
	})
	if err != nil {
		slog.Error("failed to send telegram log", "error", err)
	}
}

func (l *Logger) LogError(err error, where string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		EscapeMarkdown(where), err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(msg)
}
