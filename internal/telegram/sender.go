package telegram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindvoice/internal/config"
)

// SendLongMessage sends a potentially long message, splitting it into parts if needed,
// and returns the ids of the sent parts. Falls back to plain text if Markdown parsing fails.
func SendLongMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, markup models.ReplyMarkup) ([]int, error) {
	text = FixMarkdown(text)
	parts := SplitMessage(text, config.MaxTelegramMessageLen)

	ids := make([]int, 0, len(parts))
	for i, part := range parts {
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      part,
			ParseMode: models.ParseModeMarkdownV1,
		}
		if markup != nil && i == len(parts)-1 {
			params.ReplyMarkup = markup
		}

		msg, err := b.SendMessage(ctx, params)
		if err != nil {
			slog.Warn("markdown send failed, falling back to plain text", "error", err)
			params.ParseMode = ""
			msg, err = b.SendMessage(ctx, params)
			if err != nil {
				return ids, fmt.Errorf("send message: %w", err)
			}
		}
		ids = append(ids, msg.ID)
	}

	return ids, nil
}

// SendPhotoBytes uploads an image with an optional caption.
func SendPhotoBytes(ctx context.Context, b *bot.Bot, chatID int64, name string, data []byte, caption string) (int, error) {
	msg, err := b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:    chatID,
		Photo:     &models.InputFileUpload{Filename: name, Data: bytes.NewReader(data)},
		Caption:   FixMarkdown(Truncate(caption, config.MaxTelegramCaptionLen)),
		ParseMode: models.ParseModeMarkdownV1,
	})
	if err != nil {
		return 0, fmt.Errorf("send photo: %w", err)
	}
	return msg.ID, nil
}

// DeleteMessages removes sent messages, logging the ones Telegram refuses.
func DeleteMessages(ctx context.Context, b *bot.Bot, chatID int64, ids []int) {
	for _, id := range ids {
		if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: id}); err != nil {
			slog.Warn("delete message", "error", err, "chat_id", chatID, "message_id", id)
		}
	}
}

// StartTyping sends "typing..." action every 4 seconds until the returned cancel function is called.
func StartTyping(ctx context.Context, b *bot.Bot, chatID int64) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		for {
			b.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionTyping,
			})
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}
