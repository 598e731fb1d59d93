package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ChatID returns the chat an update belongs to, or 0.
func ChatID(update *models.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.EditedMessage != nil:
		return update.EditedMessage.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID
	}
	return 0
}

// OwnerOnly drops every update that does not come from the owner's chat.
// The assistant keeps a single conversation state, so it serves one user.
func OwnerOnly(isOwner func(chatID int64) bool) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			chatID := ChatID(update)
			if chatID == 0 || !isOwner(chatID) {
				slog.Debug("update from foreign chat dropped", "chat_id", chatID, "update_id", update.ID)
				return
			}
			next(ctx, b, update)
		}
	}
}
