package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/sessions", bot.MatchTypePrefix, h.handleSessions)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/listen", bot.MatchTypePrefix, h.handleListen)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stop", bot.MatchTypePrefix, h.handleStop)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/voice", bot.MatchTypePrefix, h.handleVoice)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/search", bot.MatchTypePrefix, h.handleSearch)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/maps", bot.MatchTypePrefix, h.handleMaps)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/combine", bot.MatchTypePrefix, h.handleCombine)

	// Session callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSessionNew, bot.MatchTypeExact, h.handleNewSession)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSessionDelete, bot.MatchTypeExact, h.handleDeleteSession)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSessionClear, bot.MatchTypeExact, h.handleClearSessions)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSessionSwitch, bot.MatchTypePrefix, h.handleSwitchSession)

	// Voice callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbVoicePrefix, bot.MatchTypePrefix, h.handleVoiceToggle)

	// Confirmation callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbConfirmPrefix, bot.MatchTypePrefix, h.handleConfirm)

	// Text, photos, voice notes, locations and edits go through Default.
}

// Default routes updates that no registered handler matched.
func (h *Handler) Default(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.EditedMessage != nil:
		h.handleEdit(ctx, b, update)
	case update.Message == nil:
	case update.Message.Location != nil:
		h.handleLocation(ctx, b, update)
	case update.Message.Voice != nil:
		h.handleVoiceNote(ctx, b, update)
	case len(update.Message.Photo) > 0:
		h.handlePhoto(ctx, b, update)
	case update.Message.Text != "":
		h.handleText(ctx, b, update)
	}
}

func answer(ctx context.Context, b *bot.Bot, update *models.Update, text string) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
		Text:            text,
	})
}
