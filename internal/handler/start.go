package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindvoice/internal/config"
)

const commandsText = "\n\n📋 *Bot commands:*\n" +
	"/sessions — Manage chats\n" +
	"/listen — Listen on the microphone now\n" +
	"/stop — Stop listening and speaking\n" +
	"/voice — Voice settings\n" +
	"/search <query> — Answer with web sources\n" +
	"/maps <query> — Answer with places near your shared location\n" +
	"/combine <prompt> — Combine your recent photos"

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, config.HelpText+commandsText)
}
