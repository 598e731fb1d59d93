package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	tg "github.com/set-night/mindvoice/internal/telegram"
)

// commandArg returns the text after the command word.
func commandArg(text string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(rest)
}

func (h *Handler) handleSearch(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	query := commandArg(update.Message.Text)
	if query == "" {
		h.reply(ctx, "Usage: /search <question>")
		return
	}
	h.spawn(ctx, func(ctx context.Context) {
		h.runSearch(ctx, b, query, false)
	})
}

func (h *Handler) handleMaps(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	query := commandArg(update.Message.Text)
	if query == "" {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      h.cfg.OwnerChatID,
			Text:        "Usage: /maps <question>. Share your location first for nearby results.",
			ReplyMarkup: tg.LocationKeyboard(),
		})
		return
	}
	h.spawn(ctx, func(ctx context.Context) {
		h.runSearch(ctx, b, query, true)
	})
}

func (h *Handler) runSearch(ctx context.Context, b *bot.Bot, query string, useMaps bool) {
	stopTyping := tg.StartTyping(ctx, b, h.cfg.OwnerChatID)
	defer stopTyping()

	ctx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
	defer cancel()

	reply, err := h.search.Query(ctx, query, h.currentLocation(), useMaps)
	if err != nil {
		slog.Error("grounded query", "error", err, "maps", useMaps)
		text := config.ErrorTextGeneric
		if domain.IsQuota(err) {
			text = config.ErrorTextQuota
		}
		h.reply(ctx, "⚠️ "+text)
		return
	}
	h.reply(ctx, formatMessage(domain.Message{Role: domain.RoleModel, Text: reply.Text, Sources: reply.Sources}))
}
