package handler

import (
	"context"
	"log/slog"
	"path"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	tg "github.com/set-night/mindvoice/internal/telegram"
)

// handleCombine merges the most recent photos the owner sent.
func (h *Handler) handleCombine(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	prompt := commandArg(update.Message.Text)
	refs := h.recentPhotos()
	switch {
	case prompt == "":
		h.reply(ctx, "Usage: /combine <what to make of your recent photos>")
		return
	case len(refs) == 0:
		h.reply(ctx, "Send one or more photos first, then use /combine.")
		return
	}

	h.spawn(ctx, func(ctx context.Context) {
		stopTyping := tg.StartTyping(ctx, b, h.cfg.OwnerChatID)
		defer stopTyping()

		ctx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
		defer cancel()

		ref, err := h.studio.Combine(ctx, prompt, refs)
		if err != nil {
			slog.Error("combine images", "error", err, "inputs", len(refs))
			text := config.ErrorTextGeneric
			if domain.IsQuota(err) {
				text = config.ErrorTextQuota
			}
			h.reply(ctx, "⚠️ "+text)
			return
		}
		data, _, err := h.media.Get(ctx, ref)
		if err != nil {
			slog.Error("load combined image", "error", err, "ref", ref)
			h.reply(ctx, "❌ The combined image could not be loaded.")
			return
		}
		if _, err := tg.SendPhotoBytes(ctx, b, h.cfg.OwnerChatID, path.Base(ref), data, "🖼 "+prompt); err != nil {
			slog.Error("send combined image", "error", err)
		}
		h.rememberPhoto(ref)
	})
}
