package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/service"
	tg "github.com/set-night/mindvoice/internal/telegram"
)

func (h *Handler) handleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if strings.HasPrefix(msg.Text, "/") {
		h.reply(ctx, "Unknown command. Send /help for the list.")
		return
	}
	h.send(ctx, b, service.Prompt{ID: promptID(msg.ID), Text: msg.Text})
}

func (h *Handler) handlePhoto(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	// Highest resolution comes last.
	photo := msg.Photo[len(msg.Photo)-1]

	data, mimeType, err := tg.DownloadFile(ctx, b, photo.FileID)
	if err != nil {
		slog.Error("download photo", "error", err)
		h.reply(ctx, "❌ Could not download the photo. Please send it again.")
		return
	}
	ref, err := h.media.Put(ctx, data, mimeType)
	if err != nil {
		slog.Error("store photo", "error", err)
		h.reply(ctx, "❌ Could not store the photo. Please send it again.")
		return
	}
	h.rememberPhoto(ref)

	h.send(ctx, b, service.Prompt{
		ID:    promptID(msg.ID),
		Text:  msg.Caption,
		Image: &service.Attachment{Ref: ref, Data: data, MIMEType: mimeType},
	})
}

// handleVoiceNote transcribes a Telegram voice message and sends it as a
// typed prompt.
func (h *Handler) handleVoiceNote(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if h.transcriber == nil {
		h.reply(ctx, "Voice notes are not available.")
		return
	}

	h.spawn(ctx, func(ctx context.Context) {
		data, mimeType, err := tg.DownloadFile(ctx, b, msg.Voice.FileID)
		if err != nil {
			slog.Error("download voice note", "error", err)
			h.reply(ctx, "❌ Could not download the voice note.")
			return
		}
		if msg.Voice.MimeType != "" {
			mimeType = msg.Voice.MimeType
		}
		text, err := h.transcriber.Transcribe(ctx, domain.Blob{Data: data, MIMEType: mimeType}, h.cfg.VoiceLocale)
		if err != nil {
			slog.Error("transcribe voice note", "error", err)
			h.reply(ctx, "❌ Could not understand the voice note.")
			return
		}
		if strings.TrimSpace(text) == "" {
			h.reply(ctx, "🤷 I didn't hear anything in that voice note.")
			return
		}
		h.sendNow(ctx, b, service.Prompt{Text: text})
	})
}

func (h *Handler) send(ctx context.Context, b *bot.Bot, p service.Prompt) {
	h.spawn(ctx, func(ctx context.Context) {
		h.sendNow(ctx, b, p)
	})
}

func (h *Handler) sendNow(ctx context.Context, b *bot.Bot, p service.Prompt) {
	stopTyping := tg.StartTyping(ctx, b, h.cfg.OwnerChatID)
	defer stopTyping()

	err := h.conversation.Send(ctx, p)
	switch {
	case errors.Is(err, domain.ErrTurnInFlight):
		h.reply(ctx, "⏳ Wait for the answer to the previous message.")
	case err != nil:
		slog.Error("send prompt", "error", err)
		h.logError(err, "send prompt")
		h.reply(ctx, "❌ Something went wrong. Please try again.")
	}
}

// SendTranscript is the voice input sink: a final transcript is sent like a
// typed prompt.
func (h *Handler) SendTranscript(ctx context.Context, transcript string) {
	h.sendNow(ctx, h.bot, service.Prompt{Text: transcript})
}

func (h *Handler) handleEdit(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.EditedMessage
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "/") {
		return
	}

	h.spawn(ctx, func(ctx context.Context) {
		stopTyping := tg.StartTyping(ctx, b, h.cfg.OwnerChatID)
		defer stopTyping()

		err := h.conversation.Edit(ctx, promptID(msg.ID), text)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrMessageNotFound), errors.Is(err, domain.ErrNotUserMessage):
			h.reply(ctx, "✏️ Only your messages in the current chat can be edited.")
		case errors.Is(err, domain.ErrTurnInFlight):
			h.reply(ctx, "⏳ Wait for the answer before editing.")
		default:
			slog.Error("edit prompt", "error", err)
			h.logError(err, "edit prompt")
			h.reply(ctx, fmt.Sprintf("❌ Could not edit the message: %v", err))
		}
	})
}

func (h *Handler) handleLocation(ctx context.Context, b *bot.Bot, update *models.Update) {
	loc := update.Message.Location
	h.setLocation(domain.Location{Latitude: loc.Latitude, Longitude: loc.Longitude})
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      h.cfg.OwnerChatID,
		Text:        "📍 Location saved. /maps answers will use it.",
		ReplyMarkup: &models.ReplyKeyboardRemove{RemoveKeyboard: true},
	})
}
