package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/service"
	tg "github.com/set-night/mindvoice/internal/telegram"
)

const (
	cbSessionNew    = "session_new"
	cbSessionDelete = "session_delete"
	cbSessionClear  = "session_clear"
	cbSessionSwitch = "session_switch_"

	sessionsShown = 10
)

func (h *Handler) handleSessions(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	text, keyboard := sessionsPage(h.store.Snapshot())
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      h.cfg.OwnerChatID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: keyboard,
	})
}

func sessionsPage(c domain.SessionCollection) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📂 *Chats* (%d)\n", len(c.Sessions))

	var rows [][]models.InlineKeyboardButton
	for i, s := range c.Sessions {
		if i == sessionsShown {
			fmt.Fprintf(&sb, "\n…and %d older", len(c.Sessions)-sessionsShown)
			break
		}
		label := tg.Truncate(s.Title, 40)
		if s.ID == c.ActiveID {
			label += " ✅"
		}
		rows = append(rows, tg.ButtonRow(tg.InlineButton(label, cbSessionSwitch+s.ID)))
	}

	rows = append(rows, tg.ButtonRow(
		tg.InlineButton("➕ New", cbSessionNew),
		tg.InlineButton("🗑 Current", cbSessionDelete),
		tg.InlineButton("🗑 All", cbSessionClear),
	))
	return sb.String(), tg.InlineKeyboard(rows...)
}

func (h *Handler) refreshSessions(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.CallbackQuery.Message.Message
	if msg == nil {
		return
	}
	text, keyboard := sessionsPage(h.store.Snapshot())
	b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: keyboard,
	})
}

func (h *Handler) handleNewSession(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	answer(ctx, b, update, "")
	h.runCommand(ctx, b, update, config.CommandNewChat)
}

func (h *Handler) handleDeleteSession(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	answer(ctx, b, update, "")
	h.runCommand(ctx, b, update, config.CommandDeleteChat)
}

func (h *Handler) handleClearSessions(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	answer(ctx, b, update, "")
	h.runCommand(ctx, b, update, config.CommandClearHistory)
}

// runCommand goes through the conversation so the buttons get the same
// confirmation gate as typed commands.
func (h *Handler) runCommand(ctx context.Context, b *bot.Bot, update *models.Update, command string) {
	h.spawn(ctx, func(ctx context.Context) {
		if err := h.conversation.Send(ctx, service.Prompt{Text: command}); err != nil {
			slog.Error("session command", "error", err, "command", command)
			h.reply(ctx, "❌ Could not update chats.")
			return
		}
		h.refreshSessions(ctx, b, update)
	})
}

func (h *Handler) handleSwitchSession(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	id := strings.TrimPrefix(update.CallbackQuery.Data, cbSessionSwitch)
	if err := h.store.SelectSession(ctx, id); err != nil {
		slog.Warn("switch session", "error", err, "session_id", id)
		answer(ctx, b, update, "This chat no longer exists")
		h.refreshSessions(ctx, b, update)
		return
	}
	answer(ctx, b, update, "")
	h.refreshSessions(ctx, b, update)
}
