package handler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/set-night/mindvoice/internal/telegram"
)

const (
	cbConfirmPrefix = "confirm_"
	confirmYes      = ":yes"
	confirmNo       = ":no"
)

// Prompter shows a question with a yes/no keyboard and returns its message id.
type Prompter func(ctx context.Context, question string, markup models.ReplyMarkup) (int, error)

// Confirmer asks the owner to approve destructive commands with inline
// buttons. No answer within the timeout counts as a refusal.
type Confirmer struct {
	prompt  Prompter
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan bool
}

func NewConfirmer(prompt Prompter, timeout time.Duration) *Confirmer {
	return &Confirmer{
		prompt:  prompt,
		timeout: timeout,
		pending: make(map[string]chan bool),
	}
}

func (c *Confirmer) Confirm(ctx context.Context, question string) bool {
	id := uuid.NewString()[:8]
	answer := make(chan bool, 1)

	c.mu.Lock()
	c.pending[id] = answer
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	markup := telegram.ConfirmKeyboard(cbConfirmPrefix+id+confirmYes, cbConfirmPrefix+id+confirmNo)
	if _, err := c.prompt(ctx, question, markup); err != nil {
		slog.Error("send confirmation", "error", err)
		return false
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case ok := <-answer:
		return ok
	case <-timer.C:
		slog.Info("confirmation timed out", "question", question)
		return false
	case <-ctx.Done():
		return false
	}
}

// Resolve delivers an answer. It reports false when nothing is waiting for
// that id, e.g. after a timeout.
func (c *Confirmer) Resolve(id string, ok bool) bool {
	c.mu.Lock()
	answer, found := c.pending[id]
	c.mu.Unlock()
	if !found {
		return false
	}
	select {
	case answer <- ok:
		return true
	default:
		return false
	}
}

func parseConfirmData(data string) (id string, ok bool, valid bool) {
	rest, found := strings.CutPrefix(data, cbConfirmPrefix)
	if !found {
		return "", false, false
	}
	switch {
	case strings.HasSuffix(rest, confirmYes):
		return strings.TrimSuffix(rest, confirmYes), true, true
	case strings.HasSuffix(rest, confirmNo):
		return strings.TrimSuffix(rest, confirmNo), false, true
	}
	return "", false, false
}

func (h *Handler) handleConfirm(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	id, ok, valid := parseConfirmData(update.CallbackQuery.Data)
	if !valid {
		answer(ctx, b, update, "")
		return
	}

	status := "Expired"
	if h.confirmer.Resolve(id, ok) {
		status = "Cancelled"
		if ok {
			status = "Confirmed"
		}
	}
	answer(ctx, b, update, status)

	if msg := update.CallbackQuery.Message.Message; msg != nil {
		b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
		})
	}
}

// NewPrompter sends confirmation questions to the owner's chat.
func NewPrompter(b *bot.Bot, chatID int64) Prompter {
	return func(ctx context.Context, question string, markup models.ReplyMarkup) (int, error) {
		msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        question,
			ReplyMarkup: markup,
		})
		if err != nil {
			return 0, err
		}
		return msg.ID, nil
	}
}
