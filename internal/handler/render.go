package handler

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/telegram"
)

// telegramPrefix marks message ids that mirror an incoming Telegram
// message; such messages are already visible in the chat.
const telegramPrefix = "tg-"

const renderBacklog = 10

func telegramMessageID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, telegramPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

func promptID(messageID int) string {
	return telegramPrefix + strconv.Itoa(messageID)
}

// Messenger is the chat the renderer draws on.
type Messenger interface {
	SendText(ctx context.Context, text string) ([]int, error)
	SendPhoto(ctx context.Context, name string, data []byte, caption string) (int, error)
	Delete(ctx context.Context, ids []int)
}

type MediaReader interface {
	Get(ctx context.Context, ref string) ([]byte, string, error)
}

type shownMessage struct {
	id    string
	tgIDs []int
}

// Renderer mirrors the active session into the chat. Snapshots go through
// a latest-wins mailbox; each one is diffed against what is on screen:
// new messages are sent, vanished ones are deleted.
type Renderer struct {
	out   Messenger
	media MediaReader

	mu      sync.Mutex
	pending *domain.SessionCollection
	wake    chan struct{}

	sessionID string
	known     map[string]bool
	shown     []shownMessage
}

func NewRenderer(out Messenger, media MediaReader) *Renderer {
	return &Renderer{
		out:   out,
		media: media,
		wake:  make(chan struct{}, 1),
		known: make(map[string]bool),
	}
}

// Publish replaces the pending snapshot. It never blocks, so it is safe as
// a SessionStore observer.
func (r *Renderer) Publish(c domain.SessionCollection) {
	r.mu.Lock()
	r.pending = &c
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run draws snapshots until ctx ends.
func (r *Renderer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
			r.step(ctx)
		}
	}
}

func (r *Renderer) step(ctx context.Context) bool {
	r.mu.Lock()
	c := r.pending
	r.pending = nil
	r.mu.Unlock()
	if c == nil {
		return false
	}
	r.render(ctx, *c)
	return true
}

func (r *Renderer) render(ctx context.Context, c domain.SessionCollection) {
	sess, ok := c.Active()
	if !ok {
		return
	}

	if sess.ID != r.sessionID {
		r.sessionID = sess.ID
		r.known = make(map[string]bool, len(sess.Messages))
		r.shown = nil
		if _, err := r.out.SendText(ctx, fmt.Sprintf("💬 *%s*", telegram.EscapeMarkdown(sess.Title))); err != nil {
			slog.Error("render session header", "error", err, "session_id", sess.ID)
		}
		start := max(0, len(sess.Messages)-renderBacklog)
		for _, m := range sess.Messages[:start] {
			r.known[m.ID] = true
		}
	}

	removed, added := diff(r.shown, r.known, sess.Messages)
	if len(removed) > 0 {
		gone := make(map[string]bool, len(removed))
		var ids []int
		for _, m := range removed {
			gone[m.id] = true
			ids = append(ids, m.tgIDs...)
			delete(r.known, m.id)
		}
		r.out.Delete(ctx, ids)
		kept := r.shown[:0]
		for _, m := range r.shown {
			if !gone[m.id] {
				kept = append(kept, m)
			}
		}
		r.shown = kept
	}

	for _, m := range added {
		r.known[m.ID] = true
		r.shown = append(r.shown, shownMessage{id: m.ID, tgIDs: r.draw(ctx, m)})
	}
}

// diff returns the shown messages that are no longer in msgs and the
// messages not drawn yet, in order.
func diff(shown []shownMessage, known map[string]bool, msgs []domain.Message) (removed []shownMessage, added []domain.Message) {
	present := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		present[m.ID] = true
		if !known[m.ID] {
			added = append(added, m)
		}
	}
	for _, s := range shown {
		if !present[s.id] {
			removed = append(removed, s)
		}
	}
	return removed, added
}

func (r *Renderer) draw(ctx context.Context, m domain.Message) []int {
	if m.Role == domain.RoleUser {
		if id, ok := telegramMessageID(m.ID); ok {
			return []int{id}
		}
	}

	text := formatMessage(m)
	if m.GeneratedImage != "" {
		data, _, err := r.media.Get(ctx, m.GeneratedImage)
		if err == nil {
			id, err := r.out.SendPhoto(ctx, path.Base(m.GeneratedImage), data, text)
			if err == nil {
				return []int{id}
			}
			slog.Error("render generated image", "error", err, "ref", m.GeneratedImage)
		} else {
			slog.Error("load generated image", "error", err, "ref", m.GeneratedImage)
		}
		text += "\n\n_(image unavailable)_"
	}

	ids, err := r.out.SendText(ctx, text)
	if err != nil {
		slog.Error("render message", "error", err, "message_id", m.ID)
	}
	return ids
}

func formatMessage(m domain.Message) string {
	var sb strings.Builder
	switch {
	case m.Role == domain.RoleUser:
		sb.WriteString("🎙 ")
	case m.IsError:
		sb.WriteString("⚠️ ")
	}
	sb.WriteString(m.Text)
	if m.Image != "" && m.Role == domain.RoleUser {
		sb.WriteString(" 🖼")
	}
	if len(m.Sources) > 0 {
		sb.WriteString("\n\n*Sources:*")
		for i, s := range m.Sources {
			title := s.Title
			if title == "" {
				title = s.URI
			}
			fmt.Fprintf(&sb, "\n%d. [%s](%s)", i+1, telegram.EscapeMarkdown(title), s.URI)
		}
	}
	return sb.String()
}

// chatMessenger draws on the owner's chat.
type chatMessenger struct {
	bot    *bot.Bot
	chatID int64
}

func NewChatMessenger(b *bot.Bot, chatID int64) Messenger {
	return &chatMessenger{bot: b, chatID: chatID}
}

func (m *chatMessenger) SendText(ctx context.Context, text string) ([]int, error) {
	return telegram.SendLongMessage(ctx, m.bot, m.chatID, text, nil)
}

func (m *chatMessenger) SendPhoto(ctx context.Context, name string, data []byte, caption string) (int, error) {
	return telegram.SendPhotoBytes(ctx, m.bot, m.chatID, name, data, caption)
}

func (m *chatMessenger) Delete(ctx context.Context, ids []int) {
	telegram.DeleteMessages(ctx, m.bot, m.chatID, ids)
}
