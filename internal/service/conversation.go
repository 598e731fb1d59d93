package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
)

// Backend is the generative backend as the conversation uses it.
type Backend interface {
	Chat(ctx context.Context, history []domain.Message, text string, image *domain.Blob) (domain.Reply, error)
	SummarizeTitle(ctx context.Context, text string) (string, error)
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (domain.Blob, error)
	SolveComplexTask(ctx context.Context, prompt string) (string, error)
}

// Confirmer asks the user to approve a destructive command.
type Confirmer interface {
	Confirm(ctx context.Context, question string) bool
}

// TurnObserver is told when a backend turn starts and finishes. err is nil
// for a successful turn.
type TurnObserver interface {
	TurnStarted(sessionID string)
	TurnFinished(sessionID string, err error)
}

// Attachment is a picture sent with a prompt. Ref is stored on the
// message; Data is only used for the current send.
type Attachment struct {
	Ref      string
	Data     []byte
	MIMEType string
}

// Prompt is one user input. ID may be preset by the caller to correlate
// the message with its source.
type Prompt struct {
	ID    string
	Text  string
	Image *Attachment
}

// Conversation turns user input into commands or backend turns on the
// active session.
type Conversation struct {
	store      *SessionStore
	backend    Backend
	dispatcher *Dispatcher
	confirmer  Confirmer

	mu        sync.Mutex
	busy      map[string]bool
	observers []TurnObserver

	titles sync.WaitGroup
}

func NewConversation(store *SessionStore, backend Backend, dispatcher *Dispatcher, confirmer Confirmer) *Conversation {
	return &Conversation{
		store:      store,
		backend:    backend,
		dispatcher: dispatcher,
		confirmer:  confirmer,
		busy:       make(map[string]bool),
	}
}

func (c *Conversation) Observe(o TurnObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Busy reports whether a turn is in flight for the session.
func (c *Conversation) Busy(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[sessionID]
}

func (c *Conversation) acquire(sessionID string) bool {
	c.mu.Lock()
	if c.busy[sessionID] {
		c.mu.Unlock()
		return false
	}
	c.busy[sessionID] = true
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		o.TurnStarted(sessionID)
	}
	return true
}

func (c *Conversation) release(sessionID string, err error) {
	c.mu.Lock()
	delete(c.busy, sessionID)
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		o.TurnFinished(sessionID, err)
	}
}

// Send handles one prompt on the active session. It returns
// domain.ErrTurnInFlight when the session is busy; backend failures are
// reported as error messages in the session, not returned.
func (c *Conversation) Send(ctx context.Context, p Prompt) error {
	if cmd, ok := ParseCommand(p.Text); ok {
		return c.runCommand(ctx, cmd)
	}
	if strings.TrimSpace(p.Text) == "" && p.Image == nil {
		return nil
	}

	active := c.store.Active()
	if !c.acquire(active.ID) {
		return domain.ErrTurnInFlight
	}
	var turnErr error
	defer func() { c.release(active.ID, turnErr) }()

	// A turn that finished between Active and acquire may have added messages.
	active, err := c.store.Session(active.ID)
	if err != nil {
		turnErr = err
		return fmt.Errorf("load session: %w", err)
	}

	id := p.ID
	if id == "" {
		id = newMessageID()
	}
	msg := domain.Message{ID: id, Role: domain.RoleUser, Text: p.Text}
	var image *domain.Blob
	if p.Image != nil {
		msg.Image = p.Image.Ref
		if len(p.Image.Data) > 0 {
			image = &domain.Blob{Data: p.Image.Data, MIMEType: p.Image.MIMEType}
		}
	}

	firstTurn := len(active.Messages) == 1
	history := active.History()
	if err := c.store.AppendMessages(ctx, active.ID, msg); err != nil {
		turnErr = err
		return fmt.Errorf("append user message: %w", err)
	}

	if firstTurn && strings.TrimSpace(p.Text) != "" {
		c.summarizeTitle(ctx, active.ID, p.Text)
	}

	turnErr = c.runTurn(ctx, active.ID, history, p.Text, image)
	return nil
}

// Edit replaces a user message, discards everything after it and resends
// the edited text. The image reference stays on the message for display
// but the picture itself is not resent.
func (c *Conversation) Edit(ctx context.Context, messageID, newText string) error {
	active := c.store.Active()
	idx := active.IndexOf(messageID)
	if idx < 0 {
		return domain.ErrMessageNotFound
	}
	if active.Messages[idx].Role != domain.RoleUser {
		return domain.ErrNotUserMessage
	}
	if !c.acquire(active.ID) {
		return domain.ErrTurnInFlight
	}
	var turnErr error
	defer func() { c.release(active.ID, turnErr) }()

	edited := active.Messages[idx]
	edited.Text = newText
	msgs := append(slices.Clone(active.Messages[:idx]), edited)
	if err := c.store.ReplaceMessages(ctx, active.ID, msgs, nil); err != nil {
		turnErr = err
		return fmt.Errorf("replace messages: %w", err)
	}

	history := slices.Clone(active.Messages[1:idx])
	turnErr = c.runTurn(ctx, active.ID, history, newText, nil)
	return nil
}

// runTurn calls the backend and hands the reply to the dispatcher. The
// returned error has already been shown to the user.
func (c *Conversation) runTurn(ctx context.Context, sessionID string, history []domain.Message, text string, image *domain.Blob) error {
	reply, err := c.backend.Chat(ctx, history, text, image)
	if err != nil {
		slog.Error("send prompt", "error", err, "session_id", sessionID, "quota", domain.IsQuota(err))
		c.dispatcher.appendError(ctx, sessionID, err)
		return err
	}
	return c.dispatcher.Handle(ctx, sessionID, reply)
}

func (c *Conversation) summarizeTitle(ctx context.Context, sessionID, text string) {
	c.titles.Add(1)
	go func() {
		defer c.titles.Done()
		ctx := context.WithoutCancel(ctx)
		title, err := c.backend.SummarizeTitle(ctx, text)
		if err != nil {
			slog.Warn("summarize title", "error", err, "session_id", sessionID)
			return
		}
		if err := c.store.SetTitle(ctx, sessionID, title); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			slog.Error("set title", "error", err, "session_id", sessionID)
		}
	}()
}

// WaitTitles blocks until pending title summaries have finished.
func (c *Conversation) WaitTitles() {
	c.titles.Wait()
}

func (c *Conversation) runCommand(ctx context.Context, cmd Command) error {
	switch cmd {
	case CommandNewChat:
		sess := c.store.CreateSession(ctx)
		slog.Info("session created", "session_id", sess.ID)
	case CommandDeleteChat:
		// The chat to delete is the one the command was issued in, even if
		// another chat became active while the question was open.
		target := c.store.Active().ID
		if !c.confirm(ctx, config.ConfirmDeleteChat) {
			return nil
		}
		err := c.store.DeleteSession(ctx, target)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		slog.Info("session deleted", "session_id", target)
	case CommandClearHistory:
		if !c.confirm(ctx, config.ConfirmClearHistory) {
			return nil
		}
		c.store.ClearHistory(ctx)
		slog.Info("history cleared")
	case CommandHelp:
		active := c.store.Active()
		help := domain.Message{ID: newMessageID(), Role: domain.RoleModel, Text: config.HelpText}
		if err := c.store.AppendMessages(ctx, active.ID, help); err != nil {
			return fmt.Errorf("append help: %w", err)
		}
	}
	return nil
}

func (c *Conversation) confirm(ctx context.Context, question string) bool {
	if c.confirmer == nil {
		return true
	}
	return c.confirmer.Confirm(ctx, question)
}
