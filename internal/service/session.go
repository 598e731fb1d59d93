package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
)

// RecordStore persists one keyed blob.
type RecordStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// SessionObserver receives every committed collection, in commit order.
// The snapshot is shared and must not be modified.
type SessionObserver func(domain.SessionCollection)

// SessionStore owns the session collection. Every mutation builds a new
// collection and swaps it in whole, then persists it and notifies
// observers.
type SessionStore struct {
	records RecordStore

	mu        sync.Mutex
	state     domain.SessionCollection
	observers []SessionObserver

	notifyMu sync.Mutex
}

func NewSessionStore(records RecordStore) *SessionStore {
	s := &SessionStore{records: records}
	s.state = freshCollection()
	return s
}

func newMessageID() string {
	return uuid.NewString()
}

func greetingMessage() domain.Message {
	return domain.Message{ID: newMessageID(), Role: domain.RoleModel, Text: config.GreetingText}
}

func newSession() domain.Session {
	return domain.Session{
		ID:       uuid.NewString(),
		Title:    config.DefaultSessionTitle,
		Messages: []domain.Message{greetingMessage()},
	}
}

func freshCollection() domain.SessionCollection {
	s := newSession()
	return domain.SessionCollection{Sessions: []domain.Session{s}, ActiveID: s.ID}
}

// legacyMessageID is assigned to stored messages that predate ids.
func legacyMessageID(role domain.Role) string {
	if role == "" {
		role = domain.RoleModel
	}
	return fmt.Sprintf("%s-%d-%s", role, time.Now().UnixMilli(), strconv.FormatUint(rand.Uint64(), 36))
}

func (s *SessionStore) Subscribe(fn SessionObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Snapshot returns a private copy of the current collection.
func (s *SessionStore) Snapshot() domain.SessionCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Active returns a copy of the active session.
func (s *SessionStore) Active() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, _ := s.state.Active()
	return a.Clone()
}

func (s *SessionStore) Session(id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, _, ok := s.state.Find(id)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// commit applies mutate to a copy of the state and swaps it in. Saves and
// observer calls run under notifyMu, taken before mu is released, so they
// happen in commit order.
func (s *SessionStore) commit(ctx context.Context, mutate func(c *domain.SessionCollection) error) error {
	s.mu.Lock()
	next := s.state.Clone()
	if err := mutate(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	ensureUsable(&next)
	s.state = next
	observers := slices.Clone(s.observers)
	s.notifyMu.Lock()
	s.mu.Unlock()

	defer s.notifyMu.Unlock()
	s.persist(ctx, next)
	for _, fn := range observers {
		fn(next)
	}
	return nil
}

func (s *SessionStore) persist(ctx context.Context, c domain.SessionCollection) {
	if s.records == nil {
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		slog.Error("encode sessions", "error", err)
		return
	}
	if err := s.records.Save(context.WithoutCancel(ctx), config.SessionStoreKey, data); err != nil {
		slog.Error("save sessions", "error", err)
	}
}

// ensureUsable restores the collection invariants: never empty and the
// active id always resolves.
func ensureUsable(c *domain.SessionCollection) {
	if len(c.Sessions) == 0 {
		*c = freshCollection()
		return
	}
	if _, _, ok := c.Find(c.ActiveID); !ok {
		c.ActiveID = c.Sessions[0].ID
	}
}

// Load restores the persisted collection. A missing or unreadable record
// yields a fresh single session; Load never fails.
func (s *SessionStore) Load(ctx context.Context) {
	restored := freshCollection()
	if s.records != nil {
		data, err := s.records.Load(ctx, config.SessionStoreKey)
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			slog.Info("no saved sessions, starting fresh")
		case err != nil:
			slog.Error("load sessions", "error", err)
		default:
			c, err := DecodeCollection(data)
			if err != nil {
				slog.Error("decode sessions", "error", err)
			} else {
				restored = c
			}
		}
	}
	_ = s.commit(ctx, func(c *domain.SessionCollection) error {
		*c = restored
		return nil
	})
	slog.Info("sessions loaded", "count", len(restored.Sessions))
}

// DecodeCollection parses a stored collection and repairs it: messages
// without ids get synthesized ones, sessions without messages are
// re-seeded, and an unknown active id falls back to the first session.
func DecodeCollection(data []byte) (domain.SessionCollection, error) {
	var c domain.SessionCollection
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.SessionCollection{}, fmt.Errorf("unmarshal sessions: %w", err)
	}
	if len(c.Sessions) == 0 {
		return domain.SessionCollection{}, errors.New("unmarshal sessions: empty collection")
	}

	seenSessions := make(map[string]bool, len(c.Sessions))
	for i := range c.Sessions {
		sess := &c.Sessions[i]
		if sess.ID == "" || seenSessions[sess.ID] {
			sess.ID = uuid.NewString()
		}
		seenSessions[sess.ID] = true
		if strings.TrimSpace(sess.Title) == "" {
			sess.Title = config.DefaultSessionTitle
		}
		if len(sess.Messages) == 0 || sess.Messages[0].Role != domain.RoleModel {
			sess.Messages = append([]domain.Message{greetingMessage()}, sess.Messages...)
		}
		seen := make(map[string]bool, len(sess.Messages))
		for j := range sess.Messages {
			m := &sess.Messages[j]
			if m.Role != domain.RoleUser {
				m.Role = domain.RoleModel
			}
			if m.ID == "" || seen[m.ID] {
				m.ID = legacyMessageID(m.Role)
			}
			seen[m.ID] = true
		}
	}
	ensureUsable(&c)
	return c, nil
}

// CreateSession prepends a fresh session and makes it active.
func (s *SessionStore) CreateSession(ctx context.Context) domain.Session {
	sess := newSession()
	_ = s.commit(ctx, func(c *domain.SessionCollection) error {
		c.Sessions = append([]domain.Session{sess}, c.Sessions...)
		c.ActiveID = sess.ID
		return nil
	})
	return sess
}

// DeleteSession removes a session. Deleting the active one activates the
// first remaining session, or a new one when none is left.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	return s.commit(ctx, func(c *domain.SessionCollection) error {
		_, idx, ok := c.Find(id)
		if !ok {
			return domain.ErrSessionNotFound
		}
		c.Sessions = slices.Delete(c.Sessions, idx, idx+1)
		if c.ActiveID == id {
			c.ActiveID = ""
			if len(c.Sessions) > 0 {
				c.ActiveID = c.Sessions[0].ID
			}
		}
		return nil
	})
}

func (s *SessionStore) SelectSession(ctx context.Context, id string) error {
	return s.commit(ctx, func(c *domain.SessionCollection) error {
		if _, _, ok := c.Find(id); !ok {
			return domain.ErrSessionNotFound
		}
		c.ActiveID = id
		return nil
	})
}

// ReplaceMessages swaps a session's whole message list and, when title is
// non-nil, its title.
func (s *SessionStore) ReplaceMessages(ctx context.Context, sessionID string, msgs []domain.Message, title *string) error {
	if len(msgs) == 0 || msgs[0].Role != domain.RoleModel {
		return fmt.Errorf("replace messages: list must start with the greeting")
	}
	msgs = slices.Clone(msgs)
	return s.commit(ctx, func(c *domain.SessionCollection) error {
		_, idx, ok := c.Find(sessionID)
		if !ok {
			return domain.ErrSessionNotFound
		}
		c.Sessions[idx].Messages = msgs
		if title != nil {
			c.Sessions[idx].Title = *title
		}
		return nil
	})
}

// UpdateMessages computes the next message list from the current one under
// the store lock, so concurrent writers never lose each other's messages.
func (s *SessionStore) UpdateMessages(ctx context.Context, sessionID string, fn func([]domain.Message) []domain.Message) error {
	return s.commit(ctx, func(c *domain.SessionCollection) error {
		_, idx, ok := c.Find(sessionID)
		if !ok {
			return domain.ErrSessionNotFound
		}
		next := fn(slices.Clone(c.Sessions[idx].Messages))
		if len(next) == 0 || next[0].Role != domain.RoleModel {
			return fmt.Errorf("update messages: list must start with the greeting")
		}
		c.Sessions[idx].Messages = next
		return nil
	})
}

// AppendMessages adds messages to the end of a session.
func (s *SessionStore) AppendMessages(ctx context.Context, sessionID string, msgs ...domain.Message) error {
	return s.UpdateMessages(ctx, sessionID, func(cur []domain.Message) []domain.Message {
		return append(cur, msgs...)
	})
}

func (s *SessionStore) SetTitle(ctx context.Context, sessionID, title string) error {
	return s.commit(ctx, func(c *domain.SessionCollection) error {
		_, idx, ok := c.Find(sessionID)
		if !ok {
			return domain.ErrSessionNotFound
		}
		c.Sessions[idx].Title = title
		return nil
	})
}

// ClearHistory drops every session and starts over with a fresh one.
func (s *SessionStore) ClearHistory(ctx context.Context) domain.Session {
	fresh := freshCollection()
	_ = s.commit(ctx, func(c *domain.SessionCollection) error {
		*c = fresh
		return nil
	})
	return fresh.Sessions[0]
}
