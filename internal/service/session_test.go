package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/repository"
)

func newTestStore(t *testing.T) (*SessionStore, *repository.Memory) {
	t.Helper()
	mem := repository.NewMemory()
	s := NewSessionStore(mem)
	s.Load(context.Background())
	return s, mem
}

func assertUsable(t *testing.T, c domain.SessionCollection) {
	t.Helper()
	if len(c.Sessions) == 0 {
		t.Fatal("collection is empty")
	}
	if _, ok := c.Active(); !ok {
		t.Fatalf("active id %q does not resolve", c.ActiveID)
	}
	for _, s := range c.Sessions {
		if len(s.Messages) == 0 || s.Messages[0].Role != domain.RoleModel {
			t.Fatalf("session %s does not start with the greeting: %+v", s.ID, s.Messages)
		}
	}
}

func TestFreshBoot(t *testing.T) {
	s, _ := newTestStore(t)
	c := s.Snapshot()
	assertUsable(t, c)
	if len(c.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(c.Sessions))
	}
	sess := c.Sessions[0]
	if sess.Title != config.DefaultSessionTitle {
		t.Errorf("title = %q", sess.Title)
	}
	if len(sess.Messages) != 1 || sess.Messages[0].Text != config.GreetingText {
		t.Errorf("messages = %+v", sess.Messages)
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	mem := repository.NewMemory()
	_ = mem.Save(context.Background(), config.SessionStoreKey, []byte("{not json"))
	s := NewSessionStore(mem)
	s.Load(context.Background())
	c := s.Snapshot()
	assertUsable(t, c)
	if len(c.Sessions) != 1 || c.Sessions[0].Title != config.DefaultSessionTitle {
		t.Fatalf("corrupt record did not yield a fresh session: %+v", c)
	}

	_ = mem.Save(context.Background(), config.SessionStoreKey, []byte(`{"sessions":[],"activeSessionId":""}`))
	s.Load(context.Background())
	if got := len(s.Snapshot().Sessions); got != 1 {
		t.Fatalf("empty collection gave %d sessions", got)
	}
}

func TestRoundTripSynthesizesIDs(t *testing.T) {
	stored := `{
		"sessions": [
			{"id":"a","title":"First","messages":[{"role":"model","text":"hi"},{"role":"user","text":"one"},{"role":"model","text":"two"}]},
			{"id":"b","title":"","messages":[]},
			{"id":"c","title":"Third","messages":[{"id":"x","role":"model","text":"hi"},{"id":"x","role":"user","text":"dup"}]}
		],
		"activeSessionId":"gone"
	}`
	mem := repository.NewMemory()
	_ = mem.Save(context.Background(), config.SessionStoreKey, []byte(stored))

	s := NewSessionStore(mem)
	s.Load(context.Background())
	c := s.Snapshot()
	assertUsable(t, c)

	if len(c.Sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(c.Sessions))
	}
	if c.ActiveID != "a" {
		t.Errorf("active = %q, want fallback to first session", c.ActiveID)
	}
	legacy := regexp.MustCompile(`^(user|model)-\d+-[0-9a-z]+$`)
	for _, m := range c.Sessions[0].Messages {
		if !legacy.MatchString(m.ID) {
			t.Errorf("message id %q is not a synthesized id", m.ID)
		}
	}
	if got := c.Sessions[0].Messages[1].ID; got[:5] != "user-" {
		t.Errorf("user message id = %q", got)
	}
	if c.Sessions[1].Title != config.DefaultSessionTitle || len(c.Sessions[1].Messages) != 1 {
		t.Errorf("empty session not re-seeded: %+v", c.Sessions[1])
	}
	if c.Sessions[2].Messages[0].ID == c.Sessions[2].Messages[1].ID {
		t.Error("duplicate message ids survived load")
	}

	// The repaired collection is persisted and loads back unchanged.
	data, err := mem.Load(context.Background(), config.SessionStoreKey)
	if err != nil {
		t.Fatalf("Load record: %v", err)
	}
	again, err := DecodeCollection(data)
	if err != nil {
		t.Fatalf("DecodeCollection: %v", err)
	}
	a, _ := json.Marshal(again)
	b, _ := json.Marshal(c)
	if string(a) != string(b) {
		t.Errorf("round trip changed the collection:\n%s\n%s", a, b)
	}
}

func TestCreateSelectDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	first := s.Active()

	second := s.CreateSession(ctx)
	c := s.Snapshot()
	if c.ActiveID != second.ID || c.Sessions[0].ID != second.ID {
		t.Fatalf("new session not first and active: %+v", c)
	}

	if err := s.SelectSession(ctx, first.ID); err != nil {
		t.Fatalf("SelectSession: %v", err)
	}
	if err := s.SelectSession(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("SelectSession(missing) = %v", err)
	}

	if err := s.DeleteSession(ctx, first.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if got := s.Active().ID; got != second.ID {
		t.Fatalf("active after delete = %q, want %q", got, second.ID)
	}

	if err := s.DeleteSession(ctx, second.ID); err != nil {
		t.Fatalf("DeleteSession(last): %v", err)
	}
	c = s.Snapshot()
	assertUsable(t, c)
	if len(c.Sessions) != 1 || c.Sessions[0].ID == second.ID {
		t.Fatalf("deleting the last session left %+v", c)
	}
}

func TestReplaceMessagesRejectsMissingGreeting(t *testing.T) {
	s, _ := newTestStore(t)
	active := s.Active()
	err := s.ReplaceMessages(context.Background(), active.ID, []domain.Message{{ID: "u", Role: domain.RoleUser}}, nil)
	if err == nil {
		t.Fatal("ReplaceMessages accepted a list without the greeting")
	}
	title := "Renamed"
	if err := s.ReplaceMessages(context.Background(), active.ID, active.Messages, &title); err != nil {
		t.Fatalf("ReplaceMessages: %v", err)
	}
	if got := s.Active().Title; got != title {
		t.Fatalf("title = %q", got)
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)
	mem.FailSaves(errors.New("disk full"))

	active := s.Active()
	msg := domain.Message{ID: "u1", Role: domain.RoleUser, Text: "hello"}
	if err := s.AppendMessages(ctx, active.ID, msg); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	if got := s.Active(); len(got.Messages) != 2 {
		t.Fatalf("in-memory state lost the message: %+v", got.Messages)
	}
	if mem.Saves() < 2 {
		t.Fatalf("saves = %d, want an attempted save", mem.Saves())
	}
}

func TestObserversSeeCommitOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	id := s.Active().ID

	var mu sync.Mutex
	var lens []int
	s.Subscribe(func(c domain.SessionCollection) {
		sess, _, _ := c.Find(id)
		mu.Lock()
		lens = append(lens, len(sess.Messages))
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AppendMessages(ctx, id, domain.Message{ID: newMessageID(), Role: domain.RoleUser, Text: string(rune('a' + i))})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(lens) != 20 {
		t.Fatalf("observer calls = %d", len(lens))
	}
	for i := 1; i < len(lens); i++ {
		if lens[i] != lens[i-1]+1 {
			t.Fatalf("observer saw commits out of order: %v", lens)
		}
	}
	if got := len(s.Active().Messages); got != 21 {
		t.Fatalf("messages = %d, want 21", got)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
		ok   bool
	}{
		{"help", CommandHelp, true},
		{"  HeLp \n", CommandHelp, true},
		{"New Chat", CommandNewChat, true},
		{"delete this chat", CommandDeleteChat, true},
		{"CLEAR HISTORY", CommandClearHistory, true},
		{"help me", CommandNone, false},
		{"", CommandNone, false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCommand(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
