package handler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/voice"
)

// capturePrompter records the callback data of the "yes" and "no" buttons.
func capturePrompter(ids chan<- [2]string) Prompter {
	return func(_ context.Context, _ string, markup models.ReplyMarkup) (int, error) {
		kb := markup.(*models.InlineKeyboardMarkup)
		row := kb.InlineKeyboard[0]
		ids <- [2]string{row[0].CallbackData, row[1].CallbackData}
		return 1, nil
	}
}

func TestConfirmResolves(t *testing.T) {
	for _, yes := range []bool{true, false} {
		ids := make(chan [2]string, 1)
		c := NewConfirmer(capturePrompter(ids), time.Minute)

		done := make(chan bool, 1)
		go func() { done <- c.Confirm(context.Background(), "Delete?") }()

		buttons := <-ids
		data := buttons[1]
		if yes {
			data = buttons[0]
		}
		id, ok, valid := parseConfirmData(data)
		if !valid || ok != yes {
			t.Fatalf("parseConfirmData(%q) = %q %v %v", data, id, ok, valid)
		}
		if !c.Resolve(id, ok) {
			t.Fatal("Resolve found nothing pending")
		}
		if got := <-done; got != yes {
			t.Fatalf("Confirm = %v, want %v", got, yes)
		}
		if c.Resolve(id, ok) {
			t.Fatal("answered confirmation still pending")
		}
	}
}

func TestConfirmTimesOut(t *testing.T) {
	ids := make(chan [2]string, 1)
	c := NewConfirmer(capturePrompter(ids), 20*time.Millisecond)
	if c.Confirm(context.Background(), "Delete?") {
		t.Fatal("unanswered confirmation counted as yes")
	}
}

func TestConfirmSendFailure(t *testing.T) {
	c := NewConfirmer(func(context.Context, string, models.ReplyMarkup) (int, error) {
		return 0, errors.New("offline")
	}, time.Minute)
	if c.Confirm(context.Background(), "Delete?") {
		t.Fatal("confirmation that was never shown counted as yes")
	}
}

func TestParseConfirmDataRejects(t *testing.T) {
	for _, in := range []string{"", "confirm_", "confirm_abc", "session_new", "confirm_abc:maybe"} {
		if _, _, valid := parseConfirmData(in); valid {
			t.Errorf("parseConfirmData(%q) accepted", in)
		}
	}
}

func TestSessionsPage(t *testing.T) {
	c := domain.SessionCollection{ActiveID: "b"}
	for _, id := range []string{"a", "b"} {
		c.Sessions = append(c.Sessions, domain.Session{ID: id, Title: "Chat " + id})
	}
	text, kb := sessionsPage(c)
	if !strings.Contains(text, "(2)") {
		t.Errorf("text = %q", text)
	}
	if len(kb.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d", len(kb.InlineKeyboard))
	}
	if b := kb.InlineKeyboard[1][0]; b.CallbackData != cbSessionSwitch+"b" || !strings.HasSuffix(b.Text, "✅") {
		t.Errorf("active button = %+v", b)
	}
	if got := kb.InlineKeyboard[2][2].CallbackData; got != cbSessionClear {
		t.Errorf("clear button = %q", got)
	}
}

func TestCommandArg(t *testing.T) {
	for in, want := range map[string]string{
		"/search  coffee beans ": "coffee beans",
		"/maps":                  "",
		"/combine@bot a b":       "a b",
	} {
		if got := commandArg(in); got != want {
			t.Errorf("commandArg(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVoiceNotifierReportsChanges(t *testing.T) {
	n := NewVoiceNotifier(nil)
	steps := []struct {
		st   voice.InputStatus
		want bool
	}{
		{voice.InputStatus{State: voice.InputListening}, false},
		{voice.InputStatus{State: voice.InputDenied}, true},
		{voice.InputStatus{State: voice.InputDenied}, false},
		{voice.InputStatus{State: voice.InputIdle}, true},
		{voice.InputStatus{State: voice.InputTransientError, Message: "Mic busy."}, true},
		{voice.InputStatus{State: voice.InputIdle}, false},
	}
	for i, s := range steps {
		if _, got := n.message(s.st); got != s.want {
			t.Errorf("step %d (%v): notified = %v, want %v", i, s.st.State, got, s.want)
		}
	}
}

func TestVoicePanelText(t *testing.T) {
	got := voicePanelText(domain.VoiceDenied, "blocked", true, false)
	want := "🎛 Voice: microphone denied (blocked)\nAuto-listen: on\nSpeak replies: off"
	if got != want {
		t.Fatalf("voicePanelText = %q", got)
	}
}

type fakeOpener struct {
	err  error
	uris []string
}

func (o *fakeOpener) Open(_ context.Context, uri string) error {
	o.uris = append(o.uris, uri)
	return o.err
}

func TestLinkLauncher(t *testing.T) {
	host := &fakeOpener{err: errors.New("no display")}
	var posted []string
	l := NewLinkLauncher(host, func(_ context.Context, text string) { posted = append(posted, text) })

	if err := l.Open(context.Background(), "tel:123"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(host.uris) != 1 || len(posted) != 1 || posted[0] != "🔗 tel:123" {
		t.Fatalf("host %v, posted %v", host.uris, posted)
	}

	bare := NewLinkLauncher(host, nil)
	if err := bare.Open(context.Background(), "tel:1"); err == nil {
		t.Fatal("host failure hidden without a chat to post to")
	}
}
