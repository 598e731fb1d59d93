package voice

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/set-night/mindvoice/internal/domain"
)

type autoEventKind int

const (
	evTurnFinished autoEventKind = iota
	evAutoListen
	evSpeechOutput
)

type autoEvent struct {
	kind autoEventKind
	ok   bool
}

// LastMessageFunc returns the most recent message of the active session.
type LastMessageFunc func() (domain.Message, bool)

// AutoListen is the policy that re-opens the microphone between turns and
// speaks completed replies. Every observed event runs Handle, which updates
// the state and recomputes whether listening should start.
type AutoListen struct {
	arbiter *Arbiter
	input   *Input
	output  *Output
	last    LastMessageFunc
	voice   string

	mu       sync.Mutex
	enabled  bool
	speech   bool
	inFlight int
	spokenID string

	events chan autoEvent
	kick   chan struct{}
}

type AutoListenOptions struct {
	Enabled      bool
	SpeechOutput bool
	Voice        string
}

func NewAutoListen(arbiter *Arbiter, input *Input, output *Output, last LastMessageFunc, opts AutoListenOptions) *AutoListen {
	a := &AutoListen{
		arbiter: arbiter,
		input:   input,
		output:  output,
		last:    last,
		voice:   opts.Voice,
		enabled: opts.Enabled,
		speech:  opts.SpeechOutput,
		events:  make(chan autoEvent, 64),
		kick:    make(chan struct{}, 1),
	}
	input.OnChange(func(InputStatus) { a.Kick() })
	output.OnChange(func(bool) { a.Kick() })
	return a
}

// TurnStarted and TurnFinished receive busy transitions from the
// conversation. The in-flight count is raised before TurnStarted returns so
// no later evaluation can miss it.
func (a *AutoListen) TurnStarted(string) {
	a.mu.Lock()
	a.inFlight++
	a.mu.Unlock()
	a.Kick()
}

func (a *AutoListen) TurnFinished(_ string, err error) {
	a.events <- autoEvent{kind: evTurnFinished, ok: err == nil}
}

func (a *AutoListen) SetEnabled(on bool) {
	a.events <- autoEvent{kind: evAutoListen, ok: on}
}

func (a *AutoListen) SetSpeechOutput(on bool) {
	a.events <- autoEvent{kind: evSpeechOutput, ok: on}
}

func (a *AutoListen) Settings() (autoListen, speechOutput bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled, a.speech
}

// Kick schedules a re-evaluation for a level change (input, playback,
// permission or message list). Pending kicks coalesce.
func (a *AutoListen) Kick() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Run processes events until ctx ends.
func (a *AutoListen) Run(ctx context.Context) {
	a.Evaluate(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			a.handle(ctx, ev)
		case <-a.kick:
			a.Evaluate(ctx)
		}
	}
}

func (a *AutoListen) handle(ctx context.Context, ev autoEvent) {
	switch ev.kind {
	case evTurnFinished:
		a.mu.Lock()
		if a.inFlight > 0 {
			a.inFlight--
		}
		idle := a.inFlight == 0
		a.mu.Unlock()
		if ev.ok {
			a.input.ClearManualStop()
		}
		if idle {
			a.speakLastReply(ctx)
		}
	case evAutoListen:
		a.mu.Lock()
		a.enabled = ev.ok
		a.mu.Unlock()
		if !ev.ok {
			a.input.halt()
		}
	case evSpeechOutput:
		a.mu.Lock()
		a.speech = ev.ok
		a.mu.Unlock()
		if !ev.ok {
			a.output.Stop()
		}
	}
	a.Evaluate(ctx)
}

// speakLastReply speaks the newest model message once.
func (a *AutoListen) speakLastReply(ctx context.Context) {
	msg, ok := a.last()
	if !ok || msg.Role != domain.RoleModel || msg.IsError || strings.TrimSpace(msg.Text) == "" {
		return
	}
	a.mu.Lock()
	if !a.speech || msg.ID == a.spokenID {
		a.mu.Unlock()
		return
	}
	a.spokenID = msg.ID
	a.mu.Unlock()

	slog.Debug("speak reply", "message_id", msg.ID)
	a.output.Speak(ctx, msg.Text, a.voice)
}

// ShouldListen is the auto-listen predicate.
func (a *AutoListen) ShouldListen() bool {
	a.mu.Lock()
	enabled, busy := a.enabled, a.inFlight > 0
	a.mu.Unlock()

	st := a.input.Status()
	return enabled &&
		!busy &&
		st.State == InputIdle &&
		!st.ManuallyStopped &&
		!st.Forwarding &&
		!a.output.Playing()
}

// Evaluate starts listening when the predicate holds.
func (a *AutoListen) Evaluate(ctx context.Context) {
	if !a.ShouldListen() {
		return
	}
	a.arbiter.AutoListen(ctx)
}

// Drain handles queued events synchronously.
func (a *AutoListen) Drain(ctx context.Context) {
	for {
		select {
		case ev := <-a.events:
			a.handle(ctx, ev)
		case <-a.kick:
			a.Evaluate(ctx)
		default:
			return
		}
	}
}
