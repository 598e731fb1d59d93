package voice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/set-night/mindvoice/internal/audio"
	"github.com/set-night/mindvoice/internal/domain"
)

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	granted  bool
	onStart  func()
	events   chan Event
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{events: make(chan Event, 16)}
}

func (r *fakeRecognizer) Start(context.Context) error {
	r.mu.Lock()
	r.starts++
	err, hook := r.startErr, r.onStart
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (r *fakeRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *fakeRecognizer) Events() <-chan Event { return r.events }

func (r *fakeRecognizer) PermissionGranted(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.granted, nil
}

func (r *fakeRecognizer) counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *fakeSynth) Synthesize(_ context.Context, text, _ string) (domain.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	if s.err != nil {
		return domain.Blob{}, s.err
	}
	return domain.Blob{Data: []byte{1, 0, 2, 0}, MIMEType: "audio/L16;codec=pcm;rate=24000"}, nil
}

func (s *fakeSynth) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

// fakePlayer blocks each Play until release is closed or the utterance is
// cancelled.
type fakePlayer struct {
	mu      sync.Mutex
	plays   int
	stops   int
	release chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{release: make(chan struct{})}
}

func (p *fakePlayer) Play(ctx context.Context, _ audio.Clip) error {
	p.mu.Lock()
	p.plays++
	p.mu.Unlock()
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

type rig struct {
	rec     *fakeRecognizer
	synth   *fakeSynth
	player  *fakePlayer
	input   *Input
	output  *Output
	arbiter *Arbiter
	auto    *AutoListen

	mu   sync.Mutex
	last domain.Message
	sent []string
}

func newRig(t *testing.T, autoListen bool) *rig {
	t.Helper()
	r := &rig{rec: newFakeRecognizer(), synth: &fakeSynth{}, player: newFakePlayer()}
	r.input = NewInput(r.rec, func(_ context.Context, text string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sent = append(r.sent, text)
	})
	r.output = NewOutput(r.synth, r.player)
	r.arbiter = NewArbiter(r.input, r.output)
	r.auto = NewAutoListen(r.arbiter, r.input, r.output, func() (domain.Message, bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.last, r.last.ID != ""
	}, AutoListenOptions{Enabled: autoListen, SpeechOutput: true, Voice: "Kore"})
	t.Cleanup(func() {
		select {
		case <-r.player.release:
		default:
			close(r.player.release)
		}
		r.output.Wait()
		r.input.Wait()
	})
	return r
}

func (r *rig) setLast(m domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = m
}

func (r *rig) finishPlayback() {
	close(r.player.release)
	r.output.Wait()
}

func TestAutoListenArmsWhenIdle(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, true)

	r.auto.Evaluate(ctx)
	if starts, _ := r.rec.counts(); starts != 1 {
		t.Fatalf("starts = %d, want 1", starts)
	}
	if r.input.Status().State != InputListening {
		t.Fatalf("state = %v", r.input.Status().State)
	}

	// Level-triggered: listening already, nothing more to do.
	r.auto.Evaluate(ctx)
	if starts, _ := r.rec.counts(); starts != 1 {
		t.Fatalf("starts = %d after re-evaluate", starts)
	}
}

func TestAutoListenNeverArmsWhilePlaying(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, true)

	r.output.Speak(ctx, "hello there", "Kore")
	if !r.output.Playing() {
		t.Fatal("playing flag must be raised before Speak returns")
	}
	for range 3 {
		r.auto.Evaluate(ctx)
	}
	r.auto.Drain(ctx)
	if starts, _ := r.rec.counts(); starts != 0 {
		t.Fatalf("listening started %d times during playback", starts)
	}

	r.finishPlayback()
	if r.output.Playing() {
		t.Fatal("playing flag not cleared at natural end")
	}
	r.auto.Drain(ctx)
	if starts, _ := r.rec.counts(); starts != 1 {
		t.Fatalf("starts after playback = %d, want 1", starts)
	}
}

func TestTurnInFlightBlocksPendingKick(t *testing.T) {
	ctx := context.Background()
	for range 50 {
		r := newRig(t, true)
		r.auto.TurnStarted("s1")
		r.auto.Kick()
		r.auto.Drain(ctx)
		if starts, _ := r.rec.counts(); starts != 0 {
			t.Fatal("listening started while a turn is in flight")
		}
	}
}

func TestTurnLifecycleSpeaksOnceThenListens(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, true)

	r.auto.TurnStarted("s1")
	r.auto.Drain(ctx)
	if starts, _ := r.rec.counts(); starts != 0 {
		t.Fatal("listening started while a turn is in flight")
	}

	r.setLast(domain.Message{ID: "m1", Role: domain.RoleModel, Text: "Here you go."})
	r.auto.TurnFinished("s1", nil)
	r.auto.Drain(ctx)
	if !r.output.Playing() {
		t.Fatal("reply not being spoken")
	}
	if starts, _ := r.rec.counts(); starts != 0 {
		t.Fatal("listening started before the reply was spoken")
	}

	r.finishPlayback()
	if r.synth.calls() != 1 {
		t.Fatalf("synth calls = %d, want 1", r.synth.calls())
	}
	r.auto.Drain(ctx)
	if starts, _ := r.rec.counts(); starts != 1 {
		t.Fatalf("starts = %d, want 1 after speech", starts)
	}

	// The same reply is never spoken twice.
	r.auto.TurnStarted("s1")
	r.auto.TurnFinished("s1", nil)
	r.auto.Drain(ctx)
	if r.synth.calls() != 1 {
		t.Fatalf("synth calls = %d, want 1", r.synth.calls())
	}
}

func TestErrorRepliesAreNotSpoken(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)

	r.setLast(domain.Message{ID: "e1", Role: domain.RoleModel, Text: "Sorry", IsError: true})
	r.auto.TurnStarted("s")
	r.auto.TurnFinished("s", errors.New("boom"))
	r.auto.Drain(ctx)
	if r.synth.calls() != 0 {
		t.Fatal("error message was spoken")
	}

	r.setLast(domain.Message{ID: "u1", Role: domain.RoleUser, Text: "hi"})
	r.auto.TurnStarted("s")
	r.auto.TurnFinished("s", nil)
	r.auto.Drain(ctx)
	if r.synth.calls() != 0 {
		t.Fatal("user message was spoken")
	}
}

func TestSpeechOutputDisabled(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	r.auto.SetSpeechOutput(false)
	r.setLast(domain.Message{ID: "m1", Role: domain.RoleModel, Text: "Hi"})
	r.auto.TurnStarted("s")
	r.auto.TurnFinished("s", nil)
	r.auto.Drain(ctx)
	if r.synth.calls() != 0 {
		t.Fatal("spoke with speech output disabled")
	}
}

func TestManualStopSuppressesUntilSuccessfulSend(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, true)

	r.auto.Evaluate(ctx)
	r.input.Stop()
	st := r.input.Status()
	if st.State != InputIdle || !st.ManuallyStopped {
		t.Fatalf("status after stop = %+v", st)
	}
	r.auto.Drain(ctx)
	r.auto.Evaluate(ctx)
	if starts, _ := r.rec.counts(); starts != 1 {
		t.Fatalf("auto-listen re-armed after manual stop: starts = %d", starts)
	}

	r.auto.TurnStarted("s")
	r.auto.TurnFinished("s", errors.New("failed"))
	r.auto.Drain(ctx)
	if !r.input.Status().ManuallyStopped {
		t.Fatal("failed send cleared the manual stop")
	}

	r.auto.TurnStarted("s")
	r.auto.TurnFinished("s", nil)
	r.auto.Drain(ctx)
	if r.input.Status().ManuallyStopped {
		t.Fatal("successful send did not clear the manual stop")
	}
	if starts, _ := r.rec.counts(); starts != 2 {
		t.Fatalf("starts = %d, want re-armed", starts)
	}
}

func TestDisablingAutoListenStopsImmediately(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, true)
	r.auto.Evaluate(ctx)

	r.auto.SetEnabled(false)
	r.auto.Drain(ctx)
	if r.input.Status().State != InputIdle {
		t.Fatalf("state = %v, want idle", r.input.Status().State)
	}
	if _, stops := r.rec.counts(); stops != 1 {
		t.Fatalf("stops = %d", stops)
	}
	if r.input.Status().ManuallyStopped {
		t.Fatal("disabling auto-listen is not a manual stop")
	}
}

func TestPlaybackHaltsListening(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)

	if err := r.arbiter.ManualListen(ctx); err != nil {
		t.Fatal(err)
	}
	r.output.Speak(ctx, "reply", "Kore")

	st := r.input.Status()
	if st.State != InputIdle || st.ManuallyStopped {
		t.Fatalf("status = %+v, want idle without manual stop", st)
	}
	if _, stops := r.rec.counts(); stops != 1 {
		t.Fatalf("recognizer stops = %d", stops)
	}
	if vs, _ := State(st, r.output.Playing()); vs != domain.VoiceTtsPlaying {
		t.Fatalf("voice state = %v", vs)
	}
}

func TestManualListenBargesIn(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)

	r.output.Speak(ctx, "a long answer", "Kore")
	if err := r.arbiter.ManualListen(ctx); err != nil {
		t.Fatalf("ManualListen: %v", err)
	}
	r.output.Wait()
	if r.output.Playing() {
		t.Fatal("playback not stopped by barge-in")
	}
	if r.input.Status().State != InputListening {
		t.Fatalf("state = %v", r.input.Status().State)
	}
}

func TestPlaybackDuringRecognizerStartClosesMicrophone(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	r.rec.onStart = func() { r.output.Speak(ctx, "late reply", "Kore") }

	if err := r.arbiter.ManualListen(ctx); err != nil {
		t.Fatalf("ManualListen: %v", err)
	}
	if !r.output.Playing() {
		t.Fatal("expected playback")
	}
	if st := r.input.Status().State; st != InputIdle {
		t.Fatalf("state = %v, want idle while playing", st)
	}
}

func TestAutoListenRefusedWhenPlaybackBeginsDuringStart(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)
	r.rec.onStart = func() { r.output.Speak(ctx, "late reply", "Kore") }

	if r.arbiter.AutoListen(ctx) {
		t.Fatal("AutoListen reported listening while playing")
	}
	if st := r.input.Status().State; st != InputIdle {
		t.Fatalf("state = %v, want idle", st)
	}
}

func TestSpeakReplacesPreviousUtterance(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)

	var transitions []bool
	var mu sync.Mutex
	r.output.OnChange(func(p bool) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, p)
	})

	r.output.Speak(ctx, "first", "Kore")
	r.output.Speak(ctx, "second", "Kore")
	if !r.output.Playing() {
		t.Fatal("not playing after second Speak")
	}
	r.finishPlayback()
	if r.output.Playing() {
		t.Fatal("still playing")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("transitions = %v, want [true false]", transitions)
	}
}

func TestSynthesisFailureClearsPlaying(t *testing.T) {
	r := newRig(t, false)
	r.synth.err = errors.New("tts down")
	r.output.Speak(context.Background(), "hi", "Kore")
	r.output.Wait()
	if r.output.Playing() {
		t.Fatal("playing flag stuck after synthesis failure")
	}
}

func TestInputErrors(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)

	r.input.handle(ctx, Event{Kind: EventError, Code: CodeNoSpeech})
	if r.input.Status().State != InputIdle {
		t.Fatal("no-speech must be silent")
	}

	r.input.handle(ctx, Event{Kind: EventError, Code: CodeAudioCapture, Message: "device busy"})
	if st := r.input.Status(); st.State != InputTransientError || st.Message == "" {
		t.Fatalf("status = %+v", st)
	}
	if err := r.input.Start(ctx, false); err != nil {
		t.Fatal(err)
	}
	if starts, _ := r.rec.counts(); starts != 0 {
		t.Fatal("automatic start must not clear a transient error")
	}
	if err := r.input.Start(ctx, true); err != nil {
		t.Fatal(err)
	}
	if r.input.Status().State != InputListening {
		t.Fatal("manual start did not recover from transient error")
	}
	r.input.handle(ctx, Event{Kind: EventEnd})

	r.input.handle(ctx, Event{Kind: EventError, Code: CodeNotAllowed})
	if r.input.Status().State != InputDenied {
		t.Fatal("not-allowed must deny")
	}
	if err := r.input.Start(ctx, true); !errors.Is(err, domain.ErrMicDenied) {
		t.Fatalf("Start while denied = %v", err)
	}
	if err := r.input.RefreshPermission(ctx); err != nil || r.input.Status().State != InputDenied {
		t.Fatal("denied must persist while permission is not granted")
	}
	r.rec.mu.Lock()
	r.rec.granted = true
	r.rec.mu.Unlock()
	if err := r.input.RefreshPermission(ctx); err != nil || r.input.Status().State != InputIdle {
		t.Fatalf("permission grant did not clear denied: %+v", r.input.Status())
	}
}

func TestInputStartAlreadyListeningIsBenign(t *testing.T) {
	r := newRig(t, false)
	r.rec.startErr = domain.ErrAlreadyListening
	if err := r.input.Start(context.Background(), true); err != nil {
		t.Fatalf("Start = %v", err)
	}
	if r.input.Status().State != InputListening {
		t.Fatal("expected listening")
	}
}

func TestInputUnsupported(t *testing.T) {
	r := newRig(t, false)
	r.rec.startErr = domain.ErrMicUnsupported
	if err := r.input.Start(context.Background(), true); !errors.Is(err, domain.ErrMicUnsupported) {
		t.Fatalf("Start = %v", err)
	}
	if err := r.input.Start(context.Background(), true); !errors.Is(err, domain.ErrMicUnsupported) {
		t.Fatalf("second Start = %v", err)
	}
	if starts, _ := r.rec.counts(); starts != 1 {
		t.Fatalf("starts = %d, unsupported must be sticky", starts)
	}
}

func TestTranscriptForwarding(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, false)

	r.input.handle(ctx, Event{Kind: EventStart})
	r.input.handle(ctx, Event{Kind: EventResult, Transcript: "   "})
	r.input.handle(ctx, Event{Kind: EventResult, Transcript: "  what time is it "})
	r.input.handle(ctx, Event{Kind: EventEnd})
	r.input.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) != 1 || r.sent[0] != "what time is it" {
		t.Fatalf("sent = %q", r.sent)
	}
	if st := r.input.Status(); st.State != InputIdle || st.Forwarding {
		t.Fatalf("status = %+v", st)
	}
}
