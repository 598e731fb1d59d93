package voice

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/set-night/mindvoice/internal/domain"
)

type InputState int

const (
	InputIdle InputState = iota
	InputListening
	InputDenied
	InputUnsupported
	InputTransientError
)

func (s InputState) String() string {
	switch s {
	case InputIdle:
		return "idle"
	case InputListening:
		return "listening"
	case InputDenied:
		return "denied"
	case InputUnsupported:
		return "unsupported"
	case InputTransientError:
		return "error"
	default:
		return "unknown"
	}
}

const transientErrorText = "Voice input failed. Try again."

// InputStatus is a snapshot of the input controller.
type InputStatus struct {
	State           InputState
	Message         string
	ManuallyStopped bool
	// Forwarding is set while a transcript is being sent as a prompt.
	Forwarding bool
}

// TranscriptSink receives final transcripts as if they had been typed.
type TranscriptSink func(ctx context.Context, transcript string)

// Input wraps a Recognizer as a state machine. Observers run in commit
// order and must not call back into Input.
type Input struct {
	rec  Recognizer
	sink TranscriptSink

	mu              sync.Mutex
	state           InputState
	message         string
	manuallyStopped bool
	forwarding      int
	observers       []func(InputStatus)

	notifyMu sync.Mutex
	wg       sync.WaitGroup
}

func NewInput(rec Recognizer, sink TranscriptSink) *Input {
	return &Input{rec: rec, sink: sink}
}

func (in *Input) OnChange(fn func(InputStatus)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.observers = append(in.observers, fn)
}

func (in *Input) Status() InputStatus {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.statusLocked()
}

func (in *Input) statusLocked() InputStatus {
	return InputStatus{
		State:           in.state,
		Message:         in.message,
		ManuallyStopped: in.manuallyStopped,
		Forwarding:      in.forwarding > 0,
	}
}

// update applies fn under the lock and notifies observers when the status
// changed.
func (in *Input) update(fn func()) {
	in.mu.Lock()
	before := in.statusLocked()
	fn()
	after := in.statusLocked()
	if before == after {
		in.mu.Unlock()
		return
	}
	observers := slices.Clone(in.observers)
	in.notifyMu.Lock()
	in.mu.Unlock()

	defer in.notifyMu.Unlock()
	for _, o := range observers {
		o(after)
	}
}

// Start asks the recognizer to listen. Manual starts clear the manual-stop
// flag and any transient error; automatic starts do not.
func (in *Input) Start(ctx context.Context, manual bool) error {
	in.mu.Lock()
	state := in.state
	in.mu.Unlock()

	switch state {
	case InputDenied:
		return domain.ErrMicDenied
	case InputUnsupported:
		return domain.ErrMicUnsupported
	case InputListening:
		return nil
	case InputTransientError:
		if !manual {
			return nil
		}
	}
	if manual {
		in.update(func() {
			in.manuallyStopped = false
			if in.state == InputTransientError {
				in.state, in.message = InputIdle, ""
			}
		})
	}

	err := in.rec.Start(ctx)
	switch {
	case err == nil, errors.Is(err, domain.ErrAlreadyListening):
		in.update(func() {
			if in.state == InputIdle {
				in.state, in.message = InputListening, ""
			}
		})
		return nil
	case errors.Is(err, domain.ErrMicUnsupported):
		in.update(func() { in.state, in.message = InputUnsupported, err.Error() })
		return err
	default:
		slog.Warn("start speech recognition", "error", err)
		in.update(func() { in.state, in.message = InputTransientError, transientErrorText })
		return err
	}
}

// Stop is the user's manual stop; it suppresses auto-listen until the next
// successful send.
func (in *Input) Stop() {
	in.update(func() {
		in.manuallyStopped = true
		if in.state == InputListening {
			in.state = InputIdle
		}
	})
	in.rec.Stop()
}

// halt stops listening without recording a manual stop.
func (in *Input) halt() {
	listening := false
	in.update(func() {
		if in.state == InputListening {
			listening = true
			in.state = InputIdle
		}
	})
	if listening {
		in.rec.Stop()
	}
}

func (in *Input) ClearManualStop() {
	in.update(func() { in.manuallyStopped = false })
}

// RefreshPermission re-checks microphone access while denied.
func (in *Input) RefreshPermission(ctx context.Context) error {
	if in.Status().State != InputDenied {
		return nil
	}
	granted, err := in.rec.PermissionGranted(ctx)
	if err != nil {
		return err
	}
	if granted {
		in.update(func() {
			if in.state == InputDenied {
				in.state, in.message = InputIdle, ""
			}
		})
	}
	return nil
}

// WatchPermission polls RefreshPermission until ctx ends.
func (in *Input) WatchPermission(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := in.RefreshPermission(ctx); err != nil {
				slog.Debug("refresh microphone permission", "error", err)
			}
		}
	}
}

// Run consumes recognizer events until ctx ends.
func (in *Input) Run(ctx context.Context) {
	events := in.rec.Events()
	for {
		select {
		case <-ctx.Done():
			in.wg.Wait()
			return
		case ev := <-events:
			in.handle(ctx, ev)
		}
	}
}

func (in *Input) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventStart:
		in.update(func() {
			if in.state == InputIdle {
				in.state, in.message = InputListening, ""
			}
		})
	case EventResult:
		text := strings.TrimSpace(ev.Transcript)
		if text == "" {
			return
		}
		in.update(func() { in.forwarding++ })
		in.wg.Add(1)
		go func() {
			defer in.wg.Done()
			defer in.update(func() { in.forwarding-- })
			in.sink(ctx, text)
		}()
	case EventError:
		in.handleError(ev)
	case EventEnd:
		in.update(func() {
			if in.state == InputListening {
				in.state = InputIdle
			}
		})
	}
}

func (in *Input) handleError(ev Event) {
	switch ev.Code {
	case CodeNotAllowed:
		in.update(func() { in.state, in.message = InputDenied, domain.ErrMicDenied.Error() })
	case CodeNoSpeech, CodeNetwork, CodeAborted:
		slog.Debug("speech recognition ended without result", "code", ev.Code)
	default:
		slog.Warn("speech recognition failed", "code", ev.Code, "message", ev.Message)
		in.update(func() { in.state, in.message = InputTransientError, transientErrorText })
	}
}

// Wait blocks until forwarded transcripts have been handled.
func (in *Input) Wait() {
	in.wg.Wait()
}
