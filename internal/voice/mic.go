package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/set-night/mindvoice/internal/audio"
	"github.com/set-night/mindvoice/internal/domain"
)

const permissionProbeWindow = 300 * time.Millisecond

type Capturer interface {
	Available() error
	Record(ctx context.Context, window time.Duration) ([]byte, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio domain.Blob, locale string) (string, error)
}

// MicRecognizer records one listen window with ffmpeg and transcribes it
// with the backend.
type MicRecognizer struct {
	capture     Capturer
	transcriber Transcriber
	locale      string
	window      time.Duration
	events      chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewMicRecognizer(capture Capturer, transcriber Transcriber, locale string, window time.Duration) *MicRecognizer {
	return &MicRecognizer{
		capture:     capture,
		transcriber: transcriber,
		locale:      locale,
		window:      window,
		events:      make(chan Event, 16),
	}
}

func (r *MicRecognizer) Events() <-chan Event {
	return r.events
}

func (r *MicRecognizer) Start(ctx context.Context) error {
	if err := r.capture.Available(); err != nil {
		if audio.IsUnsupported(err) {
			return domain.ErrMicUnsupported
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return domain.ErrAlreadyListening
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	// Start and end events are sent under mu so a new recognition's start
	// never overtakes the previous one's end.
	r.events <- Event{Kind: EventStart}
	go r.run(runCtx)
	return nil
}

func (r *MicRecognizer) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *MicRecognizer) run(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.cancel()
		r.cancel = nil
		r.events <- Event{Kind: EventEnd}
		r.mu.Unlock()
	}()

	wav, err := r.capture.Record(ctx, r.window)
	if err != nil {
		r.events <- captureError(ctx, err)
		return
	}

	text, err := r.transcriber.Transcribe(ctx, domain.Blob{Data: wav, MIMEType: audio.WAVMIMEType}, r.locale)
	if ctx.Err() != nil {
		r.events <- Event{Kind: EventError, Code: CodeAborted}
		return
	}
	if err != nil {
		slog.Warn("transcribe speech", "error", err)
		r.events <- Event{Kind: EventError, Code: CodeNetwork, Message: err.Error()}
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.events <- Event{Kind: EventError, Code: CodeNoSpeech}
		return
	}
	r.events <- Event{Kind: EventResult, Transcript: text}
}

func captureError(ctx context.Context, err error) Event {
	switch {
	case ctx.Err() != nil:
		return Event{Kind: EventError, Code: CodeAborted}
	case errors.Is(err, audio.ErrMicPermission):
		return Event{Kind: EventError, Code: CodeNotAllowed, Message: err.Error()}
	case errors.Is(err, audio.ErrEmptyCapture):
		return Event{Kind: EventError, Code: CodeNoSpeech}
	default:
		return Event{Kind: EventError, Code: CodeAudioCapture, Message: err.Error()}
	}
}

// PermissionGranted records a short probe; only an explicit permission
// failure counts as denied.
func (r *MicRecognizer) PermissionGranted(ctx context.Context) (bool, error) {
	_, err := r.capture.Record(ctx, permissionProbeWindow)
	switch {
	case err == nil, errors.Is(err, audio.ErrEmptyCapture):
		return true, nil
	case errors.Is(err, audio.ErrMicPermission):
		return false, nil
	default:
		return false, err
	}
}

var _ Recognizer = (*MicRecognizer)(nil)
