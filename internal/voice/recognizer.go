// Package voice coordinates speech input and spoken output: the microphone
// input state machine, the single-flight speech player, the arbiter that
// keeps them mutually exclusive, and the auto-listen policy.
package voice

import "context"

type EventKind int

const (
	EventStart EventKind = iota
	EventResult
	EventError
	EventEnd
)

// ErrorCode classifies recognition failures the way speech-to-text
// engines report them.
type ErrorCode string

const (
	CodeNotAllowed   ErrorCode = "not-allowed"
	CodeNoSpeech     ErrorCode = "no-speech"
	CodeNetwork      ErrorCode = "network"
	CodeAborted      ErrorCode = "aborted"
	CodeAudioCapture ErrorCode = "audio-capture"
)

// Event is emitted by a Recognizer. Results are final transcripts only.
type Event struct {
	Kind       EventKind
	Transcript string
	Code       ErrorCode
	Message    string
}

// Recognizer is a non-continuous, final-result-only speech-to-text engine
// with a fixed locale. Each Start produces one start event, at most one
// result or error, and one end event.
type Recognizer interface {
	// Start begins one recognition. It returns domain.ErrAlreadyListening
	// when a recognition is active and domain.ErrMicUnsupported when no
	// capture is possible on this machine.
	Start(ctx context.Context) error
	Stop()
	Events() <-chan Event
	// PermissionGranted probes microphone access.
	PermissionGranted(ctx context.Context) (bool, error)
}
