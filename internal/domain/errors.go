package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotUserMessage   = errors.New("only user messages can be edited")
	ErrTurnInFlight     = errors.New("a turn is already in flight for this session")
	ErrRecordNotFound   = errors.New("record not found")
	ErrMediaNotFound    = errors.New("media not found")
	ErrMicDenied        = errors.New("microphone permission denied")
	ErrMicUnsupported   = errors.New("speech recognition is not supported on this machine")
	ErrAlreadyListening = errors.New("recognition already started")
)

type BackendErrorKind int

const (
	BackendGeneric BackendErrorKind = iota
	BackendQuota
)

func (k BackendErrorKind) String() string {
	if k == BackendQuota {
		return "quota"
	}
	return "generic"
}

// BackendError is a classified failure from the generative backend.
type BackendError struct {
	Kind BackendErrorKind
	Op   string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsQuota reports whether err is a quota or rate-limit exhaustion.
func IsQuota(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == BackendQuota
}
