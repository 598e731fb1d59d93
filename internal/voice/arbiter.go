package voice

import (
	"context"
	"sync"
)

// Arbiter keeps the microphone closed while the assistant is speaking:
// playback start halts listening, automatic listening is refused while
// playing, and a manual listen barges in by stopping playback first.
type Arbiter struct {
	input  *Input
	output *Output

	// mu serializes listen requests. The playback observer never takes it.
	mu sync.Mutex
}

func NewArbiter(input *Input, output *Output) *Arbiter {
	a := &Arbiter{input: input, output: output}
	output.OnChange(func(playing bool) {
		if playing {
			input.halt()
		}
	})
	return a
}

// ManualListen is a user request to listen now.
func (a *Arbiter) ManualListen(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.output.Playing() {
		a.output.Stop()
	}
	if err := a.input.Start(ctx, true); err != nil {
		return err
	}
	a.closeIfPlaying()
	return nil
}

// AutoListen starts listening unless playback is active. It reports
// whether listening is on afterwards.
func (a *Arbiter) AutoListen(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.output.Playing() {
		return false
	}
	if err := a.input.Start(ctx, false); err != nil {
		return false
	}
	return !a.closeIfPlaying()
}

// closeIfPlaying covers playback that began while the recognizer was
// starting, before the input recorded Listening.
func (a *Arbiter) closeIfPlaying() bool {
	if !a.output.Playing() {
		return false
	}
	a.input.halt()
	return true
}
