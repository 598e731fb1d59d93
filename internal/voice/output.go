package voice

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/set-night/mindvoice/internal/audio"
	"github.com/set-night/mindvoice/internal/domain"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (domain.Blob, error)
}

// Player is the process-wide audio sink.
type Player interface {
	Play(ctx context.Context, clip audio.Clip) error
	Stop()
}

// Output speaks one utterance at a time. A new Speak replaces whatever is
// being synthesized or played.
type Output struct {
	synth  Synthesizer
	player Player

	mu        sync.Mutex
	playing   bool
	gen       uint64
	cancel    context.CancelFunc
	observers []func(playing bool)

	notifyMu sync.Mutex
	wg       sync.WaitGroup
}

func NewOutput(synth Synthesizer, player Player) *Output {
	return &Output{synth: synth, player: player}
}

// OnChange registers fn for playing-flag transitions. Observers must not
// call back into Output.
func (o *Output) OnChange(fn func(playing bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

func (o *Output) Playing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

// Speak raises the playing flag before returning, then synthesizes and
// plays text in the background. The flag covers synthesis so nothing
// re-arms the microphone in between.
func (o *Output) Speak(ctx context.Context, text, voice string) {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	wasPlaying := o.playing
	o.gen++
	gen := o.gen
	uctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.playing = true
	observers := slices.Clone(o.observers)
	o.notifyMu.Lock()
	o.mu.Unlock()

	if !wasPlaying {
		for _, fn := range observers {
			fn(true)
		}
	}
	o.notifyMu.Unlock()

	if wasPlaying {
		o.player.Stop()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.finish(gen)
		o.play(uctx, text, voice)
	}()
}

func (o *Output) play(ctx context.Context, text, voice string) {
	blob, err := o.synth.Synthesize(ctx, text, voice)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("synthesize speech", "error", err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	clip, err := audio.DecodePayload(blob)
	if err != nil {
		slog.Error("decode speech", "error", err, "mime", blob.MIMEType)
		return
	}
	err = o.player.Play(ctx, clip)
	if err != nil && !errors.Is(err, audio.ErrPlaybackStopped) && !errors.Is(err, context.Canceled) {
		slog.Error("play speech", "error", err)
	}
}

// finish clears the flag unless a newer utterance has taken over.
func (o *Output) finish(gen uint64) {
	o.mu.Lock()
	if o.gen != gen || !o.playing {
		o.mu.Unlock()
		return
	}
	o.playing = false
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.notifyLocked(false)
}

// Stop silences the current utterance.
func (o *Output) Stop() {
	o.mu.Lock()
	if !o.playing {
		o.mu.Unlock()
		return
	}
	o.gen++
	o.playing = false
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.player.Stop()
	o.notifyLocked(false)
}

// notifyLocked hands the lock over to notifyMu and runs observers.
func (o *Output) notifyLocked(playing bool) {
	observers := slices.Clone(o.observers)
	o.notifyMu.Lock()
	o.mu.Unlock()
	defer o.notifyMu.Unlock()
	for _, fn := range observers {
		fn(playing)
	}
}

// Wait blocks until background utterances have finished.
func (o *Output) Wait() {
	o.wg.Wait()
}
