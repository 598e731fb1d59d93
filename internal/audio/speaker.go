package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

const writeChunk = 4096

// Speaker is the single long-lived ffplay sink. Play blocks until the clip
// has drained or Stop is called.
type Speaker struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	exited chan struct{}
	stopCh chan struct{}

	playMu sync.Mutex
}

func NewSpeaker() (*Speaker, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, ErrFFplayMissing
	}
	s := &Speaker{}
	if err := s.startLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Speaker) startLocked() error {
	s.cmd = exec.Command("ffplay",
		"-nodisp",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(SpeakerSampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	s.cmd.Stdout = io.Discard
	s.cmd.Stderr = io.Discard
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.stdin = stdin
	exited := make(chan struct{})
	s.exited = exited
	go func(cmd *exec.Cmd) {
		_ = cmd.Wait()
		close(exited)
	}(s.cmd)
	return nil
}

func (s *Speaker) killLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		<-s.exited
	}
	s.cmd = nil
	s.stdin = nil
}

// Resume restarts the player process if it has died.
func (s *Speaker) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		select {
		case <-s.exited:
		default:
			return nil
		}
	}
	s.killLocked()
	return s.startLocked()
}

// Reset drops buffered audio by restarting the player.
func (s *Speaker) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	return s.startLocked()
}

// Play writes clip and waits for it to finish. It returns
// ErrPlaybackStopped when Stop interrupts it.
func (s *Speaker) Play(ctx context.Context, clip Clip) error {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	if clip.SampleRate != SpeakerSampleRate {
		var err error
		if clip, err = Resample(clip, SpeakerSampleRate); err != nil {
			return err
		}
	}
	if err := s.Resume(); err != nil {
		return err
	}

	s.mu.Lock()
	stop := make(chan struct{})
	s.stopCh = stop
	stdin := s.stdin
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.stopCh == stop {
			s.stopCh = nil
		}
		s.mu.Unlock()
	}()

	started := time.Now()
	for off := 0; off < len(clip.PCM); off += writeChunk {
		select {
		case <-stop:
			return ErrPlaybackStopped
		case <-ctx.Done():
			_ = s.Reset()
			return ctx.Err()
		default:
		}
		end := min(off+writeChunk, len(clip.PCM))
		if _, err := stdin.Write(clip.PCM[off:end]); err != nil {
			select {
			case <-stop:
				return ErrPlaybackStopped
			default:
			}
			return fmt.Errorf("write to ffplay: %w", err)
		}
	}

	remaining := clip.Duration() - time.Since(started)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-stop:
		return ErrPlaybackStopped
	case <-ctx.Done():
		_ = s.Reset()
		return ctx.Err()
	}
}

// Stop interrupts the current Play, if any, and discards queued audio.
func (s *Speaker) Stop() {
	s.mu.Lock()
	stop := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	if err := s.Reset(); err != nil {
		slog.Warn("restart speaker", "error", err)
	}
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	return nil
}
