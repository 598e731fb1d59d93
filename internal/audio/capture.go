package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Capture records bounded windows from the default (or configured)
// microphone with ffmpeg.
type Capture struct {
	device string
	goos   string
}

func NewCapture(device string) *Capture {
	return &Capture{device: device, goos: runtime.GOOS}
}

// Available reports whether ffmpeg can be found.
func (c *Capture) Available() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return ErrFFmpegMissing
	}
	if _, err := captureArgs(c.goos, c.device, time.Second); err != nil {
		return err
	}
	return nil
}

// Record captures up to window of audio and returns it as WAV. Cancelling
// ctx stops the capture early and returns ctx.Err().
func (c *Capture) Record(ctx context.Context, window time.Duration) ([]byte, error) {
	if err := c.Available(); err != nil {
		return nil, err
	}
	args, err := captureArgs(c.goos, c.device, window)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runErr != nil {
		if isPermissionFailure(stderr.String()) {
			return nil, ErrMicPermission
		}
		return nil, fmt.Errorf("ffmpeg mic capture: %w: %s", runErr, strings.TrimSpace(stderr.String()))
	}

	pcm, rate, _, err := parseWAV(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	if len(pcm) == 0 || isSilent(pcm) {
		return nil, ErrEmptyCapture
	}
	return EncodeWAV(Clip{PCM: pcm, SampleRate: rate}), nil
}

func captureArgs(goos, device string, window time.Duration) ([]string, error) {
	secs := strconv.FormatFloat(window.Seconds(), 'f', 2, 64)
	var input []string
	switch goos {
	case "darwin":
		if device == "" {
			device = ":0"
		}
		input = []string{"-f", "avfoundation", "-i", device}
	case "linux":
		if device == "" {
			device = "default"
		}
		input = []string{"-f", "pulse", "-i", device}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	args = append(args,
		"-t", secs,
		"-ac", "1", "-ar", strconv.Itoa(MicSampleRate),
		"-f", "wav", "-",
	)
	return args, nil
}

var permissionMarkers = []string{
	"permission denied",
	"operation not permitted",
	"not authorized",
	"access denied",
}

func isPermissionFailure(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, m := range permissionMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// isSilent reports whether every sample stays under a small noise floor.
func isSilent(pcm []byte) bool {
	const floor = 200
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		if v > floor || v < -floor {
			return false
		}
	}
	return true
}

// IsUnsupported reports whether err means capture cannot work on this
// machine at all.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrFFmpegMissing) || errors.Is(err, ErrUnsupportedPlatform)
}
