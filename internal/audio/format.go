// Package audio drives the machine's microphone and speaker through ffmpeg
// and ffplay, and decodes backend audio payloads into PCM clips.
package audio

import (
	"errors"
	"time"
)

const (
	MicSampleRate     = 16000
	SpeakerSampleRate = 24000
	bytesPerSample    = 2
)

var (
	ErrFFmpegMissing    = errors.New("ffmpeg is required for microphone capture (install ffmpeg and ensure it is in PATH)")
	ErrFFplayMissing    = errors.New("ffplay is required for speech playback (install ffmpeg/ffplay and ensure it is in PATH)")
	ErrMicPermission    = errors.New("microphone access was not granted")
	ErrEmptyCapture     = errors.New("no audio captured")
	ErrPlaybackStopped  = errors.New("playback stopped")
	ErrUnsupportedAudio = errors.New("unsupported audio payload")

	ErrUnsupportedPlatform = errors.New("microphone capture is only implemented for darwin and linux")
)

// Clip is mono signed 16-bit little-endian PCM.
type Clip struct {
	PCM        []byte
	SampleRate int
}

func (c Clip) Duration() time.Duration {
	return time.Duration(bytesToMS(int64(len(c.PCM)), int64(c.SampleRate))) * time.Millisecond
}

func bytesToMS(bytes int64, sampleRate int64) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return (bytes * 1000) / (sampleRate * bytesPerSample)
}
