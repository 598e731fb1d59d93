package audio

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/set-night/mindvoice/internal/domain"
)

func pcmOf(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestDecodeL16AtSpeakerRate(t *testing.T) {
	pcm := pcmOf(1, 2, 3, 4)
	clip, err := DecodePayload(domain.Blob{Data: pcm, MIMEType: "audio/L16;codec=pcm;rate=24000"})
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if clip.SampleRate != SpeakerSampleRate || string(clip.PCM) != string(pcm) {
		t.Fatalf("clip = %+v", clip)
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	pcm := pcmOf(100, -100, 200, -200)
	wav := EncodeWAV(Clip{PCM: pcm, SampleRate: SpeakerSampleRate})
	clip, err := DecodePayload(domain.Blob{Data: wav, MIMEType: WAVMIMEType})
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if string(clip.PCM) != string(pcm) {
		t.Fatalf("pcm = %v, want %v", clip.PCM, pcm)
	}

	// The RIFF magic wins over a generic MIME type.
	if _, err := DecodePayload(domain.Blob{Data: wav, MIMEType: "application/octet-stream"}); err != nil {
		t.Fatalf("sniffed WAV: %v", err)
	}
}

func TestDecodeStereoDownmix(t *testing.T) {
	clip, err := DecodePayload(domain.Blob{
		Data:     pcmOf(100, 300, -100, -300),
		MIMEType: "audio/L16;rate=24000;channels=2",
	})
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if want := pcmOf(200, -200); string(clip.PCM) != string(want) {
		t.Fatalf("pcm = %v, want %v", clip.PCM, want)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []domain.Blob{
		{},
		{Data: []byte{1, 2}, MIMEType: "audio/mpeg"},
		{Data: []byte{1, 2}, MIMEType: "audio/L16;rate=abc"},
		{Data: []byte("RIFF\x00\x00\x00\x00WAVE"), MIMEType: "audio/wav"},
	}
	for _, b := range tests {
		if _, err := DecodePayload(b); !errors.Is(err, ErrUnsupportedAudio) {
			t.Errorf("DecodePayload(%q) = %v, want ErrUnsupportedAudio", b.MIMEType, err)
		}
	}
}

func TestClipDuration(t *testing.T) {
	c := Clip{PCM: make([]byte, SpeakerSampleRate*bytesPerSample/2), SampleRate: SpeakerSampleRate}
	if got := c.Duration(); got != 500*time.Millisecond {
		t.Fatalf("Duration = %v", got)
	}
}

func TestCaptureArgs(t *testing.T) {
	args, err := captureArgs("linux", "", 6*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"-hide_banner", "-loglevel", "error", "-f", "pulse", "-i", "default",
		"-t", "6.00", "-ac", "1", "-ar", "16000", "-f", "wav", "-"}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
	if _, err := captureArgs("plan9", "", time.Second); !IsUnsupported(err) {
		t.Fatalf("plan9 err = %v", err)
	}
}

func TestPermissionAndSilence(t *testing.T) {
	if !isPermissionFailure("[pulse] Operation not permitted") {
		t.Error("expected permission failure")
	}
	if isPermissionFailure("Input/output error") {
		t.Error("unexpected permission failure")
	}
	if !isSilent(pcmOf(0, 10, -10)) || isSilent(pcmOf(0, 5000)) {
		t.Error("silence detection mismatch")
	}
}
