package domain

// VoiceState is derived from the input and output controllers; it is never
// stored.
type VoiceState int

const (
	VoiceIdle VoiceState = iota
	VoiceListening
	VoiceTtsPlaying
	VoiceDenied
	VoiceUnsupported
	VoiceError
)

func (s VoiceState) String() string {
	switch s {
	case VoiceIdle:
		return "idle"
	case VoiceListening:
		return "listening"
	case VoiceTtsPlaying:
		return "speaking"
	case VoiceDenied:
		return "microphone denied"
	case VoiceUnsupported:
		return "microphone unsupported"
	case VoiceError:
		return "error"
	default:
		return "unknown"
	}
}
