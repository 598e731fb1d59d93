package voice

import "github.com/set-night/mindvoice/internal/domain"

// State derives the user-facing voice state. Playback wins over an idle
// microphone; listening and playing never hold together.
func State(in InputStatus, playing bool) (domain.VoiceState, string) {
	switch in.State {
	case InputDenied:
		return domain.VoiceDenied, in.Message
	case InputUnsupported:
		return domain.VoiceUnsupported, in.Message
	case InputTransientError:
		return domain.VoiceError, in.Message
	}
	if playing {
		return domain.VoiceTtsPlaying, ""
	}
	if in.State == InputListening {
		return domain.VoiceListening, ""
	}
	return domain.VoiceIdle, ""
}
