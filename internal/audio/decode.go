package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"mime"
	"strconv"

	"github.com/set-night/mindvoice/internal/domain"
)

// DecodePayload turns a backend audio payload into a clip at the speaker's
// sample rate. Raw L16/PCM payloads take their rate and channel count from
// MIME parameters; WAV payloads from their header.
func DecodePayload(b domain.Blob) (Clip, error) {
	if len(b.Data) == 0 {
		return Clip{}, fmt.Errorf("decode audio: %w: empty payload", ErrUnsupportedAudio)
	}

	var (
		pcm      []byte
		rate     int
		channels = 1
		err      error
	)
	mediaType, params, _ := mime.ParseMediaType(b.MIMEType)
	switch {
	case isWAV(b.Data) || mediaType == "audio/wav" || mediaType == "audio/x-wav" || mediaType == "audio/wave":
		pcm, rate, channels, err = parseWAV(b.Data)
		if err != nil {
			return Clip{}, fmt.Errorf("decode audio: %w", err)
		}
	case mediaType == "audio/l16" || mediaType == "audio/pcm" || mediaType == "audio/raw":
		rate = SpeakerSampleRate
		if v, ok := params["rate"]; ok {
			if rate, err = strconv.Atoi(v); err != nil || rate <= 0 {
				return Clip{}, fmt.Errorf("decode audio: %w: bad rate %q", ErrUnsupportedAudio, v)
			}
		}
		if v, ok := params["channels"]; ok {
			if channels, err = strconv.Atoi(v); err != nil || channels < 1 || channels > 2 {
				return Clip{}, fmt.Errorf("decode audio: %w: bad channels %q", ErrUnsupportedAudio, v)
			}
		}
		pcm = b.Data
	default:
		return Clip{}, fmt.Errorf("decode audio: %w: %s", ErrUnsupportedAudio, b.MIMEType)
	}

	pcm = pcm[:len(pcm)/(bytesPerSample*channels)*(bytesPerSample*channels)]
	if channels == 2 {
		pcm = stereoToMono(pcm)
	}
	clip := Clip{PCM: pcm, SampleRate: rate}
	if rate != SpeakerSampleRate {
		clip, err = Resample(clip, SpeakerSampleRate)
		if err != nil {
			return Clip{}, fmt.Errorf("decode audio: %w", err)
		}
	}
	return clip, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// parseWAV walks the RIFF chunks of a 16-bit PCM WAV file.
func parseWAV(data []byte) (pcm []byte, rate, channels int, err error) {
	if !isWAV(data) {
		return nil, 0, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedAudio)
	}
	haveFmt := false
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		start := off + 8
		end := start + size
		// Streamed captures write 0xFFFFFFFF sizes; clamp to the buffer.
		if end > len(data) || end < start {
			end = len(data)
		}
		body := data[start:end]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return nil, 0, 0, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedAudio)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits := binary.LittleEndian.Uint16(body[14:16])
			if (format != 1 && format != 0xFFFE) || bits != 16 || channels < 1 || channels > 2 || rate <= 0 {
				return nil, 0, 0, fmt.Errorf("%w: need 16-bit PCM mono or stereo", ErrUnsupportedAudio)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, fmt.Errorf("%w: data before fmt", ErrUnsupportedAudio)
			}
			return body, rate, channels, nil
		}

		off = end + size%2
	}
	return nil, 0, 0, fmt.Errorf("%w: no data chunk", ErrUnsupportedAudio)
}

// WAVMIMEType is the payload type EncodeWAV produces.
const WAVMIMEType = "audio/wav"

// EncodeWAV wraps mono 16-bit PCM in a WAV container.
func EncodeWAV(c Clip) []byte {
	var buf bytes.Buffer
	dataLen := uint32(len(c.PCM))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(c.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(c.SampleRate*bytesPerSample))
	binary.Write(&buf, binary.LittleEndian, uint16(bytesPerSample))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(c.PCM)
	return buf.Bytes()
}

// stereoToMono averages interleaved L/R samples.
func stereoToMono(b []byte) []byte {
	frames := len(b) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		j := i * 4
		l := int16(binary.LittleEndian.Uint16(b[j:]))
		r := int16(binary.LittleEndian.Uint16(b[j+2:]))
		binary.LittleEndian.PutUint16(out[i*2:], uint16((int32(l)+int32(r))/2))
	}
	return out
}
