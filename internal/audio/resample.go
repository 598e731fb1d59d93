package audio

import (
	"encoding/binary"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts a whole mono clip to rate.
func Resample(c Clip, rate int) (Clip, error) {
	if c.SampleRate == rate || len(c.PCM) == 0 {
		return Clip{PCM: c.PCM, SampleRate: rate}, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(c.SampleRate),
		OutputRate: float64(rate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return Clip{}, fmt.Errorf("create resampler: %w", err)
	}

	n := len(c.PCM) / bytesPerSample
	input := make([]float64, n)
	for i := range n {
		input[i] = float64(int16(binary.LittleEndian.Uint16(c.PCM[i*2:]))) / 32768.0
	}
	output, err := r.Process(input)
	if err != nil {
		return Clip{}, fmt.Errorf("resample: %w", err)
	}

	pcm := make([]byte, len(output)*bytesPerSample)
	for i, s := range output {
		var v int16
		switch {
		case s >= 1.0:
			v = 32767
		case s <= -1.0:
			v = -32768
		default:
			v = int16(s * 32767.0)
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return Clip{PCM: pcm, SampleRate: rate}, nil
}
