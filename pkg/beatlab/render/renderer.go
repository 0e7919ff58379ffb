package render

import (
	"errors"
	"fmt"

	resampler "github.com/tphakala/go-audio-resampler"

	"github.com/soundloft/beatlab/pkg/beatlab/audio"
)

// Renderer performs offline rendering: a deterministic resample/mixdown of a
// whole decoded buffer to a target sample rate and channel count, with no
// real-time playback constraints. It is stateless; the zero value is usable.
type Renderer struct{}

// Render converts buf to the requested rate and channel layout. quality in
// [0,1] picks the resampler quality preset. The input buffer is not
// modified; when no conversion is needed its channel slices are reused.
func (Renderer) Render(buf *audio.Buffer, sampleRateHz, channels int, quality float64) (*audio.Buffer, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, errors.New("render: empty buffer")
	}
	if sampleRateHz <= 0 {
		return nil, fmt.Errorf("render: invalid sample rate %d", sampleRateHz)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("render: invalid channel count %d", channels)
	}

	mixed, err := mixChannels(buf, channels)
	if err != nil {
		return nil, err
	}
	if buf.SampleRate == sampleRateHz {
		return &audio.Buffer{SampleRate: sampleRateHz, Data: mixed}, nil
	}

	preset := qualityPreset(quality)
	out := make([][]float32, len(mixed))
	for ch := range mixed {
		resampled, err := resampler.ResampleMonoFloat32(mixed[ch], float64(buf.SampleRate), float64(sampleRateHz), preset)
		if err != nil {
			return nil, fmt.Errorf("render: resampling channel %d: %w", ch, err)
		}
		out[ch] = resampled
	}

	// Flushing can leave channels a few frames apart; trim to the shortest.
	minLen := len(out[0])
	for _, ch := range out[1:] {
		if len(ch) < minLen {
			minLen = len(ch)
		}
	}
	for ch := range out {
		out[ch] = out[ch][:minLen]
	}

	return &audio.Buffer{SampleRate: sampleRateHz, Data: out}, nil
}

// mixChannels maps the source layout onto the target channel count:
// stereo -> mono averages, mono -> stereo duplicates.
func mixChannels(buf *audio.Buffer, channels int) ([][]float32, error) {
	src := buf.Data
	switch {
	case len(src) == channels:
		return src, nil
	case channels == 1:
		return [][]float32{buf.Mono()}, nil
	case channels == 2 && len(src) == 1:
		dup := make([]float32, len(src[0]))
		copy(dup, src[0])
		return [][]float32{src[0], dup}, nil
	default:
		return nil, fmt.Errorf("render: cannot map %d channels to %d", len(src), channels)
	}
}

func qualityPreset(quality float64) resampler.QualityPreset {
	switch {
	case quality >= 0.85:
		return resampler.QualityHigh
	case quality >= 0.6:
		return resampler.QualityMedium
	case quality >= 0.3:
		return resampler.QualityLow
	default:
		return resampler.QualityQuick
	}
}
