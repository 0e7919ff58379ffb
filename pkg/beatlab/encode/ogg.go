//go:build !js && !wasm
// +build !js,!wasm

package encode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"gopkg.in/hraban/opus.v2"

	"github.com/soundloft/beatlab/pkg/beatlab/audio"
)

// ErrDecode marks Ogg Opus decode failures.
var ErrDecode = errors.New("ogg opus decode failed")

// maxOpusFrame is the largest opus frame (120 ms at 48 kHz) per channel.
const maxOpusFrame = 5760

// DecodeOgg decodes an Ogg Opus stream back into a PCM buffer. It assumes
// one opus packet per ogg page, which is what OpusEncoder (and pion's
// oggwriter generally) produces; it exists for re-analysis of compressed
// uploads and for round-trip verification.
func DecodeOgg(data []byte) (*audio.Buffer, error) {
	ogg, header, err := oggreader.NewWith(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	rate := int(header.SampleRate)
	channels := int(header.Channels)
	if !opusSampleRates[rate] {
		return nil, fmt.Errorf("%w: sample rate %d", ErrDecode, rate)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrDecode, channels)
	}

	dec, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	out := make([][]float32, channels)
	pcm := make([]int16, maxOpusFrame*channels)
	const scale = 1.0 / 32768.0

	for {
		payload, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading page: %v", ErrDecode, err)
		}
		// Skip the comment header page; the ID header is consumed by NewWith.
		if bytes.HasPrefix(payload, []byte("OpusTags")) || bytes.HasPrefix(payload, []byte("OpusHead")) {
			continue
		}
		if len(payload) == 0 {
			continue
		}

		n, err := dec.Decode(payload, pcm)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding packet: %v", ErrDecode, err)
		}
		for ch := 0; ch < channels; ch++ {
			for i := 0; i < n; i++ {
				out[ch] = append(out[ch], float32(pcm[i*channels+ch])*scale)
			}
		}
	}

	if len(out[0]) == 0 {
		return nil, fmt.Errorf("%w: no audio pages", ErrDecode)
	}
	return &audio.Buffer{SampleRate: rate, Data: out}, nil
}
