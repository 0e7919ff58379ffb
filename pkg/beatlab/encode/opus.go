//go:build !js && !wasm
// +build !js,!wasm

package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"

	"github.com/soundloft/beatlab/pkg/beatlab/audio"
)

// ErrEncode marks streaming encoder failures.
var ErrEncode = errors.New("opus encode failed")

const (
	// Opus operates on fixed frame sizes; 20 ms is the codec's sweet spot.
	frameMs       = 20
	maxPacketSize = 4000
	// progressEveryFrames throttles progress callbacks to roughly once per
	// second of consumed input.
	progressEveryFrames = 50
)

// opusSampleRates are the only rates libopus accepts.
var opusSampleRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

// OpusEncoder is a stateless streaming encoder producing an Ogg Opus byte
// stream. Each Encode call allocates its own codec state.
type OpusEncoder struct{}

// Extension returns the output container extension.
func (OpusEncoder) Extension() string { return ".ogg" }

// Encode consumes buf incrementally in 20 ms frames and emits a complete Ogg
// Opus stream. It honors ctx cancellation between frames, so an enclosing
// deadline abandons the encode promptly.
//
// The progress callback, when non-nil, receives the fraction of input
// consumed so far. That is a measured input-side value; callers should treat
// it as an estimate of overall completion, since container overhead and
// codec buffering are not accounted.
func (OpusEncoder) Encode(ctx context.Context, buf *audio.Buffer, bitrateKbps int, quality float64, progress func(fraction float64)) ([]byte, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrEncode)
	}
	rate := buf.SampleRate
	if !opusSampleRates[rate] {
		return nil, fmt.Errorf("%w: sample rate %d not supported by opus (use 8/12/16/24/48 kHz)", ErrEncode, rate)
	}
	channels := buf.Channels()
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrEncode, channels)
	}

	enc, err := opus.NewEncoder(rate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if bitrateKbps > 0 {
		if err := enc.SetBitrate(bitrateKbps * 1000); err != nil {
			return nil, fmt.Errorf("%w: setting bitrate: %v", ErrEncode, err)
		}
	}
	if err := enc.SetComplexity(complexityFor(quality)); err != nil {
		return nil, fmt.Errorf("%w: setting complexity: %v", ErrEncode, err)
	}

	var out bytes.Buffer
	ogg, err := oggwriter.NewWith(&out, uint32(rate), uint16(channels))
	if err != nil {
		return nil, fmt.Errorf("%w: opening ogg container: %v", ErrEncode, err)
	}

	frameSize := rate * frameMs / 1000
	totalFrames := (buf.Frames() + frameSize - 1) / frameSize
	pcm := make([]int16, frameSize*channels)
	packet := make([]byte, maxPacketSize)

	var seq uint16
	var timestamp uint32
	for f := 0; f < totalFrames; f++ {
		if err := ctx.Err(); err != nil {
			ogg.Close()
			return nil, err
		}

		// Interleave one frame, zero-padding the tail.
		base := f * frameSize
		for i := 0; i < frameSize; i++ {
			for ch := 0; ch < channels; ch++ {
				idx := i*channels + ch
				if base+i < buf.Frames() {
					pcm[idx] = floatToInt16(buf.Data[ch][base+i])
				} else {
					pcm[idx] = 0
				}
			}
		}

		n, err := enc.Encode(pcm, packet)
		if err != nil {
			ogg.Close()
			return nil, fmt.Errorf("%w: frame %d: %v", ErrEncode, f, err)
		}

		if err := ogg.WriteRTP(&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				SequenceNumber: seq,
				Timestamp:      timestamp,
			},
			Payload: packet[:n],
		}); err != nil {
			ogg.Close()
			return nil, fmt.Errorf("%w: writing ogg page: %v", ErrEncode, err)
		}
		seq++
		timestamp += uint32(frameSize)

		if progress != nil && (f%progressEveryFrames == 0 || f == totalFrames-1) {
			progress(float64(f+1) / float64(totalFrames))
		}
	}

	if err := ogg.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing ogg container: %v", ErrEncode, err)
	}
	return out.Bytes(), nil
}

// complexityFor maps the 0-1 quality knob onto the libopus 0-10 scale.
func complexityFor(quality float64) int {
	if quality < 0 {
		quality = 0
	} else if quality > 1 {
		quality = 1
	}
	return int(math.Round(quality * 10))
}

func floatToInt16(s float32) int16 {
	v := float64(s) * 32767
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
