package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Sentinel errors. Callers distinguish "we don't know this format" from
// "we know it but the bytes are bad" via errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrCorruptData       = errors.New("corrupt or truncated audio data")
)

// Format identifies an audio container recognized by this package.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
	FormatOgg
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatOgg:
		return "ogg"
	default:
		return "unknown"
	}
}

// DetectFormat sniffs the container from magic bytes.
func DetectFormat(data []byte) Format {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return FormatWAV
	}
	if len(data) >= 4 && string(data[0:4]) == "OggS" {
		return FormatOgg
	}
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return FormatMP3
	}
	// Raw MPEG audio frame sync: 11 set bits.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return FormatMP3
	}
	return FormatUnknown
}

// FormatFromMIME maps a declared MIME type to a container format.
func FormatFromMIME(mimeType string) Format {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return FormatWAV
	case "audio/mpeg", "audio/mp3", "audio/mpeg3":
		return FormatMP3
	case "audio/ogg", "audio/opus", "application/ogg":
		return FormatOgg
	default:
		return FormatUnknown
	}
}

// ResolveFormat reconciles the sniffed container with the declared MIME type.
// The bytes win when both are recognized but disagree is an error: a client
// that labels an MP3 as WAV is lying to us and the safest move is to refuse.
func ResolveFormat(data []byte, mimeType string) (Format, error) {
	sniffed := DetectFormat(data)
	declared := FormatFromMIME(mimeType)

	switch {
	case sniffed == FormatUnknown && declared == FormatUnknown:
		return FormatUnknown, fmt.Errorf("%w: mime %q", ErrUnsupportedFormat, mimeType)
	case sniffed == FormatUnknown:
		return declared, nil
	case declared == FormatUnknown:
		return sniffed, nil
	case sniffed != declared:
		return FormatUnknown, fmt.Errorf("%w: declared %s but content is %s", ErrCorruptData, declared, sniffed)
	default:
		return sniffed, nil
	}
}

// Decode turns encoded bytes plus a declared MIME type into a PCM Buffer.
// This decoder handles WAV and MP3 natively; Ogg Opus input is the encode
// package's business and is reported here as unsupported.
func Decode(data []byte, mimeType string) (*Buffer, error) {
	format, err := ResolveFormat(data, mimeType)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatWAV:
		return decodeWAV(data)
	case FormatMP3:
		return decodeMP3(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func decodeWAV(data []byte) (*Buffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid RIFF/WAVE stream", ErrCorruptData)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: reading PCM data: %v", ErrCorruptData, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing fmt information", ErrCorruptData)
	}

	channels := buf.Format.NumChannels
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channels (only mono/stereo supported)", ErrUnsupportedFormat, channels)
	}

	bitDepth := int(d.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bitDepth)
	}

	scale := float32(1.0 / float64(int64(1)<<(bitDepth-1)))
	frames := len(buf.Data) / channels

	out := &Buffer{SampleRate: buf.Format.SampleRate, Data: make([][]float32, channels)}
	for ch := 0; ch < channels; ch++ {
		out.Data[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out.Data[ch][i] = float32(buf.Data[i*channels+ch]) * scale
		}
	}
	if frames == 0 {
		return nil, fmt.Errorf("%w: empty data chunk", ErrCorruptData)
	}
	return out, nil
}

func decodeMP3(data []byte) (*Buffer, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}

	// go-mp3 always emits interleaved 16-bit little-endian stereo.
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding MPEG frames: %v", ErrCorruptData, err)
	}

	frames := len(raw) / 4
	if frames == 0 {
		return nil, fmt.Errorf("%w: no decodable MPEG frames", ErrCorruptData)
	}

	const scale = 1.0 / 32768.0
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(raw[i*4]) | uint16(raw[i*4+1])<<8)
		r := int16(uint16(raw[i*4+2]) | uint16(raw[i*4+3])<<8)
		left[i] = float32(l) * scale
		right[i] = float32(r) * scale
	}

	return &Buffer{
		SampleRate: d.SampleRate(),
		Data:       [][]float32{left, right},
	}, nil
}

// EstimateDurationFromSize guesses a clip length in seconds from its byte
// size when decoding is not an option. The guess assumes typical encodings
// (CD-quality PCM for WAV, 128 kbps for lossy containers); it feeds the
// degraded analysis path only and is never reported as measured truth.
func EstimateDurationFromSize(sizeBytes int, mimeType string) float64 {
	if sizeBytes <= 0 {
		return 0
	}
	switch FormatFromMIME(mimeType) {
	case FormatWAV:
		// 44.1 kHz, 16-bit, stereo.
		return float64(sizeBytes) / (44100 * 2 * 2)
	case FormatMP3, FormatOgg:
		return float64(sizeBytes) * 8 / 128000
	default:
		return float64(sizeBytes) * 8 / 160000
	}
}
