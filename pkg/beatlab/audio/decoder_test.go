package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// makeWAV encodes int PCM samples to WAV bytes through a temp file, since
// the wav encoder needs a WriteSeeker.
func makeWAV(t *testing.T, sampleRate, bitDepth, channels int, data []int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create temp wav: %v", err)
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to close wav encoder: %v", err)
	}
	f.Close()

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read wav back: %v", err)
	}
	return out
}

func TestDecodeWAVMono(t *testing.T) {
	// A handful of known 16-bit samples.
	data := []int{0, 16384, -16384, 32767, -32768}
	wavBytes := makeWAV(t, 44100, 16, 1, data)

	buf, err := Decode(wavBytes, "audio/wav")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if buf.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", buf.SampleRate)
	}
	if buf.Channels() != 1 {
		t.Fatalf("Expected 1 channel, got %d", buf.Channels())
	}
	if buf.Frames() != len(data) {
		t.Fatalf("Expected %d frames, got %d", len(data), buf.Frames())
	}

	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1}
	for i, w := range want {
		if math.Abs(float64(buf.Data[0][i]-w)) > 1e-4 {
			t.Errorf("Sample %d: expected %f, got %f", i, w, buf.Data[0][i])
		}
	}
}

func TestDecodeWAVStereo(t *testing.T) {
	// Interleaved L/R frames with distinct channel content.
	data := []int{100, -100, 200, -200, 300, -300}
	wavBytes := makeWAV(t, 22050, 16, 2, data)

	buf, err := Decode(wavBytes, "audio/wav")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if buf.Channels() != 2 {
		t.Fatalf("Expected 2 channels, got %d", buf.Channels())
	}
	if buf.Frames() != 3 {
		t.Fatalf("Expected 3 frames, got %d", buf.Frames())
	}
	for i := 0; i < buf.Frames(); i++ {
		if buf.Data[0][i] <= 0 {
			t.Errorf("Left frame %d should be positive, got %f", i, buf.Data[0][i])
		}
		if buf.Data[1][i] >= 0 {
			t.Errorf("Right frame %d should be negative, got %f", i, buf.Data[1][i])
		}
	}
}

func TestDecodeWAVWithoutMIME(t *testing.T) {
	// Magic-byte sniffing alone should be enough.
	wavBytes := makeWAV(t, 8000, 16, 1, make([]int, 64))
	if _, err := Decode(wavBytes, ""); err != nil {
		t.Fatalf("Decode without MIME failed: %v", err)
	}
}

func TestDecodeTruncatedWAV(t *testing.T) {
	wavBytes := makeWAV(t, 44100, 16, 1, make([]int, 1024))

	// Keep the RIFF header so the format sniffs as WAV, drop most of the rest.
	_, err := Decode(wavBytes[:20], "audio/wav")
	if err == nil {
		t.Fatal("Decode should fail on truncated data")
	}
	if !errors.Is(err, ErrCorruptData) {
		t.Errorf("Expected ErrCorruptData, got %v", err)
	}
}

func TestDecodeUnknownFormat(t *testing.T) {
	_, err := Decode([]byte("certainly not audio data"), "")
	if err == nil {
		t.Fatal("Decode should fail on unknown bytes")
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeMIMEMismatch(t *testing.T) {
	// WAV bytes declared as MP3: the disagreement is treated as corruption.
	wavBytes := makeWAV(t, 8000, 16, 1, make([]int, 64))

	_, err := Decode(wavBytes, "audio/mpeg")
	if err == nil {
		t.Fatal("Decode should fail when content and declared type disagree")
	}
	if !errors.Is(err, ErrCorruptData) {
		t.Errorf("Expected ErrCorruptData, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatWAV},
		{"ogg", []byte("OggS\x00\x02rest-of-page"), FormatOgg},
		{"mp3 id3", []byte("ID3\x04\x00 tag data"), FormatMP3},
		{"mp3 sync", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"empty", nil, FormatUnknown},
		{"text", []byte("hello world, not audio"), FormatUnknown},
	}
	for _, c := range cases {
		if got := DetectFormat(c.data); got != c.want {
			t.Errorf("%s: DetectFormat = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestFormatFromMIME(t *testing.T) {
	cases := []struct {
		mime string
		want Format
	}{
		{"audio/wav", FormatWAV},
		{"audio/x-wav", FormatWAV},
		{"Audio/WAV; charset=binary", FormatWAV},
		{"audio/mpeg", FormatMP3},
		{"audio/ogg", FormatOgg},
		{"audio/opus", FormatOgg},
		{"video/mp4", FormatUnknown},
		{"", FormatUnknown},
	}
	for _, c := range cases {
		if got := FormatFromMIME(c.mime); got != c.want {
			t.Errorf("FormatFromMIME(%q) = %v, want %v", c.mime, got, c.want)
		}
	}
}

func TestEstimateDurationFromSize(t *testing.T) {
	// One second of CD-quality stereo PCM.
	oneSecWAV := 44100 * 2 * 2
	if got := EstimateDurationFromSize(oneSecWAV, "audio/wav"); math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected ~1s for %d WAV bytes, got %f", oneSecWAV, got)
	}

	// One second of 128 kbps MP3.
	oneSecMP3 := 128000 / 8
	if got := EstimateDurationFromSize(oneSecMP3, "audio/mpeg"); math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected ~1s for %d MP3 bytes, got %f", oneSecMP3, got)
	}

	if got := EstimateDurationFromSize(0, "audio/wav"); got != 0 {
		t.Errorf("Expected 0 duration for empty file, got %f", got)
	}
	if got := EstimateDurationFromSize(-5, "audio/wav"); got != 0 {
		t.Errorf("Expected 0 duration for negative size, got %f", got)
	}
}

func TestBufferMono(t *testing.T) {
	stereo := &Buffer{
		SampleRate: 8000,
		Data: [][]float32{
			{1, 0.5, 0},
			{0, 0.5, 1},
		},
	}
	mono := stereo.Mono()
	want := []float32{0.5, 0.5, 0.5}
	for i, w := range want {
		if math.Abs(float64(mono[i]-w)) > 1e-6 {
			t.Errorf("Mono sample %d: expected %f, got %f", i, w, mono[i])
		}
	}

	// Mono input comes back without copying.
	m := &Buffer{SampleRate: 8000, Data: [][]float32{{1, 2, 3}}}
	if got := m.Mono(); &got[0] != &m.Data[0][0] {
		t.Error("Mono() of a mono buffer should not copy")
	}
}

func TestBufferDuration(t *testing.T) {
	b := &Buffer{SampleRate: 8000, Data: [][]float32{make([]float32, 4000)}}
	if got := b.Duration(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected 0.5s, got %f", got)
	}

	empty := &Buffer{}
	if got := empty.Duration(); got != 0 {
		t.Errorf("Expected 0 duration for empty buffer, got %f", got)
	}
}
