package beatlab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/soundloft/beatlab/pkg/beatlab/audio"
	"github.com/soundloft/beatlab/pkg/beatlab/dsp"
)

// stubDecoder returns a canned buffer or error regardless of input.
type stubDecoder struct {
	buf   *audio.Buffer
	err   error
	delay time.Duration
}

func (d stubDecoder) Decode(data []byte, mimeType string) (*audio.Buffer, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return d.buf, d.err
}

// stubRenderer passes the buffer through, retagged with the target rate.
type stubRenderer struct{}

func (stubRenderer) Render(buf *audio.Buffer, sampleRateHz, channels int, quality float64) (*audio.Buffer, error) {
	return &audio.Buffer{SampleRate: sampleRateHz, Data: buf.Data}, nil
}

// stubEncoder emits canned bytes after an optional delay.
type stubEncoder struct {
	output []byte
	err    error
	delay  time.Duration
}

func (e stubEncoder) Encode(ctx context.Context, buf *audio.Buffer, bitrateKbps int, quality float64, progress func(fraction float64)) ([]byte, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if progress != nil {
		progress(1)
	}
	return e.output, e.err
}

func (stubEncoder) Extension() string { return ".ogg" }

// quietLogger suppresses log output in tests.
type quietLogger struct{}

func (quietLogger) Infof(format string, args ...any)  {}
func (quietLogger) Warnf(format string, args ...any)  {}
func (quietLogger) Errorf(format string, args ...any) {}
func (quietLogger) Debugf(format string, args ...any) {}

// clickBuffer synthesizes a mono click track for analysis tests.
func clickBuffer(bpm float64, sampleRate int, seconds float64) *audio.Buffer {
	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	beatPeriod := 60.0 / bpm * float64(sampleRate)
	for beat := 0; ; beat++ {
		start := int(math.Round(float64(beat) * beatPeriod))
		if start >= n {
			break
		}
		for i := 0; i < 8 && start+i < n; i++ {
			samples[start+i] = 1.0
		}
	}
	return &audio.Buffer{SampleRate: sampleRate, Data: [][]float32{samples}}
}

func isCanonicalKey(name string) bool {
	for _, k := range dsp.KeyNames() {
		if k == name {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T, opts ...Option) Service {
	t.Helper()
	svc, err := NewService(append([]Option{WithLogger(quietLogger{})}, opts...)...)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

// Analysis always produces a result whose fields satisfy the contract:
// tempo in band, key from the canonical set, confidence in [0.2, 0.95].
func TestAnalyzeContract(t *testing.T) {
	svc := newTestService(t, WithDecoder(stubDecoder{buf: clickBuffer(120, 8000, 12)}))

	result := svc.Analyze(context.Background(), []byte("ignored"), "beat.wav", "audio/wav")

	if result.BPM < dsp.MinBPM || result.BPM > dsp.MaxBPM {
		t.Errorf("BPM %d outside [%d, %d]", result.BPM, dsp.MinBPM, dsp.MaxBPM)
	}
	if !isCanonicalKey(result.Key) {
		t.Errorf("Key %q is not one of the 24 canonical labels", result.Key)
	}
	if result.Confidence < 0.2 || result.Confidence > 0.95 {
		t.Errorf("Confidence %f outside [0.2, 0.95]", result.Confidence)
	}
	if result.Method != MethodSpectral {
		t.Errorf("Method %q, want %q", result.Method, MethodSpectral)
	}
	if result.SampleRate != 8000 {
		t.Errorf("SampleRate %d, want 8000", result.SampleRate)
	}
	if math.Abs(result.Duration-12) > 0.01 {
		t.Errorf("Duration %f, want ~12", result.Duration)
	}
}

func TestAnalyzeClickTrackTempo(t *testing.T) {
	svc := newTestService(t, WithDecoder(stubDecoder{buf: clickBuffer(140, 8000, 12)}))

	result := svc.Analyze(context.Background(), []byte("ignored"), "beat.wav", "audio/wav")
	if diff := math.Abs(float64(result.BPM) - 140); diff > 3 {
		t.Errorf("Expected ~140 BPM, got %d", result.BPM)
	}
}

// A decode failure never surfaces as an error; analysis degrades to the
// duration heuristic with floor confidence.
func TestAnalyzeDegradesOnDecodeFailure(t *testing.T) {
	svc := newTestService(t, WithDecoder(stubDecoder{err: errors.New("boom")}))

	// 2 MB declared as MP3 estimates to ~131 seconds.
	size := 2 << 20
	result := svc.Analyze(context.Background(), make([]byte, size), "beat.mp3", "audio/mpeg")

	if result.Method != MethodHeuristic {
		t.Errorf("Method %q, want %q", result.Method, MethodHeuristic)
	}
	if result.Confidence != 0.2 {
		t.Errorf("Confidence %f, want 0.2", result.Confidence)
	}
	if result.Key != "C Major" {
		t.Errorf("Key %q, want \"C Major\"", result.Key)
	}
	wantDuration := audio.EstimateDurationFromSize(size, "audio/mpeg")
	if result.Duration != wantDuration {
		t.Errorf("Duration %f, want %f", result.Duration, wantDuration)
	}
	if result.BPM != dsp.FallbackTempo(wantDuration) {
		t.Errorf("BPM %d, want %d", result.BPM, dsp.FallbackTempo(wantDuration))
	}
}

// Garbage bytes through the real decoder also land on the heuristic path.
func TestAnalyzeGarbageInput(t *testing.T) {
	svc := newTestService(t)

	result := svc.Analyze(context.Background(), []byte("definitely not audio"), "beat.bin", "")
	if result.Method != MethodHeuristic {
		t.Errorf("Method %q, want %q", result.Method, MethodHeuristic)
	}
	if result.BPM < dsp.MinBPM || result.BPM > dsp.MaxBPM {
		t.Errorf("BPM %d outside band", result.BPM)
	}
	if !isCanonicalKey(result.Key) {
		t.Errorf("Key %q is not canonical", result.Key)
	}
}

// When the analysis deadline fires, the result arrives promptly with
// degraded confidence instead of blocking on the decoder.
func TestAnalyzeTimeout(t *testing.T) {
	svc := newTestService(t,
		WithDecoder(stubDecoder{buf: clickBuffer(120, 8000, 12), delay: 500 * time.Millisecond}),
		WithAnalysisTimeout(30*time.Millisecond),
	)

	start := time.Now()
	result := svc.Analyze(context.Background(), []byte("ignored"), "beat.wav", "audio/wav")
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("Analyze took %v, expected prompt return after the 30ms deadline", elapsed)
	}
	if result.Method != MethodHeuristic {
		t.Errorf("Method %q, want %q", result.Method, MethodHeuristic)
	}
	if result.Confidence != 0.2 {
		t.Errorf("Confidence %f, want 0.2", result.Confidence)
	}
}

// Files below the floor that are already lossy skip the pipeline and come
// back byte-identical.
func TestCompressSkipsSmallLossyFiles(t *testing.T) {
	svc := newTestService(t)

	data := bytes.Repeat([]byte{0xAB}, 1<<20)
	result := svc.Compress(context.Background(), data, "beat.mp3", "audio/mpeg", nil)

	if !result.Success {
		t.Fatalf("Expected success, got kind %v", result.ErrorKind)
	}
	if !bytes.Equal(result.Output, data) {
		t.Error("Skipped compression should return the original bytes")
	}
	if result.CompressionRatio != 0 {
		t.Errorf("Expected ratio 0 for a no-op, got %f", result.CompressionRatio)
	}
	if result.OutputName != "beat.mp3" {
		t.Errorf("OutputName %q, want original filename", result.OutputName)
	}
}

func TestCompressPipeline(t *testing.T) {
	encoded := bytes.Repeat([]byte{0x01}, 100)
	svc := newTestService(t,
		WithDecoder(stubDecoder{buf: clickBuffer(120, 8000, 1)}),
		WithRenderer(stubRenderer{}),
		WithEncoder(stubEncoder{output: encoded}),
	)

	data := make([]byte, 10<<20) // above the lossy floor
	result := svc.Compress(context.Background(), data, "my beat.mp3", "audio/mpeg", nil)

	if !result.Success {
		t.Fatalf("Expected success, got kind %v", result.ErrorKind)
	}
	if !bytes.Equal(result.Output, encoded) {
		t.Error("Output does not match encoder output")
	}
	if result.OutputName != "my beat.ogg" {
		t.Errorf("OutputName %q, want \"my beat.ogg\"", result.OutputName)
	}
	if result.OriginalSizeBytes != int64(len(data)) {
		t.Errorf("OriginalSizeBytes %d, want %d", result.OriginalSizeBytes, len(data))
	}
	if result.CompressedSizeBytes != 100 {
		t.Errorf("CompressedSizeBytes %d, want 100", result.CompressedSizeBytes)
	}
	want := 1 - 100.0/float64(len(data))
	if math.Abs(result.CompressionRatio-want) > 1e-9 {
		t.Errorf("CompressionRatio %f, want %f", result.CompressionRatio, want)
	}
}

// A stalled encoder trips the deadline; the caller gets a structured
// timeout failure within the deadline plus a small epsilon, never a hang.
func TestCompressTimeout(t *testing.T) {
	svc := newTestService(t,
		WithDecoder(stubDecoder{buf: clickBuffer(120, 8000, 1)}),
		WithRenderer(stubRenderer{}),
		WithEncoder(stubEncoder{output: []byte{1}, delay: 5 * time.Second}),
		WithCompressionTimeout(50*time.Millisecond),
	)

	start := time.Now()
	result := svc.Compress(context.Background(), make([]byte, 10<<20), "beat.wav", "audio/wav", nil)
	elapsed := time.Since(start)

	if result.Success {
		t.Fatal("Expected failure on timeout")
	}
	if result.ErrorKind != KindCompressionTimeout {
		t.Errorf("ErrorKind %v, want KindCompressionTimeout", result.ErrorKind)
	}
	if elapsed > time.Second {
		t.Errorf("Compress took %v, expected prompt return after the 50ms deadline", elapsed)
	}
}

func TestCompressDecodeFailureKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"unsupported", fmt.Errorf("decode: %w", audio.ErrUnsupportedFormat), KindUnsupportedFormat},
		{"corrupt", fmt.Errorf("decode: %w", audio.ErrCorruptData), KindDecodeError},
		{"other", errors.New("disk on fire"), KindDecodeError},
	}
	for _, c := range cases {
		svc := newTestService(t,
			WithDecoder(stubDecoder{err: c.err}),
			WithRenderer(stubRenderer{}),
			WithEncoder(stubEncoder{output: []byte{1}}),
		)

		result := svc.Compress(context.Background(), make([]byte, 10<<20), "beat.wav", "audio/wav", nil)
		if result.Success {
			t.Fatalf("%s: expected failure", c.name)
		}
		if result.ErrorKind != c.want {
			t.Errorf("%s: ErrorKind %v, want %v", c.name, result.ErrorKind, c.want)
		}
	}
}

func TestCompressRejectsInvalidOptions(t *testing.T) {
	svc := newTestService(t,
		WithDecoder(stubDecoder{buf: clickBuffer(120, 8000, 1)}),
		WithRenderer(stubRenderer{}),
		WithEncoder(stubEncoder{output: []byte{1}}),
	)

	opts := &CompressionOptions{BitrateKbps: -5, SampleRateHz: 48000, Channels: 2, Quality: 0.7}
	result := svc.Compress(context.Background(), make([]byte, 10<<20), "beat.wav", "audio/wav", opts)
	if result.Success {
		t.Fatal("Expected failure on invalid options")
	}
}

// Progress runs through decoding, rendering and encoding stages and ends
// on done.
func TestCompressProgressStages(t *testing.T) {
	var mu sync.Mutex
	var stages []Stage
	svc := newTestService(t,
		WithDecoder(stubDecoder{buf: clickBuffer(120, 8000, 1)}),
		WithRenderer(stubRenderer{}),
		WithEncoder(stubEncoder{output: []byte{1}}),
		WithProgressFunc(func(p Progress) {
			mu.Lock()
			stages = append(stages, p.Stage)
			mu.Unlock()
		}),
	)

	result := svc.Compress(context.Background(), make([]byte, 10<<20), "beat.wav", "audio/wav", nil)
	if !result.Success {
		t.Fatalf("Expected success, got kind %v", result.ErrorKind)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Stage{StageDecoding, StageRendering, StageEncoding, StageEncoding, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("Got stages %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("Stage %d = %v, want %v", i, stages[i], want[i])
		}
	}
}

func TestOutputName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"beat.wav", "beat.ogg"},
		{"my track.mp3", "my track.ogg"},
		{"noext", "noext.ogg"},
		{"", "beat.ogg"},
		{".wav", "beat.ogg"},
	}
	for _, c := range cases {
		if got := outputName(c.in, ".ogg"); got != c.want {
			t.Errorf("outputName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestErrorKindMessages(t *testing.T) {
	kinds := []ErrorKind{KindDecodeError, KindUnsupportedFormat, KindEncodeError, KindCompressionTimeout}
	for _, k := range kinds {
		if k.Message() == "" {
			t.Errorf("%v has no user-facing message", k)
		}
		if k.String() == "Unknown" {
			t.Errorf("%v renders as Unknown", k)
		}
	}
	if KindNone.Message() != "" {
		t.Error("KindNone should have no message")
	}
}
