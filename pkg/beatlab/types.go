package beatlab

import "fmt"

// ErrorKind classifies compression failures for the caller's fallback and
// notification layers.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindDecodeError: unrecognized or corrupt input bytes.
	KindDecodeError
	// KindUnsupportedFormat: MIME type outside the accepted set.
	KindUnsupportedFormat
	// KindEncodeError: the streaming encoder or renderer failed.
	KindEncodeError
	// KindCompressionTimeout: the operation exceeded its deadline.
	KindCompressionTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindDecodeError:
		return "DecodeError"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindEncodeError:
		return "EncodeError"
	case KindCompressionTimeout:
		return "CompressionTimeout"
	default:
		return "Unknown"
	}
}

// Message renders a human-readable explanation suitable for surfacing to the
// uploading user.
func (k ErrorKind) Message() string {
	switch k {
	case KindDecodeError:
		return "The audio file could not be read. It may be corrupt or incomplete."
	case KindUnsupportedFormat:
		return "This audio format is not supported. Please upload WAV, MP3 or Ogg."
	case KindEncodeError:
		return "Compressing the audio failed. The original file will be used instead."
	case KindCompressionTimeout:
		return "Compressing the audio took too long. The original file will be used instead."
	default:
		return ""
	}
}

// PipelineError wraps a stage failure with its classification.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Stage is the coarse progress state of a compression run.
type Stage int

const (
	StageIdle Stage = iota
	StageDecoding
	StageRendering
	StageEncoding
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageDecoding:
		return "decoding"
	case StageRendering:
		return "rendering"
	case StageEncoding:
		return "encoding"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is a coarse status report. Fraction is only meaningful during
// StageEncoding; Estimated marks fractions derived from input-side
// accounting rather than true output throughput — treat those as a UX
// affordance, not measured truth.
type Progress struct {
	Stage     Stage
	Fraction  float64
	Estimated bool
}

// ProgressFunc observes Progress updates. Called from the pipeline
// goroutine; implementations must be fast and must not block.
type ProgressFunc func(Progress)

// AnalysisResult is the outcome of tempo/key analysis. It is always
// produced, possibly with degraded confidence when full analysis was not
// possible.
type AnalysisResult struct {
	BPM        int     `json:"bpm"`        // always within [60, 200]
	Key        string  `json:"key"`        // one of the 24 canonical labels
	Confidence float64 `json:"confidence"` // [0,1], lower on the heuristic path
	SampleRate int     `json:"sample_rate,omitempty"`
	Duration   float64 `json:"duration"` // seconds; estimated on the heuristic path
	Method     string  `json:"analysis_method"`
}

// Analysis methods reported in AnalysisResult.Method.
const (
	MethodSpectral  = "spectral"
	MethodHeuristic = "heuristic"
)

// CompressionOptions selects the transcode target.
type CompressionOptions struct {
	BitrateKbps  int     `json:"bitrate_kbps"`
	SampleRateHz int     `json:"sample_rate_hz"`
	Channels     int     `json:"channels"`
	Quality      float64 `json:"quality"` // [0,1]
}

// Validate reports whether the options are usable.
func (o *CompressionOptions) Validate() error {
	if o.BitrateKbps <= 0 {
		return fmt.Errorf("bitrate must be positive, got %d", o.BitrateKbps)
	}
	if o.SampleRateHz <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", o.SampleRateHz)
	}
	if o.Channels < 1 || o.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", o.Channels)
	}
	if o.Quality < 0 || o.Quality > 1 {
		return fmt.Errorf("quality must be in [0,1], got %g", o.Quality)
	}
	return nil
}

// CompressionResult is the outcome of a compression attempt. Failures are
// values, never panics: on Success == false the caller is expected to fall
// back to uploading the original bytes.
type CompressionResult struct {
	Success             bool      `json:"success"`
	Output              []byte    `json:"-"`
	OutputName          string    `json:"output_name,omitempty"`
	OriginalSizeBytes   int64     `json:"original_size_bytes"`
	CompressedSizeBytes int64     `json:"compressed_size_bytes,omitempty"`
	CompressionRatio    float64   `json:"compression_ratio"` // 1 - compressed/original
	ErrorKind           ErrorKind `json:"-"`
}
