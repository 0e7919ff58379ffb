package beatlab

import (
	"context"

	"github.com/soundloft/beatlab/pkg/beatlab/audio"
)

// Service is the analysis/compression entry point handed to upload
// components. Analyze never fails; Compress reports failure as a value.
type Service interface {
	Analyze(ctx context.Context, data []byte, filename, mimeType string) AnalysisResult
	Compress(ctx context.Context, data []byte, filename, mimeType string, opts *CompressionOptions) CompressionResult
}

// Decoder turns encoded bytes plus declared MIME metadata into a PCM buffer.
type Decoder interface {
	Decode(data []byte, mimeType string) (*audio.Buffer, error)
}

// OfflineRenderer deterministically resamples/mixes a whole buffer to a
// target rate and channel layout, with no real-time constraints.
type OfflineRenderer interface {
	Render(buf *audio.Buffer, sampleRateHz, channels int, quality float64) (*audio.Buffer, error)
}

// StreamEncoder consumes PCM incrementally and emits encoded bytes in a
// target container. Implementations must honor ctx cancellation and report
// input-side progress through the callback when one is provided.
type StreamEncoder interface {
	Encode(ctx context.Context, buf *audio.Buffer, bitrateKbps int, quality float64, progress func(fraction float64)) ([]byte, error)
	Extension() string
}

// Logger is the minimal leveled logging surface the service needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
