package beatlab

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/soundloft/beatlab/pkg/beatlab/audio"
	"github.com/soundloft/beatlab/pkg/beatlab/dsp"
	"github.com/soundloft/beatlab/pkg/beatlab/encode"
	"github.com/soundloft/beatlab/pkg/beatlab/render"
	"github.com/soundloft/beatlab/pkg/logger"
)

// Safe defaults for the degraded analysis path.
const (
	fallbackKey        = "C Major"
	fallbackConfidence = 0.2
)

// beatService is the default implementation of the Service interface.
type beatService struct {
	config   *Config
	log      Logger
	decoder  Decoder
	renderer OfflineRenderer
	encoder  StreamEncoder
	policy   Policy
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = codecDecoder{}
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.Renderer{}
	}
	if cfg.Encoder == nil {
		cfg.Encoder = encode.OpusEncoder{}
	}

	return &beatService{
		config:   cfg,
		log:      cfg.Logger,
		decoder:  cfg.Decoder,
		renderer: cfg.Renderer,
		encoder:  cfg.Encoder,
		policy:   cfg.Policy,
	}, nil
}

// codecDecoder is the default Decoder: WAV and MP3 natively, Ogg Opus via
// the encode package so compressed output can be re-analyzed.
type codecDecoder struct{}

func (codecDecoder) Decode(data []byte, mimeType string) (*audio.Buffer, error) {
	if audio.DetectFormat(data) == audio.FormatOgg {
		return encode.DecodeOgg(data)
	}
	return audio.Decode(data, mimeType)
}

// Analyze estimates tempo and key for an uploaded beat. It never returns an
// error: when decoding fails or the deadline fires it degrades to a
// duration-only heuristic with an explicitly lowered confidence.
func (s *beatService) Analyze(ctx context.Context, data []byte, filename, mimeType string) AnalysisResult {
	ctx, cancel := context.WithTimeout(ctx, s.config.AnalysisTimeout)
	defer cancel()

	s.log.Infof("Analyzing %s (%d bytes, %s)", filename, len(data), mimeType)

	buf, err := s.decodeWithContext(ctx, data, mimeType)
	if err != nil {
		s.log.Warnf("Analysis decode failed for %s, using heuristics: %v", filename, err)
		return s.heuristicResult(len(data), mimeType)
	}

	mono := buf.Mono()

	var (
		wg    sync.WaitGroup
		bpm   int
		bpmOK bool
		key   dsp.KeyEstimate
		keyOK bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		bpm, bpmOK = dsp.EstimateTempo(mono, buf.SampleRate)
	}()
	go func() {
		defer wg.Done()
		key, keyOK = dsp.EstimateKey(mono, buf.SampleRate)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Abandon the in-flight estimators; their goroutines finish on
		// their own and the results are dropped.
		s.log.Warnf("Analysis timed out for %s, using duration heuristics", filename)
		res := s.heuristicResult(len(data), mimeType)
		res.BPM = dsp.FallbackTempo(buf.Duration())
		res.Duration = buf.Duration()
		res.SampleRate = buf.SampleRate
		return res
	}

	result := AnalysisResult{
		SampleRate: buf.SampleRate,
		Duration:   buf.Duration(),
		Method:     MethodSpectral,
	}

	confidence := 0.7
	if bpmOK {
		result.BPM = bpm
	} else {
		result.BPM = dsp.FallbackTempo(buf.Duration())
		confidence -= 0.2
	}
	if keyOK {
		result.Key = key.Name
		confidence += 0.25 * key.Clarity
	} else {
		result.Key = fallbackKey
		confidence -= 0.2
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < fallbackConfidence {
		confidence = fallbackConfidence
	}
	result.Confidence = confidence

	s.log.Infof("Analysis of %s: %d BPM, %s (confidence %.2f)", filename, result.BPM, result.Key, result.Confidence)
	return result
}

// heuristicResult builds the degraded AnalysisResult from byte size alone.
func (s *beatService) heuristicResult(sizeBytes int, mimeType string) AnalysisResult {
	duration := audio.EstimateDurationFromSize(sizeBytes, mimeType)
	return AnalysisResult{
		BPM:        dsp.FallbackTempo(duration),
		Key:        fallbackKey,
		Confidence: fallbackConfidence,
		Duration:   duration,
		Method:     MethodHeuristic,
	}
}

// Compress transcodes an upload to Ogg Opus under a hard deadline. Failures
// come back as a structured result; the caller uploads the original bytes
// instead of blocking the user's action.
func (s *beatService) Compress(ctx context.Context, data []byte, filename, mimeType string, opts *CompressionOptions) CompressionResult {
	origSize := int64(len(data))

	if opts == nil {
		if !s.policy.ShouldCompress(origSize, mimeType) {
			if isTargetMIME(mimeType) {
				s.log.Debugf("Skipping compression for %s: already %s and under the floor", filename, mimeType)
			}
			s.emit(Progress{Stage: StageDone, Fraction: 1})
			return CompressionResult{
				Success:             true,
				Output:              data,
				OutputName:          filename,
				OriginalSizeBytes:   origSize,
				CompressedSizeBytes: origSize,
				CompressionRatio:    0,
			}
		}
		selected := s.policy.SelectOptions(origSize)
		opts = &selected
	}
	if err := opts.Validate(); err != nil {
		s.log.Warnf("Rejecting compression options for %s: %v", filename, err)
		return s.failure(origSize, &PipelineError{Kind: KindEncodeError, Op: "options", Err: err})
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.CompressionTimeout)
	defer cancel()

	s.log.Infof("Compressing %s (%d bytes) to %d kbps / %d Hz / %d ch",
		filename, origSize, opts.BitrateKbps, opts.SampleRateHz, opts.Channels)

	type outcome struct {
		output []byte
		err    *PipelineError
	}
	resultCh := make(chan outcome, 1)
	go func() {
		output, perr := s.runPipeline(ctx, data, mimeType, *opts)
		resultCh <- outcome{output: output, err: perr}
	}()

	select {
	case <-ctx.Done():
		// The in-flight stage observes ctx and unwinds on its own; its
		// buffers are released when the goroutine returns.
		s.emit(Progress{Stage: StageFailed})
		s.log.Warnf("Compression of %s exceeded its deadline", filename)
		return s.failure(origSize, &PipelineError{Kind: KindCompressionTimeout, Op: "compress", Err: ctx.Err()})
	case res := <-resultCh:
		if res.err != nil {
			s.emit(Progress{Stage: StageFailed})
			s.log.Warnf("Compression of %s failed: %v", filename, res.err)
			return s.failure(origSize, res.err)
		}

		compressedSize := int64(len(res.output))
		s.emit(Progress{Stage: StageDone, Fraction: 1})
		s.log.Infof("Compressed %s: %d -> %d bytes", filename, origSize, compressedSize)
		return CompressionResult{
			Success:             true,
			Output:              res.output,
			OutputName:          outputName(filename, s.encoder.Extension()),
			OriginalSizeBytes:   origSize,
			CompressedSizeBytes: compressedSize,
			CompressionRatio:    1 - float64(compressedSize)/float64(origSize),
		}
	}
}

// runPipeline executes decode -> render -> encode, reporting coarse progress.
func (s *beatService) runPipeline(ctx context.Context, data []byte, mimeType string, opts CompressionOptions) ([]byte, *PipelineError) {
	s.emit(Progress{Stage: StageDecoding})
	buf, err := s.decoder.Decode(data, mimeType)
	if err != nil {
		return nil, &PipelineError{Kind: decodeErrorKind(err), Op: "decode", Err: err}
	}
	if ctx.Err() != nil {
		return nil, &PipelineError{Kind: KindCompressionTimeout, Op: "decode", Err: ctx.Err()}
	}

	s.emit(Progress{Stage: StageRendering})
	rendered, err := s.renderer.Render(buf, opts.SampleRateHz, opts.Channels, opts.Quality)
	if err != nil {
		return nil, &PipelineError{Kind: KindEncodeError, Op: "render", Err: err}
	}
	if ctx.Err() != nil {
		return nil, &PipelineError{Kind: KindCompressionTimeout, Op: "render", Err: ctx.Err()}
	}

	s.emit(Progress{Stage: StageEncoding, Estimated: true})
	output, err := s.encoder.Encode(ctx, rendered, opts.BitrateKbps, opts.Quality, func(fraction float64) {
		s.emit(Progress{Stage: StageEncoding, Fraction: fraction, Estimated: true})
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &PipelineError{Kind: KindCompressionTimeout, Op: "encode", Err: err}
		}
		return nil, &PipelineError{Kind: KindEncodeError, Op: "encode", Err: err}
	}
	return output, nil
}

func (s *beatService) failure(origSize int64, perr *PipelineError) CompressionResult {
	return CompressionResult{
		Success:           false,
		OriginalSizeBytes: origSize,
		ErrorKind:         perr.Kind,
	}
}

func (s *beatService) emit(p Progress) {
	if s.config.Progress != nil {
		s.config.Progress(p)
	}
}

// decodeWithContext races the decoder against the analysis deadline so a
// pathological input cannot stall the caller.
func (s *beatService) decodeWithContext(ctx context.Context, data []byte, mimeType string) (*audio.Buffer, error) {
	type decoded struct {
		buf *audio.Buffer
		err error
	}
	ch := make(chan decoded, 1)
	go func() {
		buf, err := s.decoder.Decode(data, mimeType)
		ch <- decoded{buf: buf, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d := <-ch:
		return d.buf, d.err
	}
}

func decodeErrorKind(err error) ErrorKind {
	if errors.Is(err, audio.ErrUnsupportedFormat) {
		return KindUnsupportedFormat
	}
	return KindDecodeError
}

// outputName swaps the filename's extension for the encoder's container.
func outputName(filename, ext string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if base == "" {
		base = "beat"
	}
	return base + ext
}
