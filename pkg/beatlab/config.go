package beatlab

import "time"

// Default timeout envelopes.
const (
	DefaultAnalysisTimeout    = 15 * time.Second
	DefaultCompressionTimeout = 30 * time.Second
)

type Config struct {
	AnalysisTimeout    time.Duration
	CompressionTimeout time.Duration
	Policy             Policy
	Logger             Logger
	Decoder            Decoder
	Renderer           OfflineRenderer
	Encoder            StreamEncoder
	Progress           ProgressFunc
}

type Option func(*Config)

func WithAnalysisTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.AnalysisTimeout = d
	}
}

func WithCompressionTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CompressionTimeout = d
	}
}

func WithPolicy(p Policy) Option {
	return func(c *Config) {
		c.Policy = p
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithDecoder(d Decoder) Option {
	return func(c *Config) {
		c.Decoder = d
	}
}

func WithRenderer(r OfflineRenderer) Option {
	return func(c *Config) {
		c.Renderer = r
	}
}

func WithEncoder(e StreamEncoder) Option {
	return func(c *Config) {
		c.Encoder = e
	}
}

func WithProgressFunc(fn ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

func defaultConfig() *Config {
	return &Config{
		AnalysisTimeout:    DefaultAnalysisTimeout,
		CompressionTimeout: DefaultCompressionTimeout,
		Policy:             DefaultPolicy(),
	}
}
