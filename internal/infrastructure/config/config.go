package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Config holds all application configuration.
type Config struct {
	Source    SourceConfig
	Pipeline  PipelineConfig
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Recording RecordingConfig
}

// SourceConfig selects and parameterizes the data source.
type SourceConfig struct {
	Kind       string  `envconfig:"DSP_SOURCE" default:"synthetic"`
	SampleRate float64 `envconfig:"DSP_SAMPLE_RATE" default:"1000"`
	Channels   int     `envconfig:"DSP_CHANNELS" default:"2"`
	Block      int     `envconfig:"DSP_BLOCK" default:"100"`
	Seed       int64   `envconfig:"DSP_SEED" default:"1"`
	Path       string  `envconfig:"DSP_SOURCE_PATH"`
	Loop       bool    `envconfig:"DSP_REPLAY_LOOP" default:"true"`
	Axis       string  `envconfig:"DSP_AXIS" default:"x"`
	Scale      float64 `envconfig:"DSP_SCALE" default:"370.37037037037035"`
	QueueSize  int     `envconfig:"DSP_DEVICE_QUEUE" default:"10000"`
}

// PipelineConfig holds buffer and loop timing configuration.
type PipelineConfig struct {
	BufferCapacity  int           `envconfig:"DSP_BUFFER_CAPACITY" default:"10000"`
	AcquireInterval time.Duration `envconfig:"DSP_ACQUIRE_INTERVAL" default:"100ms"`
	RenderInterval  time.Duration `envconfig:"DSP_RENDER_INTERVAL" default:"100ms"`
	StopTimeout     time.Duration `envconfig:"DSP_STOP_TIMEOUT" default:"2s"`
	SplitPolicy     string        `envconfig:"DSP_SPLIT_POLICY" default:"ceil"`
	File            string        `envconfig:"DSP_PIPELINE_FILE"`
}

// ServerConfig holds HTTP status API configuration.
type ServerConfig struct {
	Enabled bool   `envconfig:"DSP_HTTP_ENABLED" default:"false"`
	Host    string `envconfig:"DSP_HTTP_HOST" default:"127.0.0.1"`
	Port    string `envconfig:"DSP_HTTP_PORT" default:"8000"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"DSP_LOG_LEVEL"` // empty: debug in development, info otherwise
	Development bool   `envconfig:"DSP_LOG_DEV" default:"false"`
	Output      string `envconfig:"DSP_LOG_OUTPUT" default:"stderr"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"DSP_RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"DSP_RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"DSP_RATE_LIMIT_ENABLED" default:"true"`
}

// RecordingConfig holds recording configuration.
type RecordingConfig struct {
	Dir         string `envconfig:"DSP_RECORDING_DIR" default:"recordings"`
	Compression string `envconfig:"DSP_RECORDING_COMPRESSION" default:"zstd"`
	QueueSize   int    `envconfig:"DSP_RECORDING_QUEUE" default:"1024"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:       "synthetic",
			SampleRate: 1000,
			Channels:   2,
			Block:      100,
			Seed:       1,
			Loop:       true,
			Axis:       "x",
			Scale:      1000 / 2.7,
			QueueSize:  10000,
		},
		Pipeline: PipelineConfig{
			BufferCapacity:  10000,
			AcquireInterval: 100 * time.Millisecond,
			RenderInterval:  100 * time.Millisecond,
			StopTimeout:     2 * time.Second,
			SplitPolicy:     "ceil",
		},
		Server: ServerConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    "8000",
		},
		Logging: LogConfig{
			Development: false,
			Output:      "stderr",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Recording: RecordingConfig{
			Dir:         "recordings",
			Compression: "zstd",
			QueueSize:   1024,
		},
	}
}

// Validate rejects configurations the pipeline cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Source.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive", types.ErrInvalidConfig)
	case c.Source.Channels <= 0:
		return fmt.Errorf("%w: channel count must be positive", types.ErrInvalidConfig)
	case c.Source.Block <= 0:
		return fmt.Errorf("%w: block size must be positive", types.ErrInvalidConfig)
	case c.Pipeline.BufferCapacity <= 0:
		return fmt.Errorf("%w: buffer capacity must be positive", types.ErrInvalidConfig)
	case c.Pipeline.AcquireInterval <= 0 || c.Pipeline.RenderInterval <= 0:
		return fmt.Errorf("%w: loop intervals must be positive", types.ErrInvalidConfig)
	case c.Pipeline.StopTimeout <= 0:
		return fmt.Errorf("%w: stop timeout must be positive", types.ErrInvalidConfig)
	}
	switch c.Pipeline.SplitPolicy {
	case "ceil", "floor":
	default:
		return fmt.Errorf("%w: split policy must be ceil or floor", types.ErrInvalidConfig)
	}
	switch c.Recording.Compression {
	case "none", "gzip", "zstd":
	default:
		return fmt.Errorf("%w: recording compression must be none, gzip or zstd", types.ErrInvalidConfig)
	}
	return nil
}

// Address returns the HTTP listen address.
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}
