package pipeline

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/domain/buffer"
	"github.com/GriffinCanCode/dspconsole/internal/domain/display"
	"github.com/GriffinCanCode/dspconsole/internal/domain/filter"
	"github.com/GriffinCanCode/dspconsole/internal/domain/recording"
	"github.com/GriffinCanCode/dspconsole/internal/domain/registry"
	"github.com/GriffinCanCode/dspconsole/internal/domain/source"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/config"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/dspconsole/internal/shared/id"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Options configures Console construction
type Options struct {
	Config   *config.Config
	Pipeline *config.PipelineFile // nil selects config.DefaultPipeline
	Source   source.Source        // overrides the configured source kind
	Device   source.Device        // hardware device override
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// Console owns all process-wide pipeline state. The shell, driver and HTTP
// server share one Console.
type Console struct {
	Config       *config.Config
	Registry     *registry.Registry
	Ring         *buffer.Ring
	Source       source.Source
	SourceHandle id.Handle
	Chain        *filter.Chain
	Displays     *display.Manager
	Recorder     *recording.Recorder
	Plots        *display.Broadcaster
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger

	started time.Time
}

// NewConsole builds the startup pipeline: source, buffer, filter chain,
// displays and recorder. Any failure tears down what was already built.
func NewConsole(opts Options) (*Console, error) {
	cfg := config.Default()
	if opts.Config != nil {
		copied := *opts.Config
		cfg = &copied
	}
	pipe := opts.Pipeline
	if pipe == nil {
		pipe = config.DefaultPipeline()
	}
	pipe.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	src := opts.Source
	if src == nil {
		var err error
		src, err = source.New(cfg.Source.Kind, sourceOptions(cfg, opts.Device), logger)
		if err != nil {
			return nil, fmt.Errorf("create source: %w", err)
		}
	}

	ring, err := buffer.New(cfg.Pipeline.BufferCapacity, src.Channels())
	if err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}

	policy, err := display.ParseSplitPolicy(cfg.Pipeline.SplitPolicy)
	if err != nil {
		return nil, err
	}
	compression, err := recording.ParseCompression(cfg.Recording.Compression)
	if err != nil {
		return nil, err
	}

	reg := registry.New(logger).WithObserver(func(kind registry.Kind, count int) {
		metrics.SetRegistrySize(string(kind), count)
	})

	c := &Console{
		Config:   cfg,
		Registry: reg,
		Ring:     ring,
		Source:   src,
		Plots:    display.NewBroadcaster(),
		Metrics:  metrics,
		Logger:   logger.Named("console"),
		started:  time.Now(),
	}

	c.SourceHandle, err = reg.Register(registry.KindSource, src.Name(), src)
	if err != nil {
		return nil, fmt.Errorf("register source: %w", err)
	}

	c.Chain = filter.NewChain(reg, filter.NewFactory(), filter.Env{
		SampleRate: src.SampleRate(),
		Channels:   src.Channels(),
	}, logger).WithMetrics(metrics)

	c.Recorder = recording.New(recording.Options{
		Dir:         cfg.Recording.Dir,
		Compression: compression,
		QueueSize:   cfg.Recording.QueueSize,
	}, logger).WithMetrics(metrics)

	c.Displays = display.NewManager(reg, ring, c.Chain, display.Env{
		SampleRate: src.SampleRate(),
		Channels:   src.Channels(),
	}, logger).
		WithPolicy(policy).
		WithSurface(c.Plots).
		WithRecorder(c.Recorder).
		WithMetrics(metrics)

	if err := c.load(pipe); err != nil {
		if closeErr := reg.Close(); closeErr != nil {
			c.Logger.Warn("Failed to tear down partial pipeline", zap.Error(closeErr))
		}
		return nil, err
	}

	c.Logger.Info("Console ready",
		zap.String("source", src.Name()),
		zap.Float64("sample_rate", src.SampleRate()),
		zap.Int("channels", src.Channels()),
		zap.Int("filters", c.Chain.Len()),
		zap.Int("displays", c.Displays.Len()),
		zap.String("split", string(policy)),
	)
	return c, nil
}

func (c *Console) load(pipe *config.PipelineFile) error {
	for i, spec := range pipe.Filters {
		if _, err := c.Chain.Add(spec.Kind, filter.Params(spec.StringParams())); err != nil {
			return fmt.Errorf("filter %d (%s): %w", i, spec.Kind, err)
		}
	}
	for i, spec := range pipe.Displays {
		cfg := display.Config{
			Title:  spec.Title,
			Window: spec.Window,
			YMin:   spec.YMin,
			YMax:   spec.YMax,
		}
		if spec.Feed != "" {
			feed, err := display.ParseFeed(spec.Feed)
			if err != nil {
				return fmt.Errorf("display %d (%s): %w", i, spec.Kind, err)
			}
			cfg.Feed = feed
		}
		if _, err := c.Displays.Add(spec.Kind, cfg); err != nil {
			return fmt.Errorf("display %d (%s): %w", i, spec.Kind, err)
		}
	}
	// attach-time assignment only sees a partial list
	c.Displays.Rebalance()
	return nil
}

func sourceOptions(cfg *config.Config, device source.Device) source.Options {
	opts := source.DefaultOptions()
	opts.SampleRate = cfg.Source.SampleRate
	opts.Channels = cfg.Source.Channels
	opts.Block = cfg.Source.Block
	opts.Seed = cfg.Source.Seed
	opts.Path = cfg.Source.Path
	opts.Loop = cfg.Source.Loop
	opts.Axis = cfg.Source.Axis
	opts.Scale = cfg.Source.Scale
	opts.QueueSize = cfg.Source.QueueSize
	opts.Device = device
	return opts
}

// SetSourceAxis switches the sensor axis of sources that support it
func (c *Console) SetSourceAxis(axis string) error {
	selector, ok := c.Source.(source.AxisSelector)
	if !ok {
		return fmt.Errorf("%w: source %q has no selectable axis", types.ErrInvalidConfig, c.Source.Name())
	}
	return selector.SetAxis(axis)
}

// Status is a point-in-time view of the console
type Status struct {
	Source    SourceStatus               `json:"source"`
	Buffer    buffer.Stats               `json:"buffer"`
	Filters   []filter.Info              `json:"filters"`
	Displays  []display.Info             `json:"displays"`
	Registry  map[registry.Kind]int      `json:"registry"`
	Recording *recording.Session         `json:"recording,omitempty"`
	Metrics   monitoring.MetricsSnapshot `json:"metrics"`
	Uptime    time.Duration              `json:"uptime"`
}

// SourceStatus describes the active source
type SourceStatus struct {
	Handle     id.Handle `json:"handle"`
	Name       string    `json:"name"`
	SampleRate float64   `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Axis       string    `json:"axis,omitempty"`
}

// Status collects a snapshot from every component
func (c *Console) Status() Status {
	st := Status{
		Source: SourceStatus{
			Handle:     c.SourceHandle,
			Name:       c.Source.Name(),
			SampleRate: c.Source.SampleRate(),
			Channels:   c.Source.Channels(),
		},
		Buffer:   c.Ring.Stats(),
		Filters:  c.Chain.List(),
		Displays: c.Displays.List(),
		Registry: c.Registry.Stats(),
		Metrics:  c.Metrics.Snapshot(),
		Uptime:   time.Since(c.started),
	}
	if selector, ok := c.Source.(source.AxisSelector); ok {
		st.Source.Axis = selector.Axis()
	}
	if session, ok := c.Recorder.Active(); ok {
		st.Recording = &session
	}
	return st
}

// Close finalizes any recording and tears down every registered component
func (c *Console) Close() error {
	var errs []error
	if _, ok := c.Recorder.Active(); ok {
		summary, err := c.Recorder.Stop()
		if err != nil {
			errs = append(errs, fmt.Errorf("stop recording: %w", err))
		} else {
			c.Logger.Info("Recording finalized on shutdown",
				zap.String("path", summary.Path),
				zap.Uint64("plots", summary.Plots),
			)
		}
	}
	if err := c.Registry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close registry: %w", err))
	}
	return errors.Join(errs...)
}
