package source

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Source produces multi-channel frames
type Source interface {
	Name() string
	Channels() int
	SampleRate() float64
	Start(ctx context.Context) error
	Stop() error
	// ReadTick returns the frames available this tick or types.ErrNoData
	ReadTick(ctx context.Context) ([]types.Frame, error)
}

// AxisSelector is implemented by sources with switchable sensor axes
type AxisSelector interface {
	SetAxis(axis string) error
	Axis() string
}

// Options configures every source kind; each kind reads the fields it needs
type Options struct {
	SampleRate float64
	Channels   int
	Block      int // frames per tick

	// synthetic
	Seed        int64
	Frequencies []float64
	Amplitude   float64
	NoiseStd    float64
	OffsetRange float64

	// replay and hardware line device
	Path string
	Loop bool

	// hardware
	Axis      string
	Scale     float64
	QueueSize int
	Backoff   time.Duration
	Device    Device // overrides the line device opened from Path
}

// DefaultOptions mirrors the default two-channel magnetometer setup
func DefaultOptions() Options {
	return Options{
		SampleRate:  1000,
		Channels:    2,
		Block:       100,
		Seed:        1,
		Frequencies: []float64{10, 50, 2, 5, 100, 75},
		Amplitude:   1000,
		NoiseStd:    1500,
		OffsetRange: 500,
		Loop:        true,
		Axis:        "x",
		Scale:       1000 / 2.7,
		QueueSize:   10000,
		Backoff:     100 * time.Millisecond,
	}
}

func (o Options) validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", types.ErrInvalidConfig)
	}
	if o.Block <= 0 {
		return fmt.Errorf("%w: block size must be positive", types.ErrInvalidConfig)
	}
	return nil
}

// Constructor builds a source from options
type Constructor func(opts Options, logger *zap.Logger) (Source, error)

var kinds = map[string]Constructor{
	"synthetic": newSyntheticSource,
	"replay":    newReplaySource,
	"hardware":  newHardwareSource,
}

// Kinds returns the sorted source kind names
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs a source of the named kind
func New(kind string, opts Options, logger *zap.Logger) (Source, error) {
	ctor, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownSourceKind, kind)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return ctor(opts, logger.Named("source").With(zap.String("kind", kind)))
}

// clock hands out virtual timestamps at a fixed sample spacing
type clock struct {
	epoch time.Time
	step  time.Duration
	n     int64
}

func newClock(rate float64) *clock {
	return &clock{epoch: time.Now(), step: time.Duration(float64(time.Second) / rate)}
}

func (c *clock) next() time.Time {
	ts := c.epoch.Add(time.Duration(c.n) * c.step)
	c.n++
	return ts
}

// lifecycle tracks the running flag shared by all kinds
type lifecycle struct {
	running atomic.Bool
}

func (l *lifecycle) isRunning() bool { return l.running.Load() }
