package source

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// synthetic generates a deterministic test signal on a virtual clock
type synthetic struct {
	lifecycle
	opts    Options
	mu      sync.Mutex
	rng     *rand.Rand
	offsets []float64
	clock   *clock
	n       int64
	logger  *zap.Logger
}

func newSyntheticSource(opts Options, logger *zap.Logger) (Source, error) {
	if opts.Channels <= 0 {
		return nil, fmt.Errorf("%w: synthetic source needs at least one channel", types.ErrInvalidConfig)
	}
	s := &synthetic{opts: opts, logger: logger}
	s.seed()
	return s, nil
}

func (s *synthetic) seed() {
	s.rng = rand.New(rand.NewSource(s.opts.Seed))
	s.offsets = make([]float64, s.opts.Channels)
	for ch := range s.offsets {
		s.offsets[ch] = (s.rng.Float64()*2 - 1) * s.opts.OffsetRange
	}
	s.clock = newClock(s.opts.SampleRate)
	s.n = 0
}

func (s *synthetic) Name() string        { return "synthetic" }
func (s *synthetic) Channels() int       { return s.opts.Channels }
func (s *synthetic) SampleRate() float64 { return s.opts.SampleRate }

func (s *synthetic) Start(context.Context) error {
	s.running.Store(true)
	s.logger.Info("Synthetic source started",
		zap.Int("channels", s.opts.Channels),
		zap.Float64("sample_rate", s.opts.SampleRate),
		zap.Int64("seed", s.opts.Seed),
	)
	return nil
}

func (s *synthetic) Stop() error {
	s.running.Store(false)
	return nil
}

func (s *synthetic) ReadTick(ctx context.Context) ([]types.Frame, error) {
	if !s.isRunning() {
		return nil, types.ErrNoData
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make([]types.Frame, s.opts.Block)
	for i := range frames {
		t := float64(s.n) / s.opts.SampleRate
		s.n++

		common := 0.0
		for _, f := range s.opts.Frequencies {
			common += s.opts.Amplitude * math.Sin(2*math.Pi*f*t)
		}
		values := make([]float64, s.opts.Channels)
		for ch := range values {
			values[ch] = common + s.offsets[ch] + s.rng.NormFloat64()*s.opts.NoiseStd
		}
		frames[i] = types.NewFrame(s.clock.next(), values)
	}
	return frames, nil
}
