package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// axisColumns maps a sensor axis to the raw columns of the two magnetometers
var axisColumns = map[string][2]int{
	"x": {0, 3},
	"y": {1, 4},
	"z": {2, 5},
}

// hardware pumps device samples into a bounded drop-oldest queue
type hardware struct {
	lifecycle
	opts    Options
	device  Device
	breaker *resilience.Breaker
	logger  *zap.Logger

	axisMu sync.RWMutex
	axis   string

	qmu     sync.Mutex
	queue   []types.Frame // Protected by qmu
	dropped atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func newHardwareSource(opts Options, logger *zap.Logger) (Source, error) {
	device := opts.Device
	if device == nil {
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: hardware source needs a device path", types.ErrInvalidConfig)
		}
		device = NewLineDevice(opts.Path)
	}
	if opts.Axis == "" {
		opts.Axis = "x"
	}
	if _, ok := axisColumns[opts.Axis]; !ok {
		return nil, fmt.Errorf("%w: unknown axis %q", types.ErrInvalidConfig, opts.Axis)
	}
	if opts.Scale == 0 {
		opts.Scale = 1000 / 2.7
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10000
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}

	h := &hardware{
		opts:   opts,
		device: device,
		axis:   opts.Axis,
		logger: logger,
	}
	h.breaker = resilience.New("device", resilience.Settings{
		Cooldown: 2 * time.Second,
		Trip:     resilience.ConsecutiveFailures(5),
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Device breaker changed state",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return h, nil
}

func (h *hardware) Name() string        { return "hardware" }
func (h *hardware) Channels() int       { return 2 }
func (h *hardware) SampleRate() float64 { return h.opts.SampleRate }

// Breaker exposes the device breaker for status reporting
func (h *hardware) Breaker() *resilience.Breaker { return h.breaker }

// Dropped returns the number of samples discarded because the queue was full
func (h *hardware) Dropped() uint64 { return h.dropped.Load() }

func (h *hardware) Axis() string {
	h.axisMu.RLock()
	defer h.axisMu.RUnlock()
	return h.axis
}

// SetAxis switches the sensor axis while running
func (h *hardware) SetAxis(axis string) error {
	axis = strings.ToLower(strings.TrimSpace(axis))
	if _, ok := axisColumns[axis]; !ok {
		return fmt.Errorf("%w: axis must be x, y or z, got %q", types.ErrInvalidConfig, axis)
	}
	h.axisMu.Lock()
	h.axis = axis
	h.axisMu.Unlock()

	h.logger.Info("Axis changed", zap.String("axis", axis))
	return nil
}

func (h *hardware) Start(ctx context.Context) error {
	if h.isRunning() {
		return nil
	}
	if err := h.device.Open(ctx); err != nil {
		return err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	h.running.Store(true)
	go h.pump(pumpCtx)

	h.logger.Info("Hardware source started", zap.String("axis", h.Axis()))
	return nil
}

func (h *hardware) Stop() error {
	if !h.running.CompareAndSwap(true, false) {
		return nil
	}
	h.cancel()
	// the pump may be blocked inside a device read; closing the device releases it
	err := h.device.Close()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		h.logger.Warn("Device pump did not stop in time")
	}
	return err
}

func (h *hardware) pump(ctx context.Context) {
	defer close(h.done)

	for ctx.Err() == nil {
		if !h.breaker.Allow() {
			h.sleep(ctx, h.opts.Backoff)
			continue
		}

		raw, err := resilience.Do(h.breaker, func() ([]float64, error) {
			return h.device.ReadSample(ctx)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, resilience.ErrCircuitOpen) {
				h.logger.Debug("Device read failed", zap.Error(err))
			}
			h.sleep(ctx, h.opts.Backoff)
			continue
		}

		frame, err := h.convert(raw)
		if err != nil {
			h.logger.Debug("Discarding malformed sample", zap.Error(err))
			continue
		}
		h.enqueue(frame)
	}
}

func (h *hardware) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// convert picks the axis column pair and scales volts to picotesla
func (h *hardware) convert(raw []float64) (types.Frame, error) {
	cols := axisColumns[h.Axis()]
	if len(raw) <= cols[1] {
		return types.Frame{}, fmt.Errorf("sample has %d columns, axis needs %d", len(raw), cols[1]+1)
	}
	values := []float64{raw[cols[0]] * h.opts.Scale, raw[cols[1]] * h.opts.Scale}
	return types.NewFrame(time.Now(), values), nil
}

func (h *hardware) enqueue(frame types.Frame) {
	h.qmu.Lock()
	defer h.qmu.Unlock()

	if len(h.queue) >= h.opts.QueueSize {
		h.queue = h.queue[1:]
		h.dropped.Add(1)
	}
	h.queue = append(h.queue, frame)
}

// ReadTick drains what the pump has collected without blocking
func (h *hardware) ReadTick(ctx context.Context) ([]types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.qmu.Lock()
	defer h.qmu.Unlock()

	if len(h.queue) == 0 {
		return nil, types.ErrNoData
	}
	frames := h.queue
	h.queue = make([]types.Frame, 0, len(frames))
	return frames, nil
}
