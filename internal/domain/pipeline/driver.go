package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/dspconsole/internal/domain/display"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

var (
	ErrAlreadyRunning = errors.New("driver already running")
	ErrStopTimeout    = errors.New("driver stop timed out")
	ErrStillStopping  = errors.New("driver loops from the previous run have not exited")
)

// State is the driver lifecycle state
type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// StepResult reports one synchronous acquisition plus render
type StepResult struct {
	Acquired int                `json:"acquired"`
	Render   display.TickResult `json:"-"`
}

// Driver runs the acquisition and render loops over a Console
type Driver struct {
	console         *Console
	acquireInterval time.Duration
	renderInterval  time.Duration
	stopTimeout     time.Duration

	mu            sync.Mutex
	state         State              // Protected by mu
	cancel        context.CancelFunc // Protected by mu
	done          chan struct{}      // Protected by mu, closed when both loops exit; kept after a timed out Stop
	sourceRunning bool               // Protected by mu

	errLimiter *rate.Limiter
	logger     *zap.Logger
}

// NewDriver creates a stopped driver using the console's pipeline timing
func NewDriver(c *Console) *Driver {
	p := c.Config.Pipeline
	return &Driver{
		console:         c,
		acquireInterval: p.AcquireInterval,
		renderInterval:  p.RenderInterval,
		stopTimeout:     p.StopTimeout,
		errLimiter:      rate.NewLimiter(rate.Every(5*time.Second), 1),
		logger:          c.Logger.Named("driver"),
	}
}

// State returns the current lifecycle state
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start starts the source and both loops. The loops run until ctx is
// cancelled or Stop is called.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateRunning {
		return ErrAlreadyRunning
	}
	if d.done != nil {
		select {
		case <-d.done:
			d.done = nil
		default:
			return ErrStillStopping
		}
	}
	if err := d.startSourceLocked(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.loop(loopCtx, d.acquireInterval, func() { _, _ = d.acquire(loopCtx) })
	}()
	go func() {
		defer wg.Done()
		d.loop(loopCtx, d.renderInterval, func() { d.console.Displays.Tick() })
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	d.cancel, d.done, d.state = cancel, done, StateRunning
	d.logger.Info("Driver started",
		zap.Duration("acquire_interval", d.acquireInterval),
		zap.Duration("render_interval", d.renderInterval),
	)
	return nil
}

// Step runs one acquisition and one render synchronously. The source is
// started on first use.
func (d *Driver) Step(ctx context.Context) (StepResult, error) {
	d.mu.Lock()
	err := d.startSourceLocked(ctx)
	d.mu.Unlock()
	if err != nil {
		return StepResult{}, err
	}

	var res StepResult
	n, acqErr := d.acquire(ctx)
	res.Acquired = n
	res.Render = d.console.Displays.Tick()
	if acqErr != nil && !errors.Is(acqErr, types.ErrNoData) {
		return res, acqErr
	}
	return res, nil
}

// Stop cancels both loops, waits up to the stop timeout, then stops the
// source. The driver is Stopped afterwards even when the wait timed out, but
// Start returns ErrStillStopping until the old loops have exited.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.state == StateRunning {
		d.cancel()
		select {
		case <-d.done:
			d.done = nil
		case <-time.After(d.stopTimeout):
			errs = append(errs, fmt.Errorf("%w after %s", ErrStopTimeout, d.stopTimeout))
		}
		d.cancel, d.state = nil, StateStopped
	}
	if d.sourceRunning {
		if err := d.console.Source.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop source: %w", err))
		}
		d.sourceRunning = false
	}

	err := errors.Join(errs...)
	if err != nil {
		d.logger.Warn("Driver stopped with errors", zap.Error(err))
	} else {
		d.logger.Info("Driver stopped")
	}
	return err
}

func (d *Driver) startSourceLocked(ctx context.Context) error {
	if d.sourceRunning {
		return nil
	}
	// the source lives until Stop, not until the caller's ctx ends
	if err := d.console.Source.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start source %s: %w", d.console.Source.Name(), err)
	}
	d.sourceRunning = true
	return nil
}

func (d *Driver) loop(ctx context.Context, interval time.Duration, tick func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// acquire reads one tick from the source into the buffer. A read never
// outlives one acquisition interval.
func (d *Driver) acquire(ctx context.Context) (int, error) {
	c := d.console
	readCtx, cancel := context.WithTimeout(ctx, d.acquireInterval)
	defer cancel()

	frames, err := c.Source.ReadTick(readCtx)
	switch {
	case errors.Is(err, types.ErrNoData):
		c.Metrics.RecordAcquire("no_data", 0)
		return 0, err
	case err != nil:
		c.Metrics.RecordAcquire("error", 0)
		d.logThrottled("Source read failed", err)
		return 0, err
	case len(frames) == 0:
		c.Metrics.RecordAcquire("no_data", 0)
		return 0, types.ErrNoData
	}

	if _, err := c.Ring.PushBatch(frames); err != nil {
		c.Metrics.RecordAcquire("error", 0)
		d.logThrottled("Buffer rejected frames", err)
		return 0, err
	}
	c.Metrics.RecordAcquire("data", len(frames))
	c.Metrics.SetBufferDepth(c.Ring.Len())
	return len(frames), nil
}

func (d *Driver) logThrottled(msg string, err error) {
	if d.errLimiter.Allow() {
		d.logger.Warn(msg, zap.String("source", d.console.Source.Name()), zap.Error(err))
	}
}
