package display

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/dspconsole/internal/domain/buffer"
	"github.com/GriffinCanCode/dspconsole/internal/domain/registry"
	"github.com/GriffinCanCode/dspconsole/internal/shared/id"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Processor turns raw frames into filtered frames
type Processor interface {
	Apply(frames []types.Frame) ([]types.Frame, error)
}

// Capturer receives rendered plots while a recording is active
type Capturer interface {
	Capture(plot Plot)
}

// Metrics receives manager observations
type Metrics interface {
	ObserveTick(duration time.Duration, frames int)
	ObserveRender(kind string, duration time.Duration)
	RenderFailed(kind string)
	FramesLost(n uint64)
}

// Info describes an attached display
type Info struct {
	Handle   id.Handle `json:"handle"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Feed     Feed      `json:"feed"`
	Explicit bool      `json:"explicit_feed"`
	View     View      `json:"view"`
}

// TickResult summarizes one render tick
type TickResult struct {
	Frames   int
	Lost     uint64
	Rendered int
	Failed   int
	ChainErr error
}

type slot struct {
	handle   id.Handle
	display  Display
	feed     Feed
	explicit bool
	limiter  *rate.Limiter
}

// Manager routes raw and filtered frames to displays
type Manager struct {
	mu       sync.Mutex
	slots    []*slot // Protected by mu, attach order
	cursor   uint64  // Protected by mu
	policy   SplitPolicy
	maxBatch int

	reg      *registry.Registry
	ring     *buffer.Ring
	chain    Processor
	env      Env
	surface  Surface
	recorder Capturer
	metrics  Metrics
	logger   *zap.Logger
}

// NewManager creates a manager reading ring and filtering through chain
func NewManager(reg *registry.Registry, ring *buffer.Ring, chain Processor, env Env, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		policy:   SplitCeil,
		maxBatch: ring.Capacity(),
		reg:      reg,
		ring:     ring,
		chain:    chain,
		env:      env,
		logger:   logger.Named("display-manager"),
	}
	reg.SetDetacher(registry.KindDisplay, m.detach)
	return m
}

// WithPolicy sets the default feed split policy
func (m *Manager) WithPolicy(p SplitPolicy) *Manager {
	m.policy = p
	return m
}

// WithSurface sets where rendered plots are published
func (m *Manager) WithSurface(s Surface) *Manager {
	m.surface = s
	return m
}

// WithRecorder sets the plot capturer
func (m *Manager) WithRecorder(c Capturer) *Manager {
	m.recorder = c
	return m
}

// WithMetrics installs a metrics sink
func (m *Manager) WithMetrics(metrics Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Policy returns the split policy
func (m *Manager) Policy() SplitPolicy {
	return m.policy
}

// Add constructs a display of kind and attaches it
func (m *Manager) Add(kind string, cfg Config) (id.Handle, error) {
	d, err := New(kind, cfg, m.env)
	if err != nil {
		return "", err
	}
	return m.Attach(d, cfg.Feed)
}

// Attach registers a display. An empty feed is resolved once by the split policy.
func (m *Manager) Attach(d Display, feed Feed) (id.Handle, error) {
	if d == nil {
		return "", fmt.Errorf("%w: nil display", types.ErrInvalidConfig)
	}
	var assigned Feed
	h, err := m.reg.RegisterWith(registry.KindDisplay, d.Name(), d, func(h id.Handle) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		s := &slot{
			handle:   h,
			display:  d,
			feed:     feed,
			explicit: feed != "",
			limiter:  rate.NewLimiter(rate.Every(5*time.Second), 1),
		}
		if !s.explicit {
			s.feed = m.policy.FeedFor(len(m.slots), len(m.slots)+1)
		}
		m.slots = append(m.slots, s)
		assigned = s.feed
		return nil
	})
	if err != nil {
		return "", err
	}

	m.logger.Info("Display attached",
		zap.String("handle", h.String()),
		zap.String("kind", d.Kind()),
		zap.String("title", d.Name()),
		zap.String("feed", string(assigned)),
	)
	return h, nil
}

// Remove unregisters the first display matching a handle, or else a title
func (m *Manager) Remove(handleOrName string) (id.Handle, error) {
	m.mu.Lock()
	s := m.findLocked(handleOrName)
	m.mu.Unlock()
	if s == nil {
		return "", fmt.Errorf("display %q: %w", handleOrName, types.ErrNotFound)
	}
	if err := m.reg.Unregister(s.handle); err != nil {
		return "", err
	}
	m.logger.Info("Display removed", zap.String("handle", s.handle.String()))
	return s.handle, nil
}

// detach drops a display from routing; runs under the registry lock
func (m *Manager) detach(h id.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.slots {
		if s.handle == h {
			m.slots = append(m.slots[:i:i], m.slots[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rebalance applies the split policy to every display without an explicit feed
func (m *Manager) Rebalance() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.slots {
		if !s.explicit {
			s.feed = m.policy.FeedFor(i, len(m.slots))
		}
	}
}

// SetFeed pins a display to a feed
func (m *Manager) SetFeed(handleOrName string, feed Feed) error {
	if _, err := ParseFeed(string(feed)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findLocked(handleOrName)
	if s == nil {
		return fmt.Errorf("display %q: %w", handleOrName, types.ErrNotFound)
	}
	s.feed, s.explicit = feed, true
	return nil
}

// Find returns the display matching a handle or title
func (m *Manager) Find(handleOrName string) (Display, id.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findLocked(handleOrName)
	if s == nil {
		return nil, "", fmt.Errorf("display %q: %w", handleOrName, types.ErrNotFound)
	}
	return s.display, s.handle, nil
}

// List describes displays in attach order
func (m *Manager) List() []Info {
	m.mu.Lock()
	slots := append([]*slot(nil), m.slots...)
	m.mu.Unlock()

	infos := make([]Info, len(slots))
	for i, s := range slots {
		infos[i] = Info{
			Handle:   s.handle,
			Name:     s.display.Name(),
			Kind:     s.display.Kind(),
			Feed:     s.feed,
			Explicit: s.explicit,
			View:     s.display.View(),
		}
	}
	return infos
}

// Len returns the number of attached displays
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Tick renders every display with the frames pushed since the previous tick.
// The chain runs once per tick so stateful filters see each frame exactly once.
// Displays are rendered even when nothing new arrived, so limits and
// visibility changes reach the plot while the source is stalled.
func (m *Manager) Tick() TickResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result TickResult
	frames, lost := m.ring.Since(m.cursor, m.maxBatch)
	if lost > 0 {
		result.Lost = lost
		if m.metrics != nil {
			m.metrics.FramesLost(lost)
		}
	}

	start := time.Now()
	filtered := frames
	if len(frames) > 0 {
		m.cursor = frames[len(frames)-1].Sequence
		result.Frames = len(frames)
		if m.chain != nil {
			// on failure the chain hands back the raw frames
			filtered, result.ChainErr = m.chain.Apply(frames)
		}
	}

	for _, s := range m.slots {
		batch := frames
		if s.feed == FeedFiltered {
			batch = filtered
		}
		if err := m.render(s, batch); err != nil {
			result.Failed++
			continue
		}
		result.Rendered++
	}

	if m.metrics != nil {
		m.metrics.ObserveTick(time.Since(start), len(frames))
	}
	return result
}

func (m *Manager) render(s *slot, batch []types.Frame) error {
	start := time.Now()
	if err := renderSafe(s.display, batch); err != nil {
		perr := &types.ProcessingError{
			Component: "display",
			Name:      s.display.Name(),
			Handle:    s.handle.String(),
			Err:       err,
		}
		if m.metrics != nil {
			m.metrics.RenderFailed(s.display.Kind())
		}
		if s.limiter.Allow() {
			m.logger.Warn("Display render failed", zap.Error(perr))
		}
		return perr
	}
	if m.metrics != nil {
		m.metrics.ObserveRender(s.display.Kind(), time.Since(start))
	}

	plot := s.display.Snapshot()
	plot.Handle = s.handle.String()
	plot.Feed = s.feed
	if m.surface != nil {
		m.surface.Draw(plot)
	}
	if m.recorder != nil {
		m.recorder.Capture(plot)
	}
	return nil
}

func renderSafe(d Display, frames []types.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Render(frames)
}

func (m *Manager) findLocked(handleOrName string) *slot {
	for _, s := range m.slots {
		if s.handle.String() == handleOrName {
			return s
		}
	}
	for _, s := range m.slots {
		if s.display.Name() == handleOrName {
			return s
		}
	}
	return nil
}
