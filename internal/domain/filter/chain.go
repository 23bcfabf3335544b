package filter

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/dspconsole/internal/domain/registry"
	"github.com/GriffinCanCode/dspconsole/internal/shared/id"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Metrics receives chain observations
type Metrics interface {
	ObserveChain(duration time.Duration, filters int)
	FilterFailed(kind string)
}

// Info describes one chain position
type Info struct {
	Handle   id.Handle `json:"handle"`
	Name     string    `json:"name"`
	Params   Params    `json:"params"`
	Position int       `json:"position"`
}

type link struct {
	handle  id.Handle
	filter  Filter
	limiter *rate.Limiter // throttles failure logs
}

// Chain is the ordered, mutable list of active filters
type Chain struct {
	mu      sync.Mutex
	links   []*link // Protected by mu
	reg     *registry.Registry
	factory *Factory
	env     Env
	metrics Metrics
	logger  *zap.Logger
}

// NewChain creates an empty chain and installs its registry detacher
func NewChain(reg *registry.Registry, factory *Factory, env Env, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = NewFactory()
	}
	c := &Chain{
		reg:     reg,
		factory: factory,
		env:     env,
		logger:  logger.Named("filter-chain"),
	}
	reg.SetDetacher(registry.KindFilter, c.detach)
	return c
}

// WithMetrics installs a metrics sink
func (c *Chain) WithMetrics(m Metrics) *Chain {
	c.metrics = m
	return c
}

// Factory returns the kind table used by Add
func (c *Chain) Factory() *Factory {
	return c.factory
}

// Add constructs a filter of the given kind and appends it
func (c *Chain) Add(kind string, params Params) (id.Handle, error) {
	f, err := c.factory.Build(kind, params, c.env)
	if err != nil {
		return "", err
	}
	return c.AddFilter(f)
}

// AddFilter registers and appends an already constructed filter. Filtered
// displays are sized for the source width, so a filter that would change the
// chain's output width is rejected.
func (c *Chain) AddFilter(f Filter) (id.Handle, error) {
	if f == nil {
		return "", fmt.Errorf("%w: nil filter", types.ErrInvalidConfig)
	}
	h, err := c.reg.RegisterWith(registry.KindFilter, f.Name(), f, func(h id.Handle) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.env.Channels > 0 {
			in := c.outputChannelsLocked(c.env.Channels)
			if out := f.OutputChannels(in); out != c.env.Channels {
				return types.ShapeError(c.env.Channels, out)
			}
		}
		c.links = append(c.links, &link{
			handle:  h,
			filter:  f,
			limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("Filter added",
		zap.String("handle", h.String()),
		zap.String("kind", f.Name()),
		zap.String("params", f.Params().String()),
	)
	return h, nil
}

// Remove unregisters the first filter matching a handle, or else a kind name
func (c *Chain) Remove(handleOrName string) (id.Handle, error) {
	c.mu.Lock()
	l := c.findLocked(handleOrName)
	c.mu.Unlock()
	if l == nil {
		return "", fmt.Errorf("filter %q: %w", handleOrName, types.ErrNotFound)
	}

	if err := c.reg.Unregister(l.handle); err != nil {
		return "", err
	}
	c.logger.Info("Filter removed", zap.String("handle", l.handle.String()), zap.String("kind", l.filter.Name()))
	return l.handle, nil
}

// detach splices a handle out of the chain; runs under the registry lock
func (c *Chain) detach(h id.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, l := range c.links {
		if l.handle == h {
			c.links = append(c.links[:i:i], c.links[i+1:]...)
			l.filter.Reset()
			return nil
		}
	}
	return nil
}

// Configure changes parameters of a running filter
func (c *Chain) Configure(handleOrName string, params Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l := c.findLocked(handleOrName)
	if l == nil {
		return fmt.Errorf("filter %q: %w", handleOrName, types.ErrNotFound)
	}
	cfg, ok := l.filter.(Configurable)
	if !ok {
		return fmt.Errorf("%w: filter %s cannot be reconfigured", types.ErrInvalidConfig, l.filter.Name())
	}
	if err := cfg.Configure(params); err != nil {
		return err
	}
	c.logger.Info("Filter reconfigured",
		zap.String("handle", l.handle.String()),
		zap.String("params", l.filter.Params().String()),
	)
	return nil
}

// List returns the chain in application order
func (c *Chain) List() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]Info, len(c.links))
	for i, l := range c.links {
		infos[i] = Info{
			Handle:   l.handle,
			Name:     l.filter.Name(),
			Params:   l.filter.Params(),
			Position: i,
		}
	}
	return infos
}

// Len returns the number of filters in the chain
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.links)
}

// OutputChannels folds the declared output width through the chain
func (c *Chain) OutputChannels(in int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputChannelsLocked(in)
}

func (c *Chain) outputChannelsLocked(in int) int {
	for _, l := range c.links {
		in = l.filter.OutputChannels(in)
	}
	return in
}

// Reset clears the state of every filter
func (c *Chain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.links {
		l.filter.Reset()
	}
}

// Apply runs frames through every filter in order. When a filter fails the
// input frames are returned unchanged along with a *types.ProcessingError.
func (c *Chain) Apply(frames []types.Frame) ([]types.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.links) == 0 || len(frames) == 0 {
		return frames, nil
	}

	start := time.Now()
	out := types.CloneFrames(frames)
	for _, l := range c.links {
		next, err := applySafe(l.filter, out)
		if err != nil {
			perr := &types.ProcessingError{
				Component: "filter",
				Name:      l.filter.Name(),
				Handle:    l.handle.String(),
				Err:       err,
			}
			c.fail(l, perr)
			return frames, perr
		}
		out = next
	}

	if c.metrics != nil {
		c.metrics.ObserveChain(time.Since(start), len(c.links))
	}
	return out, nil
}

func (c *Chain) fail(l *link, err error) {
	if c.metrics != nil {
		c.metrics.FilterFailed(l.filter.Name())
	}
	if l.limiter.Allow() {
		c.logger.Warn("Filter failed, passing frames through", zap.Error(err))
	}
}

func (c *Chain) findLocked(handleOrName string) *link {
	for _, l := range c.links {
		if l.handle.String() == handleOrName {
			return l
		}
	}
	for _, l := range c.links {
		if l.filter.Name() == handleOrName {
			return l
		}
	}
	return nil
}

func applySafe(f Filter, frames []types.Frame) (out []types.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f.Apply(frames)
}
