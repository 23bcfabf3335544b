package display

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Axis names a plot axis
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// ParseAxis validates user input
func ParseAxis(s string) (Axis, error) {
	switch Axis(strings.ToLower(s)) {
	case AxisX:
		return AxisX, nil
	case AxisY:
		return AxisY, nil
	}
	return "", fmt.Errorf("%w: axis must be x or y, got %q", types.ErrInvalidConfig, s)
}

// Limits is the configured range of one axis
type Limits struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Auto bool    `json:"auto"`
}

// Bounds is the range a plot was drawn with
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Series is one channel's trace
type Series struct {
	Channel int       `json:"channel"`
	X       []float64 `json:"x"`
	Y       []float64 `json:"y"`
}

// Plot is the output of one render
type Plot struct {
	Display  string    `json:"display"`
	Handle   string    `json:"handle,omitempty"`
	Kind     string    `json:"kind"`
	Feed     Feed      `json:"feed,omitempty"`
	Rendered time.Time `json:"rendered"`
	Series   []Series  `json:"series"`
	X        Bounds    `json:"x"`
	Y        Bounds    `json:"y"`
}

// View is a display's current configuration
type View struct {
	Title  string  `json:"title"`
	Kind   string  `json:"kind"`
	Window float64 `json:"window_seconds"`
	X      Limits  `json:"x"`
	Y      Limits  `json:"y"`
	Hidden []int   `json:"hidden_channels,omitempty"`
}

// Display renders frames into plots
type Display interface {
	Name() string
	Kind() string
	Render(frames []types.Frame) error
	SetAxisLimits(axis Axis, min, max float64) error
	EnableAutoscale(axis Axis) error
	SetChannelVisible(ch int, visible bool) error
	View() View
	Snapshot() Plot
}

// Config holds the construction parameters shared by all kinds
type Config struct {
	Title  string
	Window float64 // seconds; 0 selects the kind default
	YMin   *float64
	YMax   *float64
	Feed   Feed // empty leaves the choice to the manager
}

// ParseConfig reads key=value tokens: feed, title, window, ymin, ymax
func ParseConfig(args string) (Config, error) {
	var cfg Config
	for _, tok := range strings.Fields(args) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return cfg, fmt.Errorf("%w: expected key=value, got %q", types.ErrInvalidConfig, tok)
		}
		switch key {
		case "title":
			cfg.Title = value
		case "feed":
			feed, err := ParseFeed(value)
			if err != nil {
				return cfg, err
			}
			cfg.Feed = feed
		case "window", "ymin", "ymax":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return cfg, fmt.Errorf("%w: %s=%q is not a number", types.ErrInvalidConfig, key, value)
			}
			switch key {
			case "window":
				cfg.Window = v
			case "ymin":
				cfg.YMin = &v
			default:
				cfg.YMax = &v
			}
		default:
			return cfg, fmt.Errorf("%w: unknown display option %q", types.ErrInvalidConfig, key)
		}
	}
	if (cfg.YMin == nil) != (cfg.YMax == nil) {
		return cfg, fmt.Errorf("%w: ymin and ymax must be given together", types.ErrInvalidConfig)
	}
	return cfg, nil
}

// Env carries stream properties needed to size display history
type Env struct {
	SampleRate float64
	Channels   int
}

// Constructor builds a display
type Constructor func(cfg Config, env Env) (Display, error)

var kinds = map[string]Constructor{
	"time":      newTimeDisplay,
	"frequency": newFrequencyDisplay,
}

// Kinds returns the sorted display kind names
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs a display of the named kind
func New(kind string, cfg Config, env Env) (Display, error) {
	ctor, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownDisplayKind, kind)
	}
	if env.SampleRate <= 0 || env.Channels <= 0 {
		return nil, fmt.Errorf("%w: display needs a sample rate and channel count", types.ErrInvalidConfig)
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("%w: window must not be negative", types.ErrInvalidConfig)
	}
	return ctor(cfg, env)
}

// ============================================================================
// Shared display state
// ============================================================================

// base holds axis, visibility and history state common to all kinds
type base struct {
	mu      sync.Mutex
	kind    string
	title   string
	window  float64
	env     Env
	limits  map[Axis]Limits
	hidden  map[int]bool
	history [][]float64 // [channel][sample], newest last
	last    Plot
}

func newBase(kind string, cfg Config, env Env, defaultWindow float64) (*base, error) {
	window := cfg.Window
	if window == 0 {
		window = defaultWindow
	}
	title := cfg.Title
	if title == "" {
		title = kind
	}
	b := &base{
		kind:   kind,
		title:  title,
		window: window,
		env:    env,
		limits: map[Axis]Limits{
			AxisX: {Auto: true},
			AxisY: {Auto: true},
		},
		hidden:  make(map[int]bool),
		history: make([][]float64, env.Channels),
	}
	if cfg.YMin != nil && cfg.YMax != nil {
		if err := b.SetAxisLimits(AxisY, *cfg.YMin, *cfg.YMax); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *base) Name() string { return b.title }
func (b *base) Kind() string { return b.kind }

func (b *base) SetAxisLimits(axis Axis, min, max float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	if !(min < max) {
		return fmt.Errorf("%w: min %g must be below max %g", types.ErrInvalidRange, min, max)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[axis] = Limits{Min: min, Max: max}
	return nil
}

func (b *base) EnableAutoscale(axis Axis) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.limits[axis]
	l.Auto = true
	b.limits[axis] = l
	return nil
}

func checkAxis(axis Axis) error {
	switch axis {
	case AxisX, AxisY:
		return nil
	}
	return fmt.Errorf("%w: unknown axis %q", types.ErrInvalidConfig, axis)
}

func (b *base) SetChannelVisible(ch int, visible bool) error {
	if ch < 0 || ch >= b.env.Channels {
		return fmt.Errorf("%w: channel %d out of range 0..%d", types.ErrInvalidConfig, ch, b.env.Channels-1)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if visible {
		delete(b.hidden, ch)
	} else {
		b.hidden[ch] = true
	}
	return nil
}

func (b *base) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()

	hidden := make([]int, 0, len(b.hidden))
	for ch := range b.hidden {
		hidden = append(hidden, ch)
	}
	sort.Ints(hidden)
	return View{
		Title:  b.title,
		Kind:   b.kind,
		Window: b.window,
		X:      b.limits[AxisX],
		Y:      b.limits[AxisY],
		Hidden: hidden,
	}
}

func (b *base) Snapshot() Plot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// capacity is the number of samples kept per channel
func (b *base) capacity() int {
	n := int(b.window * b.env.SampleRate)
	if n < 1 {
		n = 1
	}
	return n
}

// appendLocked adds frames to the rolling history (caller must hold lock)
func (b *base) appendLocked(frames []types.Frame) error {
	limit := b.capacity()
	for _, f := range frames {
		if f.Channels() != len(b.history) {
			return types.ShapeError(len(b.history), f.Channels())
		}
	}
	for ch := range b.history {
		h := b.history[ch]
		for _, f := range frames {
			h = append(h, f.Values[ch])
		}
		if over := len(h) - limit; over > 0 {
			h = append(h[:0:0], h[over:]...)
		}
		b.history[ch] = h
	}
	return nil
}

// boundsLocked resolves the limits of an axis, autoscaling from the data
// extent when enabled (caller must hold lock)
func (b *base) boundsLocked(axis Axis, auto func() Bounds) Bounds {
	l := b.limits[axis]
	if l.Auto {
		return auto()
	}
	return Bounds{Min: l.Min, Max: l.Max}
}

// extent returns the min and max over all series values
func extent(series []Series) (float64, float64, bool) {
	lo, hi, found := 0.0, 0.0, false
	for _, s := range series {
		if len(s.Y) == 0 {
			continue
		}
		mn, mx := floats.Min(s.Y), floats.Max(s.Y)
		if !found || mn < lo {
			lo = mn
		}
		if !found || mx > hi {
			hi = mx
		}
		found = true
	}
	return lo, hi, found
}
