package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Filter transforms a batch of frames
type Filter interface {
	// Name returns the filter kind name
	Name() string
	// Apply returns the transformed batch; the input batch is owned by the filter
	Apply(frames []types.Frame) ([]types.Frame, error)
	// Reset clears internal state (history, coefficients memory)
	Reset()
	// OutputChannels declares the output width for a given input width
	OutputChannels(in int) int
	// Params returns the current parameters for introspection
	Params() Params
}

// Configurable filters accept parameter changes while running
type Configurable interface {
	Configure(p Params) error
}

// Env carries stream properties needed to construct filters
type Env struct {
	SampleRate float64
	Channels   int
}

// Params are filter parameters as entered on the shell or in a pipeline file
type Params map[string]string

// Float returns a float parameter or def when absent
func (p Params) Float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s=%q is not a number", types.ErrInvalidConfig, key, raw)
	}
	return v, nil
}

// Int returns an integer parameter or def when absent
func (p Params) Int(key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s=%q is not an integer", types.ErrInvalidConfig, key, raw)
	}
	return v, nil
}

// Merge returns a copy of p overlaid with other
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// String renders params as sorted key=value pairs
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + p[k]
	}
	return strings.Join(parts, " ")
}

// Constructor builds a filter from merged params
type Constructor func(p Params, env Env) (Filter, error)

// Kind describes a constructible filter variant
type Kind struct {
	Name       string
	Help       string
	Positional []string // parameter names accepted without key=
	RawArgs    bool     // whole argument string is the first positional value
	Defaults   Params
	New        Constructor
}

// Factory is the lookup table of filter kinds
type Factory struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewFactory creates a factory with the built-in kinds registered
func NewFactory() *Factory {
	f := &Factory{kinds: make(map[string]Kind)}
	for _, k := range builtinKinds() {
		f.Register(k)
	}
	return f
}

// Register adds or replaces a kind
func (f *Factory) Register(k Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds[k.Name] = k
}

// Lookup returns the kind definition
func (f *Factory) Lookup(name string) (Kind, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	k, ok := f.kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %q", types.ErrUnknownFilterKind, name)
	}
	return k, nil
}

// Kinds returns the sorted kind names
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.kinds))
	for name := range f.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs a filter of the named kind with defaults filled in
func (f *Factory) Build(name string, params Params, env Env) (Filter, error) {
	k, err := f.Lookup(name)
	if err != nil {
		return nil, err
	}
	return k.New(k.Defaults.Merge(params), env)
}

// Parse splits a shell argument string into params for a kind.
// Tokens are either key=value or positional values in the kind's order.
func (f *Factory) Parse(name, args string) (Params, error) {
	k, err := f.Lookup(name)
	if err != nil {
		return nil, err
	}
	if k.RawArgs && len(k.Positional) > 0 {
		raw := strings.TrimSpace(args)
		raw = strings.TrimPrefix(raw, k.Positional[0]+"=")
		if raw == "" {
			return Params{}, nil
		}
		return Params{k.Positional[0]: raw}, nil
	}
	return ParseArgs(args, k.Positional)
}

// ParseArgs parses key=value and positional tokens
func ParseArgs(args string, positional []string) (Params, error) {
	params := Params{}
	next := 0
	for _, tok := range strings.Fields(args) {
		if key, value, ok := strings.Cut(tok, "="); ok {
			if key == "" {
				return nil, fmt.Errorf("%w: empty parameter name in %q", types.ErrInvalidConfig, tok)
			}
			params[key] = value
			continue
		}
		if next >= len(positional) {
			return nil, fmt.Errorf("%w: unexpected argument %q", types.ErrInvalidConfig, tok)
		}
		params[positional[next]] = tok
		next++
	}
	return params, nil
}

func builtinKinds() []Kind {
	return []Kind{
		{
			Name:       "bandpass",
			Help:       "Butterworth band-pass: low high order",
			Positional: []string{"low", "high", "order"},
			Defaults:   Params{"low": "50", "high": "250", "order": "5"},
			New:        newIIRKind("bandpass", designBandpass),
		},
		{
			Name:       "lowpass",
			Help:       "Butterworth low-pass: cutoff order",
			Positional: []string{"cutoff", "order"},
			Defaults:   Params{"cutoff": "100", "order": "4"},
			New:        newIIRKind("lowpass", designLowpass),
		},
		{
			Name:       "highpass",
			Help:       "Butterworth high-pass: cutoff order",
			Positional: []string{"cutoff", "order"},
			Defaults:   Params{"cutoff": "1", "order": "2"},
			New:        newIIRKind("highpass", designHighpass),
		},
		{
			Name:       "notch",
			Help:       "Notch at freq with quality q",
			Positional: []string{"freq", "q"},
			Defaults:   Params{"freq": "50", "q": "30"},
			New:        newIIRKind("notch", designNotch),
		},
		{
			Name:       "gain",
			Help:       "Multiply every sample by factor",
			Positional: []string{"factor"},
			Defaults:   Params{"factor": "1"},
			New:        newGain,
		},
		{
			Name:       "dcblock",
			Help:       "One-pole DC blocker with pole r",
			Positional: []string{"r"},
			Defaults:   Params{"r": "0.995"},
			New:        newDCBlock,
		},
		{
			Name:       "movavg",
			Help:       "Moving average over window samples",
			Positional: []string{"window"},
			Defaults:   Params{"window": "5"},
			New:        newMovingAverage,
		},
		{
			Name:       "pca",
			Help:       "Remove the first drop principal components",
			Positional: []string{"drop"},
			Defaults:   Params{"drop": "1"},
			New:        newPCA,
		},
		{
			Name:       "script",
			Help:       "JavaScript expression in x, ch, t",
			Positional: []string{"expr"},
			RawArgs:    true,
			Defaults:   Params{"timeout": "50ms"},
			New:        newScript,
		},
	}
}
