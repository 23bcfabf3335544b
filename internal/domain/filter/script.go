package filter

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// script evaluates a JavaScript expression per sample with x (value),
// ch (channel index) and t (seconds since the first sample seen)
type script struct {
	expr    string
	timeout time.Duration
	params  Params

	vm    *goja.Runtime
	fn    goja.Callable
	start time.Time
}

func newScript(p Params, _ Env) (Filter, error) {
	s := &script{}
	if err := s.Configure(p); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *script) Name() string              { return "script" }
func (s *script) Params() Params            { return s.params.Merge(nil) }
func (s *script) OutputChannels(in int) int { return in }

func (s *script) Reset() {
	s.start = time.Time{}
}

func (s *script) Configure(p Params) error {
	merged := s.params.Merge(p)
	expr := strings.TrimSpace(merged["expr"])
	if expr == "" {
		return fmt.Errorf("%w: script needs an expression", types.ErrInvalidConfig)
	}
	timeout, err := time.ParseDuration(merged["timeout"])
	if err != nil || timeout <= 0 {
		return fmt.Errorf("%w: invalid timeout %q", types.ErrInvalidConfig, merged["timeout"])
	}

	vm, fn, err := compileExpression(expr)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}
	s.expr, s.timeout, s.params = expr, timeout, merged
	s.vm, s.fn = vm, fn
	return nil
}

func compileExpression(expr string) (*goja.Runtime, goja.Callable, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(256)
	vm.Set("require", goja.Undefined())

	val, err := vm.RunString("(function(x, ch, t) { return (" + expr + "); })")
	if err != nil {
		return nil, nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, nil, fmt.Errorf("expression %q did not compile to a function", expr)
	}
	return vm, fn, nil
}

func (s *script) Apply(frames []types.Frame) ([]types.Frame, error) {
	if len(frames) == 0 {
		return frames, nil
	}
	if s.start.IsZero() {
		s.start = frames[0].Timestamp
	}

	defer armInterrupt(s.vm, s.timeout)()

	width := types.Width(frames)
	out := make([]types.Frame, len(frames))
	for i, frame := range frames {
		if frame.Channels() != width {
			return nil, types.ShapeError(width, frame.Channels())
		}
		t := frame.Timestamp.Sub(s.start).Seconds()
		values := make([]float64, width)
		for ch, x := range frame.Values {
			res, err := s.fn(goja.Undefined(), s.vm.ToValue(x), s.vm.ToValue(ch), s.vm.ToValue(t))
			if err != nil {
				return nil, fmt.Errorf("evaluate %q: %w", s.expr, err)
			}
			if values[ch], err = exportNumber(res); err != nil {
				return nil, err
			}
		}
		out[i] = types.Frame{Sequence: frame.Sequence, Timestamp: frame.Timestamp, Values: values}
	}
	return out, nil
}

// armInterrupt interrupts vm once d elapses. The returned disarm func leaves
// vm clear of any interrupt, including one from a timer firing concurrently.
func armInterrupt(vm *goja.Runtime, d time.Duration) (disarm func()) {
	var mu sync.Mutex
	disarmed := false
	timer := time.AfterFunc(d, func() {
		mu.Lock()
		defer mu.Unlock()
		if !disarmed {
			vm.Interrupt("script timeout exceeded")
		}
	})
	return func() {
		timer.Stop()
		mu.Lock()
		disarmed = true
		mu.Unlock()
		vm.ClearInterrupt()
	}
}

func exportNumber(v goja.Value) (float64, error) {
	switch n := v.Export().(type) {
	case int64:
		return float64(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("script produced non-finite value")
		}
		return n, nil
	default:
		return 0, fmt.Errorf("script produced %T, want a number", n)
	}
}
