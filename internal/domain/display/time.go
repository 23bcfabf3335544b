package display

import (
	"time"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// timeDisplay plots the last window seconds of every visible channel
type timeDisplay struct {
	*base
}

func newTimeDisplay(cfg Config, env Env) (Display, error) {
	b, err := newBase("time", cfg, env, 1)
	if err != nil {
		return nil, err
	}
	return &timeDisplay{base: b}, nil
}

func (d *timeDisplay) Render(frames []types.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.appendLocked(frames); err != nil {
		return err
	}

	series := make([]Series, 0, len(d.history))
	for ch, h := range d.history {
		if d.hidden[ch] {
			continue
		}
		n := len(h)
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = -float64(n-1-i) / d.env.SampleRate
		}
		ys := make([]float64, n)
		copy(ys, h)
		series = append(series, Series{Channel: ch, X: xs, Y: ys})
	}

	d.last = Plot{
		Display:  d.title,
		Kind:     d.kind,
		Rendered: time.Now(),
		Series:   series,
		X: d.boundsLocked(AxisX, func() Bounds {
			return Bounds{Min: -d.window, Max: 0}
		}),
		Y: d.boundsLocked(AxisY, func() Bounds {
			return timeAutoscale(series)
		}),
	}
	return nil
}

// timeAutoscale pads the data extent by 10%, or by 1 when the trace is flat
func timeAutoscale(series []Series) Bounds {
	lo, hi, ok := extent(series)
	if !ok {
		return Bounds{Min: -1, Max: 1}
	}
	span := hi - lo
	if span == 0 {
		return Bounds{Min: lo - 1, Max: hi + 1}
	}
	return Bounds{Min: lo - 0.1*span, Max: hi + 0.1*span}
}
