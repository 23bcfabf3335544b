package filter

import (
	"fmt"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// mapFrames applies fn to every value, producing fresh frames
func mapFrames(frames []types.Frame, fn func(ch int, x float64) float64) ([]types.Frame, error) {
	width := types.Width(frames)
	out := make([]types.Frame, len(frames))
	for i, frame := range frames {
		if frame.Channels() != width {
			return nil, types.ShapeError(width, frame.Channels())
		}
		values := make([]float64, width)
		for ch, x := range frame.Values {
			values[ch] = fn(ch, x)
		}
		out[i] = types.Frame{Sequence: frame.Sequence, Timestamp: frame.Timestamp, Values: values}
	}
	return out, nil
}

// gain scales every sample
type gain struct {
	factor float64
	params Params
}

func newGain(p Params, _ Env) (Filter, error) {
	g := &gain{}
	if err := g.Configure(p); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *gain) Name() string              { return "gain" }
func (g *gain) Params() Params            { return g.params.Merge(nil) }
func (g *gain) OutputChannels(in int) int { return in }
func (g *gain) Reset()                    {}

func (g *gain) Configure(p Params) error {
	merged := g.params.Merge(p)
	factor, err := merged.Float("factor", 1)
	if err != nil {
		return err
	}
	g.factor, g.params = factor, merged
	return nil
}

func (g *gain) Apply(frames []types.Frame) ([]types.Frame, error) {
	return mapFrames(frames, func(_ int, x float64) float64 { return x * g.factor })
}

// dcBlock is y[n] = x[n] - x[n-1] + r*y[n-1]
type dcBlock struct {
	r      float64
	params Params
	prevX  []float64
	prevY  []float64
}

func newDCBlock(p Params, _ Env) (Filter, error) {
	d := &dcBlock{}
	if err := d.Configure(p); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dcBlock) Name() string              { return "dcblock" }
func (d *dcBlock) Params() Params            { return d.params.Merge(nil) }
func (d *dcBlock) OutputChannels(in int) int { return in }

func (d *dcBlock) Reset() {
	d.prevX, d.prevY = nil, nil
}

func (d *dcBlock) Configure(p Params) error {
	merged := d.params.Merge(p)
	r, err := merged.Float("r", 0.995)
	if err != nil {
		return err
	}
	if r <= 0 || r >= 1 {
		return fmt.Errorf("%w: r=%g must be inside (0, 1)", types.ErrInvalidConfig, r)
	}
	d.r, d.params = r, merged
	return nil
}

func (d *dcBlock) Apply(frames []types.Frame) ([]types.Frame, error) {
	width := types.Width(frames)
	if width == 0 {
		return frames, nil
	}
	if len(d.prevX) != width {
		// start from the first sample so the output begins at zero
		d.prevX = append([]float64(nil), frames[0].Values...)
		d.prevY = make([]float64, width)
	}
	return mapFrames(frames, func(ch int, x float64) float64 {
		y := x - d.prevX[ch] + d.r*d.prevY[ch]
		d.prevX[ch], d.prevY[ch] = x, y
		return y
	})
}

// movingAverage is a boxcar over the last window samples of each channel
type movingAverage struct {
	window int
	params Params
	ring   [][]float64 // [channel][window]
	sums   []float64
	pos    int
	filled int
}

func newMovingAverage(p Params, _ Env) (Filter, error) {
	m := &movingAverage{}
	if err := m.Configure(p); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *movingAverage) Name() string              { return "movavg" }
func (m *movingAverage) Params() Params            { return m.params.Merge(nil) }
func (m *movingAverage) OutputChannels(in int) int { return in }

func (m *movingAverage) Reset() {
	m.ring, m.sums = nil, nil
	m.pos, m.filled = 0, 0
}

func (m *movingAverage) Configure(p Params) error {
	merged := m.params.Merge(p)
	window, err := merged.Int("window", 5)
	if err != nil {
		return err
	}
	if window < 1 {
		return fmt.Errorf("%w: window must be at least 1", types.ErrInvalidConfig)
	}
	if window != m.window {
		m.Reset()
	}
	m.window, m.params = window, merged
	return nil
}

func (m *movingAverage) Apply(frames []types.Frame) ([]types.Frame, error) {
	width := types.Width(frames)
	if width == 0 {
		return frames, nil
	}
	if len(m.sums) != width {
		m.ring = make([][]float64, width)
		for ch := range m.ring {
			m.ring[ch] = make([]float64, m.window)
		}
		m.sums = make([]float64, width)
		m.pos, m.filled = 0, 0
	}

	out := make([]types.Frame, len(frames))
	for i, frame := range frames {
		if frame.Channels() != width {
			return nil, types.ShapeError(width, frame.Channels())
		}
		if m.filled < m.window {
			m.filled++
		}
		values := make([]float64, width)
		for ch, x := range frame.Values {
			m.sums[ch] += x - m.ring[ch][m.pos]
			m.ring[ch][m.pos] = x
			values[ch] = m.sums[ch] / float64(m.filled)
		}
		m.pos = (m.pos + 1) % m.window
		out[i] = types.Frame{Sequence: frame.Sequence, Timestamp: frame.Timestamp, Values: values}
	}
	return out, nil
}
