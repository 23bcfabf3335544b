package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// biquad holds normalized coefficients (a0 == 1)
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// dcGain returns the section's gain at 0 Hz
func (s biquad) dcGain() float64 {
	den := 1 + s.a1 + s.a2
	if math.Abs(den) < 1e-12 {
		return 0
	}
	return (s.b0 + s.b1 + s.b2) / den
}

// sosBank runs a cascade of sections over every channel, transposed direct form II
type sosBank struct {
	sections []biquad
	z1, z2   [][]float64 // [section][channel]
	channels int
	primed   bool
}

func newSOSBank(sections []biquad) *sosBank {
	return &sosBank{sections: sections}
}

// ensure sizes the state for the given width, clearing it when the width changes
func (b *sosBank) ensure(channels int) {
	if channels == b.channels && len(b.z1) == len(b.sections) {
		return
	}
	b.channels = channels
	b.z1 = make([][]float64, len(b.sections))
	b.z2 = make([][]float64, len(b.sections))
	for i := range b.sections {
		b.z1[i] = make([]float64, channels)
		b.z2[i] = make([]float64, channels)
	}
	b.primed = false
}

// prime sets the state to the steady state for a constant input equal to values
func (b *sosBank) prime(values []float64) {
	for ch, x := range values {
		for i, s := range b.sections {
			y := s.dcGain() * x
			b.z2[i][ch] = s.b2*x - s.a2*y
			b.z1[i][ch] = y - s.b0*x
			x = y
		}
	}
	b.primed = true
}

func (b *sosBank) process(ch int, x float64) float64 {
	for i := range b.sections {
		s := &b.sections[i]
		y := s.b0*x + b.z1[i][ch]
		b.z1[i][ch] = s.b1*x - s.a1*y + b.z2[i][ch]
		b.z2[i][ch] = s.b2*x - s.a2*y
		x = y
	}
	return x
}

func (b *sosBank) reset() {
	b.channels = 0
	b.z1, b.z2 = nil, nil
	b.primed = false
}

// designFunc computes sections for the given params and sample rate
type designFunc func(p Params, fs float64) ([]biquad, error)

// iirFilter is a stateful cascade of biquads designed from params
type iirFilter struct {
	kind   string
	params Params
	fs     float64
	design designFunc
	bank   *sosBank
}

func newIIRKind(kind string, design designFunc) Constructor {
	return func(p Params, env Env) (Filter, error) {
		if env.SampleRate <= 0 {
			return nil, fmt.Errorf("%w: %s needs a positive sample rate", types.ErrInvalidConfig, kind)
		}
		sections, err := design(p, env.SampleRate)
		if err != nil {
			return nil, err
		}
		return &iirFilter{
			kind:   kind,
			params: p,
			fs:     env.SampleRate,
			design: design,
			bank:   newSOSBank(sections),
		}, nil
	}
}

func (f *iirFilter) Name() string { return f.kind }

func (f *iirFilter) Params() Params { return f.params.Merge(nil) }

func (f *iirFilter) OutputChannels(in int) int { return in }

func (f *iirFilter) Reset() { f.bank.reset() }

func (f *iirFilter) Apply(frames []types.Frame) ([]types.Frame, error) {
	width := types.Width(frames)
	if width == 0 {
		return frames, nil
	}
	f.bank.ensure(width)
	if !f.bank.primed {
		f.bank.prime(frames[0].Values)
	}

	out := make([]types.Frame, len(frames))
	for i, frame := range frames {
		if frame.Channels() != width {
			return nil, types.ShapeError(width, frame.Channels())
		}
		values := make([]float64, width)
		for ch, x := range frame.Values {
			y := f.bank.process(ch, x)
			if math.IsNaN(y) || math.IsInf(y, 0) {
				f.bank.reset()
				return nil, fmt.Errorf("non-finite output on channel %d", ch)
			}
			values[ch] = y
		}
		out[i] = types.Frame{Sequence: frame.Sequence, Timestamp: frame.Timestamp, Values: values}
	}
	return out, nil
}

// Configure redesigns the cascade. History is kept when the section count is
// unchanged so retuning does not produce a transient.
func (f *iirFilter) Configure(p Params) error {
	merged := f.params.Merge(p)
	sections, err := f.design(merged, f.fs)
	if err != nil {
		return err
	}
	if len(sections) == len(f.bank.sections) {
		f.bank.sections = sections
	} else {
		f.bank = newSOSBank(sections)
	}
	f.params = merged
	return nil
}

// ============================================================================
// Coefficient design
// ============================================================================

var errOrder = errors.New("order must be between 1 and 16")

func checkFrequency(name string, freq, fs float64) error {
	if freq <= 0 || freq >= fs/2 {
		return fmt.Errorf("%w: %s=%g must be inside (0, %g)", types.ErrInvalidConfig, name, freq, fs/2)
	}
	return nil
}

func checkOrder(order int) error {
	if order < 1 || order > 16 {
		return fmt.Errorf("%w: %v", types.ErrInvalidConfig, errOrder)
	}
	return nil
}

// butterworthQs returns the Q of each second-order stage for the given order,
// and whether an extra first-order stage is needed (odd orders)
func butterworthQs(order int) ([]float64, bool) {
	pairs := order / 2
	qs := make([]float64, pairs)
	for k := 0; k < pairs; k++ {
		theta := math.Pi * float64(2*k+1) / float64(2*order)
		qs[k] = 1 / (2 * math.Sin(theta))
	}
	return qs, order%2 == 1
}

func butterworth(cutoff, fs float64, order int, highpass bool) []biquad {
	qs, odd := butterworthQs(order)
	sections := make([]biquad, 0, len(qs)+1)
	if odd {
		sections = append(sections, firstOrder(cutoff, fs, highpass))
	}
	for _, q := range qs {
		sections = append(sections, rbj(cutoff, fs, q, highpass))
	}
	return sections
}

// rbj returns an RBJ cookbook low/high-pass biquad
func rbj(f0, fs, q float64, highpass bool) biquad {
	w0 := 2 * math.Pi * f0 / fs
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)
	a0 := 1 + alpha

	var b0, b1, b2 float64
	if highpass {
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	} else {
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	}
	return biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

// firstOrder returns a bilinear-transformed one-pole section stored as a biquad
func firstOrder(f0, fs float64, highpass bool) biquad {
	k := math.Tan(math.Pi * f0 / fs)
	a1 := (k - 1) / (k + 1)
	if highpass {
		return biquad{b0: 1 / (1 + k), b1: -1 / (1 + k), a1: a1}
	}
	return biquad{b0: k / (1 + k), b1: k / (1 + k), a1: a1}
}

func designBandpass(p Params, fs float64) ([]biquad, error) {
	low, err := p.Float("low", 50)
	if err != nil {
		return nil, err
	}
	high, err := p.Float("high", 250)
	if err != nil {
		return nil, err
	}
	order, err := p.Int("order", 5)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	if err := checkFrequency("low", low, fs); err != nil {
		return nil, err
	}
	if err := checkFrequency("high", high, fs); err != nil {
		return nil, err
	}
	if low >= high {
		return nil, fmt.Errorf("%w: low=%g must be below high=%g", types.ErrInvalidRange, low, high)
	}
	sections := butterworth(low, fs, order, true)
	return append(sections, butterworth(high, fs, order, false)...), nil
}

func designLowpass(p Params, fs float64) ([]biquad, error) {
	return designSingle(p, fs, false)
}

func designHighpass(p Params, fs float64) ([]biquad, error) {
	return designSingle(p, fs, true)
}

func designSingle(p Params, fs float64, highpass bool) ([]biquad, error) {
	cutoff, err := p.Float("cutoff", 100)
	if err != nil {
		return nil, err
	}
	order, err := p.Int("order", 4)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	if err := checkFrequency("cutoff", cutoff, fs); err != nil {
		return nil, err
	}
	return butterworth(cutoff, fs, order, highpass), nil
}

func designNotch(p Params, fs float64) ([]biquad, error) {
	freq, err := p.Float("freq", 50)
	if err != nil {
		return nil, err
	}
	q, err := p.Float("q", 30)
	if err != nil {
		return nil, err
	}
	if err := checkFrequency("freq", freq, fs); err != nil {
		return nil, err
	}
	if q <= 0 {
		return nil, fmt.Errorf("%w: q must be positive", types.ErrInvalidConfig)
	}

	w0 := 2 * math.Pi * freq / fs
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return []biquad{{
		b0: 1 / a0,
		b1: -2 * cosw / a0,
		b2: 1 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}}, nil
}
