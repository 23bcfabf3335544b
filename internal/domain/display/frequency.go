package display

import (
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// frequencyDisplay plots the one-sided amplitude spectrum of the window
type frequencyDisplay struct {
	*base
	fft    *fourier.FFT
	freqs  []float64
	padded []float64
	coeffs []complex128
}

func newFrequencyDisplay(cfg Config, env Env) (Display, error) {
	b, err := newBase("frequency", cfg, env, 5)
	if err != nil {
		return nil, err
	}

	n := b.capacity()
	fft := fourier.NewFFT(n)
	freqs := make([]float64, n/2+1)
	for i := range freqs {
		freqs[i] = fft.Freq(i) * env.SampleRate
	}
	return &frequencyDisplay{
		base:   b,
		fft:    fft,
		freqs:  freqs,
		padded: make([]float64, n),
	}, nil
}

func (d *frequencyDisplay) Render(frames []types.Frame) error {
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
		series = append(series, Series{
			Channel: ch,
			X:       append([]float64(nil), d.freqs...),
			Y:       d.spectrum(h),
		})
	}

	d.last = Plot{
		Display:  d.title,
		Kind:     d.kind,
		Rendered: time.Now(),
		Series:   series,
		X: d.boundsLocked(AxisX, func() Bounds {
			return Bounds{Min: 0, Max: d.env.SampleRate / 2}
		}),
		Y: d.boundsLocked(AxisY, func() Bounds {
			return frequencyAutoscale(series)
		}),
	}
	return nil
}

// spectrum zero-pads history at the front to the window length and returns
// single-sided amplitudes with the DC bin removed
func (d *frequencyDisplay) spectrum(history []float64) []float64 {
	n := len(d.padded)
	pad := n - len(history)
	for i := 0; i < pad; i++ {
		d.padded[i] = 0
	}
	copy(d.padded[pad:], history)

	d.coeffs = d.fft.Coefficients(d.coeffs, d.padded)
	amps := make([]float64, len(d.coeffs))
	for i, c := range d.coeffs {
		amps[i] = cmplx.Abs(c) / float64(n)
		if i > 0 {
			amps[i] *= 2
		}
	}
	amps[0] = 0
	if n%2 == 0 {
		amps[len(amps)-1] /= 2
	}
	return amps
}

// frequencyAutoscale spans zero to the tallest peak plus 10%
func frequencyAutoscale(series []Series) Bounds {
	_, hi, ok := extent(series)
	if !ok || hi <= 0 {
		return Bounds{Min: 0, Max: 1}
	}
	return Bounds{Min: 0, Max: hi * 1.1}
}
