package filter

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

var testEnv = Env{SampleRate: 1000, Channels: 2}

// sine generates n frames of amplitude*sin(2*pi*freq*t) on every channel
func sine(n, channels int, freq, amplitude float64) []types.Frame {
	start := time.Unix(0, 0)
	frames := make([]types.Frame, n)
	for i := range frames {
		t := float64(i) / testEnv.SampleRate
		values := make([]float64, channels)
		for ch := range values {
			values[ch] = amplitude * math.Sin(2*math.Pi*freq*t)
		}
		frames[i] = types.Frame{
			Sequence:  uint64(i + 1),
			Timestamp: start.Add(time.Duration(t * float64(time.Second))),
			Values:    values,
		}
	}
	return frames
}

func peak(frames []types.Frame, ch int) float64 {
	m := 0.0
	for _, f := range frames {
		m = math.Max(m, math.Abs(f.Values[ch]))
	}
	return m
}

func TestParseArgs(t *testing.T) {
	factory := NewFactory()

	params, err := factory.Parse("bandpass", "40 200 order=3")
	require.NoError(t, err)
	assert.Equal(t, Params{"low": "40", "high": "200", "order": "3"}, params)

	_, err = factory.Parse("bandpass", "1 2 3 4")
	assert.True(t, errors.Is(err, types.ErrInvalidConfig))

	_, err = factory.Parse("wavelet", "")
	assert.True(t, errors.Is(err, types.ErrUnknownFilterKind))
}

func TestParseScriptKeepsWholeExpression(t *testing.T) {
	factory := NewFactory()

	params, err := factory.Parse("script", "  x * 2 + ch  ")
	require.NoError(t, err)
	assert.Equal(t, "x * 2 + ch", params["expr"])

	params, err = factory.Parse("script", "expr=Math.abs(x)")
	require.NoError(t, err)
	assert.Equal(t, "Math.abs(x)", params["expr"])
}

func TestBuildDefaults(t *testing.T) {
	factory := NewFactory()

	f, err := factory.Build("bandpass", nil, testEnv)
	require.NoError(t, err)
	assert.Equal(t, "50", f.Params()["low"])
	assert.Equal(t, "250", f.Params()["high"])
	assert.Equal(t, "5", f.Params()["order"])
	assert.Equal(t, 2, f.OutputChannels(2))
}

func TestBuildRejectsInvalidParams(t *testing.T) {
	factory := NewFactory()

	tests := []struct {
		kind   string
		params Params
		want   error
	}{
		{"bandpass", Params{"low": "300", "high": "200"}, types.ErrInvalidRange},
		{"bandpass", Params{"high": "600"}, types.ErrInvalidConfig},
		{"bandpass", Params{"order": "0"}, types.ErrInvalidConfig},
		{"lowpass", Params{"cutoff": "abc"}, types.ErrInvalidConfig},
		{"notch", Params{"q": "-1"}, types.ErrInvalidConfig},
		{"dcblock", Params{"r": "1.5"}, types.ErrInvalidConfig},
		{"movavg", Params{"window": "0"}, types.ErrInvalidConfig},
		{"pca", Params{"drop": "-1"}, types.ErrInvalidConfig},
		{"script", nil, types.ErrInvalidConfig},
		{"script", Params{"expr": "x +"}, types.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.kind+" "+tt.params.String(), func(t *testing.T) {
			_, err := factory.Build(tt.kind, tt.params, testEnv)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBandpassPassesInBand(t *testing.T) {
	f, err := NewFactory().Build("bandpass", nil, testEnv)
	require.NoError(t, err)

	out, err := f.Apply(sine(2000, 2, 100, 1000))
	require.NoError(t, err)

	settled := out[1500:]
	assert.InDelta(t, 1000, peak(settled, 0), 60)
	assert.InDelta(t, 1000, peak(settled, 1), 60)
}

func TestBandpassRejectsOutOfBand(t *testing.T) {
	f, err := NewFactory().Build("bandpass", nil, testEnv)
	require.NoError(t, err)

	out, err := f.Apply(sine(2000, 1, 2, 1000))
	require.NoError(t, err)
	assert.Less(t, peak(out[1000:], 0), 10.0)
}

func TestBandpassStateCarriesAcrossBatches(t *testing.T) {
	whole, err := NewFactory().Build("bandpass", nil, testEnv)
	require.NoError(t, err)
	split, err := NewFactory().Build("bandpass", nil, testEnv)
	require.NoError(t, err)

	input := sine(400, 1, 100, 1000)
	want, err := whole.Apply(input)
	require.NoError(t, err)

	first, err := split.Apply(input[:150])
	require.NoError(t, err)
	second, err := split.Apply(input[150:])
	require.NoError(t, err)
	got := append(first, second...)

	for i := range want {
		assert.InDelta(t, want[i].Values[0], got[i].Values[0], 1e-9)
	}
}

func TestPrimingSuppressesStepTransient(t *testing.T) {
	f, err := NewFactory().Build("lowpass", Params{"cutoff": "20"}, testEnv)
	require.NoError(t, err)

	frames := make([]types.Frame, 200)
	for i := range frames {
		frames[i] = types.Frame{Values: []float64{500}}
	}
	out, err := f.Apply(frames)
	require.NoError(t, err)
	for _, fr := range out {
		assert.InDelta(t, 500, fr.Values[0], 1e-6)
	}
}

func TestIIRConfigure(t *testing.T) {
	f, err := NewFactory().Build("bandpass", nil, testEnv)
	require.NoError(t, err)

	cfg, ok := f.(Configurable)
	require.True(t, ok)
	require.NoError(t, cfg.Configure(Params{"low": "80", "high": "120"}))
	assert.Equal(t, "80", f.Params()["low"])
	assert.Equal(t, "5", f.Params()["order"])

	err = cfg.Configure(Params{"low": "200"})
	assert.True(t, errors.Is(err, types.ErrInvalidRange))
	assert.Equal(t, "80", f.Params()["low"])
}

func TestNotchRemovesMains(t *testing.T) {
	f, err := NewFactory().Build("notch", Params{"freq": "50", "q": "5"}, testEnv)
	require.NoError(t, err)

	out, err := f.Apply(sine(3000, 1, 50, 1000))
	require.NoError(t, err)
	assert.Less(t, peak(out[2500:], 0), 20.0)
}

func TestGain(t *testing.T) {
	f, err := NewFactory().Build("gain", Params{"factor": "-2"}, testEnv)
	require.NoError(t, err)

	out, err := f.Apply([]types.Frame{{Values: []float64{1, 3}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, -6}, out[0].Values)
}

func TestDCBlockRemovesOffset(t *testing.T) {
	f, err := NewFactory().Build("dcblock", nil, testEnv)
	require.NoError(t, err)

	frames := sine(5000, 1, 50, 100)
	for i := range frames {
		frames[i].Values[0] += 3000
	}
	out, err := f.Apply(frames)
	require.NoError(t, err)
	assert.Less(t, peak(out[4000:], 0), 150.0)
}

func TestMovingAverage(t *testing.T) {
	f, err := NewFactory().Build("movavg", Params{"window": "2"}, testEnv)
	require.NoError(t, err)

	out, err := f.Apply([]types.Frame{
		{Values: []float64{2}},
		{Values: []float64{4}},
		{Values: []float64{8}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out[0].Values[0])
	assert.Equal(t, 3.0, out[1].Values[0])
	assert.Equal(t, 6.0, out[2].Values[0])

	f.Reset()
	out, err = f.Apply([]types.Frame{{Values: []float64{10}}})
	require.NoError(t, err)
	assert.Equal(t, 10.0, out[0].Values[0])
}

func TestShapeMismatchWithinBatch(t *testing.T) {
	f, err := NewFactory().Build("gain", nil, testEnv)
	require.NoError(t, err)

	_, err = f.Apply([]types.Frame{{Values: []float64{1, 2}}, {Values: []float64{1}}})
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
}

func TestPCARemovesCommonMode(t *testing.T) {
	f, err := NewFactory().Build("pca", nil, testEnv)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	frames := sine(200, 2, 10, 1000)
	for i := range frames {
		for ch := range frames[i].Values {
			frames[i].Values[ch] += rng.NormFloat64()
		}
	}

	out, err := f.Apply(frames)
	require.NoError(t, err)
	assert.Less(t, peak(out, 0), 50.0)
	assert.Less(t, peak(out, 1), 50.0)
}

func TestPCAPassesThroughSmallBatches(t *testing.T) {
	f, err := NewFactory().Build("pca", nil, testEnv)
	require.NoError(t, err)

	frames := []types.Frame{{Values: []float64{1, 2, 3}}, {Values: []float64{4, 5, 6}}}
	out, err := f.Apply(frames)
	require.NoError(t, err)
	assert.Equal(t, frames, out)
}

func TestScriptEvaluatesExpression(t *testing.T) {
	f, err := NewFactory().Build("script", Params{"expr": "x * 2 + ch"}, testEnv)
	require.NoError(t, err)

	out, err := f.Apply([]types.Frame{{Values: []float64{1, 5}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 11}, out[0].Values)
}

func TestScriptRejectsNonNumeric(t *testing.T) {
	f, err := NewFactory().Build("script", Params{"expr": "'volts'"}, testEnv)
	require.NoError(t, err)

	_, err = f.Apply([]types.Frame{{Values: []float64{1}}})
	assert.Error(t, err)
}

func TestScriptTimeout(t *testing.T) {
	f, err := NewFactory().Build("script", Params{
		"expr":    "(function() { while (true) {} })()",
		"timeout": "20ms",
	}, testEnv)
	require.NoError(t, err)

	start := time.Now()
	_, err = f.Apply([]types.Frame{{Values: []float64{1}}})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	// the runtime stays usable after an interrupt
	cfg := f.(Configurable)
	require.NoError(t, cfg.Configure(Params{"expr": "x + 1"}))
	out, err := f.Apply([]types.Frame{{Values: []float64{1}}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out[0].Values[0])
}

func TestDisarmedInterruptNeverLeaks(t *testing.T) {
	vm, fn, err := compileExpression("x + 1")
	require.NoError(t, err)

	// a zero timeout races the timer against disarm on every pass
	for i := 0; i < 200; i++ {
		armInterrupt(vm, 0)()
		res, err := fn(goja.Undefined(), vm.ToValue(float64(i)), vm.ToValue(0), vm.ToValue(0))
		require.NoError(t, err, "pass %d", i)
		assert.Equal(t, float64(i+1), res.ToFloat())
	}

	disarm := armInterrupt(vm, time.Millisecond)
	disarm()
	time.Sleep(10 * time.Millisecond)
	_, err = vm.RunString("1 + 1")
	assert.NoError(t, err)
}
