package filter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// pca removes the strongest principal components of each batch. With
// magnetometer pairs the first component is the field common to both sensors.
type pca struct {
	drop   int
	params Params
}

func newPCA(p Params, _ Env) (Filter, error) {
	f := &pca{}
	if err := f.Configure(p); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *pca) Name() string              { return "pca" }
func (f *pca) Params() Params            { return f.params.Merge(nil) }
func (f *pca) OutputChannels(in int) int { return in }
func (f *pca) Reset()                    {}

func (f *pca) Configure(p Params) error {
	merged := f.params.Merge(p)
	drop, err := merged.Int("drop", 1)
	if err != nil {
		return err
	}
	if drop < 0 {
		return fmt.Errorf("%w: drop must not be negative", types.ErrInvalidConfig)
	}
	f.drop, f.params = drop, merged
	return nil
}

func (f *pca) Apply(frames []types.Frame) ([]types.Frame, error) {
	n, d := len(frames), types.Width(frames)
	// too few observations to estimate components
	if f.drop == 0 || n < 2 || n < d {
		return frames, nil
	}

	data := mat.NewDense(n, d, nil)
	for i, frame := range frames {
		if frame.Channels() != d {
			return nil, types.ShapeError(d, frame.Channels())
		}
		data.SetRow(i, frame.Values)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	drop := f.drop
	if drop > d {
		drop = d
	}

	centered := mat.NewDense(n, d, nil)
	means := make([]float64, d)
	for j := 0; j < d; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}
	centered.Apply(func(_, j int, v float64) float64 { return v - means[j] }, data)

	dropped := vecs.Slice(0, d, 0, drop)
	var scores, removed mat.Dense
	scores.Mul(centered, dropped)
	removed.Mul(&scores, dropped.T())

	out := make([]types.Frame, n)
	for i, frame := range frames {
		values := make([]float64, d)
		for j := range values {
			values[j] = frame.Values[j] - removed.At(i, j)
		}
		out[i] = types.Frame{Sequence: frame.Sequence, Timestamp: frame.Timestamp, Values: values}
	}
	return out, nil
}
