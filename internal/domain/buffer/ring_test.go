package buffer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

func frame(values ...float64) types.Frame {
	return types.NewFrame(time.Unix(0, 0), values)
}

func TestNewRejectsMisconfiguration(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		channels int
	}{
		{"zero capacity", 0, 2},
		{"negative capacity", -1, 2},
		{"zero channels", 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.capacity, tt.channels)
			assert.True(t, errors.Is(err, types.ErrInvalidConfig))
		})
	}
}

func TestPushShapeMismatch(t *testing.T) {
	r, err := New(4, 2)
	require.NoError(t, err)

	_, err = r.Push(frame(1, 2, 3))
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
	assert.Equal(t, 0, r.Len())

	_, err = r.LatestSequence()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSnapshotAfterOverflow(t *testing.T) {
	const capacity = 5
	r, err := New(capacity, 1)
	require.NoError(t, err)

	for pushes := 1; pushes <= 3*capacity; pushes++ {
		_, err := r.Push(frame(float64(pushes)))
		require.NoError(t, err)

		snap := r.Snapshot(capacity)
		want := pushes
		if want > capacity {
			want = capacity
		}
		require.Len(t, snap, want)

		// exactly the most recent frames, oldest first
		for i, f := range snap {
			expected := float64(pushes - want + 1 + i)
			assert.Equal(t, expected, f.Values[0])
			assert.Equal(t, uint64(expected), f.Sequence)
		}
	}
}

func TestSnapshotBounds(t *testing.T) {
	r, _ := New(3, 1)
	assert.Nil(t, r.Snapshot(3))

	r.Push(frame(1))
	r.Push(frame(2))

	assert.Len(t, r.Snapshot(10), 2)
	assert.Nil(t, r.Snapshot(0))
	assert.Equal(t, 2.0, r.Snapshot(1)[0].Values[0])
}

func TestPushCopiesValues(t *testing.T) {
	r, _ := New(3, 2)
	values := []float64{1, 2}
	r.Push(types.NewFrame(time.Now(), values))

	values[0] = 42
	assert.Equal(t, 1.0, r.Snapshot(1)[0].Values[0])
}

func TestPushBatchAllOrNothing(t *testing.T) {
	r, _ := New(10, 2)

	_, err := r.PushBatch([]types.Frame{frame(1, 1), frame(2)})
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
	assert.Equal(t, 0, r.Len())

	last, err := r.PushBatch([]types.Frame{frame(1, 1), frame(2, 2), frame(3, 3)})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)

	seq, err := r.LatestSequence()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}

func TestSince(t *testing.T) {
	r, _ := New(4, 1)
	for i := 1; i <= 3; i++ {
		r.Push(frame(float64(i)))
	}

	frames, lost := r.Since(1, 0)
	require.Len(t, frames, 2)
	assert.Equal(t, uint64(2), frames[0].Sequence)
	assert.Zero(t, lost)

	frames, lost = r.Since(3, 0)
	assert.Empty(t, frames)
	assert.Zero(t, lost)

	// push past capacity so sequences 1..3 are partly evicted
	for i := 4; i <= 8; i++ {
		r.Push(frame(float64(i)))
	}
	frames, lost = r.Since(1, 0)
	require.Len(t, frames, 4)
	assert.Equal(t, uint64(5), frames[0].Sequence)
	assert.Equal(t, uint64(3), lost)

	frames, lost = r.Since(4, 2)
	require.Len(t, frames, 2)
	assert.Equal(t, uint64(7), frames[0].Sequence)
	assert.Equal(t, uint64(2), lost)
}

func TestStats(t *testing.T) {
	r, _ := New(8, 3)
	stats := r.Stats()
	assert.True(t, stats.Empty)
	assert.Equal(t, 8, stats.Capacity)

	r.Push(frame(1, 2, 3))
	stats = r.Stats()
	assert.False(t, stats.Empty)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Latest)
	assert.Equal(t, 3, r.Channels())
	assert.Equal(t, 8, r.Capacity())
}

func TestConcurrentReadersNeverSeeTornFrames(t *testing.T) {
	const channels = 8
	r, _ := New(64, channels)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			values := make([]float64, channels)
			for c := range values {
				values[c] = float64(i)
			}
			if _, err := r.Push(types.NewFrame(time.Now(), values)); err != nil {
				t.Errorf("push failed: %v", err)
				return
			}
		}
		close(stop)
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := r.Snapshot(64)
				for i, f := range snap {
					for _, v := range f.Values {
						if v != f.Values[0] {
							t.Errorf("torn frame at seq %d", f.Sequence)
							return
						}
					}
					if i > 0 && f.Sequence != snap[i-1].Sequence+1 {
						t.Errorf("frames out of order: %d after %d", f.Sequence, snap[i-1].Sequence)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
