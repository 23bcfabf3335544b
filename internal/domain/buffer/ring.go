package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// ErrEmpty is returned by LatestSequence before the first push
var ErrEmpty = errors.New("buffer is empty")

// Ring is a fixed-capacity, thread-safe ring of frames
type Ring struct {
	mu       sync.RWMutex
	frames   []types.Frame // Protected by mu
	head     int           // index of the oldest frame
	size     int
	channels int
	lastSeq  uint64 // sequence of the newest frame, valid when size > 0 or pushed
	pushed   bool
}

// Stats describes the buffer occupancy
type Stats struct {
	Capacity int    `json:"capacity"`
	Size     int    `json:"size"`
	Channels int    `json:"channels"`
	Latest   uint64 `json:"latest_sequence"`
	Empty    bool   `json:"empty"`
}

// New creates a ring holding at most capacity frames of the given width
func New(capacity, channels int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: buffer capacity must be positive, got %d", types.ErrInvalidConfig, capacity)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count must be positive, got %d", types.ErrInvalidConfig, channels)
	}
	return &Ring{
		frames:   make([]types.Frame, capacity),
		channels: channels,
	}, nil
}

// Push appends a frame, evicting the oldest when full, and returns its sequence
func (r *Ring) Push(frame types.Frame) (uint64, error) {
	if frame.Channels() != r.channels {
		return 0, types.ShapeError(r.channels, frame.Channels())
	}
	stored := frame.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(stored), nil
}

// PushBatch appends frames in order under a single critical section.
// The whole batch is rejected if any frame has the wrong width.
func (r *Ring) PushBatch(frames []types.Frame) (uint64, error) {
	stored := make([]types.Frame, len(frames))
	for i, f := range frames {
		if f.Channels() != r.channels {
			return 0, fmt.Errorf("frame %d: %w", i, types.ShapeError(r.channels, f.Channels()))
		}
		stored[i] = f.Clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var last uint64
	for _, f := range stored {
		last = r.appendLocked(f)
	}
	return last, nil
}

// appendLocked stores a frame (caller must hold the write lock)
func (r *Ring) appendLocked(frame types.Frame) uint64 {
	if r.pushed {
		r.lastSeq++
	} else {
		r.lastSeq = 1
		r.pushed = true
	}
	frame.Sequence = r.lastSeq

	capacity := len(r.frames)
	if r.size < capacity {
		r.frames[(r.head+r.size)%capacity] = frame
		r.size++
	} else {
		r.frames[r.head] = frame
		r.head = (r.head + 1) % capacity
	}
	return frame.Sequence
}

// Snapshot returns the most recent up-to-n frames in chronological order
func (r *Ring) Snapshot(n int) []types.Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	return r.copyTailLocked(n)
}

// Since returns frames newer than seq, keeping only the most recent limit when
// more are available. lost counts frames after seq that were no longer
// retrievable, either evicted or trimmed by limit.
func (r *Ring) Since(seq uint64, limit int) (frames []types.Frame, lost uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 || r.lastSeq <= seq {
		return nil, 0
	}

	newer := r.lastSeq - seq
	available := uint64(r.size)
	if newer > available {
		lost = newer - available
		newer = available
	}
	n := int(newer)
	if limit > 0 && n > limit {
		lost += uint64(n - limit)
		n = limit
	}
	return r.copyTailLocked(n), lost
}

// copyTailLocked copies the newest n frames (caller must hold a lock).
// Stored frames are never mutated after push, so value slices are shared.
func (r *Ring) copyTailLocked(n int) []types.Frame {
	capacity := len(r.frames)
	out := make([]types.Frame, n)
	start := r.head + r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.frames[(start+i)%capacity]
	}
	return out
}

// LatestSequence returns the sequence of the newest frame, or ErrEmpty
func (r *Ring) LatestSequence() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.pushed {
		return 0, ErrEmpty
	}
	return r.lastSeq, nil
}

// Len returns the number of frames currently held
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the fixed capacity
func (r *Ring) Capacity() int {
	return len(r.frames)
}

// Channels returns the configured channel count
func (r *Ring) Channels() int {
	return r.channels
}

// Stats returns a consistent view of occupancy
func (r *Ring) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Capacity: len(r.frames),
		Size:     r.size,
		Channels: r.channels,
		Latest:   r.lastSeq,
		Empty:    !r.pushed,
	}
}
