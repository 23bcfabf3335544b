package types

import "time"

// Frame is one sampling instant across all channels of a source
type Frame struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Values    []float64 `json:"values"`
}

// NewFrame creates an unsequenced frame; the sample buffer assigns Sequence on push
func NewFrame(ts time.Time, values []float64) Frame {
	return Frame{Timestamp: ts, Values: values}
}

// Channels returns the number of channels carried by the frame
func (f Frame) Channels() int {
	return len(f.Values)
}

// Clone returns a deep copy of the frame
func (f Frame) Clone() Frame {
	values := make([]float64, len(f.Values))
	copy(values, f.Values)
	return Frame{Sequence: f.Sequence, Timestamp: f.Timestamp, Values: values}
}

// CloneFrames deep-copies a batch of frames
func CloneFrames(frames []Frame) []Frame {
	if frames == nil {
		return nil
	}
	out := make([]Frame, len(frames))
	for i := range frames {
		out[i] = frames[i].Clone()
	}
	return out
}

// Width returns the channel count shared by a batch, or 0 for an empty batch
func Width(frames []Frame) int {
	if len(frames) == 0 {
		return 0
	}
	return frames[0].Channels()
}
