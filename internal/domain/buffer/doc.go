// Package buffer provides the bounded sample buffer shared by acquisition and rendering.
//
// The Ring stores timestamped multi-channel frames keyed by a monotonically
// increasing sequence number assigned at push time. When full, the oldest
// frame is evicted. Readers copy out under a read lock, so they never observe
// a partially written frame or a half-applied eviction.
//
// Example Usage:
//
//	ring, err := buffer.New(10000, 2)
//	seq, err := ring.Push(types.NewFrame(time.Now(), []float64{1.2, -0.3}))
//	recent := ring.Snapshot(1000)
//	fresh, lost := ring.Since(cursor, 5000)
package buffer
