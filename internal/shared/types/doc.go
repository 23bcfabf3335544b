// Package types provides shared data structures for the signal console.
//
// This package defines the values that flow between pipeline components,
// ensuring every stage agrees on frame layout and error identity.
//
// Core Types:
//   - Frame: One sampling instant across N channels
//   - ProcessingError: Failure raised inside a filter or display
//
// Error Taxonomy:
//   - ErrShapeMismatch: Channel-count disagreement
//   - ErrUnknownFilterKind, ErrUnknownDisplayKind, ErrUnknownSourceKind
//   - ErrNotFound: Registry or chain miss
//   - ErrProcessing: Filter/display logic failed
//   - ErrInvalidRange: Axis limits with min >= max
//   - ErrNoData: Source had nothing this tick (normal outcome)
//   - ErrUnknownCommand: Shell command not in the table
//   - ErrInvalidConfig: Misconfiguration detected at construction time
//
// Example Usage:
//
//	frame := types.NewFrame(time.Now(), []float64{0.1, -0.4})
//	if frame.Channels() != want {
//	    return types.ErrShapeMismatch
//	}
package types
