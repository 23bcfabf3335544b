// Package source provides the data sources that feed the sample buffer.
//
// A Source yields a block of frames per acquisition tick. A tick with nothing
// to deliver returns types.ErrNoData, which the driver treats as an empty tick
// and never as a failure.
//
// Kinds:
//   - synthetic: Seeded sum of sines with per-channel DC offset and Gaussian noise
//   - replay: Comma-separated rows from plain, gzip or zstd files matched by a glob
//   - hardware: A Device read by a background pump through a circuit breaker
//
// Example Usage:
//
//	src, err := source.New("synthetic", source.Options{SampleRate: 1000, Channels: 2, Block: 100}, logger)
//	if err := src.Start(ctx); err != nil { ... }
//	frames, err := src.ReadTick(ctx)
//	if errors.Is(err, types.ErrNoData) { ... }
package source
