// Package filter provides the filter contract, the built-in filter kinds and
// the live, mutable filter chain.
//
// Filters transform a batch of frames into a new batch. They may keep state
// (IIR history, running sums) which Reset clears. The Chain folds Apply over
// its filters in list order; a failing filter aborts the fold and the
// pre-chain frames pass through for that tick.
//
// Built-in Kinds:
//   - bandpass, lowpass, highpass: Butterworth second-order sections
//   - notch: RBJ notch biquad
//   - gain, dcblock, movavg: Simple per-channel stages
//   - pca: Principal-component common-mode removal (gonum)
//   - script: Per-sample JavaScript expression (goja)
//
// Example Usage:
//
//	chain := filter.NewChain(reg, filter.NewFactory(), filter.Env{SampleRate: 1000, Channels: 2}, logger)
//	params, _ := chain.Factory().Parse("bandpass", "50 250 5")
//	h, err := chain.Add("bandpass", params)
//	out, err := chain.Apply(frames)
package filter
