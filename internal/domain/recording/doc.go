// Package recording captures rendered plots to disk.
//
// A Recorder owns at most one active session. Capture is non-blocking: plots
// go through a bounded queue to a writer goroutine, and plots that do not fit
// are counted as dropped. The default encoder writes one JSON object per line
// and compresses by file extension (.zst, .gz, or none).
//
// Example Usage:
//
//	rec := recording.New(recording.Options{Dir: "recordings"}, logger)
//	session, err := rec.Start("")          // recordings/<uuid>.jsonl.zst
//	rec.Capture(plot)
//	summary, err := rec.Stop()
package recording
