// Package display provides the displays and the manager that routes raw and
// filtered frames to them.
//
// A Display keeps its own rolling history and turns it into a Plot: one
// series per visible channel plus the axis bounds to draw with. Axis limits
// are either fixed by the user or recomputed from the plotted data on every
// render.
//
// The Manager owns the feed designation of every display. Each tick it reads
// the frames pushed since its cursor, runs the filter chain over them once,
// and renders every display with the batch for its feed. A failing display is
// isolated; the others still render.
//
// Kinds:
//   - time: Rolling time-domain trace, x axis in seconds ending at 0
//   - frequency: One-sided amplitude spectrum of the rolling window
package display
