/*
Package monitoring provides Prometheus metrics for the console.

# Overview

Each Metrics value owns a private prometheus.Registry so several consoles
(and tests) can coexist in one process. The collector satisfies the small
metrics interfaces declared by the filter, display and recording packages,
so those packages never import Prometheus directly.

# Features

- Acquisition ticks, frames acquired and buffer depth
- Filter chain latency and per-kind filter failures
- Render tick latency, per-kind render latency and failures
- Frames lost between the buffer and the display manager
- Registry sizes per component kind
- Shell command counts and latency
- Recording throughput and drops
- HTTP request and WebSocket stream metrics

# Usage

	metrics := monitoring.NewMetrics()

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	chain.WithMetrics(metrics)
	manager.WithMetrics(metrics)

	timer := monitoring.NewTimer(metrics, "add_filter")
	// ... run command ...
	timer.Stop("ok")
*/
package monitoring
