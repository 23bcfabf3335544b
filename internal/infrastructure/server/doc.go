// Package server assembles the status API: gin router, middleware stack,
// handlers, WebSocket plot stream and Prometheus endpoint, plus graceful
// shutdown.
//
// The server is optional and read-only. The interactive shell remains the
// only way to mutate the pipeline.
package server
