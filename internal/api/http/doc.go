// Package http provides the read-only status API handlers.
//
// Every handler reads through the Console's own operations, so responses
// are consistent snapshots taken under each component's lock.
//
// Routes (registered by the server package):
//   - GET /               service identity
//   - GET /health         driver state, buffer and registry counts
//   - GET /status         full console status
//   - GET /registry       registered components, ?kind=source|filter|display
//   - GET /filters        chain order and available filter kinds
//   - GET /displays       attached displays with feed and view
//   - GET /displays/:name/plot  last plot of one display
//   - GET /metrics/json   derived metrics summary
package http
