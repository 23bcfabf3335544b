// Package middleware holds the gin middleware shared by the status API:
// CORS for browser dashboards and per-client rate limiting.
package middleware
