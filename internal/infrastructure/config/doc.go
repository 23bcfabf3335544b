// Package config provides 12-factor configuration for the console.
//
// Settings are loaded from DSP_* environment variables with defaults. An
// optional pipeline file (YAML or TOML, chosen by extension) describes the
// startup source, filters and displays; it is checked against an embedded
// JSON Schema before use. CLI flags in cmd/dspconsole override both.
//
// Configuration Sections:
//   - Source: Source kind and acquisition parameters
//   - Pipeline: Buffer size, loop intervals, feed split policy, pipeline file
//   - Server: Optional HTTP status API
//   - Logging: Log level, format and output
//   - RateLimit: Per-IP rate limiting for the HTTP API
//   - Recording: Recording directory, compression and queue size
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	if cfg.Pipeline.File != "" {
//		file, err := config.LoadPipelineFile(cfg.Pipeline.File)
//	}
package config
