// Package main is the entry point for the DSP console.
//
// The console pulls multi-channel samples from a source, filters them
// through a live chain, renders raw and filtered feeds to displays, and
// reads operator commands from stdin while acquisition keeps running.
//
// Architecture:
//
//	Source → Sample Buffer → Filter Chain → Display Manager → Surface / Recorder
//	                  ↑                            ↑
//	             acquisition loop             render loop        ← shell commands
//
// Configuration:
//   - Environment variables (DSP_*)
//   - CLI flags (override env vars)
//   - Optional startup pipeline file (-pipeline, YAML or TOML)
//
// Usage:
//
//	# Synthetic signal, default four displays
//	./dspconsole
//
//	# Replay recorded sessions with a startup chain and the status API
//	./dspconsole -source replay -path 'data/**/*.csv.gz' -pipeline pipeline.yaml -http
//
//	# Development mode (colored logs to a file, debug level)
//	./dspconsole -dev -log-output console.log
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
//
// Exit status is 0 after quit or exit, 1 on startup failure.
package main
