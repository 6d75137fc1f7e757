// Package config loads, normalizes, and validates blendflow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// MAX_RETRIES and GCS_BUCKET. The Config type centralizes every knob the
// engine needs: retry policy, worker pool size, breaker thresholds, stage
// timeouts, and the publish backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
