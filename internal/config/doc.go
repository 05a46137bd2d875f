// Package config loads, normalizes, and validates downloader configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the CLI needs:
// output locations, portal endpoints, credentials, external tool names,
// safety caps, and pacing delays.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
