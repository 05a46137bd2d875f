// Package logging constructs the slog loggers used across the downloader.
//
// It offers a console handler that renders one compact line per event
// (timestamp, level, component prefix, key=value attributes) plus a JSON
// handler for machine consumption, and re-exports slog attribute helpers so
// callers do not import log/slog directly.
package logging
