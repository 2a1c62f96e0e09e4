// Package logging assembles structured slog loggers and formatting helpers used
// across covercache.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so resolver and dispatcher code
// can tag log lines with request correlation IDs and the book being resolved.
// A no-op logger is provided for tests and library callers that do not care
// about log output.
package logging
