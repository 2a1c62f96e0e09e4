// Package logs reads the JSON log file written by the covercache CLI.
//
// Tail returns the last N lines or everything after a byte offset, and can
// poll for new lines in follow mode. ParseLine and Filter turn raw lines into
// entries so `covercache logs` can narrow output by level, component, or
// correlation id and render it the way the console handler does.
package logs
