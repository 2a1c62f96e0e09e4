// Package summarystore persists resolved book descriptions in SQLite.
//
// Entries are keyed by subject ("isbn:<ISBN>" or "q:<hash>") and record that
// a lookup happened even when it produced no text, so a confirmed-empty
// summary is not fetched again until the caller forces a refresh. The schema
// is managed through embedded, append-only migrations.
package summarystore
