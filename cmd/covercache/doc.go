// Package main hosts the covercache CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves covers and summaries for single books
// or TSV batches, and exposes cache, summary store, configuration, and
// preflight maintenance. Configuration resolution and logging setup live in
// the shared command context so subcommands only deal with presentation.
//
// Keep this package lean: behavior belongs in the internal packages, and
// commands here only parse flags and render results.
package main
