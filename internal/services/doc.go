// Package services defines shared utilities consumed by the resolution
// components and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and the subject being
//     resolved for logging.
//   - Structured error markers plus the Wrap helper so every step failure can
//     be classified as absent or indeterminate before it is folded into an
//     empty result.
package services
