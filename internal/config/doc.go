// Package config loads, normalizes, and validates covercache configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COVERCACHE_CACHE_DIR. The Config type centralizes every knob the resolver,
// dispatcher, and CLI need so the cover cache root, Open Library endpoints,
// and worker pool sizing are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical size classes, and clear validation errors.
package config
