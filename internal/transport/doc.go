// Package transport performs the bounded-timeout HTTP calls covercache makes
// against Open Library.
//
// Fetch downloads a resource into a cache file and GetJSON decodes a document
// into a value. Both fold every failure into a boolean "no result" so callers
// can move on to the next fallback; the distinction between a genuinely
// absent resource and an indeterminate failure survives only in the logs.
//
// Downloads land in a temporary file beside the destination and are renamed
// into place under the cache directory's shared lock, so concurrent readers
// either see the previous file or the complete new one.
package transport
