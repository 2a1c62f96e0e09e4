// Package openlibrary speaks the subset of the Open Library API covercache
// uses: cover image URLs, the search endpoint, and the work, edition and
// ISBN documents that may carry a description.
//
// Responses are decoded leniently. Open Library documents vary in shape
// (descriptions are either strings or {"value": ...} objects, edition keys
// are lists or bare strings), so fields of an unexpected type are dropped
// rather than failing the whole document.
package openlibrary
