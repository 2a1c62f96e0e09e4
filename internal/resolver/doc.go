// Package resolver answers one request for a book's cover and summary.
//
// It runs the cover machine and then the summary chain, handing both the
// same lazily executed search so a request issues at most one search call
// no matter which chain needs it first.
package resolver
