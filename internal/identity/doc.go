// Package identity canonicalizes the ways a book can be named.
//
// A request reaches covercache as a loose mix of an optional standard
// identifier and free-text title/author. Normalize and ChooseBest reduce the
// identifier side to a single 10- or 13-character ISBN, QueryKey reduces the
// free-text side to a stable hash, and Identity tags either value (or a
// provider cover reference) so cache paths for different kinds never collide.
package identity
