// Package covercache inspects and maintains the on-disk cover cache.
//
// Resolution never needs this package: it only reads and atomically writes
// cache files. The manager here backs the `covercache cache` commands, which
// list entries, report usage, and remove files. Removal holds the exclusive
// cache lock so it never races a writer renaming a finished download into
// place.
//
// # Size Management
//
// The cache has no built-in budget. `covercache cache prune --max-mib N`
// removes the oldest entries until the total fits, and Stats reports the free
// space left on the underlying volume.
package covercache
