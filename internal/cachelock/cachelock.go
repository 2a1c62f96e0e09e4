// Package cachelock coordinates processes sharing one cover cache directory.
//
// Writers renaming a finished download into place hold the shared lock;
// maintenance that removes files holds the exclusive lock. Readers never lock.
package cachelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the advisory lock file created inside the cache root.
const FileName = ".covercache.lock"

const retryDelay = 25 * time.Millisecond

// Path returns the lock file location for root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Release unlocks a previously acquired lock.
type Release func()

// Shared acquires the shared lock for root, waiting until ctx ends.
func Shared(ctx context.Context, root string) (Release, error) {
	return acquire(ctx, root, false)
}

// Exclusive acquires the exclusive lock for root, waiting until ctx ends.
func Exclusive(ctx context.Context, root string) (Release, error) {
	return acquire(ctx, root, true)
}

func acquire(ctx context.Context, root string, exclusive bool) (Release, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	lock := flock.New(Path(root))
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = lock.TryLockContext(ctx, retryDelay)
	} else {
		ok, err = lock.TryRLockContext(ctx, retryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire cache lock: %s busy", lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}
