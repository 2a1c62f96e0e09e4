package cover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"covercache/internal/cachelock"
	"covercache/internal/fileutil"
	"covercache/internal/logging"
)

// linkAlias makes the q_<hash> path point at the file just found so the
// next free-text lookup for the same title and author is served locally.
func (m *Machine) linkAlias(ctx context.Context) {
	if !m.o.aliases || m.path == "" {
		return
	}
	alias := m.aliasPath()
	if alias == "" || alias == m.path {
		return
	}
	if err := m.o.publishAlias(ctx, m.path, alias); err != nil {
		logging.WithContext(ctx, m.o.logger).Debug("query alias not written",
			logging.String(logging.FieldPath, alias),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) publishAlias(ctx context.Context, source, alias string) error {
	tmp, err := stageCopy(source, filepath.Dir(alias))
	if err != nil {
		return err
	}
	if o.lockRoot != "" {
		release, err := cachelock.Shared(ctx, o.lockRoot)
		if err != nil {
			os.Remove(tmp)
			return err
		}
		defer release()
	}
	if err := os.Rename(tmp, alias); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename alias: %w", err)
	}
	return nil
}

// stageCopy hard-links source to a fresh temp name in dir, copying the bytes
// when the filesystem refuses the link.
func stageCopy(source, dir string) (string, error) {
	tmpName, err := fileutil.TempName(dir, ".alias-*.tmp")
	if err != nil {
		return "", err
	}
	if err := fileutil.LinkOrCopy(source, tmpName); err != nil {
		return "", fmt.Errorf("stage alias: %w", err)
	}
	return tmpName, nil
}
