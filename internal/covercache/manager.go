package covercache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"covercache/internal/cachelock"
	"covercache/internal/cachepath"
	"covercache/internal/config"
	"covercache/internal/identity"
	"covercache/internal/logging"
)

// staleTempAge is how old an abandoned download or alias temp file must be
// before Clear removes it.
const staleTempAge = time.Hour

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Manager inspects and prunes one cache directory.
type Manager struct {
	root   string
	mapper cachepath.Mapper
	logger *slog.Logger
	statfs statfsFunc
	now    func() time.Time
}

// Entry is one recognized cover file.
type Entry struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Kind       string    `json:"kind"`
	Value      string    `json:"value"`
	Size       string    `json:"size"`
	Bytes      int64     `json:"bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	// SharedWith names the older entry this one is a hard link of. Its bytes
	// are already accounted for there.
	SharedWith string `json:"shared_with,omitempty"`

	info os.FileInfo
}

// KindStats aggregates entries of one identity kind.
type KindStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Stats describes current cache usage.
type Stats struct {
	Root         string               `json:"root"`
	Entries      int                  `json:"entries"`
	TotalBytes   int64                `json:"total_bytes"`
	Linked       int                  `json:"linked"`
	Unrecognized int                  `json:"unrecognized"`
	ByKind       map[string]KindStats `json:"by_kind"`
	FreeBytes    uint64               `json:"free_bytes"`
	TotalFSBytes uint64               `json:"total_fs_bytes"`
	FreeRatio    float64              `json:"free_ratio"`
}

// PruneResult reports what Prune or Clear removed.
type PruneResult struct {
	Removed    int   `json:"removed"`
	FreedBytes int64 `json:"freed_bytes"`
}

// NewManager builds a manager for the configured cache directory.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	root := ""
	if cfg != nil {
		root = cfg.Paths.CacheDir
	}
	return NewManagerAt(root, logger)
}

// NewManagerAt builds a manager for root.
func NewManagerAt(root string, logger *slog.Logger) *Manager {
	return &Manager{
		root:   root,
		mapper: cachepath.New(root),
		logger: logging.NewComponentLogger(logger, "covercache"),
		statfs: realStatfs,
		now:    time.Now,
	}
}

// Root returns the managed directory.
func (m *Manager) Root() string {
	return m.root
}

// Path returns the file a cover for id at size would occupy.
func (m *Manager) Path(id identity.Identity, size cachepath.Size) string {
	return m.mapper.Path(id, size)
}

// Entries lists recognized cover files, newest first.
func (m *Manager) Entries(ctx context.Context) ([]Entry, error) {
	entries, _, err := m.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// Stats returns current cache usage and filesystem free-space info.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Root: m.root, ByKind: make(map[string]KindStats)}
	entries, unrecognized, err := m.scan(ctx)
	if err != nil {
		return s, err
	}
	for _, e := range entries {
		k := s.ByKind[e.Kind]
		k.Entries++
		if e.SharedWith != "" {
			s.Linked++
		} else {
			k.Bytes += e.Bytes
			s.TotalBytes += e.Bytes
		}
		s.ByKind[e.Kind] = k
	}
	s.Entries = len(entries)
	s.Unrecognized = unrecognized

	if _, err := os.Stat(m.root); err == nil {
		total, free, err := m.statfs(m.root)
		if err != nil {
			return s, fmt.Errorf("covercache: statfs: %w", err)
		}
		s.TotalFSBytes = total
		s.FreeBytes = free
		s.FreeRatio = 1.0
		if total > 0 {
			s.FreeRatio = float64(free) / float64(total)
		}
	}
	if s.Entries == 0 {
		m.logger.InfoContext(ctx, "cover cache empty", logging.String(logging.FieldPath, m.root))
	}
	return s, nil
}

// Remove deletes every cached size of id, along with any aliases linked to
// the removed files.
func (m *Manager) Remove(ctx context.Context, id identity.Identity) (PruneResult, error) {
	if id.IsZero() {
		return PruneResult{}, errors.New("covercache: remove requires an identity")
	}
	return m.removeWhere(ctx, func(e Entry) bool {
		return e.Kind == id.Kind.String() && e.Value == id.Value
	}, false)
}

// Clear deletes every recognized cover file and any stale temp files.
func (m *Manager) Clear(ctx context.Context) (PruneResult, error) {
	return m.removeWhere(ctx, func(Entry) bool { return true }, true)
}

// Prune deletes the oldest entries until the cache occupies at most maxBytes.
func (m *Manager) Prune(ctx context.Context, maxBytes int64) (PruneResult, error) {
	var result PruneResult
	if maxBytes < 0 {
		return result, fmt.Errorf("covercache: negative size budget %d", maxBytes)
	}
	release, err := cachelock.Exclusive(ctx, m.root)
	if err != nil {
		return result, err
	}
	defer release()

	entries, _, err := m.scan(ctx)
	if err != nil {
		return result, err
	}
	groups := linkGroups(entries)
	var total int64
	for _, g := range groups {
		total += g[0].Bytes
	}
	for _, g := range groups {
		if total <= maxBytes {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		removed := m.removeAll(g)
		result.Removed += removed
		if removed == len(g) {
			total -= g[0].Bytes
			result.FreedBytes += g[0].Bytes
		}
	}
	m.logger.InfoContext(ctx, "cover cache pruned",
		logging.Int("removed", result.Removed),
		logging.Int64("freed_bytes", result.FreedBytes),
		logging.Int64("remaining_bytes", total),
	)
	return result, nil
}

func (m *Manager) removeWhere(ctx context.Context, match func(Entry) bool, sweepTemps bool) (PruneResult, error) {
	var result PruneResult
	release, err := cachelock.Exclusive(ctx, m.root)
	if err != nil {
		return result, err
	}
	defer release()

	entries, _, err := m.scan(ctx)
	if err != nil {
		return result, err
	}
	for _, g := range linkGroups(entries) {
		var doomed []Entry
		if match(g[0]) {
			doomed = g
		} else {
			for _, e := range g[1:] {
				if match(e) {
					doomed = append(doomed, e)
				}
			}
		}
		removed := m.removeAll(doomed)
		result.Removed += removed
		if removed > 0 && removed == len(g) {
			result.FreedBytes += g[0].Bytes
		}
	}
	if sweepTemps {
		m.sweepTemps()
	}
	m.logger.InfoContext(ctx, "cover cache entries removed",
		logging.Int("removed", result.Removed),
		logging.Int64("freed_bytes", result.FreedBytes),
	)
	return result, nil
}

// removeAll deletes entries and reports how many are gone.
func (m *Manager) removeAll(entries []Entry) int {
	removed := 0
	for _, e := range entries {
		if err := m.removeFile(e.Path); err == nil {
			removed++
		}
	}
	return removed
}

func (m *Manager) removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(m.logger, "cover cache entry not removed", "covercache_remove_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			logging.String(logging.FieldImpact, "entry stays in the cache"),
		)
		return err
	}
	return nil
}

func (m *Manager) sweepTemps() {
	dirEntries, err := os.ReadDir(m.root)
	if err != nil {
		return
	}
	cutoff := m.now().Add(-staleTempAge)
	for _, de := range dirEntries {
		name := de.Name()
		if !isTempName(name) {
			continue
		}
		info, err := de.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = m.removeFile(filepath.Join(m.root, name))
	}
}

// scan returns recognized entries oldest first and the number of regular
// files that do not follow the cache layout.
func (m *Manager) scan(ctx context.Context) ([]Entry, int, error) {
	entries := make([]Entry, 0)
	dirEntries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, 0, nil
		}
		return nil, 0, fmt.Errorf("covercache: list root: %w", err)
	}
	unrecognized := 0
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		parsed, ok := cachepath.ParseName(name)
		if !ok {
			unrecognized++
			continue
		}
		info, err := de.Info()
		if err != nil {
			m.logger.WarnContext(ctx, "covercache: skip entry; excluded from stats and pruning",
				logging.String(logging.FieldPath, filepath.Join(m.root, name)),
				logging.Error(err),
				logging.String(logging.FieldEventType, "covercache_entry_skipped"),
				logging.String(logging.FieldErrorHint, "inspect cache directory permissions or remove the entry"),
			)
			continue
		}
		if !info.Mode().IsRegular() {
			unrecognized++
			continue
		}
		entries = append(entries, Entry{
			Name:       name,
			Path:       filepath.Join(m.root, name),
			Kind:       parsed.Identity.Kind.String(),
			Value:      parsed.Identity.Value,
			Size:       string(parsed.Size),
			Bytes:      info.Size(),
			ModifiedAt: info.ModTime(),
			info:       info,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ModifiedAt.Equal(entries[j].ModifiedAt) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ModifiedAt.Before(entries[j].ModifiedAt)
	})
	markLinks(entries)
	return entries, unrecognized, nil
}

// markLinks sets SharedWith on every entry that is a hard link of an older
// entry. Links share size and mtime, so candidates are bucketed by size.
func markLinks(entries []Entry) {
	bySize := make(map[int64][]int)
	for i := range entries {
		for _, j := range bySize[entries[i].Bytes] {
			if entries[j].SharedWith == "" && os.SameFile(entries[j].info, entries[i].info) {
				entries[i].SharedWith = entries[j].Path
				break
			}
		}
		bySize[entries[i].Bytes] = append(bySize[entries[i].Bytes], i)
	}
}

// linkGroups groups scanned entries by underlying file, oldest first. The
// first member of each group owns the bytes.
func linkGroups(entries []Entry) [][]Entry {
	index := make(map[string]int)
	var groups [][]Entry
	for _, e := range entries {
		if e.SharedWith != "" {
			if i, ok := index[e.SharedWith]; ok {
				groups[i] = append(groups[i], e)
				continue
			}
		}
		index[e.Path] = len(groups)
		groups = append(groups, []Entry{e})
	}
	return groups
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
