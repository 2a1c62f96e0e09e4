package covercache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"covercache/internal/cachelock"
	"covercache/internal/cachepath"
	"covercache/internal/identity"
	"covercache/internal/testsupport"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, nil)
	m.statfs = func(string) (uint64, uint64, error) { return 1000, 250, nil }
	return m
}

func writeEntry(t *testing.T, m *Manager, name string, size int64, age time.Duration) string {
	t.Helper()
	path := filepath.Join(m.Root(), name)
	testsupport.WriteFile(t, path, size)
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	return path
}

func entryNames(entries []Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func TestEntriesNewestFirstAndSkipsForeignFiles(t *testing.T) {
	m := newTestManager(t)
	writeEntry(t, m, "isbn_9780441013593_L.jpg", 10, 3*time.Hour)
	writeEntry(t, m, "olid_12345_M.jpg", 20, 2*time.Hour)
	writeEntry(t, m, "q_b7ea06bb5f5c284c_S.jpg", 30, time.Hour)
	writeEntry(t, m, "notes.txt", 5, time.Hour)
	writeEntry(t, m, ".fetch-1.tmp", 5, time.Hour)
	if err := os.MkdirAll(filepath.Join(m.Root(), "isbn_1_L.jpg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	entries, err := m.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	want := []string{"q_b7ea06bb5f5c284c_S.jpg", "olid_12345_M.jpg", "isbn_9780441013593_L.jpg"}
	if diff := cmp.Diff(want, entryNames(entries)); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	if entries[1].Kind != "olid" || entries[1].Value != "12345" || entries[1].Size != "M" || entries[1].Bytes != 20 {
		t.Fatalf("unexpected parsed entry %+v", entries[1])
	}
}

func TestEntriesMissingRoot(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "absent"), nil)
	entries, err := m.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
	stats, err := m.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 0 || stats.TotalFSBytes != 0 {
		t.Fatalf("unexpected stats for missing root %+v", stats)
	}
}

func TestStatsAggregatesByKind(t *testing.T) {
	m := newTestManager(t)
	writeEntry(t, m, "isbn_1_L.jpg", 10, time.Hour)
	writeEntry(t, m, "isbn_1_S.jpg", 5, time.Hour)
	writeEntry(t, m, "olid_7_L.jpg", 20, time.Hour)
	writeEntry(t, m, "stray.jpg", 3, time.Hour)

	stats, err := m.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := map[string]KindStats{
		"isbn": {Entries: 2, Bytes: 15},
		"olid": {Entries: 1, Bytes: 20},
	}
	if diff := cmp.Diff(want, stats.ByKind); diff != "" {
		t.Fatalf("by-kind mismatch (-want +got):\n%s", diff)
	}
	if stats.Entries != 3 || stats.TotalBytes != 35 || stats.Unrecognized != 1 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.FreeBytes != 250 || stats.TotalFSBytes != 1000 || stats.FreeRatio != 0.25 {
		t.Fatalf("unexpected filesystem stats %+v", stats)
	}
}

func TestRemoveDeletesEverySizeOfIdentity(t *testing.T) {
	m := newTestManager(t)
	keep := writeEntry(t, m, "isbn_2_L.jpg", 10, time.Hour)
	writeEntry(t, m, "isbn_1_L.jpg", 10, time.Hour)
	writeEntry(t, m, "isbn_1_M.jpg", 7, time.Hour)

	result, err := m.Remove(context.Background(), identity.ISBN("1"))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if result.Removed != 2 || result.FreedBytes != 17 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !cachepath.Valid(keep) {
		t.Fatal("unrelated entry removed")
	}
	if _, err := m.Remove(context.Background(), identity.Identity{}); err == nil {
		t.Fatal("expected error for zero identity")
	}
}

func TestClearRemovesEntriesAndStaleTemps(t *testing.T) {
	m := newTestManager(t)
	writeEntry(t, m, "isbn_1_L.jpg", 10, time.Hour)
	writeEntry(t, m, "olid_3_S.jpg", 10, time.Hour)
	foreign := writeEntry(t, m, "README", 1, time.Hour)
	stale := writeEntry(t, m, ".fetch-old.tmp", 1, 2*time.Hour)
	fresh := writeEntry(t, m, ".alias-new.tmp", 1, time.Minute)

	result, err := m.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if result.Removed != 2 {
		t.Fatalf("removed = %d, want 2", result.Removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale temp file should be removed, stat err=%v", err)
	}
	for _, path := range []string{foreign, fresh} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s should survive Clear: %v", path, err)
		}
	}
}

func TestPruneRemovesOldestFirst(t *testing.T) {
	m := newTestManager(t)
	oldest := writeEntry(t, m, "isbn_1_L.jpg", 40, 3*time.Hour)
	middle := writeEntry(t, m, "isbn_2_L.jpg", 40, 2*time.Hour)
	newest := writeEntry(t, m, "isbn_3_L.jpg", 40, time.Hour)

	result, err := m.Prune(context.Background(), 80)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.Removed != 1 || result.FreedBytes != 40 {
		t.Fatalf("unexpected prune result %+v", result)
	}
	if cachepath.Valid(oldest) {
		t.Fatal("oldest entry should be pruned")
	}
	if !cachepath.Valid(middle) || !cachepath.Valid(newest) {
		t.Fatal("newer entries should survive")
	}

	if _, err := m.Prune(context.Background(), -1); err == nil {
		t.Fatal("expected error for negative budget")
	}
}

func linkEntry(t *testing.T, src, name string) string {
	t.Helper()
	dst := filepath.Join(filepath.Dir(src), name)
	if err := os.Link(src, dst); err != nil {
		t.Skipf("hard links unsupported: %v", err)
	}
	return dst
}

func TestStatsCountsLinkedAliasOnce(t *testing.T) {
	m := newTestManager(t)
	src := writeEntry(t, m, "olid_7_L.jpg", 20, time.Hour)
	linkEntry(t, src, "q_0123456789abcdef_L.jpg")
	writeEntry(t, m, "isbn_1_L.jpg", 10, time.Hour)

	stats, err := m.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 3 || stats.Linked != 1 || stats.TotalBytes != 30 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if got := stats.ByKind["q"]; got != (KindStats{Entries: 1}) {
		t.Fatalf("alias kind stats = %+v", got)
	}
}

func TestPruneRemovesLinkedAliasWithSource(t *testing.T) {
	m := newTestManager(t)
	src := writeEntry(t, m, "olid_7_L.jpg", 40, 3*time.Hour)
	alias := linkEntry(t, src, "q_0123456789abcdef_L.jpg")
	newest := writeEntry(t, m, "isbn_3_L.jpg", 40, time.Hour)

	result, err := m.Prune(context.Background(), 40)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if result.Removed != 2 || result.FreedBytes != 40 {
		t.Fatalf("unexpected prune result %+v", result)
	}
	if cachepath.Valid(src) || cachepath.Valid(alias) {
		t.Fatal("source and alias should both be pruned")
	}
	if !cachepath.Valid(newest) {
		t.Fatal("newest entry should survive")
	}
}

func TestRemoveTakesLinkedAliases(t *testing.T) {
	m := newTestManager(t)
	src := writeEntry(t, m, "olid_7_L.jpg", 20, time.Hour)
	alias := linkEntry(t, src, "q_0123456789abcdef_L.jpg")

	result, err := m.Remove(context.Background(), identity.CoverID(7))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if result.Removed != 2 || result.FreedBytes != 20 {
		t.Fatalf("unexpected result %+v", result)
	}
	if cachepath.Valid(alias) {
		t.Fatal("alias should go with its source")
	}
}

func TestRemoveAliasKeepsSource(t *testing.T) {
	m := newTestManager(t)
	src := writeEntry(t, m, "olid_7_L.jpg", 20, time.Hour)
	linkEntry(t, src, "q_0123456789abcdef_L.jpg")

	result, err := m.Remove(context.Background(), identity.Identity{Kind: identity.KindQuery, Value: "0123456789abcdef"})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if result.Removed != 1 || result.FreedBytes != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !cachepath.Valid(src) {
		t.Fatal("source should survive removing its alias")
	}
}

func TestPruneWaitsForLock(t *testing.T) {
	m := newTestManager(t)
	writeEntry(t, m, "isbn_1_L.jpg", 40, time.Hour)

	release, err := cachelock.Shared(context.Background(), m.Root())
	if err != nil {
		t.Fatalf("shared lock: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := m.Prune(ctx, 0); err == nil {
		t.Fatal("expected prune to fail while a writer holds the lock")
	}
}

func TestPathMatchesMapper(t *testing.T) {
	m := newTestManager(t)
	got := m.Path(identity.ISBN("978-0-441-01359-3"), cachepath.SizeMedium)
	want := filepath.Join(m.Root(), "isbn_9780441013593_M.jpg")
	if got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
}
