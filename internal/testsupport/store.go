package testsupport

import (
	"testing"

	"covercache/internal/config"
	"covercache/internal/summarystore"
)

// MustOpenSummaryStore opens the config's summary store and registers cleanup.
func MustOpenSummaryStore(t testing.TB, cfg *config.Config) *summarystore.Store {
	t.Helper()

	store, err := summarystore.Open(cfg.Paths.SummaryDB)
	if err != nil {
		t.Fatalf("summarystore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
