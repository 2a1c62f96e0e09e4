package testsupport

import (
	"path/filepath"
	"testing"

	"covercache/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Logging goes nowhere and the Open Library hosts point at an unroutable
// address unless overridden.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "covers")
	cfgVal.Paths.LogDir = ""
	cfgVal.Paths.SummaryDB = filepath.Join(base, "summaries.db")
	cfgVal.OpenLibrary.BaseURL = "http://127.0.0.1:1"
	cfgVal.OpenLibrary.CoversURL = "http://127.0.0.1:1"
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOpenLibrary points both Open Library hosts at baseURL.
func WithOpenLibrary(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OpenLibrary.BaseURL = baseURL
		b.cfg.OpenLibrary.CoversURL = baseURL
	}
}

// WithSummaries toggles the persisted summary store.
func WithSummaries(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Summaries.Enabled = enabled
	}
}

// WithWorkers sets the dispatcher pool size.
func WithWorkers(workers int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dispatcher.Workers = workers
	}
}

// WithQueryAliases toggles q_<hash> alias files.
func WithQueryAliases(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resolver.QueryAliases = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
