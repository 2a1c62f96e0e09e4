package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	CacheDir  string `toml:"cache_dir"`
	LogDir    string `toml:"log_dir"`
	SummaryDB string `toml:"summary_db"`
}

// OpenLibrary contains configuration for the remote bibliographic service.
type OpenLibrary struct {
	BaseURL        string `toml:"base_url"`
	CoversURL      string `toml:"covers_url"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	SearchLimit    int    `toml:"search_limit"`
}

// Resolver contains defaults applied to resolution requests.
type Resolver struct {
	DefaultSize  string `toml:"default_size"`
	WantSummary  bool   `toml:"want_summary"`
	QueryAliases bool   `toml:"query_aliases"` // link search hits to q_<hash> files
}

// Dispatcher contains worker pool sizing.
type Dispatcher struct {
	Workers   int  `toml:"workers"`
	QueueSize int  `toml:"queue_size"`
	Dedupe    bool `toml:"dedupe"`
}

// Summaries contains configuration for the persisted summary store.
type Summaries struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for covercache.
//
// Configuration sections by subsystem:
//   - Paths: cover cache root, log directory, summary database
//   - OpenLibrary: endpoints, client identification, per-call timeout
//   - Resolver: default size class, summary and alias behaviour
//   - Dispatcher: worker count, queue depth, duplicate suppression
//   - Summaries: persisted summary lookups
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	OpenLibrary OpenLibrary `toml:"openlibrary"`
	Resolver    Resolver    `toml:"resolver"`
	Dispatcher  Dispatcher  `toml:"dispatcher"`
	Summaries   Summaries   `toml:"summaries"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("covercache.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Summaries.Enabled && strings.TrimSpace(c.Paths.SummaryDB) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Paths.SummaryDB), 0o755); err != nil {
			return fmt.Errorf("create summary database directory: %w", err)
		}
	}
	return nil
}

// RequestTimeout returns the per-call HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.OpenLibrary.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// defaultCacheRoot mirrors the user cache directory layout: <cache>/covercache.
func defaultCacheRoot() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "covercache")
	}
	if base, err := os.UserCacheDir(); err == nil && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "covercache")
	}
	return "~/.cache/covercache"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
