package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOpenLibrary()
	c.normalizeResolver()
	c.normalizeDispatcher()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("COVERCACHE_CACHE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.CacheDir = strings.TrimSpace(value)
	}
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = Default().Paths.CacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SummaryDB) == "" {
		c.Paths.SummaryDB = Default().Paths.SummaryDB
	}
	if c.Paths.SummaryDB, err = expandPath(c.Paths.SummaryDB); err != nil {
		return fmt.Errorf("paths.summary_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeOpenLibrary() {
	c.OpenLibrary.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenLibrary.BaseURL), "/")
	if c.OpenLibrary.BaseURL == "" {
		c.OpenLibrary.BaseURL = defaultOpenLibraryBaseURL
	}
	c.OpenLibrary.CoversURL = strings.TrimRight(strings.TrimSpace(c.OpenLibrary.CoversURL), "/")
	if c.OpenLibrary.CoversURL == "" {
		c.OpenLibrary.CoversURL = defaultCoversBaseURL
	}
	if value, ok := os.LookupEnv("COVERCACHE_USER_AGENT"); ok && strings.TrimSpace(value) != "" {
		c.OpenLibrary.UserAgent = value
	}
	c.OpenLibrary.UserAgent = strings.TrimSpace(c.OpenLibrary.UserAgent)
	if c.OpenLibrary.UserAgent == "" {
		c.OpenLibrary.UserAgent = defaultUserAgent
	}
	if c.OpenLibrary.TimeoutSeconds == 0 {
		c.OpenLibrary.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.OpenLibrary.SearchLimit == 0 {
		c.OpenLibrary.SearchLimit = defaultSearchLimit
	}
}

func (c *Config) normalizeResolver() {
	c.Resolver.DefaultSize = strings.ToUpper(strings.TrimSpace(c.Resolver.DefaultSize))
	if c.Resolver.DefaultSize == "" {
		c.Resolver.DefaultSize = defaultSize
	}
}

func (c *Config) normalizeDispatcher() {
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = defaultWorkers
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = defaultQueueSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
