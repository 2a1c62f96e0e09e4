package config

import "path/filepath"

const (
	defaultConfigPath         = "~/.config/covercache/config.toml"
	defaultLogDir             = "~/.local/share/covercache/logs"
	defaultSummaryDBName      = "summaries.db"
	defaultCoversSubdir       = "covers"
	defaultOpenLibraryBaseURL = "https://openlibrary.org"
	defaultCoversBaseURL      = "https://covers.openlibrary.org"
	defaultUserAgent          = "covercache/1.0 (+local)"
	defaultTimeoutSeconds     = 10
	defaultSearchLimit        = 10
	defaultSize               = "L"
	defaultWorkers            = 4
	defaultQueueSize          = 64
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	root := defaultCacheRoot()
	return Config{
		Paths: Paths{
			CacheDir:  filepath.Join(root, defaultCoversSubdir),
			LogDir:    defaultLogDir,
			SummaryDB: filepath.Join(root, defaultSummaryDBName),
		},
		OpenLibrary: OpenLibrary{
			BaseURL:        defaultOpenLibraryBaseURL,
			CoversURL:      defaultCoversBaseURL,
			UserAgent:      defaultUserAgent,
			TimeoutSeconds: defaultTimeoutSeconds,
			SearchLimit:    defaultSearchLimit,
		},
		Resolver: Resolver{
			DefaultSize:  defaultSize,
			WantSummary:  true,
			QueryAliases: false,
		},
		Dispatcher: Dispatcher{
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
			Dedupe:    true,
		},
		Summaries: Summaries{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
