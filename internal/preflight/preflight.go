package preflight

import (
	"context"

	"covercache/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Cover cache directory (always checked)
	results = append(results, CheckDirectoryAccess("Cover cache", cfg.Paths.CacheDir))

	// Log directory (when file logging is configured)
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	if cfg.Summaries.Enabled {
		results = append(results, CheckSummaryStore(ctx, cfg.Paths.SummaryDB))
	}

	userAgent := cfg.OpenLibrary.UserAgent
	results = append(results,
		CheckEndpoint(ctx, "Open Library API", cfg.OpenLibrary.BaseURL+"/search.json?q=test&limit=1&fields=key", userAgent),
		CheckEndpoint(ctx, "Open Library covers", cfg.OpenLibrary.CoversURL, userAgent),
	)

	return results
}

// Failed returns results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
