package resolver

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"covercache/internal/cachepath"
	"covercache/internal/config"
	"covercache/internal/cover"
	"covercache/internal/identity"
	"covercache/internal/logging"
	"covercache/internal/metadata"
	"covercache/internal/openlibrary"
	"covercache/internal/services"
	"covercache/internal/transport"
)

// Request names a book and how to resolve it.
type Request struct {
	ISBN         string         `json:"isbn,omitempty"`
	Title        string         `json:"title,omitempty"`
	Author       string         `json:"author,omitempty"`
	Size         cachepath.Size `json:"size,omitempty"`
	ForceRefresh bool           `json:"force_refresh,omitempty"`
	WantSummary  bool           `json:"want_summary,omitempty"`
}

// Key is the canonical form of req: requests with equal keys resolve to the
// same result.
func (r Request) Key() string {
	var b strings.Builder
	b.WriteString(identity.ISBN(r.ISBN).String())
	b.WriteByte('|')
	b.WriteString(identity.Query(r.Title, r.Author).String())
	b.WriteByte('|')
	b.WriteString(string(r.Size.Normalized()))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(r.ForceRefresh))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(r.WantSummary))
	return b.String()
}

// Subject is the log subject for req.
func (r Request) Subject() string {
	if id := identity.ISBN(r.ISBN); !id.IsZero() {
		return id.String()
	}
	if title := strings.TrimSpace(r.Title); title != "" {
		return title
	}
	return strings.TrimSpace(r.Author)
}

// Result is the immutable outcome handed to callers. An empty Path means
// no cover was found.
type Result struct {
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

// Found reports whether a cover was resolved.
func (r Result) Found() bool {
	return r.Path != ""
}

// Resolver runs both chains for a request.
type Resolver struct {
	client *openlibrary.Client
	covers *cover.Orchestrator
	chain  *metadata.Chain
	logger *slog.Logger
}

// New assembles a resolver from its parts.
func New(client *openlibrary.Client, covers *cover.Orchestrator, chain *metadata.Chain, logger *slog.Logger) *Resolver {
	return &Resolver{
		client: client,
		covers: covers,
		chain:  chain,
		logger: logging.NewComponentLogger(logger, "resolver"),
	}
}

// Options tweaks NewFromConfig wiring.
type Options struct {
	// Fetcher replaces the HTTP transport built from config.
	Fetcher transport.Fetcher
	// Store enables persisted summaries.
	Store metadata.Store
	// Logger receives component logs.
	Logger *slog.Logger
}

// NewFromConfig wires a resolver from application configuration.
func NewFromConfig(cfg *config.Config, opts Options) *Resolver {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = transport.New(
			transport.WithTimeout(cfg.RequestTimeout()),
			transport.WithUserAgent(cfg.OpenLibrary.UserAgent),
			transport.WithCacheLock(cfg.Paths.CacheDir),
			transport.WithLogger(opts.Logger),
		)
	}
	endpoints := openlibrary.Endpoints{
		BaseURL:     cfg.OpenLibrary.BaseURL,
		CoversURL:   cfg.OpenLibrary.CoversURL,
		SearchLimit: cfg.OpenLibrary.SearchLimit,
	}
	client := openlibrary.New(fetcher, endpoints, opts.Logger)
	covers := cover.New(cachepath.New(cfg.Paths.CacheDir), endpoints, fetcher,
		cover.WithQueryAliases(cfg.Resolver.QueryAliases),
		cover.WithLogger(opts.Logger),
	)
	chainOpts := []metadata.Option{metadata.WithLogger(opts.Logger)}
	if opts.Store != nil && cfg.Summaries.Enabled {
		chainOpts = append(chainOpts, metadata.WithStore(opts.Store))
	}
	return New(client, covers, metadata.New(client, chainOpts...), opts.Logger)
}

// Resolve runs the cover machine then the summary chain. It never fails;
// absence is reported through empty fields.
func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	req.Size = req.Size.Normalized()
	ctx = services.WithSubject(ctx, req.Subject())
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()

	search := openlibrary.NewSharedSearch(r.client, req.Title, req.Author)
	coverResult := r.covers.Resolve(ctx, cover.Request{
		ISBN:         req.ISBN,
		Title:        req.Title,
		Author:       req.Author,
		Size:         req.Size,
		ForceRefresh: req.ForceRefresh,
	}, search)
	summary := r.chain.Resolve(ctx, metadata.Request{
		ISBN:         req.ISBN,
		Title:        req.Title,
		Author:       req.Author,
		WantSummary:  req.WantSummary,
		ForceRefresh: req.ForceRefresh,
	}, search)

	result := Result{Path: coverResult.Path, Summary: summary}
	logger.Info("book resolved",
		logging.Bool("cover_found", result.Found()),
		logging.Bool("summary_found", summary != ""),
		logging.String("final_state", coverResult.Final.String()),
		logging.Bool("searched", search.Performed()),
		logging.Duration("duration", time.Since(start)),
	)
	return result
}
