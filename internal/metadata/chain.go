// Package metadata resolves a textual description for a book.
//
// The chain tries the edition for the request's identifier (following its
// work when the edition carries no text), then the work and edition named by
// the request's shared search document, and finally gives up with "". It
// never reports an error to the caller.
package metadata

import (
	"context"
	"log/slog"

	"covercache/internal/identity"
	"covercache/internal/logging"
	"covercache/internal/openlibrary"
	"covercache/internal/summarystore"
)

// Request is the summary half of a resolution request.
type Request struct {
	ISBN         string
	Title        string
	Author       string
	WantSummary  bool
	ForceRefresh bool
}

// Store persists checked summaries. *summarystore.Store satisfies it.
type Store interface {
	Get(ctx context.Context, subject string) (summarystore.Summary, bool, error)
	Put(ctx context.Context, subject, text string) error
}

// Chain resolves descriptions through Open Library.
type Chain struct {
	client *openlibrary.Client
	store  Store
	logger *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithStore enables persisted summaries.
func WithStore(store Store) Option {
	return func(c *Chain) {
		c.store = store
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// New constructs a chain.
func New(client *openlibrary.Client, opts ...Option) *Chain {
	c := &Chain{client: client}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "metadata")
	return c
}

// Resolve returns the description for req, or "".
func (c *Chain) Resolve(ctx context.Context, req Request, search *openlibrary.SharedSearch) string {
	if !req.WantSummary {
		return ""
	}
	logger := logging.WithContext(ctx, c.logger)
	subject := summarystore.Subject(req.ISBN, req.Title, req.Author)

	if c.store != nil && subject != "" && !req.ForceRefresh {
		stored, found, err := c.store.Get(ctx, subject)
		if err != nil {
			logging.WarnWithContext(logger, "summary store read failed", "summary_store_read_failed",
				logging.String("subject", subject),
				logging.Error(err),
				logging.String(logging.FieldImpact, "summary fetched from network"),
			)
		} else if found {
			logger.Debug("summary served from store", logging.String("subject", subject))
			return stored.Text
		}
	}

	summary := c.lookup(ctx, req, search)

	if c.store != nil && subject != "" {
		if err := c.store.Put(ctx, subject, summary); err != nil {
			logging.WarnWithContext(logger, "summary store write failed", "summary_store_write_failed",
				logging.String("subject", subject),
				logging.Error(err),
				logging.String(logging.FieldImpact, "summary will be fetched again next time"),
			)
		}
	}
	return summary
}

func (c *Chain) lookup(ctx context.Context, req Request, search *openlibrary.SharedSearch) string {
	if isbn := identity.Normalize(req.ISBN); isbn != "" {
		if desc := c.client.DescriptionByISBN(ctx, isbn); desc != "" {
			return desc
		}
	}
	selection, ok := search.Selected(ctx)
	if !ok {
		return ""
	}
	if desc := c.client.WorkDescription(ctx, selection.Document.WorkKey); desc != "" {
		return desc
	}
	return c.client.EditionDescription(ctx, selection.Document.EditionKey())
}
