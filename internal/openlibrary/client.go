package openlibrary

import (
	"context"
	"log/slog"
	"strings"

	"covercache/internal/logging"
	"covercache/internal/transport"
)

// Client reads Open Library documents through a transport.Fetcher.
type Client struct {
	endpoints Endpoints
	fetcher   transport.Fetcher
	logger    *slog.Logger
}

// New constructs a client. A nil logger discards output.
func New(fetcher transport.Fetcher, endpoints Endpoints, logger *slog.Logger) *Client {
	return &Client{
		endpoints: endpoints,
		fetcher:   fetcher,
		logger:    logging.NewComponentLogger(logger, "openlibrary"),
	}
}

// Endpoints returns the URL builders the client was configured with.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Search runs one search call. ok is false when neither title nor author is
// given, the call fails, or no documents come back.
func (c *Client) Search(ctx context.Context, title, author string) ([]SearchDocument, bool) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(author) == "" {
		return nil, false
	}
	var payload searchResponse
	if !c.fetcher.GetJSON(ctx, c.endpoints.Search(title, author), &payload) {
		return nil, false
	}
	docs := make([]SearchDocument, 0, len(payload.Docs))
	for _, raw := range payload.Docs {
		if doc, ok := decodeDocument(raw); ok {
			docs = append(docs, doc)
		}
	}
	logging.WithContext(ctx, c.logger).Debug("search completed",
		logging.String("title", title),
		logging.String("author", author),
		logging.Int("documents", len(docs)),
	)
	if len(docs) == 0 {
		return nil, false
	}
	return docs, true
}

// WorkDescription returns the description of a work, or "".
func (c *Client) WorkDescription(ctx context.Context, workKey string) string {
	endpoint := c.endpoints.Work(workKey)
	if endpoint == "" {
		return ""
	}
	var doc workDocument
	if !c.fetcher.GetJSON(ctx, endpoint, &doc) {
		return ""
	}
	return doc.Description.String()
}

// EditionDescription returns the description carried directly on an
// edition, or "".
func (c *Client) EditionDescription(ctx context.Context, editionKey string) string {
	endpoint := c.endpoints.Edition(editionKey)
	if endpoint == "" {
		return ""
	}
	var doc workDocument
	if !c.fetcher.GetJSON(ctx, endpoint, &doc) {
		return ""
	}
	return doc.Description.String()
}

// DescriptionByISBN reads the edition for isbn and returns its description,
// following the edition's first work when the edition has none.
func (c *Client) DescriptionByISBN(ctx context.Context, isbn string) string {
	endpoint := c.endpoints.EditionByISBN(isbn)
	if endpoint == "" {
		return ""
	}
	var doc workDocument
	if !c.fetcher.GetJSON(ctx, endpoint, &doc) {
		return ""
	}
	if desc := doc.Description.String(); desc != "" {
		return desc
	}
	if len(doc.Works) > 0 && doc.Works[0] != "" {
		return c.WorkDescription(ctx, doc.Works[0])
	}
	return ""
}
