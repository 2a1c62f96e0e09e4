package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"covercache/internal/cachelock"
	"covercache/internal/logging"
	"covercache/internal/services"
)

const (
	// DefaultUserAgent identifies covercache to the remote service.
	DefaultUserAgent = "covercache/1.0 (+local)"
	// DefaultTimeout bounds every individual call.
	DefaultTimeout = 10 * time.Second

	component = "transport"
)

// Fetcher is the network surface the resolution chains depend on.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, notFoundAsAbsent bool) (string, bool)
	GetJSON(ctx context.Context, url string, v any) bool
}

// Client implements Fetcher over net/http.
type Client struct {
	userAgent  string
	httpClient *http.Client
	lockRoot   string
	logger     *slog.Logger
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-call timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if agent = strings.TrimSpace(agent); agent != "" {
			c.userAgent = agent
		}
	}
}

// WithCacheLock makes renames into place hold the shared lock of root.
func WithCacheLock(root string) Option {
	return func(c *Client) {
		c.lockRoot = strings.TrimSpace(root)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a transport client.
func New(opts ...Option) *Client {
	client := &Client{
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, component)
	return client
}

// Fetch downloads url into dest. A 404 is reported as absent when
// notFoundAsAbsent is set; every other failure is indeterminate. Either way
// the caller only sees ok=false.
func (c *Client) Fetch(ctx context.Context, url, dest string, notFoundAsAbsent bool) (string, bool) {
	if err := c.download(ctx, url, dest, notFoundAsAbsent); err != nil {
		c.report(ctx, "fetch", url, err)
		return "", false
	}
	logging.WithContext(ctx, c.logger).Debug("resource cached",
		logging.String(logging.FieldURL, url),
		logging.String(logging.FieldPath, dest),
	)
	return dest, true
}

// GetJSON decodes the JSON document at url into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) bool {
	if err := c.getJSON(ctx, url, v); err != nil {
		c.report(ctx, "get_json", url, err)
		return false
	}
	return true
}

func (c *Client) download(ctx context.Context, url, dest string, notFoundAsAbsent bool) error {
	if strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, component, "fetch", "destination path required", nil)
	}
	resp, err := c.do(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && notFoundAsAbsent {
		return services.Wrap(services.ErrNotFound, component, "fetch", "resource absent", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return services.Wrap(services.ErrTransient, component, "fetch", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, component, "fetch", "create cache directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".fetch-*.tmp")
	if err != nil {
		return services.Wrap(services.ErrTransient, component, "fetch", "create temp file", err)
	}
	tmpName := tmp.Name()
	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return services.Wrap(services.ErrTransient, component, "fetch", "read body", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrTransient, component, "fetch", "close temp file", err)
	}
	if written == 0 {
		os.Remove(tmpName)
		return services.Wrap(services.ErrTransient, component, "fetch", "empty body", nil)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrTransient, component, "fetch", "chmod temp file", err)
	}
	if err := c.rename(ctx, tmpName, dest); err != nil {
		os.Remove(tmpName)
		return services.Wrap(services.ErrTransient, component, "fetch", "rename into place", err)
	}
	return nil
}

func (c *Client) rename(ctx context.Context, from, to string) error {
	if c.lockRoot != "" {
		release, err := cachelock.Shared(ctx, c.lockRoot)
		if err != nil {
			return err
		}
		defer release()
	}
	return os.Rename(from, to)
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.do(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, component, "get_json", "document absent", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, component, "get_json", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return services.Wrap(services.ErrTransient, component, "get_json", "decode response", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "request", "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "request",
			fmt.Sprintf("execute request (latency=%v)", time.Since(start)), err)
	}
	return resp, nil
}

func (c *Client) report(ctx context.Context, operation, url string, err error) {
	logger := logging.WithContext(ctx, c.logger)
	if services.Classify(err) == services.OutcomeAbsent {
		logger.Debug("resource absent",
			logging.String("operation", operation),
			logging.String(logging.FieldURL, url),
		)
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Debug("request canceled", logging.String(logging.FieldURL, url))
		return
	}
	logging.WarnWithContext(logger, "remote call failed", "transport_"+operation+"_failed",
		logging.String(logging.FieldURL, url),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check network connectivity and openlibrary settings"),
		logging.String(logging.FieldImpact, "step treated as no result; resolution continues with next fallback"),
	)
}
