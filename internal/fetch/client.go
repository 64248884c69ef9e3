package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/oshokin/node-bin-gen/internal/domain/release"
	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/repository/cache"
	"github.com/oshokin/node-bin-gen/internal/version"
)

// Response is a successful fetch. The caller must close Body.
type Response struct {
	// URL is the requested URL.
	URL string
	// Body streams the response or the cached copy.
	Body io.ReadCloser
	// Size is the body length, or -1 when unknown.
	Size int64
	// Cached reports that Body comes from the cache after a 304.
	Cached bool
}

// Client fetches URLs over HTTP with an optional conditional-request cache.
type Client struct {
	// httpClient performs the requests.
	httpClient *http.Client
	// cache is nil when caching is disabled.
	cache cache.Repository
	// userAgent is sent with every request.
	userAgent string
}

// Option configures client behaviour.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds a single exchange including the body transfer.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithCache enables conditional requests backed by repo.
func WithCache(repo cache.Repository) Option {
	return func(c *Client) {
		c.cache = repo
	}
}

// New creates a client. Options are applied in order.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		userAgent:  version.UserAgent(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get fetches url. Only 200, and 304 when a cached copy exists, succeed.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &release.TransportError{URL: url, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)

	entry := c.lookup(ctx, url)
	if entry != nil {
		if entry.ETag != "" {
			req.Header.Set("If-None-Match", entry.ETag)
		}

		if entry.LastModified != "" {
			req.Header.Set("If-Modified-Since", entry.LastModified)
		}
	}

	logger.DebugKV(ctx, "Fetching", "url", url, "conditional", entry != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &release.TransportError{URL: url, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.fresh(ctx, url, resp), nil
	case resp.StatusCode == http.StatusNotModified && entry != nil:
		_ = resp.Body.Close()

		return c.cached(ctx, url, entry)
	default:
		_ = resp.Body.Close()

		return nil, &release.TransportError{
			URL:        url,
			Status:     resp.Status,
			StatusCode: resp.StatusCode,
		}
	}
}

// lookup returns the cache entry for url, or nil when there is none.
func (c *Client) lookup(ctx context.Context, url string) *cache.Entry {
	if c.cache == nil {
		return nil
	}

	entry, err := c.cache.Lookup(ctx, url)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			logger.WarnKV(ctx, "Ignoring unreadable cache entry", "url", url, "error", err)
		}

		return nil
	}

	return entry
}

// fresh wraps a 200 response, teeing it into the cache when the server sent validators.
func (c *Client) fresh(ctx context.Context, url string, resp *http.Response) *Response {
	out := &Response{
		URL:  url,
		Body: resp.Body,
		Size: resp.ContentLength,
	}

	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")

	if c.cache == nil || (etag == "" && lastModified == "") {
		return out
	}

	w, err := c.cache.Begin(ctx, cache.Entry{
		URL:          url,
		ETag:         etag,
		LastModified: lastModified,
	})
	if err != nil {
		logger.WarnKV(ctx, "Response will not be cached", "url", url, "error", err)

		return out
	}

	out.Body = &teeBody{
		ctx:    ctx,
		url:    url,
		source: resp.Body,
		sink:   w,
	}

	return out
}

// cached serves the stored body after a 304.
func (c *Client) cached(ctx context.Context, url string, entry *cache.Entry) (*Response, error) {
	body, err := c.cache.Open(ctx, url)
	if err != nil {
		return nil, &release.FilesystemError{Op: "open cached body for", Path: url, Err: err}
	}

	logger.DebugKV(ctx, "Not modified, using cached copy", "url", url)

	return &Response{
		URL:    url,
		Body:   body,
		Size:   entry.Size,
		Cached: true,
	}, nil
}

// teeBody copies everything read from source into the cache and commits
// the copy only when source reached EOF.
type teeBody struct {
	ctx    context.Context //nolint:containedctx // Needed for logging from Read.
	url    string
	source io.ReadCloser
	sink   *cache.Writer
	failed bool
}

// Read implements io.Reader.
func (t *teeBody) Read(p []byte) (int, error) {
	n, err := t.source.Read(p)
	if n > 0 && !t.failed {
		if _, werr := t.sink.Write(p[:n]); werr != nil {
			logger.WarnKV(t.ctx, "Cache write failed", "url", t.url, "error", werr)

			t.failed = true
			t.sink.Abort()
		}
	}

	if errors.Is(err, io.EOF) && !t.failed {
		if cerr := t.sink.Commit(); cerr != nil {
			logger.WarnKV(t.ctx, "Cache commit failed", "url", t.url, "error", cerr)
		}
	}

	return n, err
}

// Close implements io.Closer. An unfinished copy is discarded.
func (t *teeBody) Close() error {
	t.sink.Abort()

	return t.source.Close()
}
