package webdav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/acwea904/qlback/internal/archive"
	"github.com/acwea904/qlback/internal/logger"
)

// ErrTimeout indicates a storage request exceeded its deadline.
var ErrTimeout = errors.New("storage request timed out")

// StatusTransportFailure is the status reported when no HTTP response was
// obtained at all. It is never a 2xx, so the usual success check covers it.
const StatusTransportFailure = 0

// maxListBody caps how much of a listing response is scanned.
const maxListBody = 8 << 20

// settings collects the tunable parts of a Client.
type settings struct {
	username string
	password string
	timeout  time.Duration
	retryMax int
	pattern  *regexp.Regexp
}

func defaultSettings() settings {
	return settings{
		timeout:  30 * time.Second,
		retryMax: 2,
		pattern:  archive.NameRegexp,
	}
}

// Option adjusts client settings.
type Option func(*settings)

// WithCredentials sets the basic auth pair sent with every request.
func WithCredentials(username, password string) Option {
	return func(s *settings) {
		if username != "" {
			s.username = username
		}
		if password != "" {
			s.password = password
		}
	}
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetryMax sets how many times a failed request is retried.
func WithRetryMax(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.retryMax = n
		}
	}
}

// WithNamePattern overrides the pattern scanned out of listing bodies.
func WithNamePattern(re *regexp.Regexp) Option {
	return func(s *settings) {
		if re != nil {
			s.pattern = re
		}
	}
}

// Client talks to a single WebDAV collection holding backup artifacts.
type Client struct {
	base *url.URL
	cfg  settings
	http *retryablehttp.Client
	log  logger.Logger
}

// New builds a Client for the collection at baseURL.
func New(baseURL string, log logger.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse storage url %q: %w", baseURL, err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("storage url %q is not absolute", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.HTTPClient.Timeout = cfg.timeout // per attempt; callBudget bounds the whole call
	rc.RetryMax = cfg.retryMax
	rc.Logger = log // satisfies retryablehttp.LeveledLogger
	// A status code, whatever it is, settles the call. Only transport
	// failures are worth another attempt.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return resp == nil && err != nil, nil
	}

	return &Client{base: base, cfg: cfg, http: rc, log: log}, nil
}

// IsSuccess reports whether code is any 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code <= 299
}

// Upload stores body as <base>/<name> via PUT and returns the HTTP status.
// When no response was obtained the status is StatusTransportFailure and
// the error carries the cause.
func (c *Client) Upload(ctx context.Context, name string, body io.ReadSeeker, size int64) (int, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.callBudget(), ErrTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, c.itemURL(name), body)
	if err != nil {
		return StatusTransportFailure, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/gzip")
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return StatusTransportFailure, fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// List performs a depth-1 PROPFIND on the collection and returns the
// artifact names found in the response, deduplicated and sorted. The body
// is scanned for the name pattern only; its XML structure is ignored.
func (c *Client) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.callBudget(), ErrTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, "PROPFIND", c.base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Depth", "1")
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("list collection: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListBody))
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, m := range c.cfg.pattern.FindAllString(string(data), -1) {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		names = append(names, m)
	}
	sort.Strings(names)

	c.log.Debug("collection listed", "entries", len(names))
	return names, nil
}

// Delete removes <base>/<name>. A 404 counts as success since the name is
// gone either way.
func (c *Client) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeoutCause(ctx, c.callBudget(), ErrTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, c.itemURL(name), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	defer resp.Body.Close()

	if IsSuccess(resp.StatusCode) || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("delete %s: unexpected status %d", name, resp.StatusCode)
}

// Fetch streams <base>/<name> into dst.
func (c *Client) Fetch(ctx context.Context, name string, dst io.Writer) error {
	ctx, cancel := context.WithTimeoutCause(ctx, c.callBudget(), ErrTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.itemURL(name), nil)
	if err != nil {
		return fmt.Errorf("build fetch request: %w", err)
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return fmt.Errorf("fetch %s: unexpected status %d", name, resp.StatusCode)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	return nil
}

func (c *Client) auth(req *retryablehttp.Request) {
	if c.cfg.username != "" {
		req.SetBasicAuth(c.cfg.username, c.cfg.password)
	}
}

// callBudget is the overall deadline for one call including retries.
func (c *Client) callBudget() time.Duration {
	return c.cfg.timeout * time.Duration(c.cfg.retryMax+1)
}

func (c *Client) itemURL(name string) string {
	return c.base.JoinPath(name).String()
}
