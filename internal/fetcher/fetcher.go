// Package fetcher retrieves raw listing pages from the procurement site.
//
// A Fetcher performs exactly one network retrieval per call and classifies
// failures (transport, timeout, upstream status). Retrying is left to the
// caller.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tenderscan/internal/tender"

	"golang.org/x/net/html/charset"
)

const (
	DefaultBaseURL   = "https://www.b2b-center.ru/market"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultTimeout   = 10 * time.Second

	maxBodyBytes = 8 << 20
)

type Fetcher struct {
	client    *http.Client
	base      *url.URL
	userAgent string
	timeout   time.Duration
	limiter   *Limiter
	group     Group
	logger    *slog.Logger
}

type options struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	limiter   *Limiter
	logger    *slog.Logger
	verbose   bool
}

type Option func(*options)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithLimiter(l *Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithLogger sets the logger. When verbose is true every request and response
// is logged at debug level.
func WithLogger(logger *slog.Logger, verbose bool) Option {
	return func(o *options) {
		o.logger = logger
		o.verbose = verbose
	}
}

func NewFetcher(baseURL string, opts ...Option) (*Fetcher, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	o := &options{
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
	}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.timeout <= 0 {
		return nil, fmt.Errorf("request timeout must be > 0, got %s", o.timeout)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	client := o.client
	if client == nil {
		client = &http.Client{}
	}
	if o.verbose {
		transport := client.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		wrapped := *client
		wrapped.Transport = &loggingRoundTripper{base: transport, logger: o.logger}
		client = &wrapped
	}

	return &Fetcher{
		client:    client,
		base:      base,
		userAgent: o.userAgent,
		timeout:   o.timeout,
		limiter:   o.limiter,
		logger:    o.logger,
	}, nil
}

// PageURL returns the address of a listing page. Page 1 is the base URL
// itself; later pages add a page query parameter.
func (f *Fetcher) PageURL(page tender.PageID) string {
	if page <= tender.FirstPage {
		return f.base.String()
	}
	u := *f.base
	q := u.Query()
	q.Set("page", strconv.Itoa(int(page)))
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch retrieves one listing page and returns its body decoded to UTF-8.
// Failures are *tender.PageError values.
func (f *Fetcher) Fetch(ctx context.Context, page tender.PageID) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("Fetch: nil context")
	}
	if f == nil || f.client == nil || f.base == nil {
		return nil, fmt.Errorf("Fetch: Fetcher is not initialized (use NewFetcher)")
	}
	if page < tender.FirstPage {
		return nil, fmt.Errorf("Fetch: invalid page %d", page)
	}

	pageURL := f.PageURL(page)
	// The shared request outlives any one caller; it is bounded by the
	// request timeout instead.
	shared := context.WithoutCancel(ctx)
	body, _, err := f.group.Do(ctx, pageURL, func() ([]byte, error) {
		return f.doFetch(shared, page, pageURL)
	})
	if err != nil {
		var pe *tender.PageError
		if !errors.As(err, &pe) {
			err = classify(page, err)
		}
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) doFetch(ctx context.Context, page tender.PageID, pageURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, classify(page, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &tender.PageError{Page: page, Kind: tender.KindTransport, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(page, err)
	}
	defer resp.Body.Close()

	if f.limiter != nil {
		f.limiter.Observe(resp)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		f.logger.DebugContext(ctx, "non-success status", "page", int(page), "status", resp.StatusCode)
		return nil, &tender.PageError{Page: page, Kind: tender.KindUpstreamStatus, StatusCode: resp.StatusCode}
	}

	r, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &tender.PageError{Page: page, Kind: tender.KindTransport, Err: fmt.Errorf("decode body: %w", err)}
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, classify(page, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

func classify(page tender.PageID, err error) error {
	kind := tender.KindTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = tender.KindTimeout
	}
	return &tender.PageError{Page: page, Kind: kind, Err: err}
}
