// Package fetch downloads pages to highlight, politely: requests are rate
// limited, bodies are bounded, and transient failures are retried.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrTooLarge is returned when a response body exceeds the size limit.
	ErrTooLarge = errors.New("response body too large")
	// ErrInvalidURL is returned for anything other than an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrBlockedHost is returned when a request would reach a loopback,
	// private or link-local address and private fetches are not allowed.
	ErrBlockedHost = errors.New("host is not publicly routable")
)

// sharedAddressSpace is the carrier-grade NAT range, RFC 6598.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

const userAgent = "docmark/1.0 (+text highlighter)"

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	RPS        float64 // requests per second across all hosts
	Burst      int
	MaxBytes   int64
	MaxRetries int

	// AllowPrivate permits loopback, private and link-local targets.
	AllowPrivate bool
}

// Client fetches pages over HTTP.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxBytes   int64
	maxRetries int
	log        *slog.Logger

	allowPrivate bool

	backoff func(attempt int) time.Duration
}

// Page is a fetched response body.
type Page struct {
	URL         string // final URL after redirects
	ContentType string
	Body        []byte
}

// Name returns a filename-like label for the page, used as a fallback title.
func (p *Page) Name() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return p.URL
	}
	if base := path.Base(u.Path); base != "/" && base != "." {
		return base
	}
	return u.Host
}

func NewClient(opts Options, log *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = MaxRetries
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.AllowPrivate {
		// Checked on the resolved address, so redirects and DNS names that
		// point inward are refused too. A proxy would hide the target.
		dialer.Control = refuseInternal
		transport.Proxy = nil
	}
	transport.DialContext = dialer.DialContext

	return &Client{
		httpClient:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter:      rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		maxBytes:     opts.MaxBytes,
		maxRetries:   opts.MaxRetries,
		log:          log,
		allowPrivate: opts.AllowPrivate,
		backoff:      Backoff,
	}
}

// Fetch downloads rawURL, retrying 429 and 5xx responses with backoff.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if ip, err := netip.ParseAddr(u.Hostname()); err == nil && !c.allowPrivate && !isPublic(ip) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedHost, u.Hostname())
	}
	log := c.log.With("url", u.String())

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		var page *Page
		page, lastErr = c.fetchOnce(ctx, u.String())
		if lastErr == nil {
			log.Debug("fetched page", "bytes", len(page.Body), "content_type", page.ContentType, "attempts", attempt+1)
			return page, nil
		}
		if !IsRetryable(lastErr) || attempt == c.maxRetries-1 {
			break
		}
		delay := retryDelay(lastErr, attempt, c.backoff)
		log.Warn("retryable fetch error", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, resp.ContentLength, c.maxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, c.maxBytes)
	}

	return &Page{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// refuseInternal is a net.Dialer Control hook rejecting non-public
// addresses after DNS resolution.
func refuseInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedHost, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() &&
		!ip.IsPrivate() &&
		!ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!sharedAddressSpace.Contains(ip)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
