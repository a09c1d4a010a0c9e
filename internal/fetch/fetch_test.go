package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(opts Options) *Client {
	opts.AllowPrivate = true
	if opts.RPS == 0 {
		opts.RPS = 1000
		opts.Burst = 100
	}
	c := NewClient(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestFetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a user agent")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<p>hello</p>"))
	}))
	defer srv.Close()

	c := newTestClient(Options{})
	page, err := c.Fetch(context.Background(), srv.URL+"/docs/guide.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(page.Body) != "<p>hello</p>" {
		t.Errorf("unexpected body %q", page.Body)
	}
	if !strings.HasPrefix(page.ContentType, "text/html") {
		t.Errorf("unexpected content type %q", page.ContentType)
	}
	if page.Name() != "guide.html" {
		t.Errorf("expected name %q, got %q", "guide.html", page.Name())
	}
}

func TestFetch_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(Options{})
	page, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(page.Body) != "ok" {
		t.Errorf("unexpected body %q", page.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetch_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(Options{MaxRetries: 2})
	_, err := c.Fetch(context.Background(), srv.URL)
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	var retryErr *RetryableError
	if errors.As(err, &retryErr) && retryErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", retryErr.StatusCode)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestFetch_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(Options{})
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil || IsRetryable(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	c := newTestClient(Options{MaxBytes: 16})
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	c := newTestClient(Options{})
	for _, u := range []string{"", "ftp://example.com/x", "/relative", "http://"} {
		if _, err := c.Fetch(context.Background(), u); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("%q: expected ErrInvalidURL, got %v", u, err)
		}
	}
}

func TestFetch_ContextCanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(Options{})
	c.backoff = func(int) time.Duration { return time.Hour }
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Fetch(ctx, srv.URL); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("expected 3s, got %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("expected 0 for garbage, got %v", got)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Errorf("expected positive delay up to 1m, got %v", got)
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		if d < time.Second || d > 45*time.Second {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestFetch_RefusesInternalHosts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(Options{RPS: 1000, Burst: 100}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer c.Close()

	_, port, _ := strings.Cut(strings.TrimPrefix(srv.URL, "http://"), ":")
	for _, u := range []string{
		srv.URL + "/x",
		"http://localhost:" + port + "/x",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]:" + port + "/",
	} {
		if _, err := c.Fetch(context.Background(), u); !errors.Is(err, ErrBlockedHost) {
			t.Errorf("%s: expected ErrBlockedHost, got %v", u, err)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("expected no request to reach the server, got %d", n)
	}
}

func TestIsPublic(t *testing.T) {
	tests := map[string]bool{
		"93.184.216.34":    true,
		"2606:4700::1111":  true,
		"127.0.0.1":        false,
		"10.1.2.3":         false,
		"172.16.0.1":       false,
		"192.168.1.1":      false,
		"169.254.169.254":  false,
		"100.64.0.1":       false,
		"0.0.0.0":          false,
		"::1":              false,
		"fd00::1":          false,
		"fe80::1":          false,
		"::ffff:127.0.0.1": false,
		"224.0.0.1":        false,
	}
	for in, want := range tests {
		if got := isPublic(netip.MustParseAddr(in)); got != want {
			t.Errorf("isPublic(%s) = %v, want %v", in, got, want)
		}
	}
}
