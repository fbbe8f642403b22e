// Package fetch is the plain HTTP page engine. It serves static sites where
// launching a headless browser is unnecessary.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/backoff"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/cache"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/extract"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/scrape"
)

// Client wraps http.Client with timeouts, bounded retry on transient errors
// and an optional conditional-request cache.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// Retry applies to 5xx responses and timeouts.
	Retry backoff.Policy
	// PerRequestTimeout bounds each attempt.
	PerRequestTimeout time.Duration
	// Cache, when set, stores bodies and revalidates them with ETag and
	// Last-Modified.
	Cache *cache.PageCache
	// BypassCache fetches fresh without conditional headers but still saves
	// the latest response.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int
	// MaxBytes caps the body size. Zero means 10 MiB.
	MaxBytes int64

	slotsOnce sync.Once
	slots     *semaphore.Weighted
}

var errServer = errors.New("server error")

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get issues a GET and returns the body and content type. Errors that
// retrying cannot fix are marked with scrape.Permanent.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !isHTTPScheme(u) {
		return nil, "", scrape.Permanent(fmt.Errorf("unsupported URL: %q", rawURL))
	}
	var prev cache.Page
	var havePrev bool
	if !c.BypassCache {
		prev, havePrev = c.Cache.Lookup(ctx, rawURL)
	}
	var res response
	err = backoff.Do(ctx, c.Retry, func(ctx context.Context) error {
		var err error
		res, err = c.tryOnce(ctx, rawURL, prev.ETag, prev.LastModified)
		return err
	}, isTransient)
	if err != nil {
		return nil, "", err
	}
	if res.status == http.StatusNotModified {
		if havePrev {
			return prev.Body, prev.ContentType, nil
		}
		return nil, "", fmt.Errorf("not modified but no cached page for %s", rawURL)
	}
	if res.status == http.StatusOK {
		page := cache.Page{URL: rawURL, ContentType: res.contentType, ETag: res.etag, LastModified: res.lastModified, Body: res.body}
		if err := c.Cache.Put(ctx, page); err != nil {
			log.Debug().Err(err).Str("url", rawURL).Msg("page cache write failed")
		}
	}
	return res.body, res.contentType, nil
}

type response struct {
	body         []byte
	contentType  string
	etag         string
	lastModified string
	status       int
}

func (c *Client) tryOnce(ctx context.Context, rawURL, etag, lastMod string) (response, error) {
	if err := c.acquire(ctx); err != nil {
		return response{}, err
	}
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, scrape.Permanent(fmt.Errorf("new request: %w", err))
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	res := response{
		contentType:  resp.Header.Get("Content-Type"),
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		status:       resp.StatusCode,
	}
	switch {
	case resp.StatusCode >= 500:
		return res, fmt.Errorf("%w: %d", errServer, resp.StatusCode)
	case resp.StatusCode == http.StatusNotModified:
		return res, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return res, scrape.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}
	if !isAllowedHTMLContentType(res.contentType) {
		return res, scrape.Permanent(fmt.Errorf("unsupported content type: %s", res.contentType))
	}
	limit := c.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	res.body, err = io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return res, fmt.Errorf("read body: %w", err)
	}
	return res, nil
}

func isTransient(err error) bool {
	if errors.Is(err, errServer) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.slotsOnce.Do(func() { c.slots = semaphore.NewWeighted(int64(c.MaxConcurrent)) })
	return c.slots.Acquire(ctx, 1)
}

func (c *Client) release() {
	if c.slots != nil {
		c.slots.Release(1)
	}
}

// Open fetches the page and serves it as a static scrape.Session. Pages are
// not rendered, so scripts do not run and screenshots are unavailable.
func (c *Client) Open(ctx context.Context, rawURL string) (scrape.Session, error) {
	body, _, err := c.Get(ctx, rawURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("fetch %s: %w: %w", rawURL, scrape.ErrNavigationTimeout, err)
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	p := &page{html: string(body)}
	if doc, err := html.Parse(bytes.NewReader(body)); err == nil {
		p.title = extract.Title(doc)
	}
	return p, nil
}

type page struct {
	html  string
	title string
}

func (p *page) Title(context.Context) (string, error) { return p.title, nil }

func (p *page) HTML(context.Context) (string, error) { return p.html, nil }

func (p *page) Screenshot(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("screenshot: %w", errors.ErrUnsupported)
}

func (p *page) Close() error { return nil }

var _ scrape.Browser = (*Client)(nil)
