package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/cache"
)

// Result is a successful scrape.
type Result struct {
	URL       string    `json:"url"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Extractor scrapes URLs with a Browser and the Registry's strategies.
type Extractor struct {
	Browser  Browser
	Registry *Registry
	// Cache, when set, stores successful results keyed by kind and URL.
	Cache cache.Store
	// ScreenshotDir receives a full page screenshot when a page yields no
	// content. Empty disables screenshots.
	ScreenshotDir string
	// MaxConcurrent caps simultaneously open browser sessions. Zero means 2.
	MaxConcurrent int64
	// ChallengeTimeout bounds the wait for an interstitial to clear. Zero
	// means 30s.
	ChallengeTimeout time.Duration
	// PollInterval is how often the title is checked. Zero means 250ms.
	PollInterval time.Duration
	// Settle is the pause after an interstitial cleared. Zero means 2s; a
	// negative value disables it.
	Settle time.Duration

	semOnce sync.Once
	sem     *semaphore.Weighted
}

func (e *Extractor) slots() *semaphore.Weighted {
	e.semOnce.Do(func() {
		n := e.MaxConcurrent
		if n <= 0 {
			n = 2
		}
		e.sem = semaphore.NewWeighted(n)
	})
	return e.sem
}

func (e *Extractor) registry() *Registry {
	if e.Registry == nil {
		return DefaultRegistry()
	}
	return e.Registry
}

// Scrape returns the article text of url read with the strategy for kind.
// Failures are *Error values.
func (e *Extractor) Scrape(ctx context.Context, url string, kind Kind) (string, error) {
	strategy, ok := e.registry().Lookup(kind)
	if !ok {
		return "", &Error{URL: url, Kind: kind, Reason: ReasonNoContent, Err: fmt.Errorf("unsupported site kind %q", kind)}
	}
	key := cache.KeyFrom("scrape", string(kind), url)
	if content, ok := e.cached(ctx, key); ok {
		log.Debug().Str("url", url).Str("kind", string(kind)).Msg("scrape cache hit")
		return content, nil
	}

	if err := e.slots().Acquire(ctx, 1); err != nil {
		return "", &Error{URL: url, Kind: kind, Reason: ReasonNavigation, Err: err}
	}
	defer e.slots().Release(1)

	start := time.Now()
	log.Info().Str("url", url).Str("kind", string(kind)).Msg("scrape start")
	content, err := e.scrapeOnce(ctx, url, strategy)
	if err != nil {
		return "", err
	}
	log.Info().Str("url", url).Int("chars", len(content)).Dur("took", time.Since(start)).Msg("scrape done")

	e.store(ctx, key, Result{URL: url, Kind: kind, Content: content, ScrapedAt: time.Now().UTC()})
	return content, nil
}

func (e *Extractor) scrapeOnce(ctx context.Context, url string, s Strategy) (string, error) {
	kind := s.Kind()
	sess, err := e.Browser.Open(ctx, url)
	if err != nil {
		return "", openError(ctx, url, kind, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Debug().Err(cerr).Str("url", url).Msg("close session")
		}
	}()

	if marker := s.Challenge(); marker != "" {
		e.awaitChallenge(ctx, sess, url, marker)
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return "", &Error{URL: url, Kind: kind, Reason: ReasonExtraction, Retryable: ctx.Err() == nil, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", &Error{URL: url, Kind: kind, Reason: ReasonExtraction, Err: fmt.Errorf("parse html: %w", err)}
	}
	content := strings.TrimSpace(s.Extract(doc))
	if content == "" {
		e.screenshot(ctx, sess, url, kind)
		return "", &Error{URL: url, Kind: kind, Reason: ReasonNoContent}
	}
	return content, nil
}

func openError(ctx context.Context, url string, kind Kind, err error) error {
	if errors.Is(err, ErrNavigationTimeout) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
		return &Error{URL: url, Kind: kind, Reason: ReasonNavigationTimeout, Retryable: true, Err: err}
	}
	return &Error{URL: url, Kind: kind, Reason: ReasonNavigation, Retryable: ctx.Err() == nil && !isPermanent(err), Err: err}
}

// awaitChallenge polls the title until it no longer contains marker. A
// challenge that never clears is logged and extraction proceeds anyway.
func (e *Extractor) awaitChallenge(ctx context.Context, sess Session, url, marker string) {
	timeout := e.ChallengeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := e.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		title, err := sess.Title(waitCtx)
		if err == nil && !strings.Contains(title, marker) {
			break
		}
		select {
		case <-waitCtx.Done():
			log.Warn().Str("url", url).Str("marker", marker).Msg("timeout waiting for challenge page to clear")
			return
		case <-ticker.C:
		}
	}
	settle := e.Settle
	if settle == 0 {
		settle = 2 * time.Second
	}
	if settle < 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(settle):
	}
}

func (e *Extractor) screenshot(ctx context.Context, sess Session, url string, kind Kind) {
	if e.ScreenshotDir == "" {
		return
	}
	img, err := sess.Screenshot(ctx)
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("screenshot unavailable")
		return
	}
	if err := os.MkdirAll(e.ScreenshotDir, 0o755); err != nil {
		log.Warn().Err(err).Msg("create screenshot dir")
		return
	}
	path := filepath.Join(e.ScreenshotDir, fmt.Sprintf("debug-%s-%d.png", kind, time.Now().UnixNano()))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("write screenshot")
		return
	}
	log.Info().Str("url", url).Str("path", path).Msg("no content found, saved screenshot")
}

func (e *Extractor) cached(ctx context.Context, key string) (string, bool) {
	if e.Cache == nil {
		return "", false
	}
	b, ok, err := e.Cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("scrape cache read")
		return "", false
	}
	if !ok {
		return "", false
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil || r.Content == "" {
		return "", false
	}
	return r.Content, true
}

func (e *Extractor) store(ctx context.Context, key string, r Result) {
	if e.Cache == nil {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := e.Cache.Save(ctx, key, b); err != nil {
		log.Warn().Err(err).Msg("scrape cache write")
	}
}
