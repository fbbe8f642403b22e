package scrape

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSession struct {
	mu       sync.Mutex
	titles   []string
	html     string
	htmlErr  error
	shot     []byte
	closed   bool
	titleHit int
}

func (s *fakeSession) Title(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titleHit++
	if len(s.titles) == 0 {
		return "", nil
	}
	t := s.titles[0]
	if len(s.titles) > 1 {
		s.titles = s.titles[1:]
	}
	return t, nil
}

func (s *fakeSession) HTML(context.Context) (string, error) { return s.html, s.htmlErr }

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) {
	if s.shot == nil {
		return nil, errors.New("no screenshot")
	}
	return s.shot, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeBrowser struct {
	session *fakeSession
	err     error
	opens   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
}

func (b *fakeBrowser) Open(ctx context.Context, url string) (Session, error) {
	b.opens.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	n := b.active.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.active.Add(-1)
	return b.session, nil
}

type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.m[key]
	return b, ok, nil
}

func (m *memStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.m == nil {
		m.m = map[string][]byte{}
	}
	m.m[key] = data
	return nil
}

func fastExtractor(b Browser) *Extractor {
	return &Extractor{
		Browser:          b,
		Registry:         DefaultRegistry(),
		ChallengeTimeout: 100 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
		Settle:           -1,
	}
}

func TestScrape_Wikipedia(t *testing.T) {
	sess := &fakeSession{html: wikipediaPage}
	e := fastExtractor(&fakeBrowser{session: sess})
	got, err := e.Scrape(context.Background(), "https://en.wikipedia.org/wiki/Go", Wikipedia)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if got != "Go is a programming language designed at Google.\nIt was announced in 2009." {
		t.Fatalf("got %q", got)
	}
	if !sess.closed {
		t.Fatal("session must be closed")
	}
	if sess.titleHit != 0 {
		t.Fatal("wikipedia has no challenge; title must not be polled")
	}
}

func TestScrape_UnknownKindSkipsBrowser(t *testing.T) {
	b := &fakeBrowser{session: &fakeSession{}}
	e := fastExtractor(b)
	_, err := e.Scrape(context.Background(), "https://example.com", Kind("forum"))
	var se *Error
	if !errors.As(err, &se) || se.Reason != ReasonNoContent {
		t.Fatalf("expected no content error, got %v", err)
	}
	if !errors.Is(err, ErrScrape) {
		t.Fatal("error must match ErrScrape")
	}
	if b.opens.Load() != 0 {
		t.Fatal("browser must not be opened for unknown kinds")
	}
}

func TestScrape_ChallengeClears(t *testing.T) {
	sess := &fakeSession{
		titles: []string{"Just a moment...", "Just a moment...", "AI in healthcare"},
		html:   perplexityPage,
	}
	e := fastExtractor(&fakeBrowser{session: sess})
	got, err := e.Scrape(context.Background(), "https://www.perplexity.ai/search/x", Perplexity)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if got == "" {
		t.Fatal("expected content")
	}
	if sess.titleHit != 3 {
		t.Fatalf("title polled %d times, want 3", sess.titleHit)
	}
}

func TestScrape_ChallengeTimeoutSwallowed(t *testing.T) {
	sess := &fakeSession{titles: []string{"Just a moment..."}, html: perplexityPage}
	e := fastExtractor(&fakeBrowser{session: sess})
	got, err := e.Scrape(context.Background(), "https://www.perplexity.ai/search/x", Perplexity)
	if err != nil {
		t.Fatalf("challenge timeout must not fail the scrape: %v", err)
	}
	if got == "" {
		t.Fatal("expected content extracted after timeout")
	}
}

func TestScrape_NoContentTakesScreenshot(t *testing.T) {
	dir := t.TempDir()
	sess := &fakeSession{html: `<html><body><p>no article</p></body></html>`, shot: []byte("png")}
	e := fastExtractor(&fakeBrowser{session: sess})
	e.ScreenshotDir = dir
	_, err := e.Scrape(context.Background(), "https://en.wikipedia.org/wiki/Empty", Wikipedia)
	var se *Error
	if !errors.As(err, &se) || se.Reason != ReasonNoContent || se.Retryable {
		t.Fatalf("expected non-retryable no content error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected one screenshot, got %d", len(entries))
	}
	if !sess.closed {
		t.Fatal("session must be closed on failure")
	}
}

func TestScrape_NavigationTimeoutIsRetryable(t *testing.T) {
	e := fastExtractor(&fakeBrowser{err: ErrNavigationTimeout})
	_, err := e.Scrape(context.Background(), "https://en.wikipedia.org/wiki/Go", Wikipedia)
	var se *Error
	if !errors.As(err, &se) || se.Reason != ReasonNavigationTimeout {
		t.Fatalf("expected navigation timeout, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("navigation timeout should be retryable")
	}
}

func TestScrape_PermanentBrowserError(t *testing.T) {
	e := fastExtractor(&fakeBrowser{err: Permanent(errors.New("status 404"))})
	_, err := e.Scrape(context.Background(), "https://en.wikipedia.org/wiki/Missing", Wikipedia)
	if err == nil || IsRetryable(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestScrape_CacheHitSkipsBrowser(t *testing.T) {
	store := &memStore{}
	b := &fakeBrowser{session: &fakeSession{html: wikipediaPage}}
	e := fastExtractor(b)
	e.Cache = store
	url := "https://en.wikipedia.org/wiki/Go"
	first, err := e.Scrape(context.Background(), url, Wikipedia)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Scrape(context.Background(), url, Wikipedia)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("cached content differs: %q vs %q", first, second)
	}
	if b.opens.Load() != 1 {
		t.Fatalf("browser opened %d times, want 1", b.opens.Load())
	}
}

func TestScrape_BoundsConcurrentSessions(t *testing.T) {
	b := &fakeBrowser{session: &fakeSession{html: wikipediaPage}, delay: 20 * time.Millisecond}
	e := fastExtractor(b)
	e.MaxConcurrent = 2
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Scrape(context.Background(), "https://en.wikipedia.org/wiki/Go", Wikipedia)
		}()
	}
	wg.Wait()
	if p := b.peak.Load(); p > 2 {
		t.Fatalf("peak concurrent sessions = %d, want <= 2", p)
	}
}
