package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// DesktopUserAgent is sent by the headless browser so sites serve their
// regular desktop markup.
const DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// ChromeBrowser launches a fresh headless Chrome for every Open. Nothing is
// shared between sessions.
type ChromeBrowser struct {
	// ExecPath overrides Chrome discovery.
	ExecPath  string
	UserAgent string
	// NavigationTimeout bounds the wait for network idle. Zero means 30s.
	NavigationTimeout time.Duration
	// NoSandbox is needed when Chrome runs as root, as in most containers.
	NoSandbox bool
}

func (b *ChromeBrowser) Open(ctx context.Context, url string) (Session, error) {
	ua := b.UserAgent
	if ua == "" {
		ua = DesktopUserAgent
	}
	timeout := b.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(ua),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}
	if b.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) { log.Debug().Msgf("chrome: "+format, args...) }),
	)
	s := &chromeSession{ctx: tabCtx, cancel: func() {
		tabCancel()
		allocCancel()
	}}
	if err := s.navigate(url, timeout); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

type chromeSession struct {
	ctx       context.Context
	cancel    func()
	closeOnce sync.Once
}

func (s *chromeSession) navigate(url string, timeout time.Duration) error {
	// mainFrame stays empty until the frame tree is known; lifecycle events
	// of iframes and of the initial blank page are ignored.
	var mainFrame atomic.Value
	isMain := func(id cdp.FrameID) bool {
		f, _ := mainFrame.Load().(cdp.FrameID)
		return f != "" && f == id
	}
	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(s.ctx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if !isMain(e.FrameID) {
				return
			}
			switch e.Name {
			case "init":
				select {
				case <-idle:
				default:
				}
			case "networkIdle":
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		case *runtime.EventExceptionThrown:
			if e.ExceptionDetails != nil {
				log.Debug().Str("url", url).Str("error", e.ExceptionDetails.Text).Msg("page error")
			}
		}
	})
	if err := chromedp.Run(s.ctx,
		page.SetLifecycleEventsEnabled(true),
		page.SetBypassCSP(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			mainFrame.Store(tree.Frame.ID)
			return nil
		}),
	); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigate %s: %w", url, ErrNavigationTimeout)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	select {
	case <-idle:
		return nil
	case <-navCtx.Done():
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("wait for network idle on %s: %w", url, ErrNavigationTimeout)
		}
		return navCtx.Err()
	}
}

// run executes actions on the tab, aborting when either the session or ctx
// ends.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close cancels the tab and the allocator, which terminates the browser
// process.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}
