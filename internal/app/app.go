// Package app wires configuration into the transform pipeline, the scraper
// and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/aggregate"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/backoff"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/budget"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/cache"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/fetch"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/llm"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/pipeline"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/scrape"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/server"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/template"
)

// App owns the long-lived collaborators built from a Config.
type App struct {
	cfg       Config
	Templates *template.Store
	Scraper   *scrape.Extractor
	Pipeline  *pipeline.Pipeline

	closers []func() error
}

// New builds every collaborator. Nothing touches the network except the
// Redis PING when the redis cache is selected.
func New(ctx context.Context, cfg Config) (*App, error) {
	a := &App{cfg: cfg}

	est := budget.New(cfg.TokenEncoding)
	if window := budget.DefaultLimit(cfg.PrimaryModel); cfg.TokenLimit > window {
		log.Warn().Int("limit", cfg.TokenLimit).Int("context_limit", window).Str("model", cfg.PrimaryModel).
			Msg("routing limit exceeds the primary model's usable context")
	}

	var src template.Source = template.Embedded()
	if strings.TrimSpace(cfg.PromptsPath) != "" {
		src = template.FileSource{Path: cfg.PromptsPath}
	}
	a.Templates = template.NewStore(src)

	store, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	policy := backoff.Default
	policy.MaxRetries = cfg.MaxRetries
	registry := scrape.DefaultRegistry()

	a.Scraper = &scrape.Extractor{
		Browser:          a.browser(store),
		Registry:         registry,
		Cache:            store,
		ScreenshotDir:    cfg.ScreenshotDir,
		MaxConcurrent:    cfg.MaxBrowsers,
		ChallengeTimeout: cfg.ChallengeTimeout,
	}

	primary, err := a.provider(llm.Config{
		Kind:            cfg.PrimaryKind,
		Model:           cfg.PrimaryModel,
		APIKey:          cfg.APIKeyFor(cfg.PrimaryKind),
		BaseURL:         cfg.PrimaryBaseURL,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}, policy, store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	secondary, err := a.provider(llm.Config{
		Kind:            cfg.SecondaryKind,
		Model:           cfg.SecondaryModel,
		APIKey:          cfg.APIKeyFor(cfg.SecondaryKind),
		BaseURL:         cfg.SecondaryBaseURL,
		Temperature:     cfg.SecondaryTemp,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}, policy, store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("secondary provider: %w", err)
	}

	a.Pipeline = &pipeline.Pipeline{
		Templates: a.Templates,
		Aggregator: &aggregate.Aggregator{
			Scraper:   a.Scraper,
			Registry:  registry,
			Estimator: est,
			Retry:     policy,
		},
		Estimator: est,
		Primary:   primary,
		Secondary: secondary,
		Limit:     cfg.TokenLimit,
	}
	log.Debug().
		Str("primary", primary.Name()).Str("primary_model", cfg.PrimaryModel).
		Str("secondary", secondary.Name()).Str("secondary_model", cfg.SecondaryModel).
		Str("engine", cfg.ScrapeEngine).Str("cache", cfg.CacheBackend).
		Int("limit", cfg.TokenLimit).
		Msg("app ready")
	return a, nil
}

func (a *App) openCache(ctx context.Context) (cache.Store, error) {
	switch a.cfg.CacheBackend {
	case CacheFile:
		if a.cfg.CacheClear {
			if err := cache.ClearDir(a.cfg.CacheDir); err != nil {
				return nil, fmt.Errorf("clear cache: %w", err)
			}
		}
		return &cache.FileStore{Dir: a.cfg.CacheDir, StrictPerms: a.cfg.CacheStrictPerms}, nil
	case CacheRedis:
		rs, err := cache.NewRedisStore(ctx, a.cfg.RedisURL, "postgen:", a.cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		return rs, nil
	}
	return nil, nil
}

func (a *App) browser(store cache.Store) scrape.Browser {
	if a.cfg.ScrapeEngine == EngineHTTP {
		c := &fetch.Client{
			HTTPClient:        newPageHTTPClient(a.cfg.NavigationTimeout),
			UserAgent:         scrape.DesktopUserAgent,
			PerRequestTimeout: a.cfg.NavigationTimeout,
		}
		switch a.cfg.CacheBackend {
		case CacheFile:
			c.Cache = cache.NewFilePageCache(pageCacheDir(a.cfg.CacheDir), a.cfg.CacheStrictPerms)
		case CacheRedis:
			c.Cache = &cache.PageCache{Store: store}
		}
		return c
	}
	return &scrape.ChromeBrowser{
		ExecPath:          a.cfg.ChromePath,
		NavigationTimeout: a.cfg.NavigationTimeout,
		NoSandbox:         a.cfg.ChromeNoSandbox,
	}
}

func (a *App) provider(cfg llm.Config, policy backoff.Policy, store cache.Store) (llm.Provider, error) {
	p, err := llm.New(cfg)
	if err != nil {
		return nil, err
	}
	p = llm.WithRetry(p, policy)
	if a.cfg.CacheCompletions && store != nil {
		p = llm.WithCache(p, store, cfg.Model)
	}
	return p, nil
}

func pageCacheDir(dir string) string { return filepath.Join(dir, "pages") }

// Close releases cache connections.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
	a.closers = nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return server.NewRouter(&server.Handler{
		Pipeline:       a.Pipeline,
		Scraper:        a.Scraper,
		Templates:      a.Templates,
		RequestTimeout: a.cfg.RequestTimeout,
	}, server.Options{AllowOrigins: a.cfg.AllowOrigins})
}

// Serve runs the HTTP API until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.CacheBackend == CacheFile && a.cfg.CacheMaxAge > 0 {
		ps := &PurgeScheduler{Dir: a.cfg.CacheDir, MaxAge: a.cfg.CacheMaxAge, Spec: a.cfg.CachePurgeSpec}
		if err := ps.Start(); err != nil {
			return err
		}
		defer ps.Stop()
	}

	if !a.cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Request builds the one-shot pipeline request from the configuration.
// stdin is read when InputPath is "-".
func (a *App) Request(stdin io.Reader) (pipeline.Request, error) {
	req := pipeline.Request{
		Text: a.cfg.Text,
		Type: a.cfg.Type,
		Sources: aggregate.Sources{
			Perplexity:       a.cfg.PerplexitySource,
			Wikipedia:        a.cfg.WikipediaSource,
			ImageDescription: a.cfg.ImageDescription,
		},
	}
	if p := a.cfg.InputPath; p != "" {
		b, err := readInput(p, stdin)
		if err != nil {
			return req, fmt.Errorf("read input: %w", err)
		}
		req.Text = string(b)
	}
	if p := a.cfg.PDFTextPath; p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return req, fmt.Errorf("read pdf text: %w", err)
		}
		req.Sources.PDFText = string(b)
	}
	return req, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// RunOnce transforms one request and writes the result to stdout or
// OutputPath, plus a PDF when OutputPDFPath is set.
func (a *App) RunOnce(ctx context.Context, req pipeline.Request, stdout io.Writer) (pipeline.Result, error) {
	res, err := a.Pipeline.Run(ctx, req)
	if err != nil {
		return res, err
	}
	for _, w := range res.Warnings {
		log.Warn().Str("section", w.Section).Str("reason", w.Reason).Msg("source omitted")
	}
	if err := a.writeOutputs(req, res, stdout); err != nil {
		return res, err
	}
	return res, nil
}

func (a *App) writeOutputs(req pipeline.Request, res pipeline.Result, stdout io.Writer) error {
	text := res.TransformedText
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if a.cfg.OutputPath != "" {
		if dir := filepath.Dir(a.cfg.OutputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		if err := os.WriteFile(a.cfg.OutputPath, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		log.Info().Str("path", a.cfg.OutputPath).Msg("post written")
	} else if _, err := io.WriteString(stdout, text); err != nil {
		return err
	}
	if a.cfg.OutputPDFPath != "" {
		if err := WritePDF(req.Type, res.TransformedText, a.cfg.OutputPDFPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("path", a.cfg.OutputPDFPath).Msg("pdf written")
	}
	return nil
}
