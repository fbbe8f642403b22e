package app

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Bootstrap holds the flags that decide where configuration is read from.
type Bootstrap struct {
	ConfigPath string
	EnvFiles   []string
	Version    bool
}

// BindFlags registers every configurable flag on fs. Each flag writes into
// cfg and uses the current value of its field as the default.
func BindFlags(fs *flag.FlagSet, cfg *Config, boot *Bootstrap) {
	fs.StringVar(&boot.ConfigPath, "config", boot.ConfigPath, "Path to a YAML or JSON config file")
	fs.Func("env", "Dotenv file to load (repeatable, default .env)", func(s string) error {
		boot.EnvFiles = append(boot.EnvFiles, s)
		return nil
	})
	fs.BoolVar(&boot.Version, "version", boot.Version, "Print version and exit")

	fs.BoolVar(&cfg.Serve, "serve", cfg.Serve, "Run the HTTP API instead of a one-shot transform")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.Func("cors.origins", "Comma-separated allowed CORS origins", func(s string) error {
		cfg.AllowOrigins = splitList(s)
		return nil
	})
	fs.DurationVar(&cfg.RequestTimeout, "request.timeout", cfg.RequestTimeout, "Upper bound for one API request")

	fs.StringVar(&cfg.Text, "text", cfg.Text, "Text to transform")
	fs.StringVar(&cfg.InputPath, "input", cfg.InputPath, "Read the text to transform from this file ('-' for stdin)")
	fs.StringVar(&cfg.Type, "type", cfg.Type, "Transform type: Shorten, Extend, Rephrase or GeneratePost")
	fs.StringVar(&cfg.PerplexitySource, "perplexity", cfg.PerplexitySource, "Perplexity URL or literal text")
	fs.StringVar(&cfg.WikipediaSource, "wiki", cfg.WikipediaSource, "Wikipedia URL or literal text")
	fs.StringVar(&cfg.PDFTextPath, "pdf.text", cfg.PDFTextPath, "File with text extracted from a PDF")
	fs.StringVar(&cfg.ImageDescription, "image", cfg.ImageDescription, "Image description")
	fs.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "Write the transformed text here instead of stdout")
	fs.StringVar(&cfg.OutputPDFPath, "output.pdf", cfg.OutputPDFPath, "Also render the transformed text as PDF")

	fs.StringVar(&cfg.PromptsPath, "prompts", cfg.PromptsPath, "Markdown prompt document (default: built in)")

	fs.StringVar(&cfg.PrimaryKind, "primary", cfg.PrimaryKind, "Primary provider kind: openai, openai-responses, anthropic, gemini")
	fs.StringVar(&cfg.PrimaryModel, "primary.model", cfg.PrimaryModel, "Primary model")
	fs.StringVar(&cfg.PrimaryBaseURL, "primary.base", cfg.PrimaryBaseURL, "Primary base URL")
	fs.StringVar(&cfg.SecondaryKind, "secondary", cfg.SecondaryKind, "Secondary provider kind")
	fs.StringVar(&cfg.SecondaryModel, "secondary.model", cfg.SecondaryModel, "Secondary model")
	fs.StringVar(&cfg.SecondaryBaseURL, "secondary.base", cfg.SecondaryBaseURL, "Secondary base URL")
	fs.IntVar(&cfg.TokenLimit, "tokens.limit", cfg.TokenLimit, "Largest body token count sent to the primary provider")
	fs.StringVar(&cfg.TokenEncoding, "tokens.encoding", cfg.TokenEncoding, "tiktoken encoding (default cl100k_base)")
	fs.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "Retries for transient scrape and provider failures")

	fs.StringVar(&cfg.ScrapeEngine, "scrape.engine", cfg.ScrapeEngine, "Page engine: chrome or http")
	fs.StringVar(&cfg.ChromePath, "chrome.path", cfg.ChromePath, "Chrome executable")
	fs.BoolVar(&cfg.ChromeNoSandbox, "chrome.noSandbox", cfg.ChromeNoSandbox, "Run Chrome without its sandbox (required as root)")
	fs.DurationVar(&cfg.NavigationTimeout, "scrape.navTimeout", cfg.NavigationTimeout, "Navigation timeout")
	fs.Int64Var(&cfg.MaxBrowsers, "scrape.maxBrowsers", cfg.MaxBrowsers, "Concurrent browser sessions")
	fs.StringVar(&cfg.ScreenshotDir, "scrape.screenshots", cfg.ScreenshotDir, "Directory for debug screenshots of empty pages")

	fs.StringVar(&cfg.CacheBackend, "cache", cfg.CacheBackend, "Cache backend: none, file or redis")
	fs.StringVar(&cfg.CacheDir, "cache.dir", cfg.CacheDir, "File cache directory")
	fs.StringVar(&cfg.RedisURL, "cache.redis", cfg.RedisURL, "Redis URL")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", cfg.CacheMaxAge, "Purge file cache entries older than this; 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", cfg.CacheClear, "Clear the file cache directory before starting")
	fs.BoolVar(&cfg.CacheCompletions, "cache.completions", cfg.CacheCompletions, "Cache provider completions too")

	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.BoolVar(&cfg.LogJSON, "log.json", cfg.LogJSON, "Log JSON lines instead of console output")
}

// Load resolves configuration with precedence flags > env > config file >
// defaults. Flags are parsed twice: once to learn the config and dotenv
// paths, then on top of the merged file and env values.
func Load(args []string, stderr io.Writer) (Config, Bootstrap, error) {
	var boot Bootstrap
	first := Defaults()
	pre := flag.NewFlagSet("postgen", flag.ContinueOnError)
	pre.SetOutput(stderr)
	BindFlags(pre, &first, &boot)
	if err := pre.Parse(args); err != nil {
		return Config{}, boot, err
	}

	cfg := Defaults()
	if boot.ConfigPath != "" {
		fc, err := LoadConfigFile(boot.ConfigPath)
		if err != nil {
			return Config{}, boot, fmt.Errorf("load config: %w", err)
		}
		ApplyFileConfig(&cfg, fc)
	}
	envFiles := boot.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := LoadEnvFiles(envFiles...); err != nil {
		return Config{}, boot, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, boot, err
	}

	fs := flag.NewFlagSet("postgen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var discard Bootstrap
	BindFlags(fs, &cfg, &discard)
	if err := fs.Parse(args); err != nil {
		return Config{}, boot, err
	}
	if fs.NArg() > 0 && cfg.Text == "" {
		cfg.Text = strings.Join(fs.Args(), " ")
	}
	return cfg, boot, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
