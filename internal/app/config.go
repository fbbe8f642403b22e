package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/llm"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/pipeline"
)

// Config holds runtime configuration for the application. Env tags are read
// by caarlos0/env; a variable that is not set leaves the field untouched.
type Config struct {
	// Server
	Serve          bool          `env:"SERVE"`
	Addr           string        `env:"ADDR"`
	AllowOrigins   []string      `env:"CORS_ORIGINS" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// One-shot request
	Text             string
	InputPath        string
	Type             string
	PerplexitySource string
	WikipediaSource  string
	PDFTextPath      string
	ImageDescription string
	OutputPath       string
	OutputPDFPath    string

	// Templates. Empty PromptsPath uses the embedded document.
	PromptsPath string `env:"PROMPTS_FILE"`

	// Providers
	PrimaryKind      string  `env:"PRIMARY_PROVIDER"`
	PrimaryModel     string  `env:"OPENAI_MODEL"`
	PrimaryBaseURL   string  `env:"OPENAI_BASE_URL"`
	SecondaryKind    string  `env:"SECONDARY_PROVIDER"`
	SecondaryModel   string  `env:"GOOGLE_MODEL"`
	SecondaryBaseURL string  `env:"GOOGLE_BASE_URL"`
	SecondaryTemp    float32 `env:"GOOGLE_TEMPERATURE"`
	MaxOutputTokens  int     `env:"MAX_OUTPUT_TOKENS"`
	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	GoogleAPIKey     string  `env:"GOOGLE_API_KEY"`
	AnthropicAPIKey  string  `env:"ANTHROPIC_API_KEY"`
	TokenLimit       int     `env:"TOKEN_LIMIT"`
	TokenEncoding    string  `env:"TOKEN_ENCODING"`
	MaxRetries       int     `env:"MAX_RETRIES"`

	// Scraping
	ScrapeEngine      string        `env:"SCRAPE_ENGINE"`
	ChromePath        string        `env:"CHROME_PATH"`
	ChromeNoSandbox   bool          `env:"CHROME_NO_SANDBOX"`
	NavigationTimeout time.Duration `env:"NAVIGATION_TIMEOUT"`
	ChallengeTimeout  time.Duration `env:"CHALLENGE_TIMEOUT"`
	MaxBrowsers       int64         `env:"MAX_BROWSERS"`
	ScreenshotDir     string        `env:"SCREENSHOT_DIR"`

	// Cache. Backend is none, file or redis.
	CacheBackend     string        `env:"CACHE_BACKEND"`
	CacheDir         string        `env:"CACHE_DIR"`
	RedisURL         string        `env:"REDIS_URL"`
	CacheTTL         time.Duration `env:"CACHE_TTL"`
	CacheMaxAge      time.Duration `env:"CACHE_MAX_AGE"`
	CachePurgeSpec   string        `env:"CACHE_PURGE_SCHEDULE"`
	CacheStrictPerms bool          `env:"CACHE_STRICT_PERMS"`
	CacheClear       bool          `env:"CACHE_CLEAR"`
	CacheCompletions bool          `env:"CACHE_COMPLETIONS"`

	// Behavior
	Verbose bool `env:"VERBOSE"`
	LogJSON bool `env:"LOG_JSON"`
}

// Defaults returns the configuration used before file, env and flags apply.
func Defaults() Config {
	return Config{
		Addr:              ":3001",
		AllowOrigins:      []string{"http://localhost:3000"},
		RequestTimeout:    3 * time.Minute,
		Type:              "Shorten",
		PrimaryKind:       llm.KindOpenAI,
		PrimaryModel:      "gpt-4o",
		SecondaryKind:     llm.KindGemini,
		SecondaryModel:    "gemini-1.5-pro",
		SecondaryTemp:     1,
		MaxOutputTokens:   8192,
		TokenLimit:        pipeline.DefaultLimit,
		MaxRetries:        2,
		ScrapeEngine:      EngineChrome,
		NavigationTimeout: 30 * time.Second,
		ChallengeTimeout:  30 * time.Second,
		MaxBrowsers:       2,
		CacheBackend:      CacheNone,
		CacheDir:          ".postgen-cache",
		CacheTTL:          24 * time.Hour,
		CachePurgeSpec:    "@hourly",
	}
}

// Scrape engines.
const (
	EngineChrome = "chrome"
	EngineHTTP   = "http"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// APIKeyFor returns the key configured for a provider kind.
func (c Config) APIKeyFor(kind string) string {
	switch strings.ToLower(kind) {
	case llm.KindGemini:
		return c.GoogleAPIKey
	case llm.KindAnthropic:
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// ValidateConfig checks the settings New and the CLI depend on.
func ValidateConfig(cfg Config) error {
	var errs []error
	if strings.TrimSpace(cfg.PrimaryModel) == "" {
		errs = append(errs, errors.New("config: primary model is required (or set OPENAI_MODEL)"))
	}
	if strings.TrimSpace(cfg.SecondaryModel) == "" {
		errs = append(errs, errors.New("config: secondary model is required (or set GOOGLE_MODEL)"))
	}
	if cfg.TokenLimit < 0 || cfg.MaxRetries < 0 || cfg.MaxBrowsers < 0 || cfg.MaxOutputTokens < 0 {
		errs = append(errs, errors.New("config: negative limits are not allowed"))
	}
	switch cfg.ScrapeEngine {
	case EngineChrome, EngineHTTP:
	default:
		errs = append(errs, fmt.Errorf("config: unknown scrape engine %q", cfg.ScrapeEngine))
	}
	switch cfg.CacheBackend {
	case CacheNone, "":
	case CacheFile:
		if strings.TrimSpace(cfg.CacheDir) == "" {
			errs = append(errs, errors.New("config: cache dir is required for the file cache"))
		}
	case CacheRedis:
		if strings.TrimSpace(cfg.RedisURL) == "" {
			errs = append(errs, errors.New("config: REDIS_URL is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown cache backend %q", cfg.CacheBackend))
	}
	if !cfg.Serve && strings.TrimSpace(cfg.Text) == "" && strings.TrimSpace(cfg.InputPath) == "" && cfg.Type != "GeneratePost" {
		errs = append(errs, errors.New("config: -text or -input is required unless -serve is set"))
	}
	return errors.Join(errs...)
}
