package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema. Nested sections map
// onto the flat Config.
type FileConfig struct {
	Server struct {
		Addr           string        `yaml:"addr" json:"addr"`
		AllowOrigins   []string      `yaml:"allowOrigins" json:"allowOrigins"`
		RequestTimeout time.Duration `yaml:"requestTimeout" json:"requestTimeout"`
	} `yaml:"server" json:"server"`

	Prompts string `yaml:"prompts" json:"prompts"`

	Primary   FileProvider `yaml:"primary" json:"primary"`
	Secondary FileProvider `yaml:"secondary" json:"secondary"`

	Tokens struct {
		Limit    int    `yaml:"limit" json:"limit"`
		Encoding string `yaml:"encoding" json:"encoding"`
	} `yaml:"tokens" json:"tokens"`

	MaxRetries      int `yaml:"maxRetries" json:"maxRetries"`
	MaxOutputTokens int `yaml:"maxOutputTokens" json:"maxOutputTokens"`

	Scrape struct {
		Engine            string        `yaml:"engine" json:"engine"`
		ChromePath        string        `yaml:"chromePath" json:"chromePath"`
		NoSandbox         bool          `yaml:"noSandbox" json:"noSandbox"`
		NavigationTimeout time.Duration `yaml:"navigationTimeout" json:"navigationTimeout"`
		ChallengeTimeout  time.Duration `yaml:"challengeTimeout" json:"challengeTimeout"`
		MaxBrowsers       int64         `yaml:"maxBrowsers" json:"maxBrowsers"`
		ScreenshotDir     string        `yaml:"screenshotDir" json:"screenshotDir"`
	} `yaml:"scrape" json:"scrape"`

	Cache struct {
		Backend       string        `yaml:"backend" json:"backend"`
		Dir           string        `yaml:"dir" json:"dir"`
		RedisURL      string        `yaml:"redisURL" json:"redisURL"`
		TTL           time.Duration `yaml:"ttl" json:"ttl"`
		MaxAge        time.Duration `yaml:"maxAge" json:"maxAge"`
		PurgeSchedule string        `yaml:"purgeSchedule" json:"purgeSchedule"`
		StrictPerms   bool          `yaml:"strictPerms" json:"strictPerms"`
		Clear         bool          `yaml:"clear" json:"clear"`
		Completions   bool          `yaml:"completions" json:"completions"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
	LogJSON bool `yaml:"logJSON" json:"logJSON"`
}

// FileProvider configures one backend. API keys are intentionally absent;
// they come from the environment only.
type FileProvider struct {
	Kind        string  `yaml:"kind" json:"kind"`
	Model       string  `yaml:"model" json:"model"`
	BaseURL     string  `yaml:"base" json:"base"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every non-zero value of fc onto cfg. It runs
// before env and flags, which therefore win.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	setString(&cfg.Addr, fc.Server.Addr)
	if len(fc.Server.AllowOrigins) > 0 {
		cfg.AllowOrigins = append([]string{}, fc.Server.AllowOrigins...)
	}
	setDuration(&cfg.RequestTimeout, fc.Server.RequestTimeout)
	setString(&cfg.PromptsPath, fc.Prompts)

	setString(&cfg.PrimaryKind, fc.Primary.Kind)
	setString(&cfg.PrimaryModel, fc.Primary.Model)
	setString(&cfg.PrimaryBaseURL, fc.Primary.BaseURL)
	setString(&cfg.SecondaryKind, fc.Secondary.Kind)
	setString(&cfg.SecondaryModel, fc.Secondary.Model)
	setString(&cfg.SecondaryBaseURL, fc.Secondary.BaseURL)
	if fc.Secondary.Temperature > 0 {
		cfg.SecondaryTemp = fc.Secondary.Temperature
	}

	setInt(&cfg.TokenLimit, fc.Tokens.Limit)
	setString(&cfg.TokenEncoding, fc.Tokens.Encoding)
	setInt(&cfg.MaxRetries, fc.MaxRetries)
	setInt(&cfg.MaxOutputTokens, fc.MaxOutputTokens)

	setString(&cfg.ScrapeEngine, fc.Scrape.Engine)
	setString(&cfg.ChromePath, fc.Scrape.ChromePath)
	cfg.ChromeNoSandbox = cfg.ChromeNoSandbox || fc.Scrape.NoSandbox
	setDuration(&cfg.NavigationTimeout, fc.Scrape.NavigationTimeout)
	setDuration(&cfg.ChallengeTimeout, fc.Scrape.ChallengeTimeout)
	if fc.Scrape.MaxBrowsers > 0 {
		cfg.MaxBrowsers = fc.Scrape.MaxBrowsers
	}
	setString(&cfg.ScreenshotDir, fc.Scrape.ScreenshotDir)

	setString(&cfg.CacheBackend, fc.Cache.Backend)
	setString(&cfg.CacheDir, fc.Cache.Dir)
	setString(&cfg.RedisURL, fc.Cache.RedisURL)
	setDuration(&cfg.CacheTTL, fc.Cache.TTL)
	setDuration(&cfg.CacheMaxAge, fc.Cache.MaxAge)
	setString(&cfg.CachePurgeSpec, fc.Cache.PurgeSchedule)
	cfg.CacheStrictPerms = cfg.CacheStrictPerms || fc.Cache.StrictPerms
	cfg.CacheClear = cfg.CacheClear || fc.Cache.Clear
	cfg.CacheCompletions = cfg.CacheCompletions || fc.Cache.Completions

	cfg.Verbose = cfg.Verbose || fc.Verbose
	cfg.LogJSON = cfg.LogJSON || fc.LogJSON
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
