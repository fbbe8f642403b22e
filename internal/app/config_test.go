package app

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadConfigFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	y := writeFile(t, dir, "c.yaml", `
server:
  addr: ":8080"
  allowOrigins: ["https://editor.example"]
primary:
  kind: anthropic
  model: claude-3-5-sonnet
tokens:
  limit: 50000
cache:
  backend: file
  dir: /tmp/pg
  maxAge: 48h
`)
	fc, err := LoadConfigFile(y)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if fc.Server.Addr != ":8080" || fc.Primary.Kind != "anthropic" || fc.Tokens.Limit != 50000 {
		t.Fatalf("unexpected yaml config: %+v", fc)
	}
	if fc.Cache.MaxAge != 48*time.Hour {
		t.Fatalf("maxAge=%v, want 48h", fc.Cache.MaxAge)
	}

	j := writeFile(t, dir, "c.json", `{"secondary":{"kind":"openai","model":"gpt-4.1"},"maxRetries":5}`)
	fc, err = LoadConfigFile(j)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if fc.Secondary.Model != "gpt-4.1" || fc.MaxRetries != 5 {
		t.Fatalf("unexpected json config: %+v", fc)
	}
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.conf", "{not: [valid")
	if _, err := LoadConfigFile(p); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyFileConfig_KeepsUnsetFields(t *testing.T) {
	cfg := Defaults()
	var fc FileConfig
	fc.Primary.Model = "gpt-4.1"
	ApplyFileConfig(&cfg, fc)
	if cfg.PrimaryModel != "gpt-4.1" {
		t.Fatalf("PrimaryModel=%q", cfg.PrimaryModel)
	}
	if cfg.SecondaryModel != "gemini-1.5-pro" || cfg.TokenLimit != 120000 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

// Flags beat env, env beats the config file, the file beats defaults.
func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "postgen.yaml", `
primary:
  model: from-file
secondary:
  model: file-secondary
tokens:
  limit: 1000
`)
	envPath := writeFile(t, dir, "test.env", "GOOGLE_MODEL=env-secondary\n")
	t.Setenv("OPENAI_MODEL", "from-env")
	unsetEnv(t, "GOOGLE_MODEL", "TOKEN_LIMIT")

	cfg, boot, err := Load([]string{
		"-config", cfgPath,
		"-env", envPath,
		"-primary.model", "from-flag",
		"-text", "hello",
	}, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if boot.ConfigPath != cfgPath {
		t.Fatalf("ConfigPath=%q", boot.ConfigPath)
	}
	if cfg.PrimaryModel != "from-flag" {
		t.Fatalf("PrimaryModel=%q, want flag value", cfg.PrimaryModel)
	}
	if cfg.SecondaryModel != "env-secondary" {
		t.Fatalf("SecondaryModel=%q, want dotenv value", cfg.SecondaryModel)
	}
	if cfg.TokenLimit != 1000 {
		t.Fatalf("TokenLimit=%d, want file value", cfg.TokenLimit)
	}
	if cfg.Text != "hello" {
		t.Fatalf("Text=%q", cfg.Text)
	}
}

func TestLoad_PositionalTextAndOrigins(t *testing.T) {
	cfg, _, err := Load([]string{"-env", filepath.Join(t.TempDir(), "none.env"), "-cors.origins", "https://a.example, https://b.example", "make", "it", "shorter"}, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Text != "make it shorter" {
		t.Fatalf("Text=%q", cfg.Text)
	}
	if strings.Join(cfg.AllowOrigins, "|") != "https://a.example|https://b.example" {
		t.Fatalf("AllowOrigins=%q", cfg.AllowOrigins)
	}
}

func TestLoad_UnknownFlag(t *testing.T) {
	if _, _, err := Load([]string{"-no-such-flag"}, io.Discard); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestValidateConfig(t *testing.T) {
	ok := Defaults()
	ok.Text = "post"
	if err := ValidateConfig(ok); err != nil {
		t.Fatalf("defaults with text should validate: %v", err)
	}

	gen := Defaults()
	gen.Type = "GeneratePost"
	if err := ValidateConfig(gen); err != nil {
		t.Fatalf("GeneratePost needs no text: %v", err)
	}

	serve := Defaults()
	serve.Serve = true
	if err := ValidateConfig(serve); err != nil {
		t.Fatalf("serve mode needs no text: %v", err)
	}

	bad := Defaults()
	bad.Text = "x"
	bad.PrimaryModel = ""
	bad.ScrapeEngine = "lynx"
	bad.CacheBackend = CacheRedis
	err := ValidateConfig(bad)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"primary model", "scrape engine", "REDIS_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

func TestAPIKeyFor(t *testing.T) {
	cfg := Config{OpenAIAPIKey: "o", GoogleAPIKey: "g", AnthropicAPIKey: "a"}
	cases := map[string]string{"openai": "o", "openai-responses": "o", "gemini": "g", "anthropic": "a"}
	for kind, want := range cases {
		if got := cfg.APIKeyFor(kind); got != want {
			t.Fatalf("APIKeyFor(%s)=%q, want %q", kind, got, want)
		}
	}
}

func TestChromeNoSandbox_FileAndFlag(t *testing.T) {
	var fc FileConfig
	fc.Scrape.NoSandbox = true
	cfg := Defaults()
	ApplyFileConfig(&cfg, fc)
	if !cfg.ChromeNoSandbox {
		t.Fatal("file setting not applied")
	}

	cfg, _, err := Load([]string{"-env", filepath.Join(t.TempDir(), "none.env"), "-chrome.noSandbox", "idea"}, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ChromeNoSandbox {
		t.Fatal("flag not applied")
	}
}
