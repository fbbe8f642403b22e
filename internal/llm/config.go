package llm

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiv3 "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	openai "github.com/sashabaranov/go-openai"
)

// Provider kinds accepted by New.
const (
	KindOpenAI    = "openai"
	KindGemini    = "gemini"
	KindResponses = "openai-responses"
	KindAnthropic = "anthropic"
)

// Config selects and parameterizes one backend.
type Config struct {
	Kind    string
	Model   string
	APIKey  string
	BaseURL string
	// Temperature applies to chat completion kinds. Zero leaves the backend
	// default.
	Temperature     float32
	MaxOutputTokens int
}

// New builds the provider described by cfg.
func New(cfg Config) (Provider, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("provider %q: model is required", kind)
	}
	switch kind {
	case KindOpenAI, "":
		return &ChatProvider{
			Client:          newChatClient(cfg.APIKey, cfg.BaseURL),
			Label:           KindOpenAI,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
		}, nil
	case KindGemini:
		base := cfg.BaseURL
		if base == "" {
			base = GeminiBaseURL
		}
		return &ChatProvider{
			Client:          newChatClient(cfg.APIKey, base),
			Label:           KindGemini,
			Model:           cfg.Model,
			Framing:         FrameSingle,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
		}, nil
	case KindResponses:
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		return &ResponsesProvider{
			Client:          openaiv3.NewClient(opts...),
			Model:           cfg.Model,
			MaxOutputTokens: int64(cfg.MaxOutputTokens),
		}, nil
	case KindAnthropic:
		opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cfg.APIKey), anthropicoption.WithMaxRetries(0)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
		}
		return &AnthropicProvider{
			Client:          anthropic.NewClient(opts...),
			Model:           cfg.Model,
			MaxOutputTokens: int64(cfg.MaxOutputTokens),
		}, nil
	}
	return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
}

func newChatClient(apiKey, baseURL string) *openai.Client {
	transportCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		transportCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(transportCfg)
}
