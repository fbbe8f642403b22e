package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	Client          anthropic.Client
	Model           string
	MaxOutputTokens int64
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.TrimSpace(p.Model) == "" {
		return "", errors.New("anthropic provider not configured")
	}
	maxTokens := p.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	resp, err := p.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.Model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", upstream(p.Name(), apiErr.StatusCode, err)
		}
		return "", upstream(p.Name(), 0, err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", upstream(p.Name(), 0, ErrEmptyCompletion)
	}
	return out, nil
}
