package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

// ResponsesProvider calls OpenAI's Responses API with the instructions as
// Instructions and the content as a plain string input.
type ResponsesProvider struct {
	Client          openai.Client
	Model           string
	MaxOutputTokens int64
}

func (p *ResponsesProvider) Name() string { return "openai-responses" }

func (p *ResponsesProvider) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.TrimSpace(p.Model) == "" {
		return "", errors.New("responses provider not configured")
	}
	params := responses.ResponseNewParams{
		Model:        p.Model,
		Instructions: openai.String(system),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(user),
		},
	}
	if p.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(p.MaxOutputTokens)
	}
	resp, err := p.Client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", upstream(p.Name(), apiErr.StatusCode, err)
		}
		return "", upstream(p.Name(), 0, err)
	}
	if resp.Status == "incomplete" {
		return "", upstream(p.Name(), 0, fmt.Errorf("response is incomplete (reason = %s)", resp.IncompleteDetails.Reason))
	}
	out := strings.TrimSpace(resp.OutputText())
	if out == "" {
		return "", upstream(p.Name(), 0, fmt.Errorf("%w (status = %s)", ErrEmptyCompletion, resp.Status))
	}
	return out, nil
}
