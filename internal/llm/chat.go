package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Framing controls how instructions and content reach the model.
type Framing int

const (
	// FrameMessages sends instructions as the system message and content as
	// the user message.
	FrameMessages Framing = iota
	// FrameSingle folds both into one user message with a role/task block,
	// an information block and a closing request. Used for backends whose
	// chat sessions treat system messages poorly.
	FrameSingle
)

// GeminiBaseURL is Google's OpenAI-compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// ChatProvider calls a chat completions endpoint through go-openai.
type ChatProvider struct {
	Client          Client
	Label           string
	Model           string
	Framing         Framing
	Temperature     float32
	MaxOutputTokens int
}

func (p *ChatProvider) Name() string {
	if p.Label != "" {
		return p.Label
	}
	return "openai"
}

func (p *ChatProvider) Complete(ctx context.Context, system, user string) (string, error) {
	if p.Client == nil || strings.TrimSpace(p.Model) == "" {
		return "", errors.New("chat provider not configured")
	}
	req := openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    p.messages(system, user),
		Temperature: p.Temperature,
		N:           1,
	}
	if p.MaxOutputTokens > 0 {
		req.MaxTokens = p.MaxOutputTokens
	}
	resp, err := p.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", upstream(p.Name(), chatStatus(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", upstream(p.Name(), 0, ErrEmptyCompletion)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", upstream(p.Name(), 0, ErrEmptyCompletion)
	}
	return out, nil
}

func (p *ChatProvider) messages(system, user string) []openai.ChatCompletionMessage {
	if p.Framing == FrameSingle {
		return []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: FrameSingleMessage(system, user)},
		}
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
}

// FrameSingleMessage renders instructions and content as one message.
func FrameSingleMessage(system, user string) string {
	var sb strings.Builder
	sb.WriteString("Role and task:\n")
	sb.WriteString(system)
	sb.WriteString("\n\nInformation to process:\n")
	sb.WriteString(user)
	sb.WriteString("\n\nPlease produce your output now based on the instructions above.")
	return sb.String()
}

func chatStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
