// Package llm adapts chat model backends to a single Complete call taking
// system instructions and a user message.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// Provider produces a completion for one system/user message pair.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client is the subset of *openai.Client used by ChatProvider, so any
// OpenAI-compatible backend or a test fake can stand in.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ErrUpstream is matched by errors.Is for every *UpstreamError.
var ErrUpstream = errors.New("upstream provider error")

// ErrEmptyCompletion is wrapped when a backend answers without text.
var ErrEmptyCompletion = errors.New("empty completion")

// UpstreamError reports a failed provider call.
type UpstreamError struct {
	Provider  string
	Status    int
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// IsRetryable reports whether err is an upstream failure worth retrying.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Retryable
}

// upstream wraps err with the provider name and classifies it. status is
// the HTTP status when known.
func upstream(provider string, status int, err error) error {
	return &UpstreamError{Provider: provider, Status: status, Retryable: retryable(status, err), Err: err}
}

func retryable(status int, err error) bool {
	switch {
	case status == 429 || status == 408:
		return true
	case status >= 500:
		return true
	case status != 0:
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
