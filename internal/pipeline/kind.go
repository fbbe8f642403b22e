package pipeline

import (
	"context"
	"errors"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/llm"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/template"
)

// Kind classifies a Run error for callers.
type Kind string

const (
	KindTemplateNotFound Kind = "template_not_found"
	KindUpstream         Kind = "upstream_provider_error"
	KindInvalidRequest   Kind = "invalid_request"
	KindCanceled         Kind = "canceled"
	KindInternal         Kind = "internal"
)

// KindOf maps an error returned by Run to its Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, template.ErrTemplateNotFound):
		return KindTemplateNotFound
	case errors.Is(err, llm.ErrUpstream):
		return KindUpstream
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}
