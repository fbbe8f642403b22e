// Package pipeline runs one transform request: template lookup, source
// aggregation, token estimation, routing and the provider call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/aggregate"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/budget"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/llm"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/router"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/template"
)

// DefaultLimit is the routing limit used when none is configured.
const DefaultLimit = 120000

// ErrEmptyText is returned when a non-generation transform has no text.
var ErrEmptyText = errors.New("text is required for this transform type")

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// Request is one transform.
type Request struct {
	Text    string            `json:"text"`
	Type    string            `json:"type"`
	Sources aggregate.Sources `json:"additionalContent"`
}

// Result is the outcome of a successful run.
type Result struct {
	TransformedText string              `json:"transformedText"`
	Provider        string              `json:"provider"`
	Choice          router.Choice       `json:"-"`
	TotalTokens     int                 `json:"totalTokens"`
	SystemTokens    int                 `json:"systemTokens"`
	Warnings        []aggregate.Warning `json:"warnings,omitempty"`
}

// Templates resolves a transform type to its template section.
type Templates interface {
	Resolve(ctx context.Context, t string) (template.Template, error)
}

// Aggregator composes the user message.
type Aggregator interface {
	Aggregate(ctx context.Context, idea string, src aggregate.Sources) aggregate.Result
}

// Pipeline holds the collaborators of a run. It keeps no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	Templates  Templates
	Aggregator Aggregator
	Estimator  budget.Estimator
	Primary    llm.Provider
	Secondary  llm.Provider
	// Limit is the largest body token count sent to Primary. Zero means
	// DefaultLimit.
	Limit int
}

// Run executes the steps in order. Template and provider failures are
// returned as errors without a partial result; source failures become
// Result.Warnings.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Type) == "" {
		return Result{}, fmt.Errorf("%w: type is required", ErrInvalidRequest)
	}
	start := time.Now()

	tpl, err := p.Templates.Resolve(ctx, req.Type)
	if err != nil {
		return Result{}, fmt.Errorf("load template: %w", err)
	}
	// The matched section decides, so a prefix such as "Generate" is a
	// generation type too.
	if strings.TrimSpace(req.Text) == "" && !template.IsGeneration(template.Type(tpl.Type)) {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, ErrEmptyText)
	}
	system := tpl.SystemInstructions

	agg := p.Aggregator.Aggregate(ctx, req.Text, req.Sources)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	est := p.estimator()
	total := est.Count(agg.Body)
	limit := p.limit()
	choice := router.Choose(total, limit)
	provider := p.Primary
	if choice == router.Secondary {
		provider = p.Secondary
	}
	if provider == nil {
		return Result{}, fmt.Errorf("no %s provider configured", choice)
	}
	systemTokens := est.Count(system)
	log.Info().
		Str("type", tpl.Type).
		Int("tokens", total).
		Int("system_tokens", systemTokens).
		Int("prompt_tokens", budget.Sum(est, system, agg.Body)).
		Int("limit", limit).
		Str("route", choice.String()).
		Str("provider", provider.Name()).
		Interface("sections", agg.Tokens).
		Msg("routing request")

	text, err := provider.Complete(ctx, system, agg.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%s completion: %w", choice, err)
	}
	log.Info().Str("provider", provider.Name()).Dur("took", time.Since(start)).Int("chars", len(text)).Msg("transform done")

	return Result{
		TransformedText: text,
		Provider:        provider.Name(),
		Choice:          choice,
		TotalTokens:     total,
		SystemTokens:    systemTokens,
		Warnings:        agg.Warnings,
	}, nil
}

func (p *Pipeline) estimator() budget.Estimator {
	if p.Estimator == nil {
		return budget.Heuristic{}
	}
	return p.Estimator
}

func (p *Pipeline) limit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}
