package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/cache"
)

type cached struct {
	inner Provider
	store cache.Store
	model string
}

// WithCache serves repeated identical requests from store. Entries are keyed
// by provider name, model, instructions and content.
func WithCache(p Provider, store cache.Store, model string) Provider {
	if store == nil {
		return p
	}
	return &cached{inner: p, store: store, model: model}
}

type cachedCompletion struct {
	Text string `json:"text"`
}

func (c *cached) Name() string { return c.inner.Name() }

func (c *cached) Complete(ctx context.Context, system, user string) (string, error) {
	key := cache.KeyFrom(c.inner.Name(), c.model, system, user)
	if raw, ok, err := c.store.Get(ctx, key); err == nil && ok {
		var out cachedCompletion
		if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Text) != "" {
			log.Debug().Str("provider", c.inner.Name()).Msg("completion cache hit")
			return out.Text, nil
		}
	}
	text, err := c.inner.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if payload, err := json.Marshal(cachedCompletion{Text: text}); err == nil {
		if err := c.store.Save(ctx, key, payload); err != nil {
			log.Warn().Err(err).Msg("completion cache write")
		}
	}
	return text, nil
}
