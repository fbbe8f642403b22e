package llm

import (
	"context"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/backoff"
)

type retrying struct {
	inner  Provider
	policy backoff.Policy
}

// WithRetry retries timeouts, rate limits and server errors of p under
// policy. Other failures return immediately.
func WithRetry(p Provider, policy backoff.Policy) Provider {
	if policy.MaxRetries <= 0 {
		return p
	}
	return &retrying{inner: p, policy: policy}
}

func (r *retrying) Name() string { return r.inner.Name() }

func (r *retrying) Complete(ctx context.Context, system, user string) (string, error) {
	var out string
	err := backoff.Do(ctx, r.policy, func(ctx context.Context) error {
		var err error
		out, err = r.inner.Complete(ctx, system, user)
		return err
	}, IsRetryable)
	if err != nil {
		return "", err
	}
	return out, nil
}
