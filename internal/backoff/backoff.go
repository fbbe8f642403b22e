// Package backoff retries transient failures with capped, jittered
// exponential delays.
package backoff

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

// Policy bounds retries. MaxRetries counts attempts after the first; zero
// disables retrying.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
}

// Default retries twice starting at 500ms and never waits more than 5s.
var Default = Policy{MaxRetries: 2, Base: 500 * time.Millisecond, Max: 5 * time.Second}

// None never retries.
var None = Policy{}

func (p Policy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	if p.Max > 0 {
		b = retry.WithCappedDuration(p.Max, b)
	}
	return retry.WithMaxRetries(uint64(p.MaxRetries), b)
}

// Do calls fn until it succeeds, returns an error that retryable rejects,
// the policy is exhausted or ctx is done. The last error from fn is returned;
// on cancellation ctx.Err() is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, retryable func(error) bool) error {
	if p.MaxRetries <= 0 {
		return fn(ctx)
	}
	attempt := 0
	var last error
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err
		if retryable == nil || !retryable(err) {
			return err
		}
		if attempt <= p.MaxRetries {
			log.Debug().Err(err).Int("attempt", attempt).Msg("retrying after transient failure")
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if last != nil {
		return last
	}
	return err
}
