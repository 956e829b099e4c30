// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/skaphos/dotkeeper/internal/gitx"
	"github.com/skaphos/dotkeeper/internal/vcs"
)

const maxFetchDelay = 5 * time.Minute

// FetchPolicy bounds the fetch retrier.
type FetchPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// InitialDelay is the wait after the first failure; it doubles after
	// each further failure.
	InitialDelay time.Duration
	// AttemptTimeout bounds each individual try.
	AttemptTimeout time.Duration
}

// DefaultFetchPolicy is five attempts, delays of 2, 4, 8, and 16 seconds, and
// 60 seconds per attempt.
func DefaultFetchPolicy() FetchPolicy {
	return FetchPolicy{Attempts: 5, InitialDelay: 2 * time.Second, AttemptTimeout: 60 * time.Second}
}

func (p FetchPolicy) withDefaults() FetchPolicy {
	def := DefaultFetchPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	return p
}

// Fetcher retries fetching the upstream branch. It is the only component
// that retries git calls.
type Fetcher struct {
	adapter vcs.Adapter
	policy  FetchPolicy
	log     zerolog.Logger
	// Timer is injected by tests to skip real sleeps.
	Timer backoff.Timer
}

// NewFetcher builds a Fetcher for adapter.
func NewFetcher(adapter vcs.Adapter, policy FetchPolicy, logger zerolog.Logger) *Fetcher {
	return &Fetcher{adapter: adapter, policy: policy.withDefaults(), log: logger}
}

// Policy returns the effective retry policy.
func (f *Fetcher) Policy() FetchPolicy { return f.policy }

func (f *Fetcher) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.policy.InitialDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = max(maxFetchDelay, f.policy.InitialDelay)
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(f.policy.Attempts-1)), ctx)
}

// Fetch updates refs/remotes/<remote>/<branch>. Exhausting every attempt
// returns ErrNetwork; cancellation returns ErrUserAbort. Neither mutates the
// work tree.
func (f *Fetcher) Fetch(ctx context.Context, remote, branch string) error {
	attempt := 0
	op := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, f.policy.AttemptTimeout)
		defer cancel()
		err := f.adapter.Fetch(actx, remote, branch)
		if err == nil {
			f.log.Info().Int("attempt", attempt).Str("remote", remote).Str("branch", branch).Msg("fetched upstream")
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.log.Warn().Err(err).Int("attempt", attempt).Str("class", gitx.ClassifyError(err)).Dur("retry_in", wait).Msg("fetch failed")
	}

	err := backoff.RetryNotifyWithTimer(op, f.backOff(ctx), notify, f.Timer)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: fetch interrupted: %w", ErrUserAbort, ctx.Err())
	}
	return fmt.Errorf("%w: fetch %s/%s failed after %d attempts: %w", ErrNetwork, remote, branch, attempt, err)
}
