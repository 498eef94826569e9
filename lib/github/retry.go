// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bureau-foundation/seatreport/lib/clock"
)

// retryPolicy is the per-request backoff state. Rate-limited attempts
// skip the exponential delay because the rate-limit guard already
// blocks until the quota window reopens.
type retryPolicy struct {
	backOff backoff.BackOff
	aware   *rateLimitAwareBackOff
}

func (client *Client) newRetryPolicy(ctx context.Context) *retryPolicy {
	if client.maxRetries < 0 {
		return &retryPolicy{backOff: backoff.WithContext(&backoff.StopBackOff{}, ctx)}
	}

	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = client.retryInitialInterval
	exponential.MaxInterval = defaultRetryMaxInterval
	exponential.MaxElapsedTime = 0
	exponential.Clock = client.clock

	aware := &rateLimitAwareBackOff{BackOff: exponential}
	return &retryPolicy{
		backOff: backoff.WithContext(backoff.WithMaxRetries(aware, uint64(client.maxRetries)), ctx),
		aware:   aware,
	}
}

// skipNextDelay makes the next retry fire without an exponential
// delay. No-op when retry is disabled.
func (policy *retryPolicy) skipNextDelay() {
	if policy.aware != nil {
		policy.aware.skip = true
	}
}

type rateLimitAwareBackOff struct {
	backoff.BackOff
	skip bool
}

func (aware *rateLimitAwareBackOff) NextBackOff() time.Duration {
	next := aware.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if aware.skip {
		aware.skip = false
		return 0
	}
	return next
}

// clockTimer adapts clock.Clock to backoff.Timer so retry delays run
// on the injected clock.
type clockTimer struct {
	clock   clock.Clock
	channel <-chan time.Time
}

func (timer *clockTimer) Start(duration time.Duration) {
	timer.channel = timer.clock.After(duration)
}

func (timer *clockTimer) Stop() {}

func (timer *clockTimer) C() <-chan time.Time {
	return timer.channel
}
