// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bureau-foundation/seatreport/lib/clock"
)

// resetBuffer is added to every wait for the primary rate-limit window
// so the first request after the wait lands after the reset, not on it.
const resetBuffer = time.Second

// secondaryLimitFallback is how long to back off after a rate-limited
// response that carries neither Retry-After nor X-RateLimit-Reset.
// GitHub documents one minute for this case.
const secondaryLimitFallback = time.Minute

// rateLimitTracker tracks GitHub API rate limit state from response
// headers. It is the shared gate for every goroutine using a Client:
// before a request is sent, wait blocks while the quota is exhausted.
type rateLimitTracker struct {
	mu           sync.Mutex
	remaining    int
	reset        time.Time
	known        bool // true after the first response with rate limit headers
	blockedUntil time.Time
	clock        clock.Clock
}

func newRateLimitTracker(clock clock.Clock) *rateLimitTracker {
	return &rateLimitTracker{clock: clock}
}

// update records rate limit state from HTTP response headers. Called
// after every API response.
func (tracker *rateLimitTracker) update(header http.Header) {
	remainingStr := header.Get("X-RateLimit-Remaining")
	resetStr := header.Get("X-RateLimit-Reset")

	if remainingStr == "" || resetStr == "" {
		return
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return
	}

	resetUnix, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return
	}

	reset := time.Unix(resetUnix, 0)

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	// Responses from concurrent requests can arrive out of order. Within
	// one window the quota only shrinks, and an older window never
	// replaces a newer one.
	if tracker.known {
		switch {
		case reset.Before(tracker.reset):
			return
		case reset.Equal(tracker.reset):
			tracker.remaining = min(tracker.remaining, remaining)
			return
		}
	}
	tracker.remaining = remaining
	tracker.reset = reset
	tracker.known = true
}

// penalize records a rate-limited response. Secondary limits carry
// Retry-After; primary limits are already covered by update.
func (tracker *rateLimitTracker) penalize(header http.Header) {
	duration := tracker.retryAfter(header)

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	if duration <= 0 {
		if tracker.known && tracker.remaining == 0 {
			return
		}
		duration = secondaryLimitFallback
	}
	until := tracker.clock.Now().Add(duration)
	if until.After(tracker.blockedUntil) {
		tracker.blockedUntil = until
	}
}

// delay returns how long a request issued now must wait. For an
// exhausted primary quota that is max(reset - now, 0) + 1s.
func (tracker *rateLimitTracker) delay() (time.Duration, time.Time) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	now := tracker.clock.Now()
	var sleep time.Duration
	if tracker.known && tracker.remaining == 0 {
		sleep = max(tracker.reset.Sub(now), 0) + resetBuffer
	}
	if blocked := tracker.blockedUntil.Sub(now); blocked > sleep {
		sleep = blocked
	}
	return sleep, tracker.reset
}

// wait blocks until the rate limit window resets if the tracker knows
// the limit is exhausted. Returns immediately if the limit is not
// exhausted or not yet known. Respects context cancellation.
//
// Returns an error only if the context is cancelled while waiting.
func (tracker *rateLimitTracker) wait(ctx context.Context, logger *slog.Logger) error {
	sleepDuration, reset := tracker.delay()
	if sleepDuration <= 0 {
		return nil
	}

	logger.Warn("rate limit reached, waiting for reset",
		"duration", sleepDuration,
		"reset", reset,
	)

	select {
	case <-tracker.clock.After(sleepDuration):
	case <-ctx.Done():
		return ctx.Err()
	}

	// The window has reopened. Forget the exhausted state unless a
	// newer response has already replaced it.
	tracker.mu.Lock()
	if tracker.known && tracker.remaining == 0 && tracker.reset.Equal(reset) {
		tracker.known = false
	}
	if !tracker.blockedUntil.After(tracker.clock.Now()) {
		tracker.blockedUntil = time.Time{}
	}
	tracker.mu.Unlock()
	return nil
}

// retryAfter computes the backoff duration from a rate-limited response.
// Checks the Retry-After header first (secondary rate limits), then
// falls back to the X-RateLimit-Reset timestamp. Returns zero if no
// backoff information is available.
func (tracker *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	// Secondary rate limits use Retry-After (seconds).
	if retryStr := header.Get("Retry-After"); retryStr != "" {
		if seconds, err := strconv.Atoi(retryStr); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	// Primary rate limits use X-RateLimit-Reset (Unix timestamp).
	if resetStr := header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetUnix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			duration := time.Unix(resetUnix, 0).Sub(tracker.clock.Now())
			if duration > 0 {
				return duration
			}
		}
	}

	return 0
}
