// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/seatreport/lib/github"
)

// Sentinel replaces any profile field that is private, null, or could
// not be fetched.
const Sentinel = "N/A"

// Fetcher fetches one user's public profile. *github.Client
// implements it.
type Fetcher interface {
	GetUser(ctx context.Context, login string) (*github.UserProfile, error)
}

// Details are the profile fields a report row needs. Both fields are
// always non-empty.
type Details struct {
	Email     string
	CreatedAt string
}

// Unresolved returns Details with every field set to the sentinel.
func Unresolved() Details {
	return Details{Email: Sentinel, CreatedAt: Sentinel}
}

// Config configures an Enricher.
type Config struct {
	// Fetcher performs the profile lookups. Required.
	Fetcher Fetcher

	// Cache, when non-nil, is consulted before the Fetcher and
	// receives every successful lookup.
	Cache *Cache

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Enricher resolves logins to Details. Safe for concurrent use.
type Enricher struct {
	fetcher Fetcher
	cache   *Cache
	logger  *slog.Logger
	group   singleflight.Group

	mu       sync.Mutex
	memo     map[string]Details
	fetched  int
	failures int
}

// New creates an Enricher.
func New(config Config) *Enricher {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		fetcher: config.Fetcher,
		cache:   config.Cache,
		logger:  logger,
		memo:    make(map[string]Details),
	}
}

// Lookup returns the profile details for login. It never fails: on any
// lookup error the result is Unresolved().
func (enricher *Enricher) Lookup(ctx context.Context, login string) Details {
	if login == "" {
		return Unresolved()
	}

	enricher.mu.Lock()
	details, ok := enricher.memo[login]
	enricher.mu.Unlock()
	if ok {
		return details
	}

	if enricher.cache != nil {
		if details, ok := enricher.cache.Get(login); ok {
			enricher.remember(login, details)
			return details
		}
	}

	value, _, _ := enricher.group.Do(login, func() (any, error) {
		return enricher.fetch(ctx, login), nil
	})
	return value.(Details)
}

func (enricher *Enricher) fetch(ctx context.Context, login string) Details {
	profile, err := enricher.fetcher.GetUser(ctx, login)
	if err != nil {
		enricher.mu.Lock()
		enricher.failures++
		enricher.mu.Unlock()

		enricher.logger.Warn("user profile lookup failed, using placeholders",
			"user", login,
			"error", err,
		)
		// A cancelled run should not pin the placeholder for later
		// callers sharing this Enricher.
		if !github.IsContextError(err) {
			enricher.remember(login, Unresolved())
		}
		return Unresolved()
	}

	details := Details{
		Email:     orSentinel(profile.Email),
		CreatedAt: orSentinel(profile.CreatedAt),
	}

	enricher.mu.Lock()
	enricher.fetched++
	enricher.mu.Unlock()

	enricher.remember(login, details)
	if enricher.cache != nil {
		enricher.cache.Put(login, details)
	}
	return details
}

func (enricher *Enricher) remember(login string, details Details) {
	enricher.mu.Lock()
	enricher.memo[login] = details
	enricher.mu.Unlock()
}

// Prefetch resolves logins with at most workers concurrent lookups so
// that later Lookup calls are served from memory. Returns only a
// context error; individual lookup failures are absorbed.
func (enricher *Enricher) Prefetch(ctx context.Context, logins []string, workers int) error {
	if workers < 1 {
		workers = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, login := range logins {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			enricher.Lookup(groupCtx, login)
			return nil
		})
	}
	return group.Wait()
}

// Stats reports how many lookups reached GitHub successfully and how
// many degraded to placeholders.
func (enricher *Enricher) Stats() (fetched, failures int) {
	enricher.mu.Lock()
	defer enricher.mu.Unlock()
	return enricher.fetched, enricher.failures
}

func orSentinel(value *string) string {
	if value == nil || *value == "" {
		return Sentinel
	}
	return *value
}
