// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/seatreport/lib/clock"
	"github.com/bureau-foundation/seatreport/lib/github"
)

// Source fetches the enterprise resources a report needs. Each method
// returns the complete collection or an error.
type Source interface {
	Teams(ctx context.Context, enterprise string) ([]github.Team, error)
	Memberships(ctx context.Context, enterprise, teamSlug string) ([]github.Membership, error)
	Seats(ctx context.Context, enterprise string) ([]github.CopilotSeat, error)
}

// Enricher is a ProfileLookup that can be warmed ahead of Build.
// *profile.Enricher implements it.
type Enricher interface {
	ProfileLookup
	Prefetch(ctx context.Context, logins []string, workers int) error
}

// GitHubSource is a Source backed by the GitHub REST API.
type GitHubSource struct {
	client *github.Client
}

// NewGitHubSource wraps client as a Source.
func NewGitHubSource(client *github.Client) *GitHubSource {
	return &GitHubSource{client: client}
}

func (source *GitHubSource) Teams(ctx context.Context, enterprise string) ([]github.Team, error) {
	return source.client.ListEnterpriseTeams(enterprise).Collect(ctx)
}

func (source *GitHubSource) Memberships(ctx context.Context, enterprise, teamSlug string) ([]github.Membership, error) {
	return source.client.ListEnterpriseTeamMemberships(enterprise, teamSlug).Collect(ctx)
}

func (source *GitHubSource) Seats(ctx context.Context, enterprise string) ([]github.CopilotSeat, error) {
	return source.client.ListCopilotSeats(enterprise).Collect(ctx)
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	// Enterprise is the enterprise slug. Required.
	Enterprise string

	// Source fetches teams, memberships, and seats. Required.
	Source Source

	// Enricher resolves user profiles. Required.
	Enricher Enricher

	Policy Policy

	// Workers bounds concurrent membership fetches and profile
	// lookups. Defaults to 4.
	Workers int

	// Clock times the run. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

const defaultWorkers = 4

// Generator runs the fetch-and-join pipeline for one enterprise.
type Generator struct {
	enterprise string
	source     Source
	enricher   Enricher
	policy     Policy
	workers    int
	clock      clock.Clock
	logger     *slog.Logger
}

// NewGenerator creates a Generator. Returns an error if a required
// field is missing.
func NewGenerator(config GeneratorConfig) (*Generator, error) {
	if config.Enterprise == "" {
		return nil, fmt.Errorf("report: enterprise is required")
	}
	if config.Source == nil {
		return nil, fmt.Errorf("report: source is required")
	}
	if config.Enricher == nil {
		return nil, fmt.Errorf("report: enricher is required")
	}

	workers := config.Workers
	if workers < 1 {
		workers = defaultWorkers
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		enterprise: config.Enterprise,
		source:     config.Source,
		enricher:   config.Enricher,
		policy:     config.Policy,
		workers:    workers,
		clock:      clk,
		logger:     logger.With("enterprise", config.Enterprise),
	}, nil
}

// Result is the outcome of one Generator run.
type Result struct {
	Rows []Row

	Teams int
	Seats int

	// SkippedTeams lists the slugs of teams whose memberships could
	// not be fetched. Their members are absent from Rows.
	SkippedTeams []string

	Matched   int
	Unmatched int
	NonUsers  int

	Duration time.Duration
}

// Run fetches everything and builds the rows. A failure to list teams
// or seats aborts the run. A failure to list one team's memberships
// is logged and the team is skipped. Profile failures never surface.
func (generator *Generator) Run(ctx context.Context) (*Result, error) {
	start := generator.clock.Now()

	teams, err := generator.source.Teams(ctx, generator.enterprise)
	if err != nil {
		return nil, fmt.Errorf("report: listing teams: %w", err)
	}
	generator.logger.Info("fetched teams", "count", len(teams))

	seats, err := generator.source.Seats(ctx, generator.enterprise)
	if err != nil {
		return nil, fmt.Errorf("report: listing copilot seats: %w", err)
	}
	generator.logger.Info("fetched copilot seats", "count", len(seats))

	input := Input{
		Enterprise: generator.enterprise,
		Teams:      teams,
		Seats:      seats,
	}

	var skipped []string
	if generator.policy.Mode != JoinSeats {
		input.Memberships, skipped, err = generator.fetchMemberships(ctx, teams)
		if err != nil {
			return nil, err
		}
	}

	logins := Logins(input, generator.policy)
	if err := generator.enricher.Prefetch(ctx, logins, generator.workers); err != nil {
		return nil, fmt.Errorf("report: resolving user profiles: %w", err)
	}

	built := Build(ctx, input, generator.enricher, generator.policy)

	result := &Result{
		Rows:         built.Rows,
		Teams:        len(teams),
		Seats:        len(seats),
		SkippedTeams: skipped,
		Matched:      built.Matched,
		Unmatched:    built.Unmatched,
		NonUsers:     built.NonUsers,
		Duration:     generator.clock.Now().Sub(start),
	}
	generator.logger.Info("report built",
		"rows", len(result.Rows),
		"matched", result.Matched,
		"unmatched", result.Unmatched,
		"skipped_teams", len(result.SkippedTeams),
		"duration", result.Duration,
	)
	return result, nil
}

// fetchMemberships lists every team's memberships with at most
// generator.workers requests in flight. Only a context error is
// returned; other failures skip the team. Skipped slugs are returned
// in team order.
func (generator *Generator) fetchMemberships(ctx context.Context, teams []github.Team) (map[string][]github.Membership, []string, error) {
	members := make([][]github.Membership, len(teams))
	failed := make([]bool, len(teams))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(generator.workers)
	for index, team := range teams {
		group.Go(func() error {
			list, err := generator.source.Memberships(groupCtx, generator.enterprise, team.Slug)
			if err != nil {
				if github.IsContextError(err) {
					return err
				}
				generator.logger.Warn("skipping team, memberships unavailable",
					"team", team.Slug,
					"error", err,
				)
				mu.Lock()
				failed[index] = true
				mu.Unlock()
				return nil
			}
			generator.logger.Debug("fetched team memberships",
				"team", team.Slug,
				"count", len(list),
			)
			mu.Lock()
			members[index] = list
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, fmt.Errorf("report: listing team memberships: %w", err)
	}

	memberships := make(map[string][]github.Membership, len(teams))
	var skipped []string
	for index, team := range teams {
		if failed[index] {
			skipped = append(skipped, team.Slug)
			continue
		}
		memberships[team.Slug] = members[index]
	}
	return memberships, skipped, nil
}
