// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/seatreport/lib/github"
	"github.com/bureau-foundation/seatreport/lib/profile"
)

// JoinMode selects which collection drives row generation.
type JoinMode string

const (
	// JoinMemberships walks each team's memberships and looks up the
	// member's seat by login.
	JoinMemberships JoinMode = "memberships"

	// JoinSeats walks the seats and keeps those whose assigning team
	// is one of the enterprise's teams. Memberships are not consulted.
	JoinSeats JoinMode = "seats"
)

// UnmatchedPolicy decides what happens to a member with no seat. It
// only applies to JoinMemberships.
type UnmatchedPolicy string

const (
	// UnmatchedEmit writes an inactive row with placeholder Copilot
	// fields.
	UnmatchedEmit UnmatchedPolicy = "emit"

	// UnmatchedDrop omits the member.
	UnmatchedDrop UnmatchedPolicy = "drop"
)

// ParseJoinMode parses a join mode name. The empty string selects
// JoinMemberships.
func ParseJoinMode(name string) (JoinMode, error) {
	switch JoinMode(name) {
	case "", JoinMemberships:
		return JoinMemberships, nil
	case JoinSeats:
		return JoinSeats, nil
	default:
		return "", fmt.Errorf("unknown join mode %q (want %q or %q)", name, JoinMemberships, JoinSeats)
	}
}

// ParseUnmatchedPolicy parses an unmatched policy name. The empty
// string selects UnmatchedEmit.
func ParseUnmatchedPolicy(name string) (UnmatchedPolicy, error) {
	switch UnmatchedPolicy(name) {
	case "", UnmatchedEmit:
		return UnmatchedEmit, nil
	case UnmatchedDrop:
		return UnmatchedDrop, nil
	default:
		return "", fmt.Errorf("unknown unmatched policy %q (want %q or %q)", name, UnmatchedEmit, UnmatchedDrop)
	}
}

// Policy configures Build.
type Policy struct {
	Mode      JoinMode
	Unmatched UnmatchedPolicy
}

// ProfileLookup resolves a login to profile details. It never fails.
// *profile.Enricher implements it.
type ProfileLookup interface {
	Lookup(ctx context.Context, login string) profile.Details
}

// Input is the fetched data a report is built from. Teams, each
// team's memberships, and Seats are in the order GitHub returned them.
type Input struct {
	Enterprise string
	Teams      []github.Team

	// Memberships is keyed by team slug. A team absent from the map
	// contributes no rows.
	Memberships map[string][]github.Membership

	Seats []github.CopilotSeat
}

// BuildResult is the output of Build.
type BuildResult struct {
	Rows []Row

	// Matched counts rows backed by a seat; Unmatched counts members
	// without one (emitted or dropped per policy).
	Matched   int
	Unmatched int

	// NonUsers counts memberships skipped because they are not human
	// accounts or lack a login.
	NonUsers int
}

// Build joins the input into report rows. Row order follows Teams,
// then memberships (or seats) within a team, so identical input gives
// identical output. A user on several teams gets one row per team.
func Build(ctx context.Context, input Input, lookup ProfileLookup, policy Policy) BuildResult {
	if policy.Mode == "" {
		policy.Mode = JoinMemberships
	}
	if policy.Unmatched == "" {
		policy.Unmatched = UnmatchedEmit
	}

	builder := &builder{
		ctx:        ctx,
		enterprise: input.Enterprise,
		lookup:     lookup,
	}

	switch policy.Mode {
	case JoinSeats:
		builder.joinSeats(input)
	default:
		builder.joinMemberships(input, policy.Unmatched)
	}
	return builder.result
}

type builder struct {
	ctx        context.Context
	enterprise string
	lookup     ProfileLookup
	result     BuildResult
}

func (builder *builder) joinMemberships(input Input, unmatched UnmatchedPolicy) {
	seatsByLogin := indexSeats(input.Seats)

	for _, team := range input.Teams {
		for _, membership := range input.Memberships[team.Slug] {
			if !membership.IsUser() {
				builder.result.NonUsers++
				continue
			}

			seat, found := seatsByLogin[membership.Login]
			if !found {
				builder.result.Unmatched++
				if unmatched == UnmatchedDrop {
					continue
				}
				builder.emit(team.Name, membership.Login, nil)
				continue
			}
			builder.result.Matched++
			builder.emit(team.Name, membership.Login, seat)
		}
	}
}

func (builder *builder) joinSeats(input Input) {
	teamNames := make(map[string]bool, len(input.Teams))
	for _, team := range input.Teams {
		teamNames[team.Name] = true
	}

	// Group by team first so rows follow the team list order.
	seatsByTeam := make(map[string][]*github.CopilotSeat)
	for index := range input.Seats {
		seat := &input.Seats[index]
		teamName := seat.AssigningTeamName()
		if !teamNames[teamName] || seat.AssigneeLogin() == "" {
			continue
		}
		seatsByTeam[teamName] = append(seatsByTeam[teamName], seat)
	}

	emitted := make(map[string]bool, len(input.Teams))
	for _, team := range input.Teams {
		// Team names are not unique keys; emit each name's seats once.
		if emitted[team.Name] {
			continue
		}
		emitted[team.Name] = true
		for _, seat := range seatsByTeam[team.Name] {
			builder.result.Matched++
			builder.emit(team.Name, seat.AssigneeLogin(), seat)
		}
	}
}

// emit appends one row. seat is nil for an unmatched member.
func (builder *builder) emit(teamName, login string, seat *github.CopilotSeat) {
	details := builder.lookup.Lookup(builder.ctx, login)

	row := Row{
		Enterprise: builder.enterprise,
		TeamName:   orSentinel(teamName),
		Username:   login,
		Email:      orSentinel(details.Email),
		CreatedAt:  orSentinel(details.CreatedAt),
	}

	var activity EditorActivity
	if seat == nil {
		activity = noActivity
		row.LastActivityAt = Sentinel
		row.Status = StatusInactive
	} else {
		activity = DecodeEditor(seat.LastActivityEditor)
		row.LastActivityAt = derefOrSentinel(seat.LastActivityAt)
		row.Status = StatusInactive
		if hasActivity(seat.LastActivityEditor) {
			row.Status = StatusActive
		}
	}
	row.LastActiveEditor = activity.Editor
	row.EditorVersion = activity.EditorVersion
	row.Plugin = activity.Plugin
	row.PluginVersion = activity.PluginVersion

	builder.result.Rows = append(builder.result.Rows, row)
}

// indexSeats maps assignee login to seat. The first seat for a login
// wins.
func indexSeats(seats []github.CopilotSeat) map[string]*github.CopilotSeat {
	index := make(map[string]*github.CopilotSeat, len(seats))
	for position := range seats {
		login := seats[position].AssigneeLogin()
		if login == "" {
			continue
		}
		if _, exists := index[login]; !exists {
			index[login] = &seats[position]
		}
	}
	return index
}

// Logins returns the distinct logins Build will look up for input
// under policy, in first-seen order.
func Logins(input Input, policy Policy) []string {
	seen := make(map[string]bool)
	var logins []string
	add := func(login string) {
		if login != "" && !seen[login] {
			seen[login] = true
			logins = append(logins, login)
		}
	}

	if policy.Mode == JoinSeats {
		teamNames := make(map[string]bool, len(input.Teams))
		for _, team := range input.Teams {
			teamNames[team.Name] = true
		}
		for _, seat := range input.Seats {
			if teamNames[seat.AssigningTeamName()] {
				add(seat.AssigneeLogin())
			}
		}
		return logins
	}

	var seatsByLogin map[string]*github.CopilotSeat
	if policy.Unmatched == UnmatchedDrop {
		seatsByLogin = indexSeats(input.Seats)
	}
	for _, team := range input.Teams {
		for _, membership := range input.Memberships[team.Slug] {
			if !membership.IsUser() {
				continue
			}
			if seatsByLogin != nil && seatsByLogin[membership.Login] == nil {
				continue
			}
			add(membership.Login)
		}
	}
	return logins
}

func orSentinel(value string) string {
	if value == "" {
		return Sentinel
	}
	return value
}

func derefOrSentinel(value *string) string {
	if value == nil {
		return Sentinel
	}
	return orSentinel(*value)
}
