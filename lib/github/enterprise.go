// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/url"
)

// ListEnterpriseTeams returns an iterator over the enterprise's teams.
func (client *Client) ListEnterpriseTeams(enterprise string) *PageIterator[Team] {
	path := fmt.Sprintf("/enterprises/%s/teams?per_page=%d",
		url.PathEscape(enterprise), client.perPage)
	return list[Team](client, path)
}

// ListEnterpriseTeamMemberships returns an iterator over the accounts
// belonging to one enterprise team.
func (client *Client) ListEnterpriseTeamMemberships(enterprise, teamSlug string) *PageIterator[Membership] {
	path := fmt.Sprintf("/enterprises/%s/teams/%s/memberships?per_page=%d",
		url.PathEscape(enterprise), url.PathEscape(teamSlug), client.perPage)
	return list[Membership](client, path)
}

// ListCopilotSeats returns an iterator over every Copilot seat billed
// to the enterprise. The endpoint wraps each page in
// {"total_seats": N, "seats": [...]}.
func (client *Client) ListCopilotSeats(enterprise string) *PageIterator[CopilotSeat] {
	path := fmt.Sprintf("/enterprises/%s/copilot/billing/seats?per_page=%d",
		url.PathEscape(enterprise), client.perPage)
	return listField[CopilotSeat](client, path, "seats")
}

// GetUser fetches the public profile of a user by login.
func (client *Client) GetUser(ctx context.Context, login string) (*UserProfile, error) {
	var profile UserProfile
	if err := client.get(ctx, "/users/"+url.PathEscape(login), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
