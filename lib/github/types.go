// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

// Account types reported in the "type" field of user references.
const (
	AccountUser         = "User"
	AccountBot          = "Bot"
	AccountOrganization = "Organization"
)

// User is a GitHub account reference as embedded in seats.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Type  string `json:"type"` // "User", "Bot", or "Organization"
}

// Team is an enterprise team. Within one report run a Team is
// immutable; ID and Slug both identify it.
type Team struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// Membership is one account's association to an enterprise team.
type Membership struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Type  string `json:"type"`
}

// IsUser reports whether the membership belongs to a human account
// with a usable login.
func (membership Membership) IsUser() bool {
	return membership.Type == AccountUser && membership.Login != ""
}

// CopilotSeat is one Copilot license assignment. Timestamps are kept
// as the strings GitHub sent so reports reproduce them byte for byte.
type CopilotSeat struct {
	Assignee                *User   `json:"assignee"`
	AssigningTeam           *Team   `json:"assigning_team"`
	PlanType                string  `json:"plan_type,omitempty"`
	CreatedAt               string  `json:"created_at,omitempty"`
	UpdatedAt               string  `json:"updated_at,omitempty"`
	PendingCancellationDate *string `json:"pending_cancellation_date"`
	LastActivityAt          *string `json:"last_activity_at"`

	// LastActivityEditor is slash-delimited:
	// editor/editor_version/plugin/plugin_version, any suffix absent.
	LastActivityEditor *string `json:"last_activity_editor"`
}

// AssigneeLogin returns the seat holder's login, or "" when the seat
// has no assignee.
func (seat CopilotSeat) AssigneeLogin() string {
	if seat.Assignee == nil {
		return ""
	}
	return seat.Assignee.Login
}

// AssigningTeamName returns the name of the team that granted the
// seat, or "" for seats assigned directly.
func (seat CopilotSeat) AssigningTeamName() string {
	if seat.AssigningTeam == nil {
		return ""
	}
	return seat.AssigningTeam.Name
}

// UserProfile is the public profile returned by GET /users/{username}.
// Email is nil unless the user made it public.
type UserProfile struct {
	Login     string  `json:"login"`
	ID        int64   `json:"id"`
	Type      string  `json:"type"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	CreatedAt *string `json:"created_at"`
}
