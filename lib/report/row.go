// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import "github.com/bureau-foundation/seatreport/lib/profile"

// Sentinel is the placeholder for any field that is absent, private,
// or could not be resolved.
const Sentinel = profile.Sentinel

// Status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Columns is the CSV header, in output order.
var Columns = []string{
	"Enterprise",
	"Team Name",
	"Username",
	"Email",
	"Created At",
	"Last Activity At",
	"Last Active Editor",
	"Editor Version",
	"Plugin",
	"Plugin Version",
	"Status",
}

// Row is one (team, user) line of the report. Every field is
// non-empty; unresolved values hold Sentinel.
type Row struct {
	Enterprise       string
	TeamName         string
	Username         string
	Email            string
	CreatedAt        string
	LastActivityAt   string
	LastActiveEditor string
	EditorVersion    string
	Plugin           string
	PluginVersion    string
	Status           string
}

// Record returns the row's fields in Columns order.
func (row Row) Record() []string {
	return []string{
		row.Enterprise,
		row.TeamName,
		row.Username,
		row.Email,
		row.CreatedAt,
		row.LastActivityAt,
		row.LastActiveEditor,
		row.EditorVersion,
		row.Plugin,
		row.PluginVersion,
		row.Status,
	}
}

// Active reports whether the row's user has recorded editor activity.
func (row Row) Active() bool {
	return row.Status == StatusActive
}
