// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TeamSummary is the per-team seat activity tally.
type TeamSummary struct {
	Team     string
	Users    int
	Active   int
	Inactive int
}

// Summarize tallies rows by team in first-seen order.
func Summarize(rows []Row) []TeamSummary {
	index := make(map[string]int)
	var summaries []TeamSummary
	for _, row := range rows {
		position, ok := index[row.TeamName]
		if !ok {
			position = len(summaries)
			index[row.TeamName] = position
			summaries = append(summaries, TeamSummary{Team: row.TeamName})
		}
		summary := &summaries[position]
		summary.Users++
		if row.Active() {
			summary.Active++
		} else {
			summary.Inactive++
		}
	}
	return summaries
}

var (
	summaryHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	summaryCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	summaryNumberStyle = summaryCellStyle.Align(lipgloss.Right)
	summaryTotalStyle  = summaryNumberStyle.Bold(true)
	summaryBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// RenderSummary renders per-team active and inactive counts as a
// bordered table with a totals row.
func RenderSummary(rows []Row) string {
	summaries := Summarize(rows)

	var total TeamSummary
	records := make([][]string, 0, len(summaries)+1)
	for _, summary := range summaries {
		records = append(records, summaryRecord(summary.Team, summary))
		total.Users += summary.Users
		total.Active += summary.Active
		total.Inactive += summary.Inactive
	}
	records = append(records, summaryRecord("Total", total))
	totalRow := len(records) - 1

	rendered := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(summaryBorderStyle).
		Headers("Team", "Users", "Active", "Inactive").
		Rows(records...).
		StyleFunc(func(row, column int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return summaryHeaderStyle
			case column == 0 && row == totalRow:
				return summaryCellStyle.Bold(true)
			case column == 0:
				return summaryCellStyle
			case row == totalRow:
				return summaryTotalStyle
			default:
				return summaryNumberStyle
			}
		})
	return rendered.Render()
}

func summaryRecord(team string, summary TeamSummary) []string {
	return []string{
		team,
		strconv.Itoa(summary.Users),
		strconv.Itoa(summary.Active),
		strconv.Itoa(summary.Inactive),
	}
}
