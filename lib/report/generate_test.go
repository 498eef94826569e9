// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/seatreport/lib/github"
	"github.com/bureau-foundation/seatreport/lib/profile"
)

// fakeSource serves fixed collections. Teams whose slug is in
// failingTeams return an error from Memberships.
type fakeSource struct {
	teams        []github.Team
	teamsErr     error
	memberships  map[string][]github.Membership
	failingTeams map[string]error
	seats        []github.CopilotSeat
	seatsErr     error

	mu              sync.Mutex
	membershipCalls []string
}

func (source *fakeSource) Teams(context.Context, string) ([]github.Team, error) {
	return source.teams, source.teamsErr
}

func (source *fakeSource) Memberships(_ context.Context, _ string, teamSlug string) ([]github.Membership, error) {
	source.mu.Lock()
	source.membershipCalls = append(source.membershipCalls, teamSlug)
	source.mu.Unlock()
	if err, ok := source.failingTeams[teamSlug]; ok {
		return nil, err
	}
	return source.memberships[teamSlug], nil
}

func (source *fakeSource) Seats(context.Context, string) ([]github.CopilotSeat, error) {
	return source.seats, source.seatsErr
}

// fakeEnricher records Prefetch calls and serves from a map.
type fakeEnricher struct {
	mapLookup
	prefetched []string
}

func (enricher *fakeEnricher) Prefetch(_ context.Context, logins []string, _ int) error {
	enricher.prefetched = append(enricher.prefetched, logins...)
	return nil
}

func newTestGenerator(t *testing.T, source Source, enricher Enricher, policy Policy, workers int) *Generator {
	t.Helper()
	generator, err := NewGenerator(GeneratorConfig{
		Enterprise: "acme",
		Source:     source,
		Enricher:   enricher,
		Policy:     policy,
		Workers:    workers,
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return generator
}

func TestNewGenerator_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		config GeneratorConfig
	}{
		{"no enterprise", GeneratorConfig{Source: &fakeSource{}, Enricher: &fakeEnricher{}}},
		{"no source", GeneratorConfig{Enterprise: "acme", Enricher: &fakeEnricher{}}},
		{"no enricher", GeneratorConfig{Enterprise: "acme", Source: &fakeSource{}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewGenerator(test.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGenerator_TeamsFailureIsFatal(t *testing.T) {
	upstream := &github.APIError{StatusCode: 500, Message: "boom"}
	source := &fakeSource{teamsErr: upstream}
	generator := newTestGenerator(t, source, &fakeEnricher{}, Policy{}, 2)

	_, err := generator.Run(context.Background())
	var apiError *github.APIError
	if !errors.As(err, &apiError) || apiError.StatusCode != 500 {
		t.Fatalf("expected wrapped APIError 500, got %v", err)
	}
	if len(source.membershipCalls) != 0 {
		t.Errorf("memberships fetched after teams failed: %v", source.membershipCalls)
	}
}

func TestGenerator_SeatsFailureIsFatal(t *testing.T) {
	source := &fakeSource{
		teams:    []github.Team{engTeam},
		seatsErr: &github.APIError{StatusCode: 403, Message: "Must have admin rights"},
	}
	generator := newTestGenerator(t, source, &fakeEnricher{}, Policy{}, 2)

	if _, err := generator.Run(context.Background()); err == nil {
		t.Fatal("expected error when seats cannot be listed")
	}
}

func TestGenerator_FailedTeamIsSkipped(t *testing.T) {
	teams := []github.Team{
		{ID: 1, Name: "Eng", Slug: "eng"},
		{ID: 2, Name: "Ops", Slug: "ops"},
		{ID: 3, Name: "Data", Slug: "data"},
	}
	source := &fakeSource{
		teams: teams,
		memberships: map[string][]github.Membership{
			"eng":  {user("alice")},
			"data": {user("dana")},
		},
		failingTeams: map[string]error{"ops": &github.APIError{StatusCode: 404, Message: "Not Found"}},
	}
	enricher := &fakeEnricher{mapLookup: aliceLookup()}
	generator := newTestGenerator(t, source, enricher, Policy{}, 3)

	result, err := generator.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(result.SkippedTeams, []string{"ops"}) {
		t.Errorf("SkippedTeams = %v, want [ops]", result.SkippedTeams)
	}
	var got []string
	for _, row := range result.Rows {
		got = append(got, row.TeamName+"/"+row.Username)
	}
	if !slices.Equal(got, []string{"Eng/alice", "Data/dana"}) {
		t.Errorf("rows = %v", got)
	}
	if !slices.Equal(enricher.prefetched, []string{"alice", "dana"}) {
		t.Errorf("prefetched = %v", enricher.prefetched)
	}
}

func TestGenerator_ContextErrorInMembershipsIsFatal(t *testing.T) {
	source := &fakeSource{
		teams:        []github.Team{engTeam},
		failingTeams: map[string]error{"eng": context.DeadlineExceeded},
	}
	generator := newTestGenerator(t, source, &fakeEnricher{}, Policy{}, 1)

	if _, err := generator.Run(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestGenerator_OrderIndependentOfWorkers(t *testing.T) {
	var teams []github.Team
	memberships := make(map[string][]github.Membership)
	for index := range 20 {
		slug := fmt.Sprintf("team-%02d", index)
		teams = append(teams, github.Team{ID: int64(index), Name: strings.ToUpper(slug), Slug: slug})
		memberships[slug] = []github.Membership{user(slug + "-a"), user(slug + "-b")}
	}
	source := &fakeSource{teams: teams, memberships: memberships}

	sequential, err := newTestGenerator(t, source, &fakeEnricher{}, Policy{}, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run (1 worker): %v", err)
	}
	parallel, err := newTestGenerator(t, source, &fakeEnricher{}, Policy{}, 8).Run(context.Background())
	if err != nil {
		t.Fatalf("Run (8 workers): %v", err)
	}
	if !slices.Equal(sequential.Rows, parallel.Rows) {
		t.Error("row order differs between 1 and 8 workers")
	}
	if len(parallel.Rows) != 40 {
		t.Errorf("got %d rows, want 40", len(parallel.Rows))
	}
}

func TestGenerator_SeatsModeSkipsMemberships(t *testing.T) {
	source := &fakeSource{
		teams: []github.Team{engTeam},
		seats: []github.CopilotSeat{seat("alice", "Eng", "eng", nil, stringPointer("vscode"))},
	}
	result, err := newTestGenerator(t, source, &fakeEnricher{mapLookup: aliceLookup()}, Policy{Mode: JoinSeats}, 2).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(source.membershipCalls) != 0 {
		t.Errorf("memberships fetched in seats mode: %v", source.membershipCalls)
	}
	if len(result.Rows) != 1 || result.Rows[0].Status != StatusActive {
		t.Errorf("rows = %+v", result.Rows)
	}
}

// enterpriseServer serves the four endpoints the report uses from
// fixed JSON fixtures. Seats are split across two pages.
func enterpriseServer(t *testing.T, seats []map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		switch request.URL.Path {
		case "/enterprises/acme/teams":
			json.NewEncoder(writer).Encode([]map[string]any{{"id": 1, "name": "Eng", "slug": "eng"}})
		case "/enterprises/acme/teams/eng/memberships":
			json.NewEncoder(writer).Encode([]map[string]any{
				{"login": "alice", "id": 10, "type": "User"},
				{"login": "ci-bot", "id": 11, "type": "Bot"},
			})
		case "/enterprises/acme/copilot/billing/seats":
			if request.URL.Query().Get("page") == "2" {
				json.NewEncoder(writer).Encode(map[string]any{"total_seats": len(seats), "seats": []any{}})
				return
			}
			next := "https://" + request.Host + request.URL.Path + "?page=2"
			writer.Header().Set("Link", `<`+next+`>; rel="next"`)
			json.NewEncoder(writer).Encode(map[string]any{"total_seats": len(seats), "seats": seats})
		case "/users/alice":
			json.NewEncoder(writer).Encode(map[string]any{
				"login": "alice", "email": "a@x.com", "created_at": "2020-01-01",
			})
		default:
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(map[string]string{"message": "Not Found"})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func runEndToEnd(t *testing.T, server *httptest.Server) *Result {
	t.Helper()
	client, err := github.NewClient(github.Config{
		BaseURL:              server.URL,
		Token:                "test-token",
		HTTPClient:           server.Client(),
		RetryInitialInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	enricher := profile.New(profile.Config{Fetcher: client})
	generator, err := NewGenerator(GeneratorConfig{
		Enterprise: "acme",
		Source:     NewGitHubSource(client),
		Enricher:   enricher,
		Workers:    4,
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	result, err := generator.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func TestEndToEnd_ActiveSeat(t *testing.T) {
	server := enterpriseServer(t, []map[string]any{{
		"assignee":             map[string]any{"login": "alice", "type": "User"},
		"assigning_team":       map[string]any{"name": "Eng", "slug": "eng"},
		"last_activity_at":     "2024-01-01T00:00:00Z",
		"last_activity_editor": "vscode/1.2/copilot/1.0",
	}})

	result := runEndToEnd(t, server)
	if len(result.Rows) != 1 {
		t.Fatalf("got %d rows, want 1: %+v", len(result.Rows), result.Rows)
	}
	want := Row{
		Enterprise:       "acme",
		TeamName:         "Eng",
		Username:         "alice",
		Email:            "a@x.com",
		CreatedAt:        "2020-01-01",
		LastActivityAt:   "2024-01-01T00:00:00Z",
		LastActiveEditor: "vscode",
		EditorVersion:    "1.2",
		Plugin:           "copilot",
		PluginVersion:    "1.0",
		Status:           StatusActive,
	}
	if result.Rows[0] != want {
		t.Errorf("row = %+v\nwant  %+v", result.Rows[0], want)
	}
	if result.Seats != 1 || result.Teams != 1 || result.NonUsers != 1 {
		t.Errorf("Seats/Teams/NonUsers = %d/%d/%d, want 1/1/1", result.Seats, result.Teams, result.NonUsers)
	}
}

func TestEndToEnd_NoSeats(t *testing.T) {
	server := enterpriseServer(t, nil)

	result := runEndToEnd(t, server)
	if len(result.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(result.Rows))
	}
	row := result.Rows[0]
	if row.Username != "alice" || row.Email != "a@x.com" || row.Status != StatusInactive {
		t.Errorf("row = %+v", row)
	}
	for _, value := range []string{row.LastActivityAt, row.LastActiveEditor, row.EditorVersion, row.Plugin, row.PluginVersion} {
		if value != Sentinel {
			t.Errorf("Copilot field = %q, want %q", value, Sentinel)
		}
	}
}

func TestEndToEnd_Idempotent(t *testing.T) {
	server := enterpriseServer(t, []map[string]any{{
		"assignee":             map[string]any{"login": "alice"},
		"assigning_team":       map[string]any{"name": "Eng", "slug": "eng"},
		"last_activity_at":     "2024-01-01T00:00:00Z",
		"last_activity_editor": "vscode/1.2/copilot/1.0",
	}})
	directory := t.TempDir()

	var outputs [][]byte
	var digests []string
	for run := range 2 {
		result := runEndToEnd(t, server)
		path := filepath.Join(directory, fmt.Sprintf("run-%d.csv", run))
		written, err := WriteFile(path, result.Rows, WriteOptions{})
		if err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		data, err := os.ReadFile(written.Path)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
		digests = append(digests, written.Digest)
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Errorf("runs differ:\n%s\n---\n%s", outputs[0], outputs[1])
	}
	if digests[0] != digests[1] {
		t.Errorf("digests differ: %s vs %s", digests[0], digests[1])
	}
}
