// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package report assembles the Copilot seat report: it joins enterprise
// teams, team memberships, Copilot seats, and user profiles into flat
// rows and writes them as CSV.
//
// The pipeline is split so each stage can be tested on its own:
//
//   - [DecodeEditor] turns a seat's last_activity_editor string into
//     its four positional fields.
//   - [Build] is the pure join over already-fetched data.
//   - [Generator] drives the fetches against a [Source], applying the
//     error policy (structural resources are fatal, one team's
//     memberships are skippable, profiles degrade to placeholders).
//   - [WriteFile] and [Write] serialize rows with the fixed [Columns]
//     header, optionally compressed, encrypted, and digested.
package report
