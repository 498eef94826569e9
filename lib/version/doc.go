// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for seatreport.
//
// Three package-level variables are injected at build time via
// -ldflags -X: [GitCommit], [GitDirty], and [BuildTime]. [Version] is
// set manually for releases. Uninjected builds report "unknown" and
// "0.1.0-dev".
//
// [Info] formats the --version line, [Full] adds the Go toolchain and
// platform, and [UserAgent] is sent with every GitHub request.
package version
