// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package github provides a typed Go client for the slice of the GitHub
// Enterprise REST API needed to report on Copilot seats: enterprise
// teams, enterprise team memberships, Copilot billing seats, and user
// profiles.
//
// The client authenticates with a bearer token (personal access token
// or fine-grained token with enterprise scope). It handles pagination
// (RFC 5988 Link headers), rate limiting (X-RateLimit-* and Retry-After
// headers with blocking until the window resets), bounded retry of
// transient failures with exponential backoff, and structured error
// mapping into *APIError.
//
// A single Client is safe for concurrent use. The rate-limit state and
// the optional token bucket are shared by every goroutine using it, so
// a worker pool built on one Client never exceeds the quota GitHub
// advertises.
//
// All requests are made over HTTPS. The client refuses non-HTTPS base
// URLs.
package github
