// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error handler for the
// seatreport binary. It writes to stderr directly because it runs
// when the structured logger may not exist yet: configuration errors
// are reported before logging is set up.
package process
