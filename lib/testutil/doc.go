// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the timeout safety valve
// pattern (select with a time.After fallback). Tests that drive time
// through clock.FakeClock use them to wait for the goroutine under
// test, so a missed Advance fails the test instead of hanging it.
// They are the only place in the test suite where real wall-clock
// timeouts appear.
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
