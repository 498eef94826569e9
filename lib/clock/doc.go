// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that rate-limit
// waits, retry backoff, and cache expiry can be tested without sleeping.
//
// Production code holds a Clock and calls its methods instead of
// time.Now or time.After. In production, Real() provides
// the standard library behavior. In tests, Fake() provides a clock that
// advances only when Advance is called:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go client.Do(ctx) // blocks on a rate-limit wait
//	fakeClock.WaitForTimers(1)
//	fakeClock.Advance(6 * time.Second)
//
// WaitForTimers closes the race between a goroutine registering its
// wait and the test advancing time.
package clock
