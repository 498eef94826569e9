// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile resolves GitHub logins to the profile fields carried
// in a seat report: public email and account creation time.
//
// Enrichment never fails a report. A user whose email is private gets
// the sentinel "N/A" in place of the email; a user whose lookup fails
// for any reason gets the sentinel in every field and a warning in the
// log. Lookups are memoized for the lifetime of an Enricher, so a user
// who belongs to several teams costs one request, and concurrent
// lookups of the same login collapse into a single request.
//
// An optional Cache persists successful lookups across runs in a CBOR
// file, bounded by a TTL.
package profile
