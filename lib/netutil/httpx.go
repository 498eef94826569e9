// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response reading for the
// GitHub client.
//
// ReadResponse bounds every body read at MaxResponseSize so that a
// misbehaving upstream cannot exhaust memory. Snippet shortens a body
// for inclusion in error messages and log lines.
package netutil

import (
	"io"
	"unicode/utf8"
)

// MaxResponseSize is the bound on JSON API response body reads: 64 MB.
// A page of 100 Copilot seats is tens of kilobytes.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads an API response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// Snippet returns at most limit bytes of body as a string, cut on a
// rune boundary, with "..." appended when truncated.
func Snippet(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
