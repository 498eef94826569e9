// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// PageIterator lazily fetches pages of results from a paginated GitHub
// API endpoint. Each call to Next fetches the next page and returns the
// items. The walk ends when a response carries no rel="next" link.
//
// The iterator is not safe for concurrent use.
type PageIterator[T any] struct {
	client  *Client
	nextURL string
	decode  func([]byte) ([]T, error)
	pages   int
}

// list creates a PageIterator for an endpoint whose body is a JSON array.
func list[T any](client *Client, path string) *PageIterator[T] {
	return &PageIterator[T]{
		client:  client,
		nextURL: client.baseURL + path,
		decode:  decodeArray[T],
	}
}

// listField creates a PageIterator for an endpoint whose body is a JSON
// object carrying the items in one field, such as the "seats" field of
// the Copilot billing endpoint.
func listField[T any](client *Client, path, field string) *PageIterator[T] {
	return &PageIterator[T]{
		client:  client,
		nextURL: client.baseURL + path,
		decode: func(body []byte) ([]T, error) {
			var envelope map[string]json.RawMessage
			if err := json.Unmarshal(body, &envelope); err != nil {
				return nil, err
			}
			raw, ok := envelope[field]
			if !ok {
				return nil, nil
			}
			return decodeArray[T](raw)
		},
	}
}

func decodeArray[T any](body []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// More reports whether another page remains to be fetched.
func (iterator *PageIterator[T]) More() bool {
	return iterator.nextURL != ""
}

// Pages returns the number of pages fetched so far.
func (iterator *PageIterator[T]) Pages() int {
	return iterator.pages
}

// Next fetches the next page of results. Returns the items from that page.
// Returns nil, nil when no more pages are available. Each page fetch is
// subject to rate limiting and retry, same as any other API call. A
// failed page leaves the iterator positioned on that page.
func (iterator *PageIterator[T]) Next(ctx context.Context) ([]T, error) {
	if !iterator.More() {
		return nil, nil
	}

	url := iterator.nextURL
	body, header, err := iterator.client.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	items, err := iterator.decode(body)
	if err != nil {
		return nil, fmt.Errorf("github: decoding page %s: %w", url, err)
	}

	iterator.pages++
	iterator.nextURL = parseLinkNext(header.Get("Link"))
	iterator.client.logger.Debug("fetched page",
		"url", url,
		"page", iterator.pages,
		"items", len(items),
		"more", iterator.More(),
	)

	return items, nil
}

// Collect fetches all remaining pages and returns all items concatenated.
// On error it returns the items gathered before the failing page along
// with the error; callers decide whether a partial result is usable.
func (iterator *PageIterator[T]) Collect(ctx context.Context) ([]T, error) {
	var all []T
	for iterator.More() {
		items, err := iterator.Next(ctx)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// parseLinkNext extracts the URL with rel="next" from an RFC 5988 Link
// header. Returns empty string if no next link is present.
//
// Format: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkNext(header string) string {
	if header == "" {
		return ""
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)

		// Each part is: <url>; rel="type"
		segments := strings.SplitN(part, ";", 2)
		if len(segments) != 2 {
			continue
		}

		urlPart := strings.TrimSpace(segments[0])
		relPart := strings.TrimSpace(segments[1])

		if !strings.Contains(relPart, `rel="next"`) {
			continue
		}

		// Extract URL from angle brackets.
		if strings.HasPrefix(urlPart, "<") && strings.HasSuffix(urlPart, ">") {
			return urlPart[1 : len(urlPart)-1]
		}
	}

	return ""
}
