// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/seatreport/lib/clock"
	"github.com/bureau-foundation/seatreport/lib/codec"
)

// cacheFormatVersion is bumped when the on-disk layout changes. A file
// with a different version is treated as empty.
const cacheFormatVersion = 1

// DefaultCacheTTL is how long a cached profile stays valid.
const DefaultCacheTTL = 24 * time.Hour

type cacheFile struct {
	Version int                   `cbor:"version"`
	Entries map[string]cacheEntry `cbor:"entries"`
}

type cacheEntry struct {
	Email     string `cbor:"email"`
	CreatedAt string `cbor:"created_at"`
	FetchedAt int64  `cbor:"fetched_at"` // Unix seconds
}

// Cache is a CBOR file of profile Details keyed by login. Entries older
// than the TTL are ignored on read and dropped on Save. Safe for
// concurrent use.
type Cache struct {
	path  string
	ttl   time.Duration
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
	dirty   bool
}

// OpenCache loads the cache at path. A missing file yields an empty
// cache. A ttl <= 0 selects DefaultCacheTTL.
func OpenCache(path string, ttl time.Duration, clk clock.Clock) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	cache := &Cache{
		path:    path,
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: reading cache %s: %w", path, err)
	}

	var file cacheFile
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("profile: decoding cache %s: %w", path, err)
	}
	if file.Version == cacheFormatVersion && file.Entries != nil {
		cache.entries = file.Entries
	}
	return cache, nil
}

// Get returns the cached Details for login if present and fresh.
func (cache *Cache) Get(login string) (Details, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	entry, ok := cache.entries[login]
	if !ok || cache.expired(entry) {
		return Details{}, false
	}
	return Details{Email: entry.Email, CreatedAt: entry.CreatedAt}, true
}

// Put records Details for login, stamped with the current time.
func (cache *Cache) Put(login string, details Details) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.entries[login] = cacheEntry{
		Email:     details.Email,
		CreatedAt: details.CreatedAt,
		FetchedAt: cache.clock.Now().Unix(),
	}
	cache.dirty = true
}

// Len returns the number of fresh entries.
func (cache *Cache) Len() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	count := 0
	for _, entry := range cache.entries {
		if !cache.expired(entry) {
			count++
		}
	}
	return count
}

// Save writes the cache back to disk if anything changed, dropping
// expired entries. The file is replaced atomically.
func (cache *Cache) Save() error {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if !cache.dirty {
		return nil
	}

	fresh := make(map[string]cacheEntry, len(cache.entries))
	for login, entry := range cache.entries {
		if !cache.expired(entry) {
			fresh[login] = entry
		}
	}

	data, err := codec.Marshal(cacheFile{Version: cacheFormatVersion, Entries: fresh})
	if err != nil {
		return fmt.Errorf("profile: encoding cache: %w", err)
	}

	directory := filepath.Dir(cache.path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("profile: creating cache directory: %w", err)
	}
	temporary, err := os.CreateTemp(directory, ".profile-cache-*")
	if err != nil {
		return fmt.Errorf("profile: creating cache file: %w", err)
	}
	defer os.Remove(temporary.Name())

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("profile: writing cache: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("profile: writing cache: %w", err)
	}
	if err := os.Rename(temporary.Name(), cache.path); err != nil {
		return fmt.Errorf("profile: replacing cache: %w", err)
	}

	cache.entries = fresh
	cache.dirty = false
	return nil
}

// expired must be called with cache.mu held.
func (cache *Cache) expired(entry cacheEntry) bool {
	return cache.clock.Now().Sub(time.Unix(entry.FetchedAt, 0)) > cache.ttl
}
