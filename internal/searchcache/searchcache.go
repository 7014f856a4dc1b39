// Package searchcache bridges inline search results to later selection events.
//
// Result ids are limited in length by the transport, so entries are keyed by
// a 16 hex char SHA-1 prefix of the track URL. Colliding prefixes are dropped
// at population time, first occurrence wins.
package searchcache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"
	"time"

	"trackbot/internal/catalog"
)

// KeyLength is the number of hex characters kept from the digest.
const KeyLength = 16

// Key derives the compact result id for a URL.
func Key(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:KeyLength]
}

// Entry pairs a compact key with the full track it stands for.
type Entry struct {
	Key   string
	Track catalog.Track
}

// Cache is a concurrent map from key to track, cleared wholesale by Sweep.
type Cache struct {
	entries sync.Map
}

func New() *Cache {
	return &Cache{}
}

// Populate inserts up to limit tracks, skipping any whose key was already
// seen in this batch, and returns the surviving entries in input order.
// A limit <= 0 means no limit.
func (c *Cache) Populate(tracks []catalog.Track, limit int) []Entry {
	seen := make(map[string]struct{}, len(tracks))
	var entries []Entry
	for _, t := range tracks {
		if limit > 0 && len(entries) >= limit {
			break
		}
		key := Key(t.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		c.entries.Store(key, t)
		entries = append(entries, Entry{Key: key, Track: t})
	}
	return entries
}

// Lookup returns the track for key without removing it.
func (c *Cache) Lookup(key string) (catalog.Track, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return catalog.Track{}, false
	}
	return v.(catalog.Track), true
}

// Sweep drops every entry.
func (c *Cache) Sweep() {
	c.entries.Clear()
}

// Len counts entries. It walks the whole map and is meant for logs and tests.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartSweeper clears the cache every interval until ctx is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}
