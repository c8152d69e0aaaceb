package catalog

import (
	"context"
	"sync"
	"time"
)

// stylistCacheTTL bounds how stale the cached stylist list may get.
const stylistCacheTTL = 10 * time.Minute

type cacheEntry struct {
	stylists  []Stylist
	fetchedAt time.Time
}

// StylistCache keeps the active stylists per category in memory so the
// hot conversation path avoids a database round trip per turn. Reads
// during a concurrent refresh return the stale copy rather than block.
type StylistCache struct {
	repo Repository
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewStylistCache creates a cache over the catalog repository.
func NewStylistCache(repo Repository) *StylistCache {
	if repo == nil {
		panic("catalog: repository required")
	}
	return &StylistCache{
		repo:    repo,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the active stylists for a category, refreshing from the
// repository when the entry is missing or older than the TTL. A failed
// refresh falls back to the stale entry when one exists.
func (c *StylistCache) Get(ctx context.Context, category string) ([]Stylist, error) {
	c.mu.Lock()
	entry, ok := c.entries[category]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.fetchedAt) < stylistCacheTTL {
		return entry.stylists, nil
	}

	fresh, err := c.repo.ListActiveStylists(ctx, category)
	if err != nil {
		if ok {
			return entry.stylists, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[category] = cacheEntry{stylists: fresh, fetchedAt: c.now()}
	c.mu.Unlock()
	return fresh, nil
}

// Invalidate drops every cached entry; used after catalog edits.
func (c *StylistCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
