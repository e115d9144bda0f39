package repository

import (
	"strings"
	"sync"
	"time"

	eventdomain "github.com/KomaiX512/Accountmanager-sub004/internal/event/domain"
)

// accountCache is the read-through cache in front of the blob store.
// Entries are keyed per account and expire after a TTL; writes
// invalidate the owning account's entry, and an operator can flush a
// whole platform at once.
type accountCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	events    []*eventdomain.NormalizedEvent
	fetchedAt time.Time
}

func newAccountCache(ttl time.Duration) *accountCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &accountCache{
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

func (c *accountCache) get(platform, username string) ([]*eventdomain.NormalizedEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[cacheKey(platform, username)]
	if !ok || time.Since(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	return entry.events, true
}

func (c *accountCache) set(platform, username string, events []*eventdomain.NormalizedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(platform, username)] = &cacheEntry{
		events:    events,
		fetchedAt: time.Now(),
	}
}

func (c *accountCache) invalidate(platform, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(platform, username))
}

// invalidatePlatform drops every cached account on a platform.
func (c *accountCache) invalidatePlatform(platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := platform + "/"
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *accountCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

func cacheKey(platform, username string) string {
	return platform + "/" + username
}
