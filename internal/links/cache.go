package links

import (
	"sync"

	"boardcore/pkg/domain"
)

// Cache memoizes linked views per issue id.
type Cache struct {
	mu    sync.Mutex
	views map[string][]domain.LinkedIssue
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{views: make(map[string][]domain.LinkedIssue)}
}

// Get returns the cached views for id, building and storing them on a miss.
func (c *Cache) Get(id string, build func() []domain.LinkedIssue) []domain.LinkedIssue {
	c.mu.Lock()
	defer c.mu.Unlock()
	if views, ok := c.views[id]; ok {
		return views
	}
	views := build()
	c.views[id] = views
	return views
}

// Cached reports whether id currently has a cached view.
func (c *Cache) Cached(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.views[id]
	return ok
}

// Invalidate drops the cached views for the given ids.
func (c *Cache) Invalidate(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.views, id)
	}
}

// Reset drops every cached view.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.views = make(map[string][]domain.LinkedIssue)
	c.mu.Unlock()
}
