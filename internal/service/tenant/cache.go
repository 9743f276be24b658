package tenant

import "sync"

// Cache is the process-wide set of tenant ids whose private tables were
// verified or created during this process's lifetime. Membership implies
// the tables exist (best effort: out-of-band drops are not observed).
// It is created at process start and injected into the resolver.
type Cache struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewCache() *Cache {
	return &Cache{ids: make(map[int64]struct{})}
}

func (c *Cache) Has(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	return ok
}

func (c *Cache) Add(id int64) {
	c.mu.Lock()
	c.ids[id] = struct{}{}
	c.mu.Unlock()
}

// Evict removes the id; the delete-account path calls this last so a
// retry after partial failure re-provisions instead of skipping.
func (c *Cache) Evict(id int64) {
	c.mu.Lock()
	delete(c.ids, id)
	c.mu.Unlock()
}

// Reset clears the cache. Test hook.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.ids = make(map[int64]struct{})
	c.mu.Unlock()
}
