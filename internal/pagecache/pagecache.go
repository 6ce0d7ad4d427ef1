// Package pagecache provides a bounded LRU cache of file pages shared by the
// paged stores of a session.
package pagecache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// DefaultBudget is the default byte budget of a cache (64 MiB).
const DefaultBudget = 64 << 20

// Key identifies one page of one store.
type Key struct {
	Source uint64
	Page   int64
}

// Stats reports cache activity.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type entry struct {
	key  Key
	page []byte
}

// Cache is an LRU page cache bounded by a byte budget. It is safe for
// concurrent use.
type Cache struct {
	budget int64
	next   atomic.Uint64

	mu    sync.Mutex
	size  int64
	items map[Key]*list.Element
	lru   *list.List
	stats Stats
}

// New creates a cache holding at most budget bytes of pages. A budget of zero
// or less disables caching: every Get misses and Put is a no-op.
func New(budget int64) *Cache {
	return &Cache{
		budget: budget,
		items:  make(map[Key]*list.Element),
		lru:    list.New(),
	}
}

// Budget returns the configured byte budget.
func (c *Cache) Budget() int64 {
	return c.budget
}

// NewSource allocates an id for a store that will put pages in the cache.
func (c *Cache) NewSource() uint64 {
	return c.next.Add(1)
}

// Get returns the cached page for key. The returned slice must not be
// modified.
func (c *Cache) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		c.stats.Hits++
		return elem.Value.(*entry).page, true
	}
	c.stats.Misses++
	return nil, false
}

// Put stores page under key, evicting least recently used pages until it
// fits. Pages larger than the whole budget are not cached. The cache takes
// ownership of page.
func (c *Cache) Put(key Key, page []byte) {
	size := int64(len(page))
	if c.budget <= 0 || size > c.budget {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		c.size += size - int64(len(e.page))
		e.page = page
		c.lru.MoveToFront(elem)
		c.evictLocked()
		return
	}

	for c.size+size > c.budget {
		if !c.removeOldestLocked() {
			break
		}
	}

	elem := c.lru.PushFront(&entry{key: key, page: page})
	c.items[key] = elem
	c.size += size
}

// DropSource removes every page belonging to source.
func (c *Cache) DropSource(source uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.items {
		if key.Source != source {
			continue
		}
		c.size -= int64(len(elem.Value.(*entry).page))
		c.lru.Remove(elem)
		delete(c.items, key)
	}
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Size returns the number of cached bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) evictLocked() {
	for c.size > c.budget {
		if !c.removeOldestLocked() {
			return
		}
	}
}

func (c *Cache) removeOldestLocked() bool {
	oldest := c.lru.Back()
	if oldest == nil {
		return false
	}
	e := oldest.Value.(*entry)
	c.lru.Remove(oldest)
	delete(c.items, e.key)
	c.size -= int64(len(e.page))
	c.stats.Evictions++
	return true
}
