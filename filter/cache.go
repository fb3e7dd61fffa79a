package filter

import (
	"container/list"
	"sync"
)

// lruCache keeps the most recently used compiled filters
type lruCache struct {
	size      int
	evictList *list.List
	items     map[string]*list.Element
	mu        sync.Mutex
}

type cacheEntry struct {
	expression string
	filter     *Filter
}

func newLRUCache(size int) *lruCache {
	return &lruCache{
		size:      size,
		evictList: list.New(),
		items:     make(map[string]*list.Element),
	}
}

// Get returns the cached filter and marks it most recently used
func (c *lruCache) Get(expression string) (*Filter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[expression]
	if !ok {
		return nil, false
	}
	c.evictList.MoveToFront(node)
	return node.Value.(*cacheEntry).filter, true
}

// Put stores f, evicting the least recently used entry when full
func (c *lruCache) Put(expression string, f *Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[expression]; ok {
		c.evictList.MoveToFront(node)
		node.Value.(*cacheEntry).filter = f
		return
	}

	c.items[expression] = c.evictList.PushFront(&cacheEntry{expression: expression, filter: f})
	if c.evictList.Len() > c.size {
		oldest := c.evictList.Back()
		c.evictList.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).expression)
	}
}

// Size returns the number of cached filters
func (c *lruCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}
