package resolver

import (
	"container/list"
	"sync"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

// RulesCache memoizes rules-corpus lookups keyed by normalized entity name.
// A non-positive capacity keeps every entry for the life of the process;
// otherwise the least recently used entry is evicted.
type RulesCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key    string
	result models.EntitySearchResult
	found  bool
}

// NewRulesCache creates a new cache with the given capacity.
func NewRulesCache(capacity int) *RulesCache {
	return &RulesCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached lookup for key. found reports whether the rules corpus
// had a hit; ok reports whether key was cached at all.
func (c *RulesCache) Get(key string) (result models.EntitySearchResult, found, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return models.EntitySearchResult{}, false, false
	}
	c.lru.MoveToFront(elem)
	entry := elem.Value.(*cacheEntry)
	return cloneResult(entry.result), entry.found, true
}

// Set stores the lookup for key, evicting the oldest entry if over capacity.
// Concurrent Sets for the same key are tolerated; the last one wins.
func (c *RulesCache) Set(key string, result models.EntitySearchResult, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.result = cloneResult(result)
		entry.found = found
		return
	}

	entry := &cacheEntry{key: key, result: cloneResult(result), found: found}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.capacity > 0 && c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached names.
func (c *RulesCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Reset drops every entry.
func (c *RulesCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lru.Init()
}

func cloneResult(r models.EntitySearchResult) models.EntitySearchResult {
	sections := make([]string, len(r.FoundInSections))
	copy(sections, r.FoundInSections)
	r.FoundInSections = sections
	return r
}
