package memory

import (
	"container/list"
	"fmt"
	"sync"
)

// patternCacheCapacity bounds the number of distinct (agent_id, min_confidence)
// entries held at once (spec.md §4.1: "a bounded LRU pattern cache").
const patternCacheCapacity = 256

type patternCacheKey struct {
	agentID       string
	minConfidence float64
}

type patternCacheEntry struct {
	key     patternCacheKey
	results []*Pattern
}

// patternCache is a bounded LRU keyed by (agent_id, min_confidence), serving
// queryPatternsByAgent at O(1). A store/delete on any pattern invalidates
// every cached entry for that pattern's agent_id; storing a pattern with no
// agent_id clears the entire cache, since it is not possible to know which
// cached query results it might have affected (spec.md §9 Open Question,
// preserved rather than redesigned).
type patternCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[patternCacheKey]*list.Element
}

func newPatternCache() *patternCache {
	return &patternCache{
		capacity: patternCacheCapacity,
		ll:       list.New(),
		items:    make(map[patternCacheKey]*list.Element),
	}
}

func (c *patternCache) get(agentID string, minConfidence float64) ([]*Pattern, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := patternCacheKey{agentID, minConfidence}
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*patternCacheEntry).results, true
}

func (c *patternCache) put(agentID string, minConfidence float64, results []*Pattern) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := patternCacheKey{agentID, minConfidence}
	if el, ok := c.items[key]; ok {
		el.Value.(*patternCacheEntry).results = results
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&patternCacheEntry{key: key, results: results})
	c.items[key] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*patternCacheEntry).key)
	}
}

// invalidate drops every cache entry whose key's agent_id matches agentID. A
// blank agentID clears the entire cache.
func (c *patternCache) invalidate(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if agentID == "" {
		c.ll.Init()
		c.items = make(map[patternCacheKey]*list.Element)
		return
	}

	var toRemove []*list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if el.Value.(*patternCacheEntry).key.agentID == agentID {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.ll.Remove(el)
		delete(c.items, el.Value.(*patternCacheEntry).key)
	}
}

func (c *patternCache) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("patternCache(len=%d, cap=%d)", c.ll.Len(), c.capacity)
}
