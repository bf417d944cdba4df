package timetravel

import (
	"container/list"
)

// stateCache maps unix-nano timestamps to reconstructed states. The list is
// ordered front = oldest touch. Exact hits move an entry to the back, the
// nearest lookup does not, and eviction always takes the front.
type stateCache struct {
	capacity int
	entries  map[int64]*list.Element
	order    *list.List

	hits   int
	misses int
}

type cacheEntry struct {
	key   int64
	state GraphState
}

type CacheStats struct {
	Size   int `json:"size"`
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

func newStateCache(capacity int) *stateCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &stateCache{
		capacity: capacity,
		entries:  make(map[int64]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *stateCache) get(key int64) (GraphState, bool) {
	elem, ok := c.entries[key]
	if !ok {
		return GraphState{}, false
	}
	c.order.MoveToBack(elem)
	return elem.Value.(*cacheEntry).state, true
}

// nearest returns the entry with the largest key <= key.
func (c *stateCache) nearest(key int64) (GraphState, bool) {
	var best *cacheEntry
	for _, elem := range c.entries {
		entry := elem.Value.(*cacheEntry)
		if entry.key > key {
			continue
		}
		if best == nil || entry.key > best.key {
			best = entry
		}
	}
	if best == nil {
		return GraphState{}, false
	}
	return best.state, true
}

// put inserts the state and returns how many entries were evicted.
func (c *stateCache) put(key int64, state GraphState) int {
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).state = state
		c.order.MoveToBack(elem)
		return 0
	}

	evicted := 0
	for c.order.Len() >= c.capacity {
		front := c.order.Front()
		c.order.Remove(front)
		delete(c.entries, front.Value.(*cacheEntry).key)
		evicted++
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, state: state})
	return evicted
}

// invalidateFrom drops every entry whose key is >= key.
func (c *stateCache) invalidateFrom(key int64) int {
	dropped := 0
	for k, elem := range c.entries {
		if k >= key {
			c.order.Remove(elem)
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

func (c *stateCache) clear() {
	c.entries = make(map[int64]*list.Element, c.capacity)
	c.order.Init()
	c.hits = 0
	c.misses = 0
}

func (c *stateCache) stats() CacheStats {
	return CacheStats{Size: c.order.Len(), Hits: c.hits, Misses: c.misses}
}
