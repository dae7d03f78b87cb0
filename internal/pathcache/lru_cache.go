// Package pathcache caches path-to-metadata-pair resolutions so repeated
// lookups of the same directory path don't re-walk the tree from the root.
//
// Adapted from the teacher's SST block cache (cache/lru_cache.go): same LRU
// eviction and optional sharding, retargeted from CacheKey{FileNumber,
// BlockOffset}->[]byte to a path string -> resolved pair address.
package pathcache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// PairRef is a resolved metadata-pair address, the value cached for a path.
type PairRef struct {
	A, B uint32
}

// Cache is the interface implemented by both the plain and sharded caches.
type Cache interface {
	// Insert records path's resolved pair. Returns the handle.
	Insert(path string, value PairRef) *Handle

	// Lookup retrieves path's cached resolution, or nil if not cached.
	Lookup(path string) *Handle

	// Release releases a handle obtained from Insert or Lookup.
	Release(handle *Handle)

	// Erase invalidates path; the filesystem calls it for the path written
	// by each Mkdir, Set and Delete.
	Erase(path string)

	// Close releases all resources associated with the cache.
	Close()
}

// Handle represents a reference to a cached resolution.
type Handle struct {
	key     string
	value   PairRef
	refs    int32
	deleted bool
}

// Value returns the cached pair address.
func (h *Handle) Value() PairRef {
	return h.value
}

// LRUCache is a thread-safe LRU cache with a fixed entry-count capacity.
type LRUCache struct {
	mu       sync.RWMutex
	capacity uint64
	usage    uint64
	table    map[string]*list.Element
	lru      *list.List

	hits   atomic.Uint64
	misses atomic.Uint64
}

type lruEntry struct {
	handle *Handle
}

func getEntry(elem *list.Element) *lruEntry {
	entry, _ := elem.Value.(*lruEntry)
	return entry
}

// NewLRUCache creates a new LRU cache holding up to capacity entries.
func NewLRUCache(capacity uint64) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		table:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Insert records path's resolved pair, evicting the least-recently-used
// unpinned entry if the cache is full.
func (c *LRUCache) Insert(path string, value PairRef) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.table[path]; ok {
		entry := getEntry(elem)
		entry.handle.value = value
		c.lru.MoveToFront(elem)
		entry.handle.refs++
		return entry.handle
	}

	handle := &Handle{key: path, value: value, refs: 1}

	for c.usage+1 > c.capacity && c.lru.Len() > 0 {
		c.evictOne()
	}

	entry := &lruEntry{handle: handle}
	elem := c.lru.PushFront(entry)
	c.table[path] = elem
	c.usage++

	return handle
}

// Lookup retrieves path's cached resolution.
func (c *LRUCache) Lookup(path string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.table[path]; ok {
		entry := getEntry(elem)
		if !entry.handle.deleted {
			c.lru.MoveToFront(elem)
			entry.handle.refs++
			c.hits.Add(1)
			return entry.handle
		}
	}

	c.misses.Add(1)
	return nil
}

// Release releases a handle.
func (c *LRUCache) Release(handle *Handle) {
	if handle == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	handle.refs--
	if handle.refs == 0 && handle.deleted {
		c.removeHandle(handle)
	}
}

// Erase invalidates path.
func (c *LRUCache) Erase(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.table[path]; ok {
		entry := getEntry(elem)
		entry.handle.deleted = true
		if entry.handle.refs == 0 {
			c.removeHandle(entry.handle)
		}
	}
}

// GetHitRate returns the cache hit rate (0.0 to 1.0).
func (c *LRUCache) GetHitRate() float64 {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// Close releases all resources.
func (c *LRUCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.table = make(map[string]*list.Element)
	c.lru.Init()
	c.usage = 0
}

func (c *LRUCache) evictOne() {
	for e := c.lru.Back(); e != nil; e = e.Prev() {
		entry := getEntry(e)
		if entry.handle.refs == 0 && !entry.handle.deleted {
			c.removeEntry(e)
			return
		}
	}
}

func (c *LRUCache) removeEntry(elem *list.Element) {
	entry := getEntry(elem)
	delete(c.table, entry.handle.key)
	c.lru.Remove(elem)
	c.usage--
}

func (c *LRUCache) removeHandle(handle *Handle) {
	if elem, ok := c.table[handle.key]; ok {
		c.removeEntry(elem)
	}
}

// ShardedLRUCache is an LRU cache with multiple shards for reduced lock
// contention, keyed by xxh3 hash of the path.
type ShardedLRUCache struct {
	shards    []*LRUCache
	numShards uint64
}

// NewShardedLRUCache creates a new sharded LRU cache. numShards should be a
// power of 2 for best performance.
func NewShardedLRUCache(capacity uint64, numShards int) *ShardedLRUCache {
	if numShards <= 0 {
		numShards = 16
	}
	numShards = nextPowerOf2(numShards)

	shardCapacity := capacity / uint64(numShards)
	if shardCapacity == 0 {
		shardCapacity = 1
	}

	c := &ShardedLRUCache{
		shards:    make([]*LRUCache, numShards),
		numShards: uint64(numShards),
	}
	for i := range numShards {
		c.shards[i] = NewLRUCache(shardCapacity)
	}
	return c
}

func nextPowerOf2(n int) int {
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func (c *ShardedLRUCache) shard(path string) *LRUCache {
	h := xxh3.HashString(path)
	return c.shards[h%c.numShards]
}

// Insert implements Cache.
func (c *ShardedLRUCache) Insert(path string, value PairRef) *Handle {
	return c.shard(path).Insert(path, value)
}

// Lookup implements Cache.
func (c *ShardedLRUCache) Lookup(path string) *Handle {
	return c.shard(path).Lookup(path)
}

// Release implements Cache.
func (c *ShardedLRUCache) Release(handle *Handle) {
	if handle == nil {
		return
	}
	c.shard(handle.key).Release(handle)
}

// Erase implements Cache.
func (c *ShardedLRUCache) Erase(path string) {
	c.shard(path).Erase(path)
}

// Close implements Cache.
func (c *ShardedLRUCache) Close() {
	for _, s := range c.shards {
		s.Close()
	}
}

// GetHitRate returns the overall cache hit rate across all shards.
func (c *ShardedLRUCache) GetHitRate() float64 {
	var hits, misses uint64
	for _, s := range c.shards {
		hits += s.hits.Load()
		misses += s.misses.Load()
	}
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}
