package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// ShardedPriceCache keeps the last observed price per asset with its
// observation time. Keys are spread over fixed shards so concurrent readers
// and writers for unrelated assets never contend on one lock.
type ShardedPriceCache struct {
	shards [numShards]*priceShard
}

type priceShard struct {
	mu    sync.RWMutex
	items map[string]priceEntry
}

type priceEntry struct {
	price  float64
	seenAt time.Time
}

// NewShardedPriceCache creates an empty cache.
func NewShardedPriceCache() *ShardedPriceCache {
	c := &ShardedPriceCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &priceShard{items: make(map[string]priceEntry)}
	}
	return c
}

func (c *ShardedPriceCache) shardFor(key string) *priceShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set records a freshly observed price for an asset.
func (c *ShardedPriceCache) Set(assetID string, price float64) {
	s := c.shardFor(assetID)
	s.mu.Lock()
	s.items[assetID] = priceEntry{price: price, seenAt: time.Now()}
	s.mu.Unlock()
}

// Get returns the cached price and when it was observed.
func (c *ShardedPriceCache) Get(assetID string) (price float64, seenAt time.Time, ok bool) {
	s := c.shardFor(assetID)
	s.mu.RLock()
	e, ok := s.items[assetID]
	s.mu.RUnlock()
	return e.price, e.seenAt, ok
}

// Age returns how long ago the asset's price was observed. The second value
// is false when no price has ever been seen.
func (c *ShardedPriceCache) Age(assetID string) (time.Duration, bool) {
	_, seenAt, ok := c.Get(assetID)
	if !ok {
		return 0, false
	}
	return time.Since(seenAt), true
}

// Len returns the total number of cached assets.
func (c *ShardedPriceCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}
