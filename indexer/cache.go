// Package indexer implements the Batch Indexer of SPEC_FULL.md §4.5, the
// stateful core that turns parsed blocks into the record streams of
// §3 and writes them through the store's Writer Adapters.
package indexer

import (
	"sync"
	"time"

	"github.com/fluxnode-io/flux-indexer/store"
)

const (
	// cacheSoftCap is the §4.6 ~500,000-entry bound.
	cacheSoftCap = 500_000
	// cacheEvictAge is the §4.6 5-minute staleness threshold.
	cacheEvictAge = 5 * time.Minute
	// cacheEvictThreshold is the §4.6 90% fullness trigger for the
	// age-based sweep.
	cacheEvictThreshold = 0.9
)

// cacheEntry mirrors §4.6's per-entry attribute set, plus insertedAt for
// the age-based eviction policy.
type cacheEntry struct {
	Address      string
	Value        int64
	ScriptPubKey string
	ScriptType   store.ScriptType
	BlockHeight  uint32
	insertedAt   time.Time
}

type utxoKey struct {
	TxID string
	Vout uint32
}

// utxoCache is the cross-batch UTXO cache of §4.6, bridging the gap
// between a UTXO's creation and its store-layer read-visibility. It is
// exclusively owned by the Indexer (§4.5's "Cache ownership").
type utxoCache struct {
	mu      sync.Mutex
	entries map[utxoKey]cacheEntry
}

func newUTXOCache() *utxoCache {
	return &utxoCache{entries: make(map[utxoKey]cacheEntry)}
}

// Put inserts or replaces an entry, running the eviction policy if the
// insert crosses the 90% threshold.
func (c *utxoCache) Put(txid string, vout uint32, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.insertedAt = time.Now()
	c.entries[utxoKey{txid, vout}] = e

	if len(c.entries) >= int(cacheSoftCap*cacheEvictThreshold) {
		c.evictStaleLocked()
	}
	if len(c.entries) > cacheSoftCap {
		c.evictOldestLocked()
	}
}

// Get looks up a cache entry, the second tier of §4.5 step 4's
// batch-then-cache-then-store resolution order.
func (c *utxoCache) Get(txid string, vout uint32) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[utxoKey{txid, vout}]
	return e, ok
}

// Remove evicts a spent entry immediately (§4.6 rule a), called by the
// Indexer once a spend has been durably written (§4.5 step 9).
func (c *utxoCache) Remove(txid string, vout uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, utxoKey{txid, vout})
}

// Clear empties the cache, used by the Reorg Controller (§4.7 step 6).
func (c *utxoCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[utxoKey]cacheEntry)
}

// Len reports the current entry count, exposed for tests and metrics.
func (c *utxoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictStaleLocked removes entries older than cacheEvictAge (§4.6 rule b).
// Caller must hold c.mu.
func (c *utxoCache) evictStaleLocked() {
	cutoff := time.Now().Add(-cacheEvictAge)
	for k, e := range c.entries {
		if e.insertedAt.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}

// evictOldestLocked removes oldest-first entries until under the hard cap
// (§4.6 rule c). Caller must hold c.mu.
func (c *utxoCache) evictOldestLocked() {
	for len(c.entries) > cacheSoftCap {
		var oldestKey utxoKey
		var oldestTime time.Time
		first := true
		for k, e := range c.entries {
			if first || e.insertedAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = e.insertedAt
				first = false
			}
		}
		if first {
			return
		}
		delete(c.entries, oldestKey)
	}
}
