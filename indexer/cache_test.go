package indexer

import (
	"testing"
	"time"

	"github.com/fluxnode-io/flux-indexer/store"
)

func TestCachePutGetRemove(t *testing.T) {
	c := newUTXOCache()
	c.Put("txid1", 0, cacheEntry{Address: "addrA", Value: 100, ScriptType: store.ScriptTypeP2PKH, BlockHeight: 10})

	e, ok := c.Get("txid1", 0)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if e.Address != "addrA" || e.Value != 100 {
		t.Fatalf("unexpected entry: %+v", e)
	}

	c.Remove("txid1", 0)
	if _, ok := c.Get("txid1", 0); ok {
		t.Fatal("expected cache miss after Remove")
	}
}

func TestCacheClear(t *testing.T) {
	c := newUTXOCache()
	c.Put("t", 0, cacheEntry{})
	c.Put("t", 1, cacheEntry{})
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d entries", c.Len())
	}
}

func TestEvictStaleLockedRemovesOldEntriesOnly(t *testing.T) {
	c := newUTXOCache()
	c.entries[utxoKey{"stale", 0}] = cacheEntry{insertedAt: time.Now().Add(-10 * time.Minute)}
	c.entries[utxoKey{"fresh", 0}] = cacheEntry{insertedAt: time.Now()}

	c.evictStaleLocked()

	if _, ok := c.entries[utxoKey{"stale", 0}]; ok {
		t.Fatal("expected entry older than cacheEvictAge to be evicted")
	}
	if _, ok := c.entries[utxoKey{"fresh", 0}]; !ok {
		t.Fatal("expected fresh entry to survive eviction")
	}
}

func TestEvictOldestLockedTrimsToSoftCap(t *testing.T) {
	c := newUTXOCache()
	now := time.Now()
	for i := 0; i < cacheSoftCap+2; i++ {
		c.entries[utxoKey{"k", uint32(i)}] = cacheEntry{insertedAt: now.Add(time.Duration(i) * time.Millisecond)}
	}

	c.evictOldestLocked()

	if len(c.entries) != cacheSoftCap {
		t.Fatalf("expected %d entries after trimming, got %d", cacheSoftCap, len(c.entries))
	}
	if _, ok := c.entries[utxoKey{"k", 0}]; ok {
		t.Fatal("expected the oldest entry (index 0) to have been evicted first")
	}
	if _, ok := c.entries[utxoKey{"k", 1}]; ok {
		t.Fatal("expected the second-oldest entry (index 1) to have been evicted")
	}
}
