// Package syncstate tracks the singleton progress record of
// SPEC_FULL.md §3/§6: the indexer's current height against the live
// chain's tip, the last indexed hash, and a rolling throughput figure
// surfaced by the ops HTTP endpoint.
package syncstate

import (
	"context"
	"sync"
	"time"

	"github.com/fluxnode-io/flux-indexer/store"
)

// Tracker holds the in-memory SyncState and flushes it to the store after
// each batch (§4.5 step 10).
type Tracker struct {
	mu     sync.RWMutex
	state  store.SyncState
	writer *store.Writer

	lastAdvance time.Time
}

// New returns a Tracker seeded from the store's persisted SyncState, if
// any.
func New(ctx context.Context, s *store.Store, w *store.Writer) (*Tracker, error) {
	st, err := s.ReadSyncState(ctx)
	if err != nil {
		return nil, err
	}
	return &Tracker{state: st, writer: w, lastAdvance: time.Now()}, nil
}

// Current returns a copy of the tracked state.
func (t *Tracker) Current() store.SyncState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Advance records the result of one indexed batch: new current height and
// hash, the live chain tip, and a rolling blocks/sec figure (§4.5 step
// 10), then persists it.
func (t *Tracker) Advance(ctx context.Context, currentHeight, chainHeight uint32, lastBlockHash string, blocksThisBatch int) error {
	t.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(t.lastAdvance).Seconds()
	rate := t.state.BlocksPerSecond
	if elapsed > 0 && blocksThisBatch > 0 {
		instantaneous := float64(blocksThisBatch) / elapsed
		// Exponential moving average smooths the batch-to-batch rate
		// the way the teacher smooths peer-bandwidth estimates.
		const smoothing = 0.3
		rate = smoothing*instantaneous + (1-smoothing)*rate
	}
	t.lastAdvance = now

	t.state.CurrentHeight = currentHeight
	t.state.ChainHeight = chainHeight
	t.state.LastBlockHash = lastBlockHash
	t.state.BlocksPerSecond = rate
	t.state.IsSyncing = currentHeight < chainHeight
	if chainHeight > 0 {
		t.state.SyncPercentage = 100 * float64(currentHeight) / float64(chainHeight)
	}
	snapshot := t.state
	t.mu.Unlock()

	return t.writer.WriteSyncState(ctx, snapshot)
}

// Rewind resets the tracked height to ancestor after a reorg (§4.7 step
// 7), so the next batch resumes ingestion from ancestor+1.
func (t *Tracker) Rewind(ctx context.Context, ancestor uint32, ancestorHash string) error {
	t.mu.Lock()
	t.state.CurrentHeight = ancestor
	t.state.LastBlockHash = ancestorHash
	snapshot := t.state
	t.mu.Unlock()

	return t.writer.WriteSyncState(ctx, snapshot)
}
