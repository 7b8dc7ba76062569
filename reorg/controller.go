// Package reorg implements the Reorg Controller of SPEC_FULL.md §4.7:
// detecting chain divergence against the live node, logging it, and
// logically invalidating the affected rows.
package reorg

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/fluxnode-io/flux-indexer/indexer"
	"github.com/fluxnode-io/flux-indexer/logger"
	"github.com/fluxnode-io/flux-indexer/rpcclient"
	"github.com/fluxnode-io/flux-indexer/store"
	"github.com/fluxnode-io/flux-indexer/syncstate"
)

var log, _ = logger.Get(logger.SubsystemTags.RORG)

// ErrMaxDepthExceeded is returned when the backward walk passes
// MaxReorgDepth without finding a common ancestor; the caller must halt
// ingestion and wait for operator intervention (§4.7).
var ErrMaxDepthExceeded = errors.New("reorg depth exceeds configured maximum")

// Controller owns reorg detection and recovery. It is the only writer of
// is_valid=false flips and UTXO-restoring rows (§4.5's ownership note).
type Controller struct {
	store         *store.Store
	writer        *store.Writer
	rpc           *rpcclient.Client
	indexer       *indexer.BatchIndexer
	syncTracker   *syncstate.Tracker
	maxReorgDepth uint32
}

// New returns a Controller wired to its collaborators.
func New(s *store.Store, w *store.Writer, rpc *rpcclient.Client, idx *indexer.BatchIndexer, tracker *syncstate.Tracker, maxReorgDepth uint32) *Controller {
	return &Controller{
		store:         s,
		writer:        w,
		rpc:           rpc,
		indexer:       idx,
		syncTracker:   tracker,
		maxReorgDepth: maxReorgDepth,
	}
}

// Detect reports whether the block at currentHeight has diverged: its
// stored hash no longer matches the live chain's hash at that height.
// Called before ingesting any new block (§4.7's trigger condition).
func (c *Controller) Detect(ctx context.Context, currentHeight uint32) (bool, error) {
	if currentHeight == 0 {
		return false, nil
	}
	storedHash, ok, err := c.store.BlockHashAtHeight(ctx, currentHeight)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	liveHash, err := c.rpc.GetBlockHash(currentHeight)
	if err != nil {
		return false, errors.Wrap(err, "fetching live block hash for reorg check")
	}
	return storedHash != liveHash, nil
}

// Recover runs the full §4.7 algorithm once a divergence has been
// detected at currentHeight.
func (c *Controller) Recover(ctx context.Context, currentHeight uint32) error {
	fromHeight := currentHeight
	oldHash, _, err := c.store.BlockHashAtHeight(ctx, currentHeight)
	if err != nil {
		return err
	}

	// Step 1: walk backward to the common ancestor.
	ancestor, err := c.findCommonAncestor(ctx, currentHeight)
	if err != nil {
		return err
	}
	toHeight := ancestor + 1

	newHash, err := c.rpc.GetBlockHash(ancestor)
	if err != nil {
		return errors.Wrap(err, "fetching ancestor hash")
	}

	log.Warnf("reorg detected: common ancestor at height %d, invalidating heights %d..%d", ancestor, toHeight, fromHeight)

	// Step 2: emit a Reorg log row.
	reorgRow := store.Reorg{
		ID:             store.NewReorgID(),
		FromHeight:     fromHeight,
		ToHeight:       toHeight,
		CommonAncestor: ancestor,
		OldHash:        oldHash,
		NewHash:        newHash,
		BlocksAffected: fromHeight - toHeight + 1,
	}
	if err := c.writer.WriteReorg(ctx, reorgRow); err != nil {
		return err
	}

	// Step 3: flip is_valid=false on Blocks, Transactions,
	// AddressTransactions, SupplyStats (FluxNode operations share the
	// Transaction row via IsFluxNodeTx, so the same flip covers them).
	tx, err := c.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning invalidation transaction")
	}
	defer tx.Rollback()
	if err := c.writer.InvalidateBlocksFrom(ctx, tx, toHeight); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing invalidation")
	}

	// Step 4: supersede UTXOs created at height >= toHeight with
	// zero-value marker rows.
	created, err := c.store.UTXOsCreatedFrom(ctx, toHeight)
	if err != nil {
		return err
	}
	superseding := make([]store.UTXO, 0, len(created))
	for _, u := range created {
		superseding = append(superseding, store.UTXO{
			TxID:        u.TxID,
			Vout:        u.Vout,
			Address:     u.Address,
			Value:       0,
			ScriptType:  store.ScriptTypeReorgSuperseded,
			BlockHeight: u.BlockHeight,
			Spent:       true,
			Version:     u.Version + 1,
		})
	}
	if err := c.writer.WriteUTXOs(ctx, superseding); err != nil {
		return err
	}

	// Step 5: restore UTXOs spent at height >= toHeight to unspent.
	spent, err := c.store.UTXOsSpentFrom(ctx, toHeight)
	if err != nil {
		return err
	}
	restoring := make([]store.UTXO, 0, len(spent))
	for _, u := range spent {
		restoring = append(restoring, store.UTXO{
			TxID:        u.TxID,
			Vout:        u.Vout,
			Address:     u.Address,
			Value:       u.Value,
			ScriptType:  u.ScriptType,
			BlockHeight: u.BlockHeight,
			Spent:       false,
			Version:     u.Version + 1,
		})
	}
	if err := c.writer.WriteUTXOs(ctx, restoring); err != nil {
		return err
	}

	// Step 6: clear the cross-batch cache.
	c.indexer.ClearCache()
	c.indexer.ResetSupplyState()

	// Step 7: rewind SyncState to the ancestor.
	if err := c.syncTracker.Rewind(ctx, ancestor, newHash); err != nil {
		return err
	}

	log.Infof("reorg recovery complete: rewound to height %d", ancestor)
	return nil
}

// findCommonAncestor walks backward from currentHeight until the stored
// hash matches the live chain's hash at that height, bounded by
// maxReorgDepth.
func (c *Controller) findCommonAncestor(ctx context.Context, currentHeight uint32) (uint32, error) {
	height := currentHeight
	for depth := uint32(0); depth <= c.maxReorgDepth; depth++ {
		if height == 0 {
			return 0, nil
		}
		height--

		storedHash, ok, err := c.store.BlockHashAtHeight(ctx, height)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("no stored block at height %d during reorg walk-back", height)
		}
		liveHash, err := c.rpc.GetBlockHash(height)
		if err != nil {
			return 0, errors.Wrapf(err, "fetching live hash at height %d", height)
		}
		if storedHash == liveHash {
			return height, nil
		}
	}
	return 0, ErrMaxDepthExceeded
}
