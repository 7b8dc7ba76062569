package main

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/fluxnode-io/flux-indexer/chainparams"
	"github.com/fluxnode-io/flux-indexer/config"
	"github.com/fluxnode-io/flux-indexer/indexer"
	"github.com/fluxnode-io/flux-indexer/logger"
	"github.com/fluxnode-io/flux-indexer/parser"
	"github.com/fluxnode-io/flux-indexer/reorg"
	"github.com/fluxnode-io/flux-indexer/rpcclient"
	"github.com/fluxnode-io/flux-indexer/store"
	"github.com/fluxnode-io/flux-indexer/syncstate"
)

var syncLog, _ = logger.Get(logger.SubsystemTags.SYNC)

// syncLoop repeatedly asks RPC for the next range of blocks, feeds them
// through the Block Parser and Batch Indexer, advances Sync State, and
// checks the tail for reorgs, per §2's control-flow summary. It returns
// when doneChan receives a value (graceful shutdown) or a fatal error
// occurs (e.g. reorg depth exceeded, §4.7).
func syncLoop(cfg *config.Config, rpc *rpcclient.Client, s *store.Store, w *store.Writer, idx *indexer.BatchIndexer, tracker *syncstate.Tracker, reorgCtl *reorg.Controller, doneChan <-chan struct{}) error {
	ctx := context.Background()
	params := chainparams.MainNetParams

	startHeight := cfg.StartHeight
	if startHeight == 0 {
		startHeight = tracker.Current().CurrentHeight + 1
	}

	for {
		select {
		case <-doneChan:
			syncLog.Infof("sync loop stopping on shutdown request")
			return nil
		default:
		}

		chainHeight, err := rpc.GetBlockCount()
		if err != nil {
			syncLog.Errorf("getblockcount failed: %v", err)
			continue
		}

		if startHeight > 1 {
			diverged, err := reorgCtl.Detect(ctx, startHeight-1)
			if err != nil {
				syncLog.Errorf("reorg detection failed: %v", err)
				continue
			}
			if diverged {
				if err := reorgCtl.Recover(ctx, startHeight-1); err != nil {
					if err == reorg.ErrMaxDepthExceeded {
						return err
					}
					syncLog.Errorf("reorg recovery failed: %v", err)
					continue
				}
				startHeight = tracker.Current().CurrentHeight + 1
				continue
			}
		}

		if startHeight > chainHeight {
			// Caught up; briefly idle before re-checking the tip.
			select {
			case <-doneChan:
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		endHeight := startHeight + uint32(cfg.BatchSize) - 1
		if endHeight > chainHeight {
			endHeight = chainHeight
		}

		nearTip := chainHeight-endHeight < cfg.SyncTipWindow
		w.SetSync(nearTip)

		inputs, err := fetchBatch(ctx, rpc, params, startHeight, endHeight, cfg.FetchParallelism)
		if err != nil {
			syncLog.Errorf("fetching batch %d-%d failed: %v", startHeight, endHeight, err)
			continue
		}

		result, err := idx.IndexBatch(ctx, inputs)
		if err != nil {
			syncLog.Errorf("indexing batch %d-%d failed: %v", startHeight, endHeight, err)
			continue
		}

		if err := tracker.Advance(ctx, result.LastHeight, chainHeight, result.LastBlockHash, result.BlocksIndexed); err != nil {
			syncLog.Errorf("advancing sync state failed: %v", err)
		}

		startHeight = endHeight + 1
	}
}

// fetchBatch fetches and parses every block in [from, to], per §4.5 steps
// 1-2. Fetch parallelism is bounded by maxParallel.
func fetchBatch(ctx context.Context, rpc *rpcclient.Client, params chainparams.Params, from, to uint32, maxParallel int) ([]indexer.BlockInput, error) {
	heights := make([]uint32, 0, to-from+1)
	for h := from; h <= to; h++ {
		heights = append(heights, h)
	}

	type fetchResult struct {
		index int
		input indexer.BlockInput
		err   error
	}

	results := make([]fetchResult, len(heights))
	sem := make(chan struct{}, maxParallel)
	done := make(chan struct{}, len(heights))

	for i, height := range heights {
		go func(i int, height uint32) {
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() { done <- struct{}{} }()

			hash, err := rpc.GetBlockHash(height)
			if err != nil {
				results[i] = fetchResult{index: i, err: err}
				return
			}
			rawHex, err := rpc.GetRawBlockHex(hash)
			if err != nil {
				results[i] = fetchResult{index: i, err: err}
				return
			}
			raw, err := hex.DecodeString(rawHex)
			if err != nil {
				results[i] = fetchResult{index: i, err: err}
				return
			}
			parsed, err := parser.ParseBlock(raw, height, params)
			if err != nil {
				results[i] = fetchResult{index: i, err: err}
				return
			}
			results[i] = fetchResult{index: i, input: indexer.BlockInput{Block: parsed, RawHex: rawHex}}
		}(i, height)
	}

	for range heights {
		<-done
	}

	inputs := make([]indexer.BlockInput, len(heights))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		inputs[r.index] = r.input
	}
	return inputs, nil
}
