// Command fluxindexerd is the daemon entrypoint: it wires configuration,
// the ClickHouse store, the Flux node RPC client, the batch indexer, the
// reorg controller, and the ops HTTP surface together and runs the sync
// loop until interrupted (SPEC_FULL.md §2, §6).
package main

import (
	"context"
	"fmt"

	"github.com/fluxnode-io/flux-indexer/config"
	"github.com/fluxnode-io/flux-indexer/indexer"
	"github.com/fluxnode-io/flux-indexer/logger"
	"github.com/fluxnode-io/flux-indexer/ops"
	"github.com/fluxnode-io/flux-indexer/reorg"
	"github.com/fluxnode-io/flux-indexer/rpcclient"
	"github.com/fluxnode-io/flux-indexer/signal"
	"github.com/fluxnode-io/flux-indexer/store"
	"github.com/fluxnode-io/flux-indexer/syncstate"
	"github.com/fluxnode-io/flux-indexer/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.FIDX)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("error parsing configuration: %s", err))
	}

	s, err := store.Connect(cfg.StoreDSN)
	if err != nil {
		panic(fmt.Errorf("error connecting to store: %s", err))
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Errorf("error closing store: %s", err)
		}
	}()

	if err := store.Migrate(cfg.StoreDSN); err != nil {
		panic(fmt.Errorf("error applying migrations: %s", err))
	}

	rpc := rpcclient.New(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)

	ctx := context.Background()
	writer := store.NewWriter(s, false)
	tracker, err := syncstate.New(ctx, s, writer)
	if err != nil {
		panic(fmt.Errorf("error loading sync state: %s", err))
	}

	idx := indexer.New(s, writer)
	reorgCtl := reorg.New(s, writer, rpc, idx, tracker, cfg.MaxReorgDepth)

	shutdownOps := ops.Start(cfg.HTTPListen, tracker)
	defer shutdownOps()

	doneChan := make(chan struct{}, 1)
	go func() {
		defer panics.HandlePanic(log, nil)
		if err := syncLoop(cfg, rpc, s, writer, idx, tracker, reorgCtl, doneChan); err != nil {
			log.Criticalf("sync loop halted: %s", err)
			signal.RequestShutdown()
		}
	}()

	interrupt := signal.InterruptListener()
	<-interrupt

	doneChan <- struct{}{}
}
