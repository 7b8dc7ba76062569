package indexer

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/fluxnode-io/flux-indexer/chainhash"
	"github.com/fluxnode-io/flux-indexer/logger"
	"github.com/fluxnode-io/flux-indexer/store"
)

var log, _ = logger.Get(logger.SubsystemTags.INDX)

// zeroAddress is the sentinel address used for outputs whose owner cannot
// be reduced to a single address (shielded outputs, nonstandard scripts).
const zeroAddress = "-"

// resolvedUTXO is what step 4's three-tier lookup returns on a hit.
type resolvedUTXO struct {
	Address     string
	Value       int64
	ScriptType  store.ScriptType
	BlockHeight uint32
}

// BatchIndexer is the stateful core of §4.5: it turns parsed blocks into
// the record streams of §3 and writes them through the store's Writer
// Adapters, maintaining the cross-batch UTXO cache and running supply
// totals across calls.
type BatchIndexer struct {
	store  *store.Store
	writer *store.Writer
	cache  *utxoCache
	supply supplyState
}

// New returns a BatchIndexer writing through w and falling back to s for
// store-tier UTXO lookups.
func New(s *store.Store, w *store.Writer) *BatchIndexer {
	return &BatchIndexer{
		store:  s,
		writer: w,
		cache:  newUTXOCache(),
	}
}

// ClearCache empties the cross-batch UTXO cache; called by the Reorg
// Controller per §4.7 step 6.
func (idx *BatchIndexer) ClearCache() {
	idx.cache.Clear()
}

// ResetSupplyState forces the next IndexBatch call to re-read the latest
// SupplyStat row from the store rather than trust in-memory totals,
// called by the Reorg Controller after rewinding SyncState.
func (idx *BatchIndexer) ResetSupplyState() {
	idx.supply = supplyState{}
}

// IndexBatch implements §4.5's index_batch(blocks, start_height) → count.
// inputs must be in ascending height order; it is idempotent to retry the
// same inputs from the same starting point.
func (idx *BatchIndexer) IndexBatch(ctx context.Context, inputs []BlockInput) (Result, error) {
	var result Result
	if len(inputs) == 0 {
		return result, nil
	}

	// Steps 3-4: build the per-batch output map and accumulate the
	// cross-batch cache before resolving any input, so same-batch
	// create-and-spend (§4.5's "Key algorithmic details") is handled
	// without ever touching the cache or store for those entries.
	batchOutputs := make(map[utxoKey]resolvedUTXO)

	if err := idx.seedSupplyState(ctx, inputs[0].Block.Height); err != nil {
		return result, err
	}

	for _, in := range inputs {
		block := in.Block

		for _, pt := range block.Transactions {
			tx := pt.Tx
			for vout, out := range tx.VoutEntries() {
				scriptType, address := classifyScript(out.ScriptPubKey)
				if address == "" {
					address = zeroAddress
				}
				key := utxoKey{tx.TxID.String(), uint32(vout)}
				resolved := resolvedUTXO{
					Address:     address,
					Value:       out.Value,
					ScriptType:  scriptType,
					BlockHeight: block.Height,
				}
				batchOutputs[key] = resolved
				idx.cache.Put(key.TxID, key.Vout, cacheEntry{
					Address:     resolved.Address,
					Value:       resolved.Value,
					ScriptType:  resolved.ScriptType,
					BlockHeight: resolved.BlockHeight,
				})
			}
		}
	}

	var (
		blocks              []store.Block
		txRows              []store.Transaction
		utxoRows            []store.UTXO
		addressTxRows       []store.AddressTransaction
		supplyStats         []store.SupplyStat
		producers           []store.Producer
		missingUTXOs        int
		spentKeys           []utxoKey
	)

	addressDeltas := make(map[string]*addressDelta)

	for _, in := range inputs {
		block := in.Block
		blockHash := headerHash(in.RawHex, block.HeaderLength)
		var coinbaseOutputs int64
		var shieldedChangeBlock int64
		var nonCoinbaseFeeSum int64
		var coinbaseTxIndex = -1

		for i, pt := range block.Transactions {
			tx := pt.Tx
			var inputTotal, outputTotal int64
			for _, out := range tx.VoutEntries() {
				outputTotal += out.Value
			}

			isCoinbase := tx.IsCoinbase()
			if isCoinbase {
				coinbaseTxIndex = i
				coinbaseOutputs += outputTotal
			}

			resolvedIns := make([]resolvedUTXO, 0, len(tx.VinOutpoints()))
			for _, outp := range tx.VinOutpoints() {
				if isCoinbase {
					continue
				}
				key := utxoKey{outp.PrevTxID.String(), outp.PrevVout}
				r, ok := idx.resolveInput(ctx, batchOutputs, key)
				if !ok {
					missingUTXOs++
					continue
				}
				resolvedIns = append(resolvedIns, r)
				inputTotal += r.Value
				spentKeys = append(spentKeys, key)
				utxoRows = append(utxoRows, store.UTXO{
					TxID:             key.TxID,
					Vout:             key.Vout,
					Address:          r.Address,
					Value:            r.Value,
					ScriptType:       r.ScriptType,
					BlockHeight:      r.BlockHeight,
					Spent:            true,
					SpentTxID:        tx.TxID.String(),
					SpentBlockHeight: block.Height,
					Version:          uint64(block.Height)*1_000_000 + uint64(i) + 1,
				})
			}

			shieldedChangeBlock += shieldedChangeBlockTerm(tx.ShieldedFlowValues())

			var fee int64
			if !isCoinbase {
				fee = computeFee(inputTotal, outputTotal, tx.ShieldedFlowValues())
				nonCoinbaseFeeSum += fee
			}

			// Step 5: per-address deltas.
			perTxAddr := make(map[string]*addressDelta)
			touch := func(addr string) *addressDelta {
				d, ok := perTxAddr[addr]
				if !ok {
					d = &addressDelta{}
					perTxAddr[addr] = d
				}
				return d
			}
			for _, r := range resolvedIns {
				if r.Address == zeroAddress {
					continue
				}
				touch(r.Address).sent += r.Value
			}
			for _, out := range tx.VoutEntries() {
				_, address := classifyScript(out.ScriptPubKey)
				if address == "" {
					continue
				}
				touch(address).received += out.Value
			}
			for addr, d := range perTxAddr {
				direction := store.DirectionReceived
				if d.sent > d.received {
					direction = store.DirectionSent
				}
				addressTxRows = append(addressTxRows, store.AddressTransaction{
					Address:       addr,
					BlockHeight:   block.Height,
					TxIndex:       uint32(i),
					TxID:          tx.TxID.String(),
					BlockHash:     blockHash,
					Direction:     direction,
					ReceivedValue: d.received,
					SentValue:     d.sent,
					IsCoinbase:    isCoinbase,
					IsValid:       true,
				})

				batch := addressDeltas[addr]
				if batch == nil {
					batch = &addressDelta{firstSeen: block.Height}
					addressDeltas[addr] = batch
				}
				batch.received += d.received
				batch.sent += d.sent
				batch.txCount++
				batch.lastActive = block.Height
			}

			isShielded := tx.ShieldedFlowValues().Present
			var fluxNodeType int8
			isFluxNodeTx := tx.NodeOperation() != nil
			if isFluxNodeTx {
				fluxNodeType = int8(tx.NodeOperation().Kind)
			}

			txRows = append(txRows, store.Transaction{
				TxID:         tx.TxID.String(),
				BlockHeight:  block.Height,
				TxIndex:      uint32(i),
				Timestamp:    block.Header.Time,
				Version:      tx.Version,
				LockTime:     tx.LockTime,
				Size:         uint32(tx.SerializeSize),
				VSize:        uint32(tx.SerializeSize),
				InputCount:   uint32(len(tx.Vin)),
				OutputCount:  uint32(len(tx.Vout)),
				InputTotal:   inputTotal,
				OutputTotal:  outputTotal,
				Fee:          fee,
				IsCoinbase:   isCoinbase,
				IsFluxNodeTx: isFluxNodeTx,
				FluxNodeType: fluxNodeType,
				IsShielded:   isShielded,
				IsValid:      true,
			})

			for vout, out := range tx.VoutEntries() {
				scriptType, address := classifyScript(out.ScriptPubKey)
				scriptHex := ""
				if scriptType == store.ScriptTypeNullData || scriptType == store.ScriptTypeNonStandard {
					scriptHex = hex.EncodeToString(out.ScriptPubKey)
				}
				if address == "" {
					address = zeroAddress
				}
				utxoRows = append(utxoRows, store.UTXO{
					TxID:         tx.TxID.String(),
					Vout:         uint32(vout),
					Address:      address,
					Value:        out.Value,
					ScriptPubKey: scriptHex,
					ScriptType:   scriptType,
					BlockHeight:  block.Height,
					Spent:        false,
					Version:      uint64(block.Height)*1_000_000 + uint64(i),
				})
			}
		}

		// Apply the coinbase fee policy (§4.5 step 6): the coinbase
		// transaction's fee equals the sum of all other fees in the block.
		if coinbaseTxIndex >= 0 {
			txRows[len(txRows)-(len(block.Transactions)-coinbaseTxIndex)].Fee = nonCoinbaseFeeSum
		}

		transparent, shielded := idx.supply.advance(block.Height, coinbaseOutputs, shieldedChangeBlock)
		supplyStats = append(supplyStats, store.SupplyStat{
			BlockHeight:       block.Height,
			Timestamp:         block.Header.Time,
			TransparentSupply: transparent,
			ShieldedPool:      shielded,
			TotalSupply:       transparent + shielded,
			IsValid:           true,
		})

		// Producer identity comes from the PoN header's collateral
		// reference, not from any transaction in the block (§3's
		// "incrementally updated per PoN block"). PoW blocks carry no
		// producer.
		var producer string
		var producerReward int64
		if block.Header.IsPoN {
			producer = producerID(block.Header.NodesCollateralHash.String(), block.Header.NodesCollateralIndex)
			producerReward = coinbaseOutputs
			producers = append(producers, store.Producer{
				FluxNode:       producer,
				BlocksProduced: 1,
				FirstBlock:     block.Height,
				LastBlock:      block.Height,
				TotalRewards:   producerReward,
			})
		}

		blocks = append(blocks, store.Block{
			Height:         block.Height,
			Hash:           blockHash,
			PrevHash:       block.Header.PrevHash.String(),
			MerkleRoot:     block.Header.MerkleRoot.String(),
			Timestamp:      block.Header.Time,
			Version:        block.Header.Version,
			Size:           uint32(len(in.RawHex) / 2),
			TxCount:        uint32(len(block.Transactions)),
			Producer:       producer,
			ProducerReward: producerReward,
			IsValid:        true,
		})

		result.LastHeight = block.Height
		result.LastBlockHash = blockHash
		result.BlocksIndexed++
		result.TxIndexed += len(block.Transactions)
	}

	deltas := make([]store.AddressSummaryDelta, 0, len(addressDeltas))
	for addr, d := range addressDeltas {
		deltas = append(deltas, store.AddressSummaryDelta{
			Address:      addr,
			BalanceDelta: d.received - d.sent,
			TxCountDelta: d.txCount,
			ReceivedDelta: d.received,
			SentDelta:    d.sent,
			FirstSeen:    d.firstSeen,
			LastActivity: d.lastActive,
		})
	}

	// Step 8: write the streams in the specified order.
	if err := idx.writer.WriteBlocks(ctx, blocks); err != nil {
		return result, err
	}
	if err := idx.writer.WriteTransactions(ctx, txRows); err != nil {
		return result, err
	}
	if err := idx.writer.WriteProducers(ctx, producers); err != nil {
		return result, err
	}
	if err := idx.writer.WriteUTXOs(ctx, utxoRows); err != nil {
		return result, err
	}
	if err := idx.writer.WriteAddressTransactions(ctx, addressTxRows); err != nil {
		return result, err
	}
	if err := idx.writer.WriteAddressSummaryDeltas(ctx, deltas); err != nil {
		return result, err
	}
	if err := idx.writer.WriteSupplyStats(ctx, supplyStats); err != nil {
		return result, err
	}

	// Step 9: prune cache entries whose spend was just written.
	for _, k := range spentKeys {
		idx.cache.Remove(k.TxID, k.Vout)
	}

	if missingUTXOs > 0 {
		log.Warnf("batch at height %d: %d unresolved input(s)", inputs[0].Block.Height, missingUTXOs)
	}
	result.MissingUTXOs = missingUTXOs

	return result, nil
}

// resolveInput implements §4.5 step 4's three-tier lookup: current batch,
// then cross-batch cache, then store.
func (idx *BatchIndexer) resolveInput(ctx context.Context, batchOutputs map[utxoKey]resolvedUTXO, key utxoKey) (resolvedUTXO, bool) {
	if r, ok := batchOutputs[key]; ok {
		return r, true
	}
	if e, ok := idx.cache.Get(key.TxID, key.Vout); ok {
		return resolvedUTXO{Address: e.Address, Value: e.Value, ScriptType: e.ScriptType, BlockHeight: e.BlockHeight}, true
	}
	u, ok, err := idx.store.LookupUTXO(ctx, key.TxID, key.Vout)
	if err != nil {
		log.Errorf("store utxo lookup failed for (%s, %d): %v", key.TxID, key.Vout, err)
		return resolvedUTXO{}, false
	}
	if !ok {
		return resolvedUTXO{}, false
	}
	return resolvedUTXO{Address: u.Address, Value: u.Value, ScriptType: u.ScriptType, BlockHeight: u.BlockHeight}, true
}

// seedSupplyState re-reads the latest SupplyStat row when the in-memory
// state doesn't cover the height immediately preceding firstHeight
// (§4.5 step 7).
func (idx *BatchIndexer) seedSupplyState(ctx context.Context, firstHeight uint32) error {
	if idx.supply.initialized && idx.supply.lastHeight+1 == firstHeight {
		return nil
	}
	stat, ok, err := idx.store.ReadLatestSupplyStat(ctx)
	if err != nil {
		return err
	}
	if !ok {
		idx.supply = supplyState{}
		return nil
	}
	idx.supply = supplyState{
		lastHeight:      stat.BlockHeight,
		lastTransparent: stat.TransparentSupply,
		lastShielded:    stat.ShieldedPool,
		initialized:     true,
	}
	return nil
}

// headerHash computes the display-form block hash from its raw hex,
// hashing exactly the header bytes the Block Parser measured (fixed
// prefix plus any PoW/PoN extension) rather than threading a
// separately-parsed hash through ParsedBlock.
func headerHash(rawHex string, headerLength int) string {
	raw, err := hex.DecodeString(rawHex)
	if err != nil || len(raw) < headerLength {
		return ""
	}
	h := chainhash.DoubleSHA256(raw[:headerLength])
	return h.String()
}

// producerID identifies a fluxnode by its collateral outpoint, the same
// reference a PoN header carries to attribute block production.
func producerID(collateralHash string, collateralIndex uint32) string {
	return fmt.Sprintf("%s:%d", collateralHash, collateralIndex)
}
