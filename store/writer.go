package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Writer shapes and flushes the record streams the Batch Indexer produces
// into the nine tables of §3, in the §4.5 step 8 order: Blocks →
// Transactions → UTXOs → AddressTransactions → AddressSummary deltas →
// SupplyStats, plus the Producer rollup. Grounded on the teacher's
// dbaccess batched-insert pattern: build one multi-row INSERT per stream,
// execute within a transaction boundary per batch.
type Writer struct {
	store *Store
	// sync records whether the sync loop is within the near-tip window
	// (§4.8). No Write* method reads it: every insert is executed the
	// same way whatever its value.
	sync bool
}

// NewWriter returns a Writer over store with the given sync flag. The
// flag does not change how inserts are executed.
func NewWriter(store *Store, sync bool) *Writer {
	return &Writer{store: store, sync: sync}
}

// SetSync records the near-tip flag, called by the sync loop as it crosses
// the near-tip threshold (§6's sync_tip_window). No Write* method reads it.
func (w *Writer) SetSync(sync bool) {
	w.sync = sync
}

func (w *Writer) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := w.store.db.ExecContext(ctx, query, args...)
	return err
}

// WriteBlocks inserts one row per Block.
func (w *Writer) WriteBlocks(ctx context.Context, blocks []Block) error {
	if len(blocks) == 0 {
		return nil
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning blocks transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO blocks
		(height, hash, prev_hash, merkle_root, timestamp, version, size, tx_count, producer, producer_reward, difficulty, chainwork, is_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing blocks insert")
	}
	defer stmt.Close()

	for _, b := range blocks {
		if _, err := stmt.ExecContext(ctx, b.Height, b.Hash, b.PrevHash, b.MerkleRoot, b.Timestamp,
			b.Version, b.Size, b.TxCount, b.Producer, b.ProducerReward, b.Difficulty, b.Chainwork, boolToUInt8(b.IsValid)); err != nil {
			return errors.Wrapf(err, "inserting block %d", b.Height)
		}
	}
	return w.commit(tx)
}

// WriteTransactions inserts one row per Transaction.
func (w *Writer) WriteTransactions(ctx context.Context, txs []Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transactions transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions
		(tx_id, block_height, tx_index, timestamp, version, lock_time, size, vsize, input_count, output_count, input_total, output_total, fee, is_coinbase, is_fluxnode_tx, fluxnode_type, is_shielded, is_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing transactions insert")
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx, t.TxID, t.BlockHeight, t.TxIndex, t.Timestamp, t.Version, t.LockTime,
			t.Size, t.VSize, t.InputCount, t.OutputCount, t.InputTotal, t.OutputTotal, t.Fee,
			boolToUInt8(t.IsCoinbase), boolToUInt8(t.IsFluxNodeTx), t.FluxNodeType, boolToUInt8(t.IsShielded), boolToUInt8(t.IsValid)); err != nil {
			return errors.Wrapf(err, "inserting transaction %s", t.TxID)
		}
	}
	return w.commit(tx)
}

// WriteUTXOs inserts creation and/or spend rows. A spend is represented
// by inserting a new row for the same (tx_id, vout) with spent=true and a
// higher version, which ReplacingMergeTree resolves to the newest row on
// merge (§3's UTXO lifecycle).
func (w *Writer) WriteUTXOs(ctx context.Context, utxos []UTXO) error {
	if len(utxos) == 0 {
		return nil
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning utxos transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO utxos
		(tx_id, vout, address, value, script_pubkey, script_type, block_height, spent, spent_tx_id, spent_block_height, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing utxos insert")
	}
	defer stmt.Close()

	for _, u := range utxos {
		if _, err := stmt.ExecContext(ctx, u.TxID, u.Vout, u.Address, u.Value, u.ScriptPubKey, string(u.ScriptType),
			u.BlockHeight, boolToUInt8(u.Spent), u.SpentTxID, u.SpentBlockHeight, u.Version); err != nil {
			return errors.Wrapf(err, "inserting utxo (%s, %d)", u.TxID, u.Vout)
		}
	}
	return w.commit(tx)
}

// WriteAddressTransactions inserts one row per (address, tx) pairing.
func (w *Writer) WriteAddressTransactions(ctx context.Context, rows []AddressTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning address_transactions transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO address_transactions
		(address, block_height, tx_index, tx_id, block_hash, direction, received_value, sent_value, is_coinbase, is_valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing address_transactions insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Address, r.BlockHeight, r.TxIndex, r.TxID, r.BlockHash, string(r.Direction),
			r.ReceivedValue, r.SentValue, boolToUInt8(r.IsCoinbase), boolToUInt8(r.IsValid)); err != nil {
			return errors.Wrapf(err, "inserting address_transaction %s/%s", r.Address, r.TxID)
		}
	}
	return w.commit(tx)
}

// WriteAddressSummaryDeltas inserts this batch's contribution to each
// touched address's running summary. first_seen/last_activity are
// pre-merged here (min/max against the prior summary row, when present)
// since the underlying SummingMergeTree engine only sums.
func (w *Writer) WriteAddressSummaryDeltas(ctx context.Context, deltas []AddressSummaryDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning address_summaries transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO address_summaries
		(address, balance, tx_count, received_total, sent_total, unspent_count, first_seen, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing address_summaries insert")
	}
	defer stmt.Close()

	for _, d := range deltas {
		if _, err := stmt.ExecContext(ctx, d.Address, d.BalanceDelta, d.TxCountDelta, d.ReceivedDelta,
			d.SentDelta, d.UnspentDelta, d.FirstSeen, d.LastActivity); err != nil {
			return errors.Wrapf(err, "inserting address_summary delta for %s", d.Address)
		}
	}
	return w.commit(tx)
}

// WriteSupplyStats inserts one row per block's supply snapshot.
func (w *Writer) WriteSupplyStats(ctx context.Context, stats []SupplyStat) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning supply_stats transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO supply_stats
		(block_height, timestamp, transparent_supply, shielded_pool, total_supply, is_valid)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing supply_stats insert")
	}
	defer stmt.Close()

	for _, s := range stats {
		if _, err := stmt.ExecContext(ctx, s.BlockHeight, s.Timestamp, s.TransparentSupply, s.ShieldedPool, s.TotalSupply, boolToUInt8(s.IsValid)); err != nil {
			return errors.Wrapf(err, "inserting supply_stat %d", s.BlockHeight)
		}
	}
	return w.commit(tx)
}

// WriteProducers inserts incremental Producer deltas (blocks_produced=1,
// total_rewards=reward) for each PoN block just written; the
// SummingMergeTree engine reconciles them per fluxnode.
func (w *Writer) WriteProducers(ctx context.Context, producers []Producer) error {
	if len(producers) == 0 {
		return nil
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning producers transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO producers (fluxnode, blocks_produced, first_block, last_block, total_rewards)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing producers insert")
	}
	defer stmt.Close()

	for _, p := range producers {
		if _, err := stmt.ExecContext(ctx, p.FluxNode, p.BlocksProduced, p.FirstBlock, p.LastBlock, p.TotalRewards); err != nil {
			return errors.Wrapf(err, "inserting producer delta for %s", p.FluxNode)
		}
	}
	return w.commit(tx)
}

// WriteSyncState upserts the singleton SyncState row.
func (w *Writer) WriteSyncState(ctx context.Context, st SyncState) error {
	return w.exec(ctx, `
		INSERT INTO sync_state (current_height, chain_height, sync_percentage, last_block_hash, is_syncing, blocks_per_second)
		VALUES (?, ?, ?, ?, ?, ?)`,
		st.CurrentHeight, st.ChainHeight, st.SyncPercentage, st.LastBlockHash, boolToUInt8(st.IsSyncing), st.BlocksPerSecond)
}

// WriteReorg appends a Reorg log row.
func (w *Writer) WriteReorg(ctx context.Context, r Reorg) error {
	return w.exec(ctx, `
		INSERT INTO reorgs (id, from_height, to_height, common_ancestor, old_hash, new_hash, blocks_affected, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FromHeight, r.ToHeight, r.CommonAncestor, r.OldHash, r.NewHash, r.BlocksAffected, r.DetectedAt)
}

// InvalidateBlocksFrom flips is_valid=0 for every Block, Transaction,
// AddressTransaction and SupplyStat row at height ≥ from, the Reorg
// Controller's §4.7 step 3. Each of the four tables is updated in place by
// an ALTER TABLE ... UPDATE mutation executed on tx; UTXO rows are not
// touched here.
func (w *Writer) InvalidateBlocksFrom(ctx context.Context, tx *sql.Tx, from uint32) error {
	stmts := []string{
		`ALTER TABLE blocks UPDATE is_valid = 0 WHERE height >= ?`,
		`ALTER TABLE transactions UPDATE is_valid = 0 WHERE block_height >= ?`,
		`ALTER TABLE address_transactions UPDATE is_valid = 0 WHERE block_height >= ?`,
		`ALTER TABLE supply_stats UPDATE is_valid = 0 WHERE block_height >= ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, from); err != nil {
			return errors.Wrapf(err, "invalidating rows from height %d", from)
		}
	}
	return nil
}

func (w *Writer) commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing batch")
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
