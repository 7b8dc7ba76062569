package parser

import (
	"encoding/hex"

	"github.com/fluxnode-io/flux-indexer/bytereader"
	"github.com/fluxnode-io/flux-indexer/chainhash"
	"github.com/fluxnode-io/flux-indexer/chainparams"
)

// maxTxCount bounds a block's transaction-count varint; well beyond any
// block Flux has ever produced, just large enough to reject an obviously
// desynced read.
const maxTxCount = 1_000_000

// ParseBlock decodes a raw block: the header, then every transaction in
// order, recovering the byte-exact raw hex and txid for each one (§4.2).
// height is required because the Equihash solution-length bound is
// height-dependent; the header's PoW/PoN shape is chosen by its version.
func ParseBlock(raw []byte, height uint32, params chainparams.Params) (*ParsedBlock, error) {
	r := bytereader.New(raw)

	header, err := readHeader(r, params, height)
	if err != nil {
		return nil, bytereader.WrapField(err, "block header")
	}
	headerLength := r.Pos()

	txCount, err := r.ReadCompactSizeCapped("tx_count", maxTxCount)
	if err != nil {
		return nil, err
	}
	txCountVarIntLength := r.Pos() - headerLength

	block := &ParsedBlock{
		Header:              header,
		Height:              height,
		Transactions:        make([]ParsedTx, 0, txCount),
		RawHexByTxID:        make(map[chainhash.Hash]string, txCount),
		HeaderLength:        headerLength,
		TxCountVarIntLength: txCountVarIntLength,
	}

	for i := uint64(0); i < txCount; i++ {
		txStart := r.Pos()
		tx, err := readTransaction(r)
		if err != nil {
			return nil, bytereader.WrapField(err, "transaction")
		}
		txEnd := r.Pos()

		rawTxBytes := r.Bytes()[txStart:txEnd]
		tx.SerializeSize = txEnd - txStart
		tx.TxID = computeTxID(tx, rawTxBytes)

		rawHex := hex.EncodeToString(rawTxBytes)
		block.Transactions = append(block.Transactions, ParsedTx{
			Tx:     tx,
			Offset: txStart,
			Length: tx.SerializeSize,
			RawHex: rawHex,
		})
		block.RawHexByTxID[tx.TxID] = rawHex
	}

	return block, nil
}
