package parser

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/fluxnode-io/flux-indexer/chainparams"
)

func buildPoWHeader(version uint32, solutionLen int) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, version)
	buf.Write(make([]byte, 32)) // prev_hash
	buf.Write(make([]byte, 32)) // merkle_root
	buf.Write(make([]byte, 32)) // reserved_or_sapling_root
	binary.Write(&buf, binary.LittleEndian, uint32(1700000000)) // time
	binary.Write(&buf, binary.LittleEndian, uint32(0x1e7fffff)) // bits
	buf.Write(make([]byte, 32))                                 // nonce
	writeVarBytes(&buf, make([]byte, solutionLen))              // solution
	return buf.Bytes()
}

func TestParseBlockRoundTripLength(t *testing.T) {
	header := buildPoWHeader(4, 100)
	tx := buildLegacyCoinbaseTx(1250000000)

	var raw bytes.Buffer
	raw.Write(header)
	writeCompactSize(&raw, 1) // tx_count
	raw.Write(tx)

	params := chainparams.MainNetParams
	block, err := ParseBlock(raw.Bytes(), 500, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if block.Header.IsPoN {
		t.Fatal("version 4 header must decode as PoW, not PoN")
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(block.Transactions))
	}

	total := block.HeaderLength + block.TxCountVarIntLength
	for _, ptx := range block.Transactions {
		total += ptx.Length
	}
	if total != raw.Len() {
		t.Fatalf("round-trip length mismatch: header(%d)+varint(%d)+sum(tx lengths) = %d, want %d",
			block.HeaderLength, block.TxCountVarIntLength, total, raw.Len())
	}

	ptx := block.Transactions[0]
	if _, ok := block.RawHexByTxID[ptx.Tx.TxID]; !ok {
		t.Fatal("expected raw hex map to contain the transaction's txid")
	}
	if !ptx.Tx.IsCoinbase() {
		t.Fatal("expected coinbase transaction")
	}
}

func TestParseBlockPoNHeader(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(100)) // at PoNVersionFloor
	buf.Write(make([]byte, 32))
	buf.Write(make([]byte, 32))
	buf.Write(make([]byte, 32))
	binary.Write(&buf, binary.LittleEndian, uint32(1700000000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x1e7fffff))
	buf.Write(make([]byte, 32))              // nodes_collateral_hash
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // nodes_collateral_index
	writeVarBytes(&buf, make([]byte, 65))    // signature

	writeCompactSize(&buf, 1)
	buf.Write(buildLegacyCoinbaseTx(1250000000))

	block, err := ParseBlock(buf.Bytes(), 900000, chainparams.MainNetParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !block.Header.IsPoN {
		t.Fatal("version 100 header must decode as PoN")
	}
}
