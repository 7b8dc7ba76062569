package parser

import (
	"bytes"
	"encoding/binary"

	"github.com/fluxnode-io/flux-indexer/chainhash"
)

// computeTxID derives the transaction hash. Transparent/shielded variants
// hash their exact raw bytes; FluxNode operations hash a field-by-field
// re-serialization that omits the signature vector (and, for START, any
// delegate payload), matching the daemon's own
// signature-excluded txid serialization (§4.4).
func computeTxID(tx *Transaction, raw []byte) chainhash.Hash {
	switch tx.Variant {
	case VariantNodeStart, VariantNodeConfirm:
		return chainhash.DoubleSHA256(serializeNodeOpForTxID(tx))
	default:
		return chainhash.DoubleSHA256(raw)
	}
}

// serializeNodeOpForTxID rebuilds the signature-excluded preimage for a
// FluxNode operation transaction from its already-decoded fields, rather
// than slicing the raw bytes, so the exclusion boundary can never drift
// from the field layout in fluxnode.go.
func serializeNodeOpForTxID(tx *Transaction) []byte {
	var buf bytes.Buffer
	op := tx.NodeOp

	binary.Write(&buf, binary.LittleEndian, tx.VersionRaw)
	if tx.Version == 6 {
		binary.Write(&buf, binary.LittleEndian, tx.VersionGroup)
	}
	buf.WriteByte(byte(op.Kind))

	buf.Write(op.Outpoint.PrevTxID[:])
	binary.Write(&buf, binary.LittleEndian, op.Outpoint.PrevVout)

	switch op.Kind {
	case NodeOpStart:
		if op.P2SHCollateral {
			writeVarBytes(&buf, op.NodePubKey)
			writeVarBytes(&buf, op.RedeemScript)
		} else {
			writeVarBytes(&buf, op.CollateralPubKey)
			writeVarBytes(&buf, op.NodePubKey)
		}
		binary.Write(&buf, binary.LittleEndian, op.SigTime)
		// signature and delegate_keys are excluded from the txid preimage.
	case NodeOpConfirmation:
		binary.Write(&buf, binary.LittleEndian, op.SigTime)
		buf.WriteByte(byte(op.BenchmarkTier))
		binary.Write(&buf, binary.LittleEndian, op.BenchmarkSigTime)
		buf.WriteByte(byte(op.UpdateType))
		writeVarString(&buf, op.IP)
		// signature_a and signature_b are excluded from the txid preimage.
	}

	return buf.Bytes()
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	writeCompactSize(buf, uint64(len(b)))
	buf.Write(b)
}

func writeVarString(buf *bytes.Buffer, s string) {
	writeVarBytes(buf, []byte(s))
}

func writeCompactSize(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, n)
	}
}
