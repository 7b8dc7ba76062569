package parser

import (
	"github.com/pkg/errors"

	"github.com/fluxnode-io/flux-indexer/bytereader"
	"github.com/fluxnode-io/flux-indexer/chainhash"
	"github.com/fluxnode-io/flux-indexer/chainparams"
)

// baseHeaderBytes is the size of the fixed portion common to both header
// shapes: version(4) + prev(32) + merkle(32) + reserved/sapling-root(32) +
// time(4) + bits(4) = 108 bytes (§4.2).
const baseHeaderBytes = 4 + 32 + 32 + 32 + 4 + 4

// maxPoWSolutionBytes is a hard upper bound used only to keep a corrupt
// length prefix from causing an unbounded allocation; the height-dependent
// regime in chainparams is the real sanity check.
const maxPoWSolutionBytes = 8192

// readHeader decodes the fixed 108-byte prefix, then dispatches to the PoW
// or PoN extension based on the version field (§4.2).
func readHeader(r *bytereader.Reader, params chainparams.Params, height uint32) (BlockHeader, error) {
	var h BlockHeader

	if err := r.Ensure("header", baseHeaderBytes); err != nil {
		return h, err
	}

	version, err := r.ReadUint32LE("version")
	if err != nil {
		return h, err
	}
	h.Version = version

	prevBytes, err := r.ReadBytes("prev_hash", 32)
	if err != nil {
		return h, err
	}
	h.PrevHash, _ = chainhash.NewFromSlice(prevBytes)

	merkleBytes, err := r.ReadBytes("merkle_root", 32)
	if err != nil {
		return h, err
	}
	h.MerkleRoot, _ = chainhash.NewFromSlice(merkleBytes)

	reservedBytes, err := r.ReadBytes("reserved_or_sapling_root", 32)
	if err != nil {
		return h, err
	}
	h.ReservedRoot, _ = chainhash.NewFromSlice(reservedBytes)

	t, err := r.ReadUint32LE("time")
	if err != nil {
		return h, err
	}
	h.Time = t

	bits, err := r.ReadUint32LE("bits")
	if err != nil {
		return h, err
	}
	h.Bits = bits

	if version >= params.PoNVersionFloor {
		h.IsPoN = true
		if err := readPoNExtension(r, &h); err != nil {
			return h, err
		}
		return h, nil
	}

	if err := readPoWExtension(r, params, height, &h); err != nil {
		return h, err
	}
	return h, nil
}

func readPoNExtension(r *bytereader.Reader, h *BlockHeader) error {
	collateralBytes, err := r.ReadBytes("nodes_collateral_hash", 32)
	if err != nil {
		return err
	}
	h.NodesCollateralHash, _ = chainhash.NewFromSlice(collateralBytes)

	idx, err := r.ReadUint32LE("nodes_collateral_index")
	if err != nil {
		return err
	}
	h.NodesCollateralIndex = idx

	sig, err := r.ReadVarBytes("signature", maxPoWSolutionBytes)
	if err != nil {
		return err
	}
	h.Signature = sig
	return nil
}

func readPoWExtension(r *bytereader.Reader, params chainparams.Params, height uint32, h *BlockHeader) error {
	nonceBytes, err := r.ReadBytes("nonce", 32)
	if err != nil {
		return err
	}
	copy(h.Nonce[:], nonceBytes)

	solution, err := r.ReadVarBytes("solution", maxPoWSolutionBytes)
	if err != nil {
		return err
	}

	maxLen := params.MaxSolutionLenForHeight(height)
	if maxLen > 0 && uint32(len(solution)) > maxLen {
		return errors.Errorf("equihash solution length %d exceeds maximum %d for height %d", len(solution), maxLen, height)
	}
	h.Solution = solution
	return nil
}
