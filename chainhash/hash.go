// Package chainhash implements the 32-byte hash type used throughout the
// indexer. Hashes are stored and computed in internal little-endian byte
// order, matching the chain's wire and header serialization, and are only
// reversed to canonical big-endian hex at the display boundary.
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the size in bytes of the hash type.
const HashSize = 32

// Hash is a 32-byte hash stored in internal (little-endian) byte order.
type Hash [HashSize]byte

// String returns the canonical display form: internal bytes reversed and
// hex-encoded, matching how block explorers and the node's RPC report
// hashes.
func (h Hash) String() string {
	var reversed Hash
	for i := 0; i < HashSize; i++ {
		reversed[i] = h[HashSize-1-i]
	}
	return hex.EncodeToString(reversed[:])
}

// IsZero reports whether h is the all-zero hash, as used by the coinbase
// input's synthetic prevout.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// NewFromSlice builds a Hash from a 32-byte slice already in internal byte
// order.
func NewFromSlice(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, errors.Errorf("invalid hash length %d, expected %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// NewFromDisplayHex parses a canonical (big-endian, reversed) hex string as
// reported by the node's RPC and returns the internal little-endian Hash.
func NewFromDisplayHex(s string) (Hash, error) {
	var h Hash
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, errors.Wrap(err, "decoding hash hex")
	}
	if len(decoded) != HashSize {
		return h, errors.Errorf("invalid hash hex length %d, expected %d", len(decoded), HashSize)
	}
	for i := 0; i < HashSize; i++ {
		h[i] = decoded[HashSize-1-i]
	}
	return h, nil
}

// DoubleSHA256 computes SHA256(SHA256(b)) in internal byte order, the
// standard txid/block-hash derivation for this chain family.
func DoubleSHA256(b []byte) Hash {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return Hash(second)
}
