// Package parser implements the byte-level Block Parser, Transaction
// Parser, and FluxNode Operation Parser described in spec §4.2-§4.4: given
// raw block or transaction bytes, recover every field needed by the batch
// indexer without performing any consensus validation.
package parser

import "github.com/fluxnode-io/flux-indexer/chainhash"

// Outpoint identifies a previously created transaction output.
type Outpoint struct {
	PrevTxID chainhash.Hash
	PrevVout uint32
}

// TxIn is a transparent transaction input.
type TxIn struct {
	Outpoint  Outpoint
	SigScript []byte
	Sequence  uint32
}

// IsCoinbase reports whether this input is the synthetic coinbase marker:
// all-zero prevout hash and prevout index 0xFFFFFFFF.
func (in TxIn) IsCoinbase() bool {
	return in.Outpoint.PrevTxID.IsZero() && in.Outpoint.PrevVout == 0xFFFFFFFF
}

// TxOut is a transparent transaction output.
type TxOut struct {
	Value        int64
	ScriptPubKey []byte
}

// ShieldedFlow holds the soft-extracted flow scalars used by fee and
// supply computation. Present is false when the transaction variant has no
// shielded component, or when the extracted values failed the
// plausible-supply bound check and were dropped (§4.3).
type ShieldedFlow struct {
	Present    bool
	VPubOld    int64 // Sprout JoinSplit: transparent funds entering the pool
	VPubNew    int64 // Sprout JoinSplit: transparent funds leaving the pool
	ValueBalance int64 // Sapling: positive means funds leaving the pool
}

// TxVariant tags which of the five decoded shapes (covering the six wire
// versions) a Transaction decodes to. The batch indexer dispatches on this rather than branching
// inside one decoder, so a desync in one variant's layout cannot leak into
// another's offsets (§9).
type TxVariant int

const (
	VariantLegacy TxVariant = iota
	VariantSprout
	VariantSapling
	VariantNodeStart
	VariantNodeConfirm
)

func (v TxVariant) String() string {
	switch v {
	case VariantLegacy:
		return "legacy"
	case VariantSprout:
		return "sprout"
	case VariantSapling:
		return "sapling"
	case VariantNodeStart:
		return "fluxnode-start"
	case VariantNodeConfirm:
		return "fluxnode-confirmation"
	default:
		return "unknown"
	}
}

// Transaction is the decoded form of any of the six wire versions. Fields
// that don't apply to a given Variant are left at their zero value; vin/vout
// are empty for the two FluxNode operation variants, which carry no
// transparent value transfer (§4.4).
type Transaction struct {
	TxID         chainhash.Hash
	Variant      TxVariant
	VersionRaw   uint32
	Version      uint32
	Overwintered bool
	VersionGroup uint32
	LockTime     uint32
	ExpiryHeight uint32

	Vin  []TxIn
	Vout []TxOut

	Shielded ShieldedFlow

	// NodeOp is non-nil for VariantNodeStart / VariantNodeConfirm.
	NodeOp *NodeOperation

	// SerializeSize is the total encoded length of the transaction, used
	// by the block parser to locate the next transaction's start offset
	// and to recover this transaction's raw hex slice.
	SerializeSize int
}

// VinOutpoints returns the outpoints this transaction spends. Part of the
// small shared capability set the indexer uses instead of branching on
// Variant directly (§9).
func (tx *Transaction) VinOutpoints() []Outpoint {
	outs := make([]Outpoint, len(tx.Vin))
	for i, in := range tx.Vin {
		outs[i] = in.Outpoint
	}
	return outs
}

// VoutEntries returns the outputs this transaction creates.
func (tx *Transaction) VoutEntries() []TxOut {
	return tx.Vout
}

// ShieldedFlowValues returns the transaction's net shielded flow, if any.
func (tx *Transaction) ShieldedFlowValues() ShieldedFlow {
	return tx.Shielded
}

// NodeOperation returns the decoded FluxNode payload, or nil if this
// transaction is not a node-registration operation.
func (tx *Transaction) NodeOperation() *NodeOperation {
	return tx.NodeOp
}

// IsCoinbase reports whether this transaction's first input is the
// synthetic coinbase marker.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Vin) > 0 && tx.Vin[0].IsCoinbase()
}

// NodeOpKind mirrors the daemon's nType selector.
type NodeOpKind int8

const (
	NodeOpStart        NodeOpKind = 2
	NodeOpConfirmation NodeOpKind = 4
)

// NodeOperation is the decoded payload of a FluxNode START or CONFIRMATION
// transaction (§4.4).
type NodeOperation struct {
	Kind NodeOpKind

	Outpoint Outpoint
	SigTime  uint32

	// START-only fields.
	P2SHCollateral     bool
	DelegatesEnabled   bool
	CollateralPubKey   []byte
	NodePubKey         []byte
	RedeemScript       []byte
	Signature          []byte
	UsingDelegates     bool
	DelegateKeys       [][]byte

	// CONFIRMATION-only fields.
	BenchmarkTier      int8
	BenchmarkSigTime   uint32
	UpdateType         int8
	IP                 string
	SignatureA         []byte
	SignatureB         []byte
}

// ParsedTx is the output of scanning one transaction out of a raw block:
// the decoded Transaction plus its location within the block's raw bytes,
// so the byte-exact hex can be recovered without re-fetching (§4.2).
type ParsedTx struct {
	Tx      *Transaction
	Offset  int
	Length  int
	RawHex  string
}

// BlockHeader is the decoded form of either header shape (§4.2).
type BlockHeader struct {
	Version      uint32
	PrevHash     chainhash.Hash
	MerkleRoot   chainhash.Hash
	ReservedRoot chainhash.Hash // Sapling root slot; reserved pre-Sapling
	Time         uint32
	Bits         uint32

	IsPoN bool

	// PoW fields.
	Nonce    [32]byte
	Solution []byte

	// PoN fields.
	NodesCollateralHash  chainhash.Hash
	NodesCollateralIndex uint32
	Signature            []byte
}

// ParsedBlock is the Block Parser's output: the header, every transaction
// located within the block's raw bytes, and a per-block raw-hex map keyed
// by txid for cheap re-slicing on demand.
type ParsedBlock struct {
	Header       BlockHeader
	Height       uint32
	Transactions []ParsedTx
	RawHexByTxID map[chainhash.Hash]string

	// HeaderLength + TxCountVarIntLength + sum(tx.Length) must equal the
	// total raw block length (§8 round-trip property).
	HeaderLength        int
	TxCountVarIntLength int
}
