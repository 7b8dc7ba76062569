// Package store implements the nine append-only record streams of
// SPEC_FULL.md §3 against a ClickHouse analytics store, plus the Writer
// Adapters of §4.8.
package store

import "github.com/google/uuid"

// Block mirrors the Block entity of §3.
type Block struct {
	Height          uint32
	Hash            string
	PrevHash        string
	MerkleRoot      string
	Timestamp       uint32
	Version         uint32
	Size            uint32
	TxCount         uint32
	Producer        string
	ProducerReward  int64
	Difficulty      float64
	Chainwork       string
	IsValid         bool
}

// Transaction mirrors the Transaction entity of §3.
type Transaction struct {
	TxID          string
	BlockHeight   uint32
	TxIndex       uint32
	Timestamp     uint32
	Version       uint32
	LockTime      uint32
	Size          uint32
	VSize         uint32
	InputCount    uint32
	OutputCount   uint32
	InputTotal    int64
	OutputTotal   int64
	Fee           int64
	IsCoinbase    bool
	IsFluxNodeTx  bool
	FluxNodeType  int8 // 0 = not a fluxnode tx; 2 = START, 4 = CONFIRMATION
	IsShielded    bool
	IsValid       bool
}

// ScriptType enumerates the output script classifications referenced by
// §4.5's "script storage optimization".
type ScriptType string

const (
	ScriptTypeP2PKH       ScriptType = "p2pkh"
	ScriptTypeP2SH        ScriptType = "p2sh"
	ScriptTypeNullData    ScriptType = "nulldata"
	ScriptTypeNonStandard ScriptType = "nonstandard"
	ScriptTypeShielded    ScriptType = "shielded"
	// ScriptTypeReorgSuperseded marks a UTXO row inserted purely to
	// supersede a reorged-out creation (§4.7 step 4).
	ScriptTypeReorgSuperseded ScriptType = "reorg-superseded"
)

// UTXO mirrors the UTXO entity of §3. ScriptPubKey is left empty for
// reconstructible standard types per §4.5's storage optimization.
type UTXO struct {
	TxID             string
	Vout             uint32
	Address          string
	Value            int64
	ScriptPubKey     string
	ScriptType       ScriptType
	BlockHeight      uint32
	Spent            bool
	SpentTxID        string
	SpentBlockHeight uint32
	Version          uint64
}

// AddressDirection is the sent/received classification of an
// AddressTransaction row.
type AddressDirection string

const (
	DirectionSent     AddressDirection = "sent"
	DirectionReceived AddressDirection = "received"
)

// AddressTransaction mirrors the AddressTransaction entity of §3.
type AddressTransaction struct {
	Address       string
	BlockHeight   uint32
	TxIndex       uint32
	TxID          string
	BlockHash     string
	Direction     AddressDirection
	ReceivedValue int64
	SentValue     int64
	IsCoinbase    bool
	IsValid       bool
}

// AddressSummaryDelta is one batch's contribution to an AddressSummary
// row; the store merges these by address (§3's "maintained by
// insert-delta" lifecycle).
type AddressSummaryDelta struct {
	Address        string
	BalanceDelta   int64
	TxCountDelta   int64
	ReceivedDelta  int64
	SentDelta      int64
	UnspentDelta   int64
	FirstSeen      uint32
	LastActivity   uint32
}

// SupplyStat mirrors the SupplyStat entity of §3.
type SupplyStat struct {
	BlockHeight       uint32
	Timestamp         uint32
	TransparentSupply int64
	ShieldedPool      int64
	TotalSupply       int64
	IsValid           bool
}

// Producer mirrors the Producer entity of §3.
type Producer struct {
	FluxNode       string
	BlocksProduced uint64
	FirstBlock     uint32
	LastBlock      uint32
	TotalRewards   int64
}

// SyncState mirrors the singleton SyncState entity of §3.
type SyncState struct {
	CurrentHeight   uint32
	ChainHeight     uint32
	SyncPercentage  float64
	LastBlockHash   string
	IsSyncing       bool
	BlocksPerSecond float64
}

// Reorg mirrors the Reorg log entity of §3.
type Reorg struct {
	ID             uuid.UUID
	FromHeight     uint32
	ToHeight       uint32
	CommonAncestor uint32
	OldHash        string
	NewHash        string
	BlocksAffected uint32
	DetectedAt     uint32
}

// NewReorgID generates a fresh primary key for a Reorg log row.
func NewReorgID() uuid.UUID {
	return uuid.New()
}
