package indexer

import "github.com/fluxnode-io/flux-indexer/parser"

// BlockInput is one (parsed_block, raw_hex) pair as fed to IndexBatch,
// matching the public operation signature of §4.5.
type BlockInput struct {
	Block  *parser.ParsedBlock
	RawHex string
}

// Result summarizes one IndexBatch call for the sync loop and for tests.
type Result struct {
	BlocksIndexed   int
	TxIndexed       int
	MissingUTXOs    int
	LastHeight      uint32
	LastBlockHash   string
}

// addressDelta accumulates one transaction's effect on one address within
// a batch, before being folded into the batch-wide AddressSummaryDelta set
// (§4.5 step 5).
type addressDelta struct {
	received   int64
	sent       int64
	txCount    int64
	unspent    int64
	firstSeen  uint32
	lastActive uint32
}
