package indexer

import "github.com/fluxnode-io/flux-indexer/parser"

// shieldedChangeTx returns a transaction's net shielded-to-transparent
// flow: Σ(vpub_new − vpub_old) + value_balance. Positive means funds left
// the shielded pool into this transaction's transparent outputs, which
// raises its apparent fee (§4.5 step 6).
func shieldedChangeTx(flow parser.ShieldedFlow) int64 {
	if !flow.Present {
		return 0
	}
	return (flow.VPubNew - flow.VPubOld) + flow.ValueBalance
}

// shieldedChangeBlockTerm is one transaction's contribution to the
// block-wide shielded_change_block term of §4.5 step 7: the sign is
// flipped relative to shieldedChangeTx since supply accounting tracks
// funds *entering* the shielded pool as positive.
func shieldedChangeBlockTerm(flow parser.ShieldedFlow) int64 {
	if !flow.Present {
		return 0
	}
	return (flow.VPubOld - flow.VPubNew) - flow.ValueBalance
}

// computeFee implements §4.5 step 6 for a single non-coinbase transaction:
// fee = input_total − output_total + shielded_change, clamped to 0.
func computeFee(inputTotal, outputTotal int64, flow parser.ShieldedFlow) int64 {
	fee := inputTotal - outputTotal + shieldedChangeTx(flow)
	if fee < 0 {
		return 0
	}
	return fee
}

// supplyState tracks the Indexer's in-memory running supply totals, only
// re-read from the store when they don't match the expected previous
// height (§4.5 step 7's "start-of-run or gap recovery" clause).
type supplyState struct {
	lastHeight      uint32
	lastTransparent int64
	lastShielded    int64
	initialized     bool
}

// advance computes the next height's (transparent_supply, shielded_pool)
// pair given this block's coinbase output total and the sum of its
// transactions' shieldedChangeBlockTerm contributions.
func (s *supplyState) advance(height uint32, coinbaseOutputs int64, shieldedChangeBlock int64) (transparent, shielded int64) {
	transparent = s.lastTransparent + coinbaseOutputs - shieldedChangeBlock
	shielded = s.lastShielded + shieldedChangeBlock
	s.lastHeight = height
	s.lastTransparent = transparent
	s.lastShielded = shielded
	s.initialized = true
	return transparent, shielded
}
