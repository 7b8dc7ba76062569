package indexer

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/fluxnode-io/flux-indexer/parser"
)

// TestShieldedFlowFee exercises spec scenario 6: one transparent input of
// 100, one transparent output of 90, value_balance = -9 (9 coin entering
// the shielded pool). Expect fee = 100 - 90 + (-9) = 1.
func TestShieldedFlowFee(t *testing.T) {
	flow := parser.ShieldedFlow{Present: true, ValueBalance: -9}

	fee := computeFee(100, 90, flow)
	if fee != 1 {
		t.Fatalf("expected fee 1, got %d", fee)
	}

	blockTerm := shieldedChangeBlockTerm(flow)
	if blockTerm != 9 {
		t.Fatalf("expected shielded_change_block term 9 (entering pool), got %d", blockTerm)
	}
}

func TestComputeFeeClampsToZero(t *testing.T) {
	flow := parser.ShieldedFlow{}
	fee := computeFee(50, 100, flow)
	if fee != 0 {
		t.Fatalf("expected fee clamped to 0, got %d", fee)
	}
}

func TestComputeFeeNoShieldedComponent(t *testing.T) {
	fee := computeFee(100, 90, parser.ShieldedFlow{Present: false})
	if fee != 10 {
		t.Fatalf("expected fee 10 for a purely transparent tx, got %d", fee)
	}
}

// TestSupplyStateAdvance exercises §4.5 step 7's recurrence directly:
// transparent_supply(h) = transparent_supply(h-1) + coinbase_outputs(h) -
// shielded_change_block(h); shielded_pool(h) = shielded_pool(h-1) +
// shielded_change_block(h).
func TestSupplyStateAdvance(t *testing.T) {
	s := supplyState{lastHeight: 99, lastTransparent: 1_000_000, lastShielded: 5_000, initialized: true}

	transparent, shielded := s.advance(100, 625_000_000, 9)
	if transparent != 1_000_000+625_000_000-9 {
		t.Fatalf("unexpected transparent supply, state: %s", spew.Sdump(s))
	}
	if shielded != 5_000+9 {
		t.Fatalf("unexpected shielded pool, state: %s", spew.Sdump(s))
	}
	if s.lastHeight != 100 {
		t.Fatalf("expected lastHeight updated to 100, state: %s", spew.Sdump(s))
	}
}
