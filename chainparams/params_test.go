package chainparams

import "testing"

func TestJoinSplitSizesByVersion(t *testing.T) {
	v4 := JoinSplitSizesByVersion(4)
	if v4.CiphertextSize != 549 || v4.TotalSize != 1698 {
		t.Fatalf("unexpected v4 sizes: %+v", v4)
	}

	v2 := JoinSplitSizesByVersion(2)
	if v2.CiphertextSize != 601 || v2.TotalSize != 1802 {
		t.Fatalf("unexpected default/v2 sizes: %+v", v2)
	}
}

func TestCollateralTierFromValue(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		want  CollateralTier
	}{
		{"exact cumulus", 1000 * 1e8, TierCumulus},
		{"cumulus within tolerance", 1000*1e8 + 1, TierCumulus},
		{"exact nimbus", 12500 * 1e8, TierNimbus},
		{"exact stratus", 40000 * 1e8, TierStratus},
		{"between tiers", 20000 * 1e8, TierUnknown},
		{"just outside tolerance", 1000*1e8 + 2*CollateralToleranceUnits, TierUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CollateralTierFromValue(tt.value)
			if got != tt.want {
				t.Fatalf("CollateralTierFromValue(%d) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestCollateralTierString(t *testing.T) {
	if TierCumulus.String() != "CUMULUS" {
		t.Fatalf("unexpected string for TierCumulus: %s", TierCumulus.String())
	}
	if TierUnknown.String() != "UNKNOWN" {
		t.Fatalf("unexpected string for TierUnknown: %s", TierUnknown.String())
	}
}

func TestMaxSolutionLenForHeight(t *testing.T) {
	p := MainNetParams
	if got := p.MaxSolutionLenForHeight(0); got != 1344 {
		t.Fatalf("expected 1344 at height 0, got %d", got)
	}
	if got := p.MaxSolutionLenForHeight(900000); got != 1344 {
		t.Fatalf("expected 1344 at height 900000, got %d", got)
	}
}
