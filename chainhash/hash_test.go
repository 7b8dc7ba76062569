package chainhash

import "testing"

func TestStringReversesByteOrder(t *testing.T) {
	var h Hash
	h[0] = 0xaa
	h[31] = 0xbb
	s := h.String()
	if s[:2] != "bb" {
		t.Fatalf("expected display form to start with bb (last internal byte), got %s", s[:2])
	}
	if s[len(s)-2:] != "aa" {
		t.Fatalf("expected display form to end with aa (first internal byte), got %s", s[len(s)-2:])
	}
}

func TestDisplayHexRoundTrip(t *testing.T) {
	const display = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
	h, err := NewFromDisplayHex(display)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.String(); got != display {
		t.Fatalf("round trip mismatch: got %s, want %s", got, display)
	}
}

func TestIsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Fatal("expected zero hash to report IsZero")
	}
	h[5] = 1
	if h.IsZero() {
		t.Fatal("expected non-zero hash to not report IsZero")
	}
}

func TestDoubleSHA256(t *testing.T) {
	got := DoubleSHA256([]byte("flux"))
	want := DoubleSHA256([]byte("flux"))
	if got != want {
		t.Fatal("expected deterministic output")
	}
}
