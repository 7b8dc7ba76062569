package indexer

import (
	"encoding/hex"
	"testing"

	"github.com/fluxnode-io/flux-indexer/store"
)

func buildP2PKH(hash [20]byte) []byte {
	script := []byte{opDup, opHash160, opPushData20}
	script = append(script, hash[:]...)
	script = append(script, opEqualVerify, opCheckSig)
	return script
}

func buildP2SH(hash [20]byte) []byte {
	script := []byte{opHash160, opPushData20}
	script = append(script, hash[:]...)
	script = append(script, opEqual)
	return script
}

func TestClassifyScriptP2PKH(t *testing.T) {
	var hash [20]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	scriptType, address := classifyScript(buildP2PKH(hash))
	if scriptType != store.ScriptTypeP2PKH {
		t.Fatalf("expected P2PKH, got %s", scriptType)
	}
	if address == "" {
		t.Fatal("expected a non-empty rendered address")
	}
}

func TestClassifyScriptP2SH(t *testing.T) {
	var hash [20]byte
	for i := range hash {
		hash[i] = byte(20 - i)
	}
	scriptType, address := classifyScript(buildP2SH(hash))
	if scriptType != store.ScriptTypeP2SH {
		t.Fatalf("expected P2SH, got %s", scriptType)
	}
	if address == "" {
		t.Fatal("expected a non-empty rendered address")
	}
}

func TestClassifyScriptNullData(t *testing.T) {
	scriptType, address := classifyScript([]byte{opReturn, 0x04, 0xde, 0xad, 0xbe, 0xef})
	if scriptType != store.ScriptTypeNullData {
		t.Fatalf("expected nulldata, got %s", scriptType)
	}
	if address != "" {
		t.Fatalf("expected empty address for nulldata, got %q", address)
	}
}

func TestClassifyScriptNonStandard(t *testing.T) {
	scriptType, address := classifyScript([]byte{0x51, 0x52, 0x93})
	if scriptType != store.ScriptTypeNonStandard {
		t.Fatalf("expected nonstandard, got %s", scriptType)
	}
	if address != "" {
		t.Fatalf("expected empty address for nonstandard, got %q", address)
	}
}

func TestReconstructScriptHexRoundTrip(t *testing.T) {
	var hash [20]byte
	for i := range hash {
		hash[i] = byte(i * 3)
	}
	original := buildP2PKH(hash)
	_, address := classifyScript(original)

	hexScript, err := reconstructScriptHex(store.ScriptTypeP2PKH, address)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hexScript) != len(original)*2 {
		t.Fatalf("unexpected reconstructed script length: %d", len(hexScript))
	}
	if hexScript != hex.EncodeToString(original) {
		t.Fatalf("reconstructed script %s does not match original %x", hexScript, original)
	}
}
