package indexer

import (
	"encoding/hex"

	"github.com/btcsuite/btcutil/base58"
	"github.com/fluxnode-io/flux-indexer/store"
)

// Standard script opcodes needed to classify the handful of templates
// §4.5's "script storage optimization" cares about. The teacher's
// txscript engine (grounded on btcd's) was pruned down to just its VM
// core in this pack, so these templates are matched directly rather than
// through a parsedOpcode walk.
const (
	opDup         = 0x76
	opHash160     = 0xa9
	opEqualVerify = 0x88
	opCheckSig    = 0xac
	opEqual       = 0x87
	opReturn      = 0x6a
	opPushData20  = 0x14
)

// pubKeyHashVersion and scriptHashVersion are the Base58Check version
// bytes used to render a script's embedded hash as a display address.
// Flux, like its Zcash/Bitcoin-derived ancestors, uses single-byte
// version prefixes ahead of a 20-byte RIPEMD160(SHA256(...)) hash.
const (
	pubKeyHashVersion = 0x1c
	scriptHashVersion = 0x1c
)

// classifyScript recognizes standard P2PKH/P2SH templates and OP_RETURN
// data carriers, matching §4.5's "script storage optimization" table.
// Anything else is nonstandard. The returned address is empty for
// nulldata/nonstandard/shielded scripts.
func classifyScript(scriptPubKey []byte) (store.ScriptType, string) {
	if isP2PKH(scriptPubKey) {
		hash := scriptPubKey[3:23]
		return store.ScriptTypeP2PKH, base58.CheckEncode(hash, pubKeyHashVersion)
	}
	if isP2SH(scriptPubKey) {
		hash := scriptPubKey[2:22]
		return store.ScriptTypeP2SH, base58.CheckEncode(hash, scriptHashVersion)
	}
	if len(scriptPubKey) > 0 && scriptPubKey[0] == opReturn {
		return store.ScriptTypeNullData, ""
	}
	return store.ScriptTypeNonStandard, ""
}

func isP2PKH(script []byte) bool {
	return len(script) == 25 &&
		script[0] == opDup &&
		script[1] == opHash160 &&
		script[2] == opPushData20 &&
		script[23] == opEqualVerify &&
		script[24] == opCheckSig
}

func isP2SH(script []byte) bool {
	return len(script) == 23 &&
		script[0] == opHash160 &&
		script[1] == opPushData20 &&
		script[22] == opEqual
}

// reconstructScriptHex rebuilds the on-wire script hex for standard
// templates whose script_pubkey was stored empty, the read-side half of
// the storage optimization.
func reconstructScriptHex(scriptType store.ScriptType, address string) (string, error) {
	switch scriptType {
	case store.ScriptTypeP2PKH:
		hash, _, err := base58.CheckDecode(address)
		if err != nil {
			return "", err
		}
		script := append([]byte{opDup, opHash160, opPushData20}, hash...)
		script = append(script, opEqualVerify, opCheckSig)
		return hex.EncodeToString(script), nil
	case store.ScriptTypeP2SH:
		hash, _, err := base58.CheckDecode(address)
		if err != nil {
			return "", err
		}
		script := append([]byte{opHash160, opPushData20}, hash...)
		script = append(script, opEqual)
		return hex.EncodeToString(script), nil
	default:
		return "", nil
	}
}
