package parser

import (
	"github.com/fluxnode-io/flux-indexer/bytereader"
	"github.com/fluxnode-io/flux-indexer/chainhash"
	"github.com/fluxnode-io/flux-indexer/chainparams"
)

// Internal feature word bits carried by v6 START transactions (§4.4). Bit
// 0x01 marks P2PKH collateral and bit 0x02 P2SH collateral; only the P2SH
// bit actually changes the wire layout that follows.
const (
	featureP2PKHCollateral = 0x01
	featureP2SHCollateral  = 0x02
	featureDelegatesEnabled = 0x0100
)

// readNodeStart decodes a nType=2 (START) FluxNode operation. featureWord is
// 0 for v3/v5 carriers, which have no feature word and always use the
// P2PKH/non-delegate layout; v6 passes the word read by the carrier
// dispatch.
func readNodeStart(r *bytereader.Reader, version uint32, featureWord uint32) (*NodeOperation, error) {
	op := &NodeOperation{Kind: NodeOpStart}

	isP2SH := featureWord&featureP2SHCollateral != 0
	delegatesEnabled := featureWord&featureDelegatesEnabled != 0
	op.P2SHCollateral = isP2SH
	op.DelegatesEnabled = delegatesEnabled

	collateralHashBytes, err := r.ReadBytes("collateral_hash", 32)
	if err != nil {
		return nil, err
	}
	collateralHash, _ := chainhash.NewFromSlice(collateralHashBytes)

	collateralIndex, err := r.ReadUint32LE("collateral_index")
	if err != nil {
		return nil, err
	}
	op.Outpoint = Outpoint{PrevTxID: collateralHash, PrevVout: collateralIndex}

	if isP2SH {
		nodePubKey, err := r.ReadVarBytes("node_pubkey", chainparams.SaplingOutputSize)
		if err != nil {
			return nil, err
		}
		redeemScript, err := r.ReadVarBytes("redeem_script", chainparams.SaplingOutputSize)
		if err != nil {
			return nil, err
		}
		op.NodePubKey = nodePubKey
		op.RedeemScript = redeemScript
	} else {
		collateralPubKey, err := r.ReadVarBytes("collateral_pubkey", chainparams.SaplingOutputSize)
		if err != nil {
			return nil, err
		}
		nodePubKey, err := r.ReadVarBytes("node_pubkey", chainparams.SaplingOutputSize)
		if err != nil {
			return nil, err
		}
		op.CollateralPubKey = collateralPubKey
		op.NodePubKey = nodePubKey
	}

	sigTime, err := r.ReadUint32LE("sig_time")
	if err != nil {
		return nil, err
	}
	op.SigTime = sigTime

	signature, err := r.ReadVarBytes("signature", chainparams.SaplingOutputSize)
	if err != nil {
		return nil, err
	}
	op.Signature = signature

	if delegatesEnabled {
		usingDelegates, err := r.ReadUint8("using_delegates")
		if err != nil {
			return nil, err
		}
		op.UsingDelegates = usingDelegates == 1
		if op.UsingDelegates {
			keyCount, err := r.ReadCompactSizeCapped("delegate_key_count", chainparams.MaxSaplingPartCount)
			if err != nil {
				return nil, err
			}
			keys := make([][]byte, keyCount)
			for i := range keys {
				key, err := r.ReadVarBytes("delegate_key", chainparams.SaplingOutputSize)
				if err != nil {
					return nil, err
				}
				keys[i] = key
			}
			op.DelegateKeys = keys
		}
	}

	return op, nil
}

// readNodeConfirmation decodes a nType=4 (CONFIRMATION) FluxNode operation.
func readNodeConfirmation(r *bytereader.Reader) (*NodeOperation, error) {
	op := &NodeOperation{Kind: NodeOpConfirmation}

	collateralHashBytes, err := r.ReadBytes("collateral_hash", 32)
	if err != nil {
		return nil, err
	}
	collateralHash, _ := chainhash.NewFromSlice(collateralHashBytes)

	collateralIndex, err := r.ReadUint32LE("collateral_index")
	if err != nil {
		return nil, err
	}
	op.Outpoint = Outpoint{PrevTxID: collateralHash, PrevVout: collateralIndex}

	sigTime, err := r.ReadUint32LE("sig_time")
	if err != nil {
		return nil, err
	}
	op.SigTime = sigTime

	benchmarkTier, err := r.ReadInt8("benchmark_tier")
	if err != nil {
		return nil, err
	}
	op.BenchmarkTier = benchmarkTier

	benchmarkSigTime, err := r.ReadUint32LE("benchmark_sig_time")
	if err != nil {
		return nil, err
	}
	op.BenchmarkSigTime = benchmarkSigTime

	updateType, err := r.ReadInt8("update_type")
	if err != nil {
		return nil, err
	}
	op.UpdateType = updateType

	ip, err := r.ReadVarString("ip", 512)
	if err != nil {
		return nil, err
	}
	op.IP = ip

	sigA, err := r.ReadVarBytes("signature_a", chainparams.SaplingOutputSize)
	if err != nil {
		return nil, err
	}
	op.SignatureA = sigA

	sigB, err := r.ReadVarBytes("signature_b", chainparams.SaplingOutputSize)
	if err != nil {
		return nil, err
	}
	op.SignatureB = sigB

	return op, nil
}
