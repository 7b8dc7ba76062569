package parser

import (
	"github.com/pkg/errors"

	"github.com/fluxnode-io/flux-indexer/bytereader"
	"github.com/fluxnode-io/flux-indexer/chainhash"
	"github.com/fluxnode-io/flux-indexer/chainparams"
)

const (
	overwinteredBit = uint32(1) << 31
	versionMask     = overwinteredBit - 1
)

// readTransaction decodes one transaction starting at the reader's current
// position and returns the fully parsed Transaction. The caller is
// responsible for computing TxID and SerializeSize from the byte range it
// consumed; readTransaction only decodes fields.
func readTransaction(r *bytereader.Reader) (*Transaction, error) {
	versionRaw, err := r.ReadUint32LE("version_raw")
	if err != nil {
		return nil, err
	}

	overwintered := versionRaw&overwinteredBit != 0
	version := versionRaw & versionMask

	tx := &Transaction{
		VersionRaw:   versionRaw,
		Version:      version,
		Overwintered: overwintered,
	}

	switch version {
	case 3, 5, 6:
		return readFluxNodeCarrier(r, tx)
	case 2:
		return readSprout(r, tx)
	case 4:
		if !overwintered {
			return nil, errors.New("version 4 transaction missing overwintered flag")
		}
		return readSapling(r, tx)
	case 1:
		return readLegacy(r, tx)
	default:
		return nil, errors.Errorf("unsupported transaction version %d", version)
	}
}

// readFluxNodeCarrier reads the header shared by versions 3/5/6 (the
// version_group_id is NOT present on these FluxNode-only versions; they
// diverge from the Sapling/Overwinter scheme immediately after the raw
// version field), then dispatches on the nType selector (§4.3-§4.4).
func readFluxNodeCarrier(r *bytereader.Reader, tx *Transaction) (*Transaction, error) {
	if tx.Version == 6 {
		featureWord, err := r.ReadUint32LE("internal_feature_word")
		if err != nil {
			return nil, err
		}
		tx.VersionGroup = featureWord
	}

	nTypeRaw, err := r.ReadUint8("ntype")
	if err != nil {
		return nil, err
	}

	switch NodeOpKind(nTypeRaw) {
	case NodeOpStart:
		tx.Variant = VariantNodeStart
		op, err := readNodeStart(r, tx.Version, tx.VersionGroup)
		if err != nil {
			return nil, bytereader.WrapField(err, "fluxnode start")
		}
		tx.NodeOp = op
	case NodeOpConfirmation:
		tx.Variant = VariantNodeConfirm
		op, err := readNodeConfirmation(r)
		if err != nil {
			return nil, bytereader.WrapField(err, "fluxnode confirmation")
		}
		tx.NodeOp = op
	default:
		return nil, errors.Errorf("unrecognized fluxnode ntype %d in v%d transaction", nTypeRaw, tx.Version)
	}
	return tx, nil
}

func readLegacy(r *bytereader.Reader, tx *Transaction) (*Transaction, error) {
	tx.Variant = VariantLegacy
	vin, err := readVin(r)
	if err != nil {
		return nil, err
	}
	tx.Vin = vin

	vout, err := readVout(r)
	if err != nil {
		return nil, err
	}
	tx.Vout = vout

	lockTime, err := r.ReadUint32LE("locktime")
	if err != nil {
		return nil, err
	}
	tx.LockTime = lockTime
	return tx, nil
}

func readSprout(r *bytereader.Reader, tx *Transaction) (*Transaction, error) {
	tx.Variant = VariantSprout
	vin, err := readVin(r)
	if err != nil {
		return nil, err
	}
	tx.Vin = vin

	vout, err := readVout(r)
	if err != nil {
		return nil, err
	}
	tx.Vout = vout

	lockTime, err := r.ReadUint32LE("locktime")
	if err != nil {
		return nil, err
	}
	tx.LockTime = lockTime

	flow, err := readJoinSplits(r, tx.Version)
	if err != nil {
		return nil, err
	}
	tx.Shielded = flow
	return tx, nil
}

func readSapling(r *bytereader.Reader, tx *Transaction) (*Transaction, error) {
	tx.Variant = VariantSapling

	groupID, err := r.ReadUint32LE("version_group_id")
	if err != nil {
		return nil, err
	}
	tx.VersionGroup = groupID
	if groupID != chainparams.SaplingVersionGroupID {
		return nil, errors.Errorf("version 4 transaction has unexpected version_group_id 0x%08x", groupID)
	}

	vin, err := readVin(r)
	if err != nil {
		return nil, err
	}
	tx.Vin = vin

	vout, err := readVout(r)
	if err != nil {
		return nil, err
	}
	tx.Vout = vout

	lockTime, err := r.ReadUint32LE("locktime")
	if err != nil {
		return nil, err
	}
	tx.LockTime = lockTime

	expiry, err := r.ReadUint32LE("expiry_height")
	if err != nil {
		return nil, err
	}
	tx.ExpiryHeight = expiry

	// value_balance and the two Sapling counts are always present at v4,
	// never inferred from a lookahead byte (§4.3 critical rule).
	valueBalance, err := r.ReadInt64LE("value_balance")
	if err != nil {
		return nil, err
	}

	spendCount, err := r.ReadCompactSizeCapped("shielded_spend_count", chainparams.MaxSaplingPartCount)
	if err != nil {
		return nil, err
	}
	if err := skipSaplingParts(r, "shielded_spend", int(spendCount), chainparams.SaplingSpendSize); err != nil {
		return nil, err
	}

	outputCount, err := r.ReadCompactSizeCapped("shielded_output_count", chainparams.MaxSaplingPartCount)
	if err != nil {
		return nil, err
	}
	if err := skipSaplingParts(r, "shielded_output", int(outputCount), chainparams.SaplingOutputSize); err != nil {
		return nil, err
	}

	joinSplitFlow, err := readJoinSplits(r, tx.Version)
	if err != nil {
		return nil, err
	}

	if spendCount > 0 || outputCount > 0 {
		if _, err := r.ReadBytes("binding_sig", chainparams.BindingSigSize); err != nil {
			return nil, err
		}
	}

	if abs64(valueBalance) > chainparams.PlausibleSupplyCeiling {
		// Drop the entire shielded record rather than propagate a parse
		// desync into fee/supply math (§4.3); Shielded keeps its zero
		// value, so Present is false.
		return tx, nil
	}

	tx.Shielded = ShieldedFlow{
		Present:      true,
		VPubOld:      joinSplitFlow.VPubOld,
		VPubNew:      joinSplitFlow.VPubNew,
		ValueBalance: valueBalance,
	}
	return tx, nil
}

func skipSaplingParts(r *bytereader.Reader, field string, count int, size int) error {
	for i := 0; i < count; i++ {
		if err := r.Skip(field, size); err != nil {
			return err
		}
	}
	return nil
}

func readVin(r *bytereader.Reader) ([]TxIn, error) {
	count, err := r.ReadCompactSizeCapped("vin_count", chainparams.MaxVinVoutCount)
	if err != nil {
		return nil, err
	}
	vin := make([]TxIn, count)
	for i := range vin {
		prevTxIDBytes, err := r.ReadBytes("prev_txid", 32)
		if err != nil {
			return nil, err
		}
		prevTxID, _ := chainhash.NewFromSlice(prevTxIDBytes)

		prevVout, err := r.ReadUint32LE("prev_vout")
		if err != nil {
			return nil, err
		}

		sigScript, err := r.ReadVarBytes("script_sig", uint64(chainparams.MaxVinVoutCount*1024))
		if err != nil {
			return nil, err
		}

		sequence, err := r.ReadUint32LE("sequence")
		if err != nil {
			return nil, err
		}

		vin[i] = TxIn{
			Outpoint:  Outpoint{PrevTxID: prevTxID, PrevVout: prevVout},
			SigScript: sigScript,
			Sequence:  sequence,
		}
	}
	return vin, nil
}

func readVout(r *bytereader.Reader) ([]TxOut, error) {
	count, err := r.ReadCompactSizeCapped("vout_count", chainparams.MaxVinVoutCount)
	if err != nil {
		return nil, err
	}
	vout := make([]TxOut, count)
	for i := range vout {
		value, err := r.ReadInt64LE("value")
		if err != nil {
			return nil, err
		}
		script, err := r.ReadVarBytes("script_pubkey", uint64(chainparams.MaxVinVoutCount*1024))
		if err != nil {
			return nil, err
		}
		vout[i] = TxOut{Value: value, ScriptPubKey: script}
	}
	return vout, nil
}

// readJoinSplits reads the JoinSplit vector (present on Sprout v2 and, in
// its Flux-shrunk form, trailing v4 Sapling transactions), plus the
// pubkey+signature pair that follows when the vector is non-empty. It
// returns the soft-extracted vpub_old/vpub_new flow (bound-checked per
// §4.3) summed across all JoinSplit descriptions.
func readJoinSplits(r *bytereader.Reader, version uint32) (ShieldedFlow, error) {
	count, err := r.ReadCompactSizeCapped("joinsplit_count", chainparams.MaxJoinSplitCount)
	if err != nil {
		return ShieldedFlow{}, err
	}
	if count == 0 {
		return ShieldedFlow{}, nil
	}

	sizes := chainparams.JoinSplitSizesByVersion(version)

	var flow ShieldedFlow
	dropped := false
	for i := uint64(0); i < count; i++ {
		vpubOld, err := r.ReadInt64LE("joinsplit.vpub_old")
		if err != nil {
			return ShieldedFlow{}, err
		}
		vpubNew, err := r.ReadInt64LE("joinsplit.vpub_new")
		if err != nil {
			return ShieldedFlow{}, err
		}
		// Remaining JoinSplit bytes beyond the two value scalars already
		// read: anchor(32) + nullifiers(64) + commitments(64) +
		// ephemeralKey(32) + randomSeed(32) + macs(64) + zkproof +
		// ciphertexts, totalling TotalSize - 16.
		remaining := sizes.TotalSize - 16
		if err := r.Skip("joinsplit.body", remaining); err != nil {
			return ShieldedFlow{}, err
		}

		if abs64(vpubOld) > chainparams.PlausibleSupplyCeiling || abs64(vpubNew) > chainparams.PlausibleSupplyCeiling {
			// Drop the entire shielded record rather than propagate an
			// implausible value into fee/supply math (§4.3).
			dropped = true
			continue
		}
		flow.Present = true
		flow.VPubOld += vpubOld
		flow.VPubNew += vpubNew
	}

	if _, err := r.ReadBytes("joinsplit_pubkey", chainparams.Ed25519KeySize); err != nil {
		return ShieldedFlow{}, err
	}
	if _, err := r.ReadBytes("joinsplit_sig", chainparams.Ed25519SigSize); err != nil {
		return ShieldedFlow{}, err
	}

	if dropped {
		return ShieldedFlow{}, nil
	}
	return flow, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
