// Package chainparams holds the chain-specific constants the parser and
// indexer need but which are not themselves part of the wire format: the
// height-dependent Equihash solution-size regimes, the Sapling/Overwinter
// branch identifiers, JoinSplit ciphertext sizes, and collateral tiers.
// Modeled as configuration (à la dagconfig.Params) rather than hardcoded
// constants, since the height thresholds are network-specific and the
// source repository lists them as configuration.
package chainparams

// EquihashRegime describes one of the three height ranges over which the
// maximum allowed Equihash solution length differs.
type EquihashRegime struct {
	MinHeight      uint32
	MaxSolutionLen uint32
}

// JoinSplitSizes describes the fixed byte layout of a single JoinSplit
// description for a given transaction version. The Flux chain shrinks the
// v4 ciphertext relative to the upstream Zcash reference (549 vs. 601
// bytes), which shifts the total JoinSplit size accordingly.
type JoinSplitSizes struct {
	CiphertextSize int
	TotalSize      int
}

const (
	// SaplingVersionGroupID is the version_group_id required alongside
	// version=4 for the Sapling transaction shape.
	SaplingVersionGroupID = uint32(0x892f2085)

	// GrothProofSize is the size in bytes of a Groth16 zk-SNARK proof,
	// used by Sapling spends and outputs.
	GrothProofSize = 192

	// PHGRProofSize is the size in bytes of the older PHGR13 proof used
	// by pre-Sapling JoinSplits.
	PHGRProofSize = 296

	// SaplingSpendSize is the fixed size of one Sapling shielded spend
	// description: cv(32) + anchor(32) + nullifier(32) + rk(32) +
	// zkproof(192) + spendAuthSig(64).
	SaplingSpendSize = 384

	// SaplingOutputSize is the fixed size of one Sapling shielded output
	// description: cv(32) + cmu(32) + ephemeralKey(32) + zkproof(192) +
	// encCiphertext(580) + outCiphertext(80).
	SaplingOutputSize = 948

	// Ed25519KeySize and Ed25519SigSize size the JoinSplit pubkey/sig
	// pair that trails a non-empty JoinSplit vector.
	Ed25519KeySize = 32
	Ed25519SigSize = 64

	// BindingSigSize is the size of the Sapling binding signature.
	BindingSigSize = 64

	// Sanity caps (§4.3): never trust a count large enough to be an
	// obvious parse desync.
	MaxVinVoutCount     = 100000
	MaxJoinSplitCount   = 100
	MaxSaplingPartCount = 1000

	// PlausibleSupplyCeiling bounds soft-extracted shielded flow values;
	// anything larger is presumed to be a decode desync rather than a
	// real amount, and the whole shielded record is dropped.
	PlausibleSupplyCeiling = 1_000_000_000 * 1e8

	// CollateralToleranceUnits is the ±1 FLUX tolerance (in smallest
	// units) applied when matching a collateral UTXO's value to a tier.
	CollateralToleranceUnits = 1 * 1e8
)

// JoinSplitSizesByVersion returns the ciphertext/total JoinSplit sizes for
// the given transaction version. v2 (Sprout, pre-Overwinter) uses
// the upstream 601-byte ciphertext; v4 (Sapling) uses the Flux-specific
// 549-byte ciphertext. See spec §8 scenario 3 for why getting this wrong
// silently desyncs the rest of the block.
func JoinSplitSizesByVersion(version uint32) JoinSplitSizes {
	switch version {
	case 4:
		return JoinSplitSizes{CiphertextSize: 549, TotalSize: 1698}
	default:
		return JoinSplitSizes{CiphertextSize: 601, TotalSize: 1802}
	}
}

// CollateralTier identifies a FluxNode class by its collateral value.
type CollateralTier int

const (
	TierUnknown CollateralTier = iota
	TierCumulus
	TierNimbus
	TierStratus
)

func (t CollateralTier) String() string {
	switch t {
	case TierCumulus:
		return "CUMULUS"
	case TierNimbus:
		return "NIMBUS"
	case TierStratus:
		return "STRATUS"
	default:
		return "UNKNOWN"
	}
}

var collateralTiers = []struct {
	tier  CollateralTier
	units int64
}{
	{TierCumulus, 1000 * 1e8},
	{TierNimbus, 12500 * 1e8},
	{TierStratus, 40000 * 1e8},
}

// CollateralTierFromValue recognizes a node's collateral tier from its
// collateral UTXO's value, with ±1 coin tolerance.
func CollateralTierFromValue(valueUnits int64) CollateralTier {
	for _, c := range collateralTiers {
		diff := valueUnits - c.units
		if diff < 0 {
			diff = -diff
		}
		if diff <= CollateralToleranceUnits {
			return c.tier
		}
	}
	return TierUnknown
}

// Params bundles the height-dependent constants for one network
// (mainnet/testnet share the shape but differ in activation heights).
type Params struct {
	Name string

	// EquihashRegimes lists the three height-ordered regimes governing
	// the maximum allowed PoW solution length. Ascending by MinHeight;
	// the last entry whose MinHeight <= block height applies.
	EquihashRegimes []EquihashRegime

	// PoNVersionFloor is the block.version at and above which a header
	// uses the PoN (producer-node) extension instead of the PoW
	// extension.
	PoNVersionFloor uint32

	// MaxReorgDepth is the safety bound on automatic reorg handling;
	// exceeding it halts ingestion (§4.7).
	MaxReorgDepth uint32

	// SyncModeTipWindow is the number of blocks from the chain tip
	// within which the sync loop sets the Writer's sync flag (§4.8).
	SyncModeTipWindow uint32
}

// MainNetParams are the default Flux mainnet parameters. The Equihash
// regime boundaries are placeholder thresholds, held as data in
// EquihashRegimes rather than as compiled-in constants (§9's open
// question).
var MainNetParams = Params{
	Name: "mainnet",
	EquihashRegimes: []EquihashRegime{
		{MinHeight: 0, MaxSolutionLen: 1344},
		{MinHeight: 350000, MaxSolutionLen: 1344},
		{MinHeight: 835000, MaxSolutionLen: 1344},
	},
	PoNVersionFloor:   100,
	MaxReorgDepth:     100,
	SyncModeTipWindow: 10,
}

// MaxSolutionLenForHeight returns the maximum allowed Equihash solution
// length applicable at height, per the network's configured regimes.
func (p Params) MaxSolutionLenForHeight(height uint32) uint32 {
	max := uint32(0)
	for _, r := range p.EquihashRegimes {
		if height >= r.MinHeight {
			max = r.MaxSolutionLen
		}
	}
	return max
}
