package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// =============================================================================
// Protocol Parameters (immutable, pinned to codec_version)
// These MUST match across all nodes or consensus breaks. Changing any of
// them requires a codec_version bump (§6).
// =============================================================================

// Denomination constants. 1 token = 10^9 wei (§3).
const (
	Wei            = 1
	Token          = 1_000_000_000 // 10^9 wei
	WeiPerToken    = Token
)

// Block and transaction size limits (consensus-critical).
const (
	MaxBlockTxs  = 5_000   // Max transactions per block.
	MaxBlockGas  = 20_000_000
	MaxTxDataSize = 65_536 // 64 KB max data field per transaction.
	MaxExtraData  = 4_096  // Max header extra_data bytes.
)

// Fee split PPM triple (§4.6, Critical Complex Equilibrium). Pinned so that
// V_PPM + B_PPM + T_PPM == 1_000_000 and the ratios approximate
// (1 : 1/sqrt(2) : 1/sqrt(2)) / (1+sqrt(2)).
const (
	ProducerFeePPM  uint64 = 414_214
	BurnFeePPM      uint64 = 292_893
	TreasuryFeePPM  uint64 = 292_893
	FeePPMScale     uint64 = 1_000_000
)

// Block reward / halving schedule (§4.6).
const (
	InitialBlockReward uint64 = 50 * Token
	MinBlockReward     uint64 = 1 * Token / 1000 // 1 milli-token floor
	HalvingInterval    uint64 = 2_100_000         // blocks
)

// EscrowExpiryBlocks is how long a PROBLEM_SUBMISSION escrow stays
// refundable-eligible after creation if never released.
const EscrowExpiryBlocks uint64 = 50_000

// Commit-reveal / difficulty parameters (§4.4).
const (
	EpochSeconds      int64  = 600 // 10 minutes per epoch_salt bucket
	DiffWindow        int    = 64  // EWMA window, in accepted blocks
	MinDifficultyTarget uint32 = 1
	MaxDifficultyTarget uint32 = 0xFFFFFFFF
)

// Epoch replay cache (§4.10). TTL is expressed in blocks: ~7 days at a
// 2-second block interval.
const EpochReplayTTL uint64 = 7 * 24 * 60 * 30

// PoA parameters (§4.9).
const (
	BlockIntervalSeconds   int64 = 2
	TurnToleranceSeconds   int64 = 1
	BanThresholdSeverity   uint64 = 100
	ReputationMax          int64 = 1_000_000
	ReputationRecoverPerBlock int64 = 100
)

// JailBlocksInvalidBlock is how many blocks an "invalid block proposed"
// offense jails its validator for (§4.9 table: "jail N blocks"), during
// which the round-robin schedule must skip it in favor of the next
// eligible validator.
const JailBlocksInvalidBlock uint64 = 50

// Slashing severities (§4.9 table). Expressed as reputation deltas and
// cumulative_severity weights.
const (
	SeverityInvalidBlock uint64 = 50 // "high"
	SeverityDoubleSign   uint64 = 100 // "critical" -> always bans
	SeverityOutOfTurn    uint64 = 10 // "medium"
	SeverityMissedTurn   uint64 = 1  // "low"

	ReputationPenaltyInvalidBlock int64 = 50_000
	ReputationPenaltyOutOfTurn    int64 = 10_000
	ReputationPenaltyMissedTurn   int64 = 1_000
)

// CheckpointDepth is the number of canonical descendants behind which a
// block is considered final (§3 Lifecycles).
const CheckpointDepth uint64 = 100

// Mempool parameters (§4.7).
const (
	MempoolMaxSize   = 10_000
	MempoolMaxAgeSec int64 = 3_600
)

// Genesis holds the genesis block configuration and protocol rules. This is
// immutable after chain launch — changes require a hard fork.
type Genesis struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"`

	Timestamp int64  `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Alloc maps hex-encoded addresses to initial wei balances.
	Alloc map[string]uint64 `json:"alloc"`

	// Validators lists the hex-encoded compressed public keys of the
	// initial PoA validator set, in round-robin order.
	Validators []string `json:"validators"`
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:   "coinjecture-mainnet-1",
		ChainName: "COINjecture Mainnet",
		Symbol:    "CNJ",
		Timestamp: 1_770_734_103,
		ExtraData: "COINjecture Genesis",
		Alloc:     map[string]uint64{},
		Validators: []string{
			"03cba4d0ee4c55f5ea620393a6e6e9dafe959bfa6ddff964221126a3e41ad0487d",
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "coinjecture-testnet-1"
	g.ChainName = "COINjecture Testnet"
	g.ExtraData = "COINjecture Testnet Genesis"
	g.Validators = []string{TestnetValidatorPubKey}
	return g
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Derivation is not implemented by this core (wallet/HD derivation is out
// of scope, see DESIGN.md); the fixed key below is carried only as a
// reproducible testnet fixture.
// =============================================================================

const (
	// TestnetValidatorPubKey is the compressed public key (hex) used by the
	// single well-known testnet validator.
	TestnetValidatorPubKey = "030bef68f8657df88098a0546da1712c88b459788bea1a6bbe964004166a25144f"

	// TestnetValidatorPrivKey is the matching private key (hex), published
	// only because it is a testnet fixture with no real value at stake.
	TestnetValidatorPrivKey = "1f0717e6e34acc6721021f4dfed54558ec8452452b6195545d06dd348b220091"
)

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}
	return nil
}

// Validate checks that the genesis configuration is structurally valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if len(g.Validators) == 0 {
		return fmt.Errorf("genesis requires at least one validator")
	}
	for _, pubHex := range g.Validators {
		b, err := hex.DecodeString(pubHex)
		if err != nil {
			return fmt.Errorf("invalid validator pubkey %q: %w", pubHex, err)
		}
		if len(b) != 33 {
			return fmt.Errorf("validator pubkey %q: must be 33 bytes, got %d", pubHex, len(b))
		}
	}
	var totalAlloc uint64
	for addrStr, v := range g.Alloc {
		if _, err := types.HexToAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		next := totalAlloc + v
		if next < totalAlloc {
			return fmt.Errorf("genesis allocations overflow")
		}
		totalAlloc = next
	}
	if ProducerFeePPM+BurnFeePPM+TreasuryFeePPM != FeePPMScale {
		return fmt.Errorf("fee split ppm triple must sum to %d", FeePPMScale)
	}
	return nil
}

// Hash returns a SHA-256 hash of the genesis configuration, used to
// identify the chain and detect genesis mismatches between peers.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
