package chain

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/internal/consensus"
	"github.com/coinjecture/coinjecture/internal/state"
	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// CreateGenesisBlock builds the genesis block from the genesis configuration.
// The genesis block has block_index 0, a zero parent_hash, and carries no
// transactions: the account model has no coinbase to mint into, so initial
// balances are seeded directly into state via SeedGenesisAccounts instead.
func CreateGenesisBlock(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}

	header := &block.Header{
		CodecVersion:     1,
		BlockIndex:       0,
		Timestamp:        gen.Timestamp,
		ParentHash:       types.Hash{},
		MerkleRoot:       types.Hash{},
		MinerAddress:     types.Address{},
		Commitment:       types.Hash{},
		DifficultyTarget: config.MinDifficultyTarget,
		Nonce:            0,
		ExtraData:        []byte(gen.ExtraData),
	}

	return block.NewBlock(header, nil), nil
}

// SeedGenesisAccounts writes the genesis allocation into snap, in
// deterministic (sorted-address) order.
func SeedGenesisAccounts(snap *state.Snapshot, gen *config.Genesis) error {
	addrs := make([]string, 0, len(gen.Alloc))
	for addr := range gen.Alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addrStr := range addrs {
		addr, err := types.HexToAddress(addrStr)
		if err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		balance := gen.Alloc[addrStr]
		if balance == 0 {
			continue
		}
		snap.PutAccount(&state.Account{
			Address:   addr,
			Balance:   balance,
			CreatedAt: gen.Timestamp,
			UpdatedAt: gen.Timestamp,
		})
	}
	return nil
}

// BuildGenesisValidatorRegistry derives the initial PoA validator set (in
// round-robin order) from the genesis config's hex-encoded compressed
// public keys.
func BuildGenesisValidatorRegistry(gen *config.Genesis) (*consensus.Registry, error) {
	addrs := make([]types.Address, 0, len(gen.Validators))
	for _, pubHex := range gen.Validators {
		pub, err := hex.DecodeString(pubHex)
		if err != nil {
			return nil, fmt.Errorf("invalid validator pubkey %q: %w", pubHex, err)
		}
		addrs = append(addrs, crypto.AddressFromPubKey(pub))
	}
	return consensus.NewRegistry(addrs), nil
}
