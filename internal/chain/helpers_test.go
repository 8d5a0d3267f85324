package chain

import (
	"context"
	"testing"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/internal/commitreveal"
	"github.com/coinjecture/coinjecture/internal/consensus"
	"github.com/coinjecture/coinjecture/internal/problem"
	"github.com/coinjecture/coinjecture/internal/storage"
	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

func testAddress(t *testing.T) types.Address {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return crypto.AddressFromPubKey(key.PublicKey())
}

func testGenesis(validators ...types.Address) *config.Genesis {
	alloc := make(map[string]uint64, len(validators))
	for _, v := range validators {
		alloc[v.String()] = 1_000_000 * config.Token
	}
	return &config.Genesis{
		ChainID:   "test",
		ChainName: "coinjecture-test",
		Symbol:    "CJT",
		Timestamp: 1_700_000_000,
		ExtraData: "genesis",
		Alloc:     alloc,
	}
}

// newTestChain wires a fresh in-memory chain whose validator registry is
// built directly from the given addresses — genesis.Validators carries hex
// pubkeys that hash down to addresses, but tests only need a registry that
// resolves the scheduled leader to a known address, not a real pubkey.
func newTestChain(t *testing.T, validators ...types.Address) *Chain {
	t.Helper()
	gen := testGenesis(validators...)
	registry := consensus.NewRegistry(validators)
	poa := &consensus.PoA{Registry: registry, Slasher: consensus.NewSlasher(registry)}

	db := storage.NewMemory()
	c, err := New("coinjecture-test", db, poa, problem.NewDefaultRegistry(), gen)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.InitFromGenesis(gen); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	return c
}

// mineBlock builds the next valid block on top of parent for miner,
// generating and solving the epoch-canonical subset-sum puzzle so the
// block passes verifyPuzzle and the difficulty check.
func mineBlock(t *testing.T, c *Chain, parent *block.Block, miner types.Address, timestamp int64) *block.Block {
	t.Helper()
	parentHash := parent.Hash()
	blockIndex := parent.Header.BlockIndex + 1

	target := c.adjuster.Target()
	tier := TierForTarget(target)

	var minerSalt types.Hash
	minerSalt[0] = byte(blockIndex)
	minerSalt[1] = byte(blockIndex >> 8)

	epochSalt := commitreveal.EpochSalt(parentHash, timestamp)
	seed := [32]byte(epochSalt)
	prob, err := c.problems.Generate(problem.SubsetSum, seed, tier)
	if err != nil {
		t.Fatalf("generate problem: %v", err)
	}
	sol, ok := c.problems.Solve(context.Background(), prob)
	if !ok {
		t.Fatalf("solve problem: no solution found")
	}

	header := &block.Header{
		CodecVersion:     1,
		BlockIndex:       blockIndex,
		Timestamp:        timestamp,
		ParentHash:       parentHash,
		MinerAddress:     miner,
		Commitment:       commitreveal.Commitment(prob.Encode(), minerSalt, epochSalt),
		DifficultyTarget: target,
		ExtraData:        EncodeReveal(minerSalt, prob, sol),
	}

	return block.NewBlock(header, nil)
}
