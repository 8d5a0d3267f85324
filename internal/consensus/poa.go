package consensus

import (
	"errors"
	"fmt"

	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// PoA errors.
var (
	ErrNoValidators    = errors.New("no validators configured")
	ErrNotLeader       = errors.New("miner_address is not the scheduled leader for this block_index")
	ErrValidatorBanned = errors.New("validator is banned")
	ErrValidatorJailed = errors.New("validator is jailed")
)

// PoA is the round-robin proof-of-authority engine: VerifyHeader checks
// only that the header's miner_address is the scheduled leader for its
// block_index and is neither banned nor still jailed. Unlike the
// teacher's Aura/Clique-style PoA, there is no header signature to check
// here (§4.5's header carries no ValidatorSig) and no weighted difficulty
// — the commit-reveal work score, not PoA, is what makes a header costly
// to forge.
type PoA struct {
	Registry *Registry
	Slasher  *Slasher
}

// NewPoA creates a round-robin PoA engine over the given genesis
// validator set.
func NewPoA(genesisValidators []types.Address) (*PoA, error) {
	if len(genesisValidators) == 0 {
		return nil, ErrNoValidators
	}
	registry := NewRegistry(genesisValidators)
	return &PoA{Registry: registry, Slasher: NewSlasher(registry)}, nil
}

// VerifyHeader implements Engine.
func (p *PoA) VerifyHeader(header *block.Header) error {
	leader := p.Registry.EffectiveLeader(header.BlockIndex)
	if header.MinerAddress != leader {
		return fmt.Errorf("%w: want %s, got %s", ErrNotLeader, leader, header.MinerAddress)
	}
	v, ok := p.Registry.Get(header.MinerAddress)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoValidators, header.MinerAddress)
	}
	if v.Banned {
		return fmt.Errorf("%w: %s", ErrValidatorBanned, header.MinerAddress)
	}
	if uint64(header.BlockIndex) < v.JailUntil {
		return fmt.Errorf("%w: %s until block %d", ErrValidatorJailed, header.MinerAddress, v.JailUntil)
	}
	return nil
}

// OnBlockAccepted folds a newly-accepted block's production into the
// slasher's reputation recovery. Call once per canonical block.
func (p *PoA) OnBlockAccepted(miner types.Address) {
	p.Slasher.RecordProduced(miner)
}

// IsLeader reports whether addr is the scheduled leader for blockIndex
// after jail/ban skips are applied, for use by a node's own
// block-production loop.
func (p *PoA) IsLeader(addr types.Address, blockIndex uint32) bool {
	return p.Registry.EffectiveLeader(blockIndex) == addr
}
