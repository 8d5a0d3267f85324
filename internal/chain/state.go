package chain

import "github.com/coinjecture/coinjecture/pkg/types"

// State holds the current chain tip state. Fork choice is longest-chain by
// Height with a lexicographically-smallest-hash tiebreak, so, unlike the
// teacher's PoW chain, no cumulative-difficulty accumulator is tracked here.
type State struct {
	Height       uint64
	TipHash      types.Hash
	Supply       uint64 // Total coins in circulation (genesis alloc + cumulative rewards).
	TipTimestamp int64  // Timestamp of the current tip block.
}

// IsGenesis returns true if no blocks have been processed yet.
func (s *State) IsGenesis() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}
