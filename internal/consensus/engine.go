// Package consensus implements the round-robin proof-of-authority engine:
// leader schedule, persistent validator reputation/slashing, and a
// liveness-only observational tracker.
package consensus

import "github.com/coinjecture/coinjecture/pkg/block"

// Engine verifies that a block's claimed miner was the rightful PoA leader
// for its block_index and is not currently banned or jailed.
type Engine interface {
	VerifyHeader(header *block.Header) error
}
