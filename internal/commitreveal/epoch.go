// Package commitreveal implements the anti-grinding commit-reveal puzzle
// protocol: epoch-salt derivation from the parent header, the commitment a
// miner publishes before revealing problem parameters, the hardware-
// independent work-score formula, and EWMA difficulty adjustment.
package commitreveal

import (
	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// EpochSalt derives the per-epoch randomness beacon from the parent block:
// SHA256(parent_hash || LE64(floor(timestamp/EPOCH_SECONDS))). Binding to
// parent_hash means a miner cannot precompute favorable salts before its
// parent is known; binding to the epoch bucket (not the raw timestamp)
// means every miner racing for the same epoch sees the same salt.
func EpochSalt(parentHash types.Hash, timestamp int64) types.Hash {
	epoch := timestamp / config.EpochSeconds
	e := codec.NewEncoder(types.HashSize + 8)
	e.WriteFixed(parentHash[:])
	e.WriteInt64(epoch)
	return crypto.Hash(e.Bytes())
}
