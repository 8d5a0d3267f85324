package commitreveal

import (
	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Commitment binds a miner to problem parameters before it may reveal a
// solution: SHA256(canonical_encode(problem_params) || miner_salt ||
// epoch_salt). A miner who grinds through candidate instances after seeing
// the epoch salt still has to commit before the reveal window closes, and
// cannot swap in a different instance once committed without changing the
// commitment a validator will recompute at reveal time.
func Commitment(problemParams []byte, minerSalt, epochSalt types.Hash) types.Hash {
	e := codec.NewEncoder(len(problemParams) + 2*types.HashSize)
	e.WriteFixed(problemParams)
	e.WriteFixed(minerSalt[:])
	e.WriteFixed(epochSalt[:])
	return crypto.Hash(e.Bytes())
}
