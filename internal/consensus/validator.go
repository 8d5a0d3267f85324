package consensus

import (
	"sync"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Validator is a registry entry's persistent, consensus-critical state.
// Unlike the teacher's in-memory-only liveness tracker, this is slashing
// state: it must survive a restart, because a banned validator must stay
// banned.
type Validator struct {
	Address            types.Address
	Reputation         int64
	JailUntil          uint64 // block_index below which this validator may not lead
	Banned             bool
	CumulativeSeverity uint64
}

// Registry is the authorized validator set and round-robin leader
// schedule. Validators is genesis-ordered and fixed: unlike the teacher's
// PoA (which allows runtime AddValidator/RemoveValidator for staking),
// this exercise has no staking module, so the set is pinned at genesis
// (see DESIGN.md).
type Registry struct {
	mu         sync.RWMutex
	order      []types.Address
	validators map[types.Address]*Validator
}

// NewRegistry creates a registry from the genesis validator address list,
// in the order given — that order IS the round-robin schedule.
func NewRegistry(genesisValidators []types.Address) *Registry {
	r := &Registry{
		order:      append([]types.Address(nil), genesisValidators...),
		validators: make(map[types.Address]*Validator, len(genesisValidators)),
	}
	for _, addr := range genesisValidators {
		r.validators[addr] = &Validator{Address: addr, Reputation: config.ReputationMax}
	}
	return r
}

// Leader returns the validator address scheduled to produce blockIndex:
// validators[blockIndex % N], the spec's round-robin-by-index rule (not
// the teacher's wall-clock time-slot election).
func (r *Registry) Leader(blockIndex uint32) types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return types.Address{}
	}
	return r.order[int(blockIndex)%len(r.order)]
}

// EffectiveLeader returns the validator scheduled to produce blockIndex
// once banned/jailed validators are skipped: starting at the modular
// leader (Leader), it walks forward through order until it finds a
// validator that is neither banned nor still jailed at blockIndex,
// wrapping around the set at most once. If every validator is banned or
// jailed, it falls back to the raw modular leader, so the chain stalls
// rather than silently electing an address outside the genesis set.
func (r *Registry) EffectiveLeader(blockIndex uint32) types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.order)
	if n == 0 {
		return types.Address{}
	}
	start := int(blockIndex) % n
	for i := 0; i < n; i++ {
		addr := r.order[(start+i)%n]
		if v := r.validators[addr]; v != nil && !v.Banned && uint64(blockIndex) >= v.JailUntil {
			return addr
		}
	}
	return r.order[start]
}

// IsValidator reports whether addr is a member of the registered set.
func (r *Registry) IsValidator(addr types.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.validators[addr]
	return ok
}

// Get returns a copy of addr's validator record, or (nil, false) if addr
// is not registered.
func (r *Registry) Get(addr types.Address) (*Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[addr]
	if !ok {
		return nil, false
	}
	cp := *v
	return &cp, true
}

// Validators returns the genesis-ordered validator address list.
func (r *Registry) Validators() []types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.Address(nil), r.order...)
}

// update mutates v's record in place under the registry lock and returns
// the updated copy. fn must not retain v beyond the call.
func (r *Registry) update(addr types.Address, fn func(v *Validator)) *Validator {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[addr]
	if !ok {
		return nil
	}
	fn(v)
	cp := *v
	return &cp
}
