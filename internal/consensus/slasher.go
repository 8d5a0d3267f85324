package consensus

import (
	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Slasher applies the four offense penalties from the validator table to a
// Registry, generalizing the teacher's per-offense tracker methods
// (RecordHeartbeat/RecordBlock/RecordMiss) into consensus-critical,
// persisted reputation changes instead of liveness-only statistics.
type Slasher struct {
	registry *Registry
}

// NewSlasher wraps a Registry with slashing behavior.
func NewSlasher(r *Registry) *Slasher {
	return &Slasher{registry: r}
}

func clampReputation(v *Validator) {
	if v.Reputation < 0 {
		v.Reputation = 0
	}
	if v.Reputation > config.ReputationMax {
		v.Reputation = config.ReputationMax
	}
}

func (s *Slasher) penalize(addr types.Address, reputationDelta int64, severity uint64) *Validator {
	return s.registry.update(addr, func(v *Validator) {
		v.Reputation -= reputationDelta
		clampReputation(v)
		v.CumulativeSeverity += severity
		if v.CumulativeSeverity >= config.BanThresholdSeverity {
			v.Banned = true
		}
	})
}

// SlashInvalidBlock penalizes a validator whose produced block failed
// structural or state validation — "high" severity per the table — and
// jails it for config.JailBlocksInvalidBlock blocks starting at blockIndex,
// the height of the offending block. While jailed, the round-robin
// schedule skips it in favor of the next eligible validator (see
// Registry.EffectiveLeader).
func (s *Slasher) SlashInvalidBlock(addr types.Address, blockIndex uint32) *Validator {
	return s.registry.update(addr, func(v *Validator) {
		v.Reputation -= config.ReputationPenaltyInvalidBlock
		clampReputation(v)
		v.CumulativeSeverity += config.SeverityInvalidBlock
		if v.CumulativeSeverity >= config.BanThresholdSeverity {
			v.Banned = true
		}
		if jailUntil := uint64(blockIndex) + config.JailBlocksInvalidBlock; jailUntil > v.JailUntil {
			v.JailUntil = jailUntil
		}
	})
}

// SlashDoubleSign penalizes a validator observed producing two distinct
// blocks for the same block_index — "critical" severity, which alone
// meets config.BanThresholdSeverity; the validator is also marked Banned
// directly, so a double-sign always bans. The
// reputation delta is the validator's full current reputation: a
// double-signer is banned, so there is nothing left to partially deduct.
func (s *Slasher) SlashDoubleSign(addr types.Address) *Validator {
	return s.registry.update(addr, func(v *Validator) {
		v.Reputation = 0
		v.CumulativeSeverity += config.SeverityDoubleSign
		v.Banned = true
	})
}

// SlashOutOfTurn penalizes a validator that produced a block outside its
// scheduled turn — "medium" severity.
func (s *Slasher) SlashOutOfTurn(addr types.Address) *Validator {
	return s.penalize(addr, config.ReputationPenaltyOutOfTurn, config.SeverityOutOfTurn)
}

// SlashMissedTurn penalizes a validator that failed to produce during its
// scheduled turn — "low" severity.
func (s *Slasher) SlashMissedTurn(addr types.Address) *Validator {
	return s.penalize(addr, config.ReputationPenaltyMissedTurn, config.SeverityMissedTurn)
}

// RecordProduced credits a validator's reputation for successfully
// producing an accepted block, the slashing side's mirror of the
// teacher's RecordBlock liveness counter.
func (s *Slasher) RecordProduced(addr types.Address) *Validator {
	return s.registry.update(addr, func(v *Validator) {
		v.Reputation += config.ReputationRecoverPerBlock
		clampReputation(v)
	})
}
