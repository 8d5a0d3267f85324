package consensus

import (
	"sync"
	"time"

	"github.com/coinjecture/coinjecture/pkg/types"
)

// ValidatorStats holds in-memory liveness statistics for a single
// validator. Stats reset on node restart (no persistence) — unlike
// Registry/Slasher, this tracker has no consensus weight at all; it
// exists purely for operator-facing observability.
type ValidatorStats struct {
	Address       types.Address
	LastHeartbeat time.Time
	LastBlock     time.Time
	BlockCount    uint64
	MissedCount   uint64
}

// ValidatorTracker tracks validator liveness via heartbeats and block
// production, kept almost verbatim from the teacher as the explicitly
// non-consensus companion to Slasher.
type ValidatorTracker struct {
	mu                sync.RWMutex
	stats             map[types.Address]*ValidatorStats
	heartbeatInterval time.Duration
}

// NewValidatorTracker creates a tracker with the expected heartbeat interval.
func NewValidatorTracker(heartbeatInterval time.Duration) *ValidatorTracker {
	return &ValidatorTracker{
		stats:             make(map[types.Address]*ValidatorStats),
		heartbeatInterval: heartbeatInterval,
	}
}

// RecordHeartbeat records a heartbeat from the given validator.
func (t *ValidatorTracker) RecordHeartbeat(addr types.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getOrCreate(addr).LastHeartbeat = time.Now()
}

// RecordBlock records that a validator produced a block.
func (t *ValidatorTracker) RecordBlock(addr types.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.getOrCreate(addr)
	s.LastBlock = time.Now()
	s.BlockCount++
}

// RecordMiss records that a validator was selected but did not produce in time.
func (t *ValidatorTracker) RecordMiss(addr types.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getOrCreate(addr).MissedCount++
}

// IsOnline returns true if the validator's last heartbeat is within 2x
// the expected interval.
func (t *ValidatorTracker) IsOnline(addr types.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.stats[addr]
	if !ok || s.LastHeartbeat.IsZero() {
		return false
	}
	return time.Since(s.LastHeartbeat) <= 2*t.heartbeatInterval
}

// GetStats returns a copy of stats for a specific validator, or nil if not tracked.
func (t *ValidatorTracker) GetStats(addr types.Address) *ValidatorStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.stats[addr]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// GetAllStats returns copies of all tracked validator stats.
func (t *ValidatorTracker) GetAllStats() []*ValidatorStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ValidatorStats, 0, len(t.stats))
	for _, s := range t.stats {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

// HeartbeatInterval returns the configured heartbeat interval.
func (t *ValidatorTracker) HeartbeatInterval() time.Duration {
	return t.heartbeatInterval
}

func (t *ValidatorTracker) getOrCreate(addr types.Address) *ValidatorStats {
	s, ok := t.stats[addr]
	if !ok {
		s = &ValidatorStats{Address: addr}
		t.stats[addr] = s
	}
	return s
}
