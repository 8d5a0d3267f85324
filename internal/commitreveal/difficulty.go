package commitreveal

import (
	"fmt"
	"math/bits"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/codec"
)

// DifficultyAdjuster tracks an exponentially-weighted moving average of
// accepted-block work scores and derives the next difficulty target from
// it. Unlike a hashrate-based PoW retarget, there is no block-interval
// feedback loop here: the target simply follows how easy or hard recent
// accepted scores have been to clear, smoothed over config.DiffWindow
// samples so one outlier submission cannot swing the target on its own.
type DifficultyAdjuster struct {
	ewma    uint64
	samples uint64
}

// NewDifficultyAdjuster seeds the adjuster at the genesis target so the
// first few blocks (before config.DiffWindow samples have accumulated)
// still have a sane target to validate against.
func NewDifficultyAdjuster(genesisTarget uint32) *DifficultyAdjuster {
	return &DifficultyAdjuster{ewma: uint64(genesisTarget)}
}

// alpha returns num/den, the standard EWMA smoothing constant 2/(N+1) for
// an N-sample window, carried as a fixed-point fraction so the update below
// stays in integer arithmetic.
func alpha() (num, den uint64) {
	return 2, uint64(config.DiffWindow) + 1
}

// RecordAccepted folds a newly-accepted block's work score into the moving
// average. Call this once per canonical block, in block order. The adjuster
// itself cannot unwind a call; on a reorg the chain restores it with Restore
// from the pre-state stored for the oldest reverted block, then replays the
// new branch.
func (d *DifficultyAdjuster) RecordAccepted(score uint64) {
	d.samples++
	if d.samples == 1 {
		d.ewma = score
		return
	}
	num, den := alpha()
	// ewma += (score - ewma) * num / den, computed without going negative
	// in unsigned arithmetic by branching on the sign of the delta, and
	// via a full-width multiply so a large score can't overflow uint64.
	if score >= d.ewma {
		d.ewma += mulDivFull(score-d.ewma, num, den)
	} else {
		d.ewma -= mulDivFull(d.ewma-score, num, den)
	}
}

func mulDivFull(a, num, den uint64) uint64 {
	hi, lo := bits.Mul64(a, num)
	q, _ := bits.Div64(hi, lo, den)
	return q
}

// Target returns the next difficulty target: the current EWMA clamped into
// [config.MinDifficultyTarget, config.MaxDifficultyTarget]. A block's work
// score must meet or exceed this target to be accepted.
func (d *DifficultyAdjuster) Target() uint32 {
	t := d.ewma
	if t < uint64(config.MinDifficultyTarget) {
		return config.MinDifficultyTarget
	}
	if t > uint64(config.MaxDifficultyTarget) {
		return config.MaxDifficultyTarget
	}
	return uint32(t)
}

// Samples reports how many scores have been folded in, mainly for tests
// and diagnostics.
func (d *DifficultyAdjuster) Samples() uint64 { return d.samples }

// AdjusterState is the adjuster's serializable internal state. A reorg
// cannot unwind RecordAccepted by inverting the EWMA update (integer
// truncation makes that update lossy), so a Chain instead snapshots this
// before every RecordAccepted call and restores it exactly when reverting
// the block that call belonged to.
type AdjusterState struct {
	EWMA    uint64
	Samples uint64
}

// State captures d's current internal state.
func (d *DifficultyAdjuster) State() AdjusterState {
	return AdjusterState{EWMA: d.ewma, Samples: d.samples}
}

// Restore overwrites d's internal state, e.g. with a value previously
// returned by State, undoing every RecordAccepted call made since.
func (d *DifficultyAdjuster) Restore(s AdjusterState) {
	d.ewma = s.EWMA
	d.samples = s.Samples
}

// Encode serializes s for storage.
func (s AdjusterState) Encode() []byte {
	e := codec.NewEncoder(16)
	e.WriteUint64(s.EWMA)
	e.WriteUint64(s.Samples)
	return e.Bytes()
}

// DecodeAdjusterState parses the output of AdjusterState.Encode.
func DecodeAdjusterState(b []byte) (AdjusterState, error) {
	d := codec.NewDecoder(b)
	ewma, err := d.ReadUint64()
	if err != nil {
		return AdjusterState{}, fmt.Errorf("ewma: %w", err)
	}
	samples, err := d.ReadUint64()
	if err != nil {
		return AdjusterState{}, fmt.Errorf("samples: %w", err)
	}
	if err := d.Done(); err != nil {
		return AdjusterState{}, err
	}
	return AdjusterState{EWMA: ewma, Samples: samples}, nil
}
