// Package parity runs a primary code path alongside a reference code
// path for the same operation and compares their output byte-for-byte,
// the way a codec migration needs to be proven safe before the old path
// is deleted. It generalizes the dual-path instinct already present
// elsewhere in this codebase (a fast path with a slower, always-correct
// fallback invoked on a stored checkpoint) into an explicit, reusable
// comparison harness.
package parity

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/coinjecture/coinjecture/internal/log"
)

// CodecMode selects which of the primary/reference implementations a
// Runner actually trusts for its return value, and whether it runs the
// other one at all for comparison.
type CodecMode int

const (
	// LegacyOnly runs only the reference implementation. Used before a
	// refactor has been proven safe, or after a divergence has forced a
	// rollback.
	LegacyOnly CodecMode = iota
	// Shadow runs both implementations, returns the reference
	// implementation's result, and logs+counts any divergence. A
	// divergence auto-reverts the Runner to LegacyOnly.
	Shadow
	// RefactoredPrimary runs both implementations and returns the
	// primary's result, logging divergence but not reverting — used
	// once the primary is trusted but the reference is kept around one
	// more release as a tripwire.
	RefactoredPrimary
	// RefactoredOnly runs only the primary implementation. The
	// reference implementation is no longer exercised.
	RefactoredOnly
)

func (m CodecMode) String() string {
	switch m {
	case LegacyOnly:
		return "legacy_only"
	case Shadow:
		return "shadow"
	case RefactoredPrimary:
		return "refactored_primary"
	case RefactoredOnly:
		return "refactored_only"
	default:
		return "unknown"
	}
}

// Op is a pair of independent implementations of the same operation,
// each producing the canonical byte encoding of their result.
type Op func() ([]byte, error)

// Runner executes a primary and, depending on mode, a reference
// implementation of the same operation.
type Runner struct {
	mu   sync.Mutex
	mode CodecMode

	divergences uint64
	runs        uint64
}

// NewRunner constructs a Runner in the given starting mode.
func NewRunner(mode CodecMode) *Runner {
	return &Runner{mode: mode}
}

// Mode returns the Runner's current mode. It may differ from the mode
// passed to NewRunner if a prior Run call auto-reverted it.
func (r *Runner) Mode() CodecMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Divergences returns the number of byte-mismatches observed so far.
func (r *Runner) Divergences() uint64 {
	return atomic.LoadUint64(&r.divergences)
}

// Run executes primary and/or reference per the Runner's current mode
// and returns the trusted result for this operation's name.
func (r *Runner) Run(op string, primary, reference Op) ([]byte, error) {
	atomic.AddUint64(&r.runs, 1)
	switch r.Mode() {
	case LegacyOnly:
		return reference()

	case RefactoredOnly:
		return primary()

	case RefactoredPrimary:
		out, err := primary()
		r.compare(op, out, err, reference)
		return out, err

	case Shadow:
		out, err := primary()
		ref, refErr := reference()
		if r.compare(op, out, err, func() ([]byte, error) { return ref, refErr }) {
			r.revertToLegacy(op)
		}
		return ref, refErr

	default:
		return primary()
	}
}

// compare runs reference, logs+counts a divergence if the two results
// differ, and reports whether a divergence occurred.
func (r *Runner) compare(op string, primaryOut []byte, primaryErr error, reference Op) bool {
	refOut, refErr := reference()
	if primaryErr != nil || refErr != nil {
		if (primaryErr == nil) != (refErr == nil) {
			r.recordDivergence(op, "one path errored and the other did not")
			return true
		}
		return false
	}
	if !bytes.Equal(primaryOut, refOut) {
		r.recordDivergence(op, "byte mismatch")
		return true
	}
	return false
}

func (r *Runner) recordDivergence(op, reason string) {
	atomic.AddUint64(&r.divergences, 1)
	log.Parity.Warn().
		Str("op", op).
		Str("reason", reason).
		Msg("parity divergence detected")
}

func (r *Runner) revertToLegacy(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == LegacyOnly {
		return
	}
	r.mode = LegacyOnly
	log.Parity.Warn().Str("op", op).Msg("reverting to legacy_only after divergence")
}
