package chain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/coinjecture/coinjecture/internal/commitreveal"
	"github.com/coinjecture/coinjecture/internal/consensus"
	"github.com/coinjecture/coinjecture/internal/errkind"
	"github.com/coinjecture/coinjecture/internal/state"
	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// ProcessBlock validates and, if valid, applies a candidate block. A block
// extending the current tip is applied directly; a block extending some
// other known block is stored and evaluated for a reorg. The returned
// error, if any, is classified per errkind so a caller can branch on
// whether the block was malformed, rejected by policy, or failed for a
// transient/fatal reason without string-matching.
func (c *Chain) ProcessBlock(blk *block.Block) error {
	err := c.processBlock(blk)
	if err == nil {
		return nil
	}
	return errkind.Wrap(classifyBlockError(err), "ProcessBlock", err)
}

// classifyBlockError maps a block-acceptance failure onto the four error
// kinds. Unrecognized errors (storage I/O, encoding internals) default to
// Transient, since those are the only ones this boundary cannot already
// name explicitly and retrying on the next tick is always safe.
func classifyBlockError(err error) errkind.Kind {
	switch {
	case errors.Is(err, ErrNilBlock),
		errors.Is(err, ErrBadBlockIndex),
		errors.Is(err, ErrBadParentHash),
		errors.Is(err, ErrTimestampRegression),
		errors.Is(err, ErrBadReveal),
		errors.Is(err, ErrCommitmentMismatch),
		errors.Is(err, ErrProblemMismatch),
		errors.Is(err, ErrSolutionInvalid),
		errors.Is(err, ErrApplyState):
		return errkind.Malformed
	case errors.Is(err, ErrDifficultyMismatch),
		errors.Is(err, ErrWorkScoreTooLow),
		errors.Is(err, ErrReplaySeen),
		errors.Is(err, consensus.ErrNotLeader),
		errors.Is(err, consensus.ErrValidatorBanned),
		errors.Is(err, consensus.ErrValidatorJailed):
		return errkind.Policy
	case errors.Is(err, ErrReorgTooDeep),
		errors.Is(err, ErrGenesisReorg):
		return errkind.Fatal
	case errors.Is(err, ErrBlockKnown),
		errors.Is(err, ErrParentNotFound),
		errors.Is(err, ErrForkDetected):
		return errkind.Malformed
	default:
		return errkind.Transient
	}
}

// processBlock is ProcessBlock's unclassified body, kept separate so the
// error-kind wrapping above happens exactly once regardless of which
// internal path returned the error.
func (c *Chain) processBlock(blk *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if blk == nil {
		return ErrNilBlock
	}
	hash := blk.Hash()
	if known, err := c.blocks.HasBlock(hash); err != nil {
		return err
	} else if known {
		return ErrBlockKnown
	}
	if err := blk.ValidateStructure(); err != nil {
		return fmt.Errorf("%w: %v", ErrApplyState, err)
	}

	if blk.Header.ParentHash == c.state.TipHash && uint64(blk.Header.BlockIndex) == c.state.Height+1 {
		return c.acceptOnTip(blk)
	}

	parentBlk, err := c.blocks.GetBlock(blk.Header.ParentHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParentNotFound, err)
	}
	if uint64(blk.Header.BlockIndex) != uint64(parentBlk.Header.BlockIndex)+1 {
		return ErrBadBlockIndex
	}

	// A validator producing two distinct blocks for the same height is
	// always banned, whether or not its second block ever becomes canonical.
	if existing, err := c.blocks.GetBlockByHeight(uint64(blk.Header.BlockIndex)); err == nil {
		if existing.Header.MinerAddress == blk.Header.MinerAddress && existing.Hash() != hash {
			c.poa.Slasher.SlashDoubleSign(blk.Header.MinerAddress)
			_ = c.poa.Registry.SaveTo(c.consDB)
		}
	}

	if err := c.blocks.StoreBlock(blk); err != nil {
		return err
	}
	return c.maybeReorg(blk, hash)
}

// acceptOnTip applies a block that directly extends the current canonical
// tip, the common case on a healthy, non-forked chain.
func (c *Chain) acceptOnTip(blk *block.Block) error {
	hash := blk.Hash()
	if c.state.Height > 0 && blk.Header.Timestamp <= c.state.TipTimestamp {
		return ErrTimestampRegression
	}

	next, undo, score, err := c.validateAndApply(blk)
	if err != nil {
		_ = c.poa.Registry.SaveTo(c.consDB)
		return err
	}
	return c.commitAccepted(blk, hash, next, undo, score)
}

// validateAndApply runs the full block-acceptance pipeline — leader
// schedule, commit-reveal puzzle, difficulty target, anti-grinding replay
// check, and the account-state transition — without touching chain tip
// bookkeeping. Shared by the tip-extension fast path and reorg replay so
// both apply identical rules.
func (c *Chain) validateAndApply(blk *block.Block) (*state.Snapshot, *state.UndoLog, commitreveal.WorkScore, error) {
	if err := c.poa.VerifyHeader(blk.Header); err != nil {
		return nil, nil, commitreveal.WorkScore{}, err
	}

	score, err := verifyPuzzle(c.problems, blk.Header.ParentHash, blk.Header)
	if err != nil {
		c.poa.Slasher.SlashInvalidBlock(blk.Header.MinerAddress, blk.Header.BlockIndex)
		return nil, nil, commitreveal.WorkScore{}, err
	}

	expectedTarget := c.adjuster.Target()
	if blk.Header.DifficultyTarget != expectedTarget {
		c.poa.Slasher.SlashInvalidBlock(blk.Header.MinerAddress, blk.Header.BlockIndex)
		return nil, nil, commitreveal.WorkScore{}, ErrDifficultyMismatch
	}
	if score.Score < uint64(expectedTarget) {
		c.poa.Slasher.SlashInvalidBlock(blk.Header.MinerAddress, blk.Header.BlockIndex)
		return nil, nil, commitreveal.WorkScore{}, ErrWorkScoreTooLow
	}

	if _, found, err := c.replay.Seen(blk.Header.MinerAddress, blk.Header.Commitment); err != nil {
		return nil, nil, commitreveal.WorkScore{}, err
	} else if found {
		c.poa.Slasher.SlashInvalidBlock(blk.Header.MinerAddress, blk.Header.BlockIndex)
		return nil, nil, commitreveal.WorkScore{}, ErrReplaySeen
	}

	parent := state.NewSnapshot(c.stateDB)
	next, undo, err := state.Apply(blk, parent)
	if err != nil {
		c.poa.Slasher.SlashInvalidBlock(blk.Header.MinerAddress, blk.Header.BlockIndex)
		return nil, nil, commitreveal.WorkScore{}, fmt.Errorf("%w: %v", ErrApplyState, err)
	}
	return next, undo, score, nil
}

// commitAccepted persists an already-validated block: account state, the
// block and its undo log, the replay-cache entry, the new tip, the
// difficulty EWMA, and validator bookkeeping.
func (c *Chain) commitAccepted(blk *block.Block, hash types.Hash, next *state.Snapshot, undo *state.UndoLog, score commitreveal.WorkScore) error {
	if err := next.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	if err := c.blocks.PutBlock(blk); err != nil {
		return err
	}
	if err := c.blocks.PutUndo(hash, undo.Encode()); err != nil {
		return err
	}
	if err := c.replay.Record(blk.Header.MinerAddress, blk.Header.Commitment, uint64(blk.Header.BlockIndex)); err != nil {
		return err
	}

	reward := state.BlockReward(uint64(blk.Header.BlockIndex))
	c.state.Height = uint64(blk.Header.BlockIndex)
	c.state.TipHash = hash
	c.state.TipTimestamp = blk.Header.Timestamp
	c.state.Supply += reward

	if err := c.blocks.SetTip(hash, c.state.Height, c.state.Supply); err != nil {
		return err
	}

	pre := c.adjuster.State()
	if err := c.blocks.PutAdjusterPreState(hash, pre.Encode()); err != nil {
		return fmt.Errorf("persist adjuster pre-state: %w", err)
	}
	c.adjuster.RecordAccepted(score.Score)
	if err := c.blocks.SetAdjusterState(c.adjuster.State().Encode()); err != nil {
		return fmt.Errorf("persist adjuster state: %w", err)
	}
	c.poa.OnBlockAccepted(blk.Header.MinerAddress)
	if err := c.poa.Registry.SaveTo(c.consDB); err != nil {
		return fmt.Errorf("persist validator registry: %w", err)
	}
	if _, err := c.replay.Prune(c.state.Height); err != nil {
		return fmt.Errorf("prune replay cache: %w", err)
	}
	return nil
}

// shouldReorg applies the fork-choice rule: the longer chain wins; a tie in
// height is broken by the lexicographically smaller tip hash.
func (c *Chain) shouldReorg(newHeight uint64, newHash types.Hash) bool {
	if newHeight > c.state.Height {
		return true
	}
	if newHeight == c.state.Height {
		return bytes.Compare(newHash[:], c.state.TipHash[:]) < 0
	}
	return false
}
