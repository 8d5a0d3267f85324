package chain

import (
	"fmt"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/internal/commitreveal"
	"github.com/coinjecture/coinjecture/internal/state"
	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/tx"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// collectBranch walks backward from tip via parent_hash pointers until it
// reaches a block whose parent is on the canonical chain, returning the
// branch in ascending (fork-point-first) order along with the height at
// which it diverges.
func (c *Chain) collectBranch(tip *block.Block) ([]*block.Block, uint64, error) {
	branch := []*block.Block{tip}
	cur := tip

	for {
		if cur.Header.BlockIndex == 0 {
			return nil, 0, ErrGenesisReorg
		}

		parentHeight := uint64(cur.Header.BlockIndex) - 1
		if canon, err := c.blocks.GetBlockByHeight(parentHeight); err == nil && canon.Hash() == cur.Header.ParentHash {
			reversed := make([]*block.Block, len(branch))
			for i, b := range branch {
				reversed[len(branch)-1-i] = b
			}
			return reversed, parentHeight, nil
		}

		parentBlk, err := c.blocks.GetBlock(cur.Header.ParentHash)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrParentNotFound, err)
		}
		branch = append(branch, parentBlk)
		cur = parentBlk
	}
}

// maybeReorg decides whether a newly stored side block should become the
// canonical tip, and if so, performs the reorg.
func (c *Chain) maybeReorg(tip *block.Block, tipHash types.Hash) error {
	branch, forkHeight, err := c.collectBranch(tip)
	if err != nil {
		return err
	}

	if c.state.Height >= forkHeight && c.state.Height-forkHeight > config.CheckpointDepth {
		return ErrReorgTooDeep
	}

	newHeight := uint64(tip.Header.BlockIndex)
	if !c.shouldReorg(newHeight, tipHash) {
		return nil
	}

	return c.reorg(branch, forkHeight)
}

// reorg reverts the canonical chain down to forkHeight and replays branch
// (ascending order, forkHeight+1..tip) through the same validation pipeline
// as a direct tip extension. A reorg checkpoint is written before the first
// mutation so a crash mid-reorg is detected and repaired (by a full state
// rebuild) on the next startup.
func (c *Chain) reorg(branch []*block.Block, forkHeight uint64) error {
	if err := c.blocks.PutReorgCheckpoint(forkHeight); err != nil {
		return fmt.Errorf("write reorg checkpoint: %w", err)
	}

	var revertedTxs []*tx.Transaction
	for h := c.state.Height; h > forkHeight; h-- {
		oldBlk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load block at height %d during revert: %w", h, err)
		}
		oldHash := oldBlk.Hash()

		undoBytes, err := c.blocks.GetUndo(oldHash)
		if err != nil {
			return fmt.Errorf("missing undo log at height %d, cannot revert safely: %w", h, err)
		}
		undo, err := state.DecodeUndoLog(undoBytes)
		if err != nil {
			return fmt.Errorf("decode undo log at height %d: %w", h, err)
		}

		post := state.NewSnapshot(c.stateDB)
		reverted := state.Revert(post, undo)
		if err := reverted.Commit(); err != nil {
			return fmt.Errorf("commit revert at height %d: %w", h, err)
		}

		// Restore the difficulty adjuster to its state just before this
		// block's RecordAccepted call. The EWMA update is lossy under
		// integer truncation, so it cannot be unwound by inverting the
		// formula — only exact restoration from the snapshot taken at
		// commitAccepted time keeps two nodes that reach the same
		// canonical chain via different reorg histories in agreement on
		// the next block's expected difficulty target.
		preBytes, err := c.blocks.GetAdjusterPreState(oldHash)
		if err != nil {
			return fmt.Errorf("missing adjuster pre-state at height %d, cannot revert safely: %w", h, err)
		}
		preState, err := commitreveal.DecodeAdjusterState(preBytes)
		if err != nil {
			return fmt.Errorf("decode adjuster pre-state at height %d: %w", h, err)
		}
		c.adjuster.Restore(preState)

		c.state.Supply -= state.BlockReward(uint64(oldBlk.Header.BlockIndex))
		revertedTxs = append(revertedTxs, oldBlk.Transactions...)
		_ = c.blocks.DeleteUndo(oldHash)
		_ = c.blocks.DeleteAdjusterPreState(oldHash)
	}

	if err := c.blocks.SetAdjusterState(c.adjuster.State().Encode()); err != nil {
		return fmt.Errorf("persist adjuster state after revert: %w", err)
	}

	forkBlk, err := c.blocks.GetBlockByHeight(forkHeight)
	if err != nil {
		return fmt.Errorf("load fork-point block: %w", err)
	}
	c.state.Height = forkHeight
	c.state.TipHash = forkBlk.Hash()
	prevTimestamp := forkBlk.Header.Timestamp

	newBranchTxHashes := make(map[types.Hash]bool)
	for _, blk := range branch {
		if blk.Header.Timestamp <= prevTimestamp {
			return fmt.Errorf("replay block %d: %w", blk.Header.BlockIndex, ErrTimestampRegression)
		}

		hash := blk.Hash()
		next, undo, score, err := c.validateAndApply(blk)
		if err != nil {
			_ = c.poa.Registry.SaveTo(c.consDB)
			return fmt.Errorf("replay block %d: %w", blk.Header.BlockIndex, err)
		}
		if err := c.commitAccepted(blk, hash, next, undo, score); err != nil {
			return fmt.Errorf("commit replay block %d: %w", blk.Header.BlockIndex, err)
		}

		prevTimestamp = blk.Header.Timestamp
		for _, t := range blk.Transactions {
			newBranchTxHashes[t.Hash()] = true
		}
	}

	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("delete reorg checkpoint: %w", err)
	}

	if c.revertedTxHandler != nil {
		var stillReverted []*tx.Transaction
		for _, t := range revertedTxs {
			if !newBranchTxHashes[t.Hash()] {
				stillReverted = append(stillReverted, t)
			}
		}
		if len(stillReverted) > 0 {
			c.revertedTxHandler(stillReverted)
		}
	}

	return nil
}
