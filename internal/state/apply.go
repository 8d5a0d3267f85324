package state

import (
	"fmt"
	"math/bits"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/tx"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// bountyRelease and bountyRefund tag the action byte of a BOUNTY_PAYMENT
// transaction's data field: escrow_id(32) || action(1) || recipient(32).
const (
	bountyRelease byte = 0
	bountyRefund  byte = 1
)

// BlockReward returns the base block reward at blockIndex under the pinned
// halving schedule, floored at MinBlockReward.
func BlockReward(blockIndex uint64) uint64 {
	halvings := blockIndex / config.HalvingInterval
	if halvings >= 63 {
		return config.MinBlockReward
	}
	reward := config.InitialBlockReward >> halvings
	if reward < config.MinBlockReward {
		return config.MinBlockReward
	}
	return reward
}

// splitFee divides fee among producer, burn, and treasury per the pinned
// PPM triple, crediting integer-division remainder to the producer. Uses
// math/bits for an overflow-free scaled multiply-divide: fee can be up to
// 2^64-1 and a PPM weight up to 1_000_000, whose product would overflow a
// plain uint64 multiply.
func splitFee(fee uint64) (producer, burn, treasury uint64) {
	burn = mulDivPPM(fee, config.BurnFeePPM)
	treasury = mulDivPPM(fee, config.TreasuryFeePPM)
	producer = fee - burn - treasury
	return
}

func mulDivPPM(amount, ppm uint64) uint64 {
	hi, lo := bits.Mul64(amount, ppm)
	q, _ := bits.Div64(hi, lo, config.FeePPMScale)
	return q
}

// Apply replays every transaction in blk against parent, returning a new
// snapshot (parent is never mutated) plus an undo log that can later roll a
// committed copy of the result back to parent's content. It credits the
// block reward to the miner after all transactions, matching the teacher's
// coinbase-emission-last ordering generalized to an account model with no
// coinbase transaction.
func Apply(blk *block.Block, parent *Snapshot) (*Snapshot, *UndoLog, error) {
	snap := parent.Clone()
	undo := newUndoLog()
	miner := blk.Header.MinerAddress
	blockIndex := uint64(blk.Header.BlockIndex)

	for i, t := range blk.Transactions {
		if err := applyTx(t, blockIndex, snap, undo, miner); err != nil {
			return nil, nil, fmt.Errorf("tx %d (%s): %w", i, t.Hash(), err)
		}
	}

	if reward := BlockReward(blockIndex); reward > 0 {
		if err := credit(snap, undo, miner, reward, blk.Header.Timestamp); err != nil {
			return nil, nil, fmt.Errorf("block reward: %w", err)
		}
	}

	return snap, undo, nil
}

func applyTx(t *tx.Transaction, blockIndex uint64, snap *Snapshot, undo *UndoLog, miner types.Address) error {
	sender, err := snap.Account(t.From)
	if err != nil {
		return err
	}
	undo.recordAccount(sender)

	if sender.Nonce != t.Nonce {
		return fmt.Errorf("%w: account=%d tx=%d", ErrNonceMismatch, sender.Nonce, t.Nonce)
	}
	cost, err := t.Cost()
	if err != nil {
		return ErrCostOverflow
	}
	if sender.Balance < cost {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBal, sender.Balance, cost)
	}

	sender.Balance -= cost
	sender.Nonce++
	touch(sender, t.Timestamp)
	snap.PutAccount(sender)

	switch t.TxType {
	case tx.Transfer:
		if err := credit(snap, undo, t.To, t.Amount, t.Timestamp); err != nil {
			return err
		}

	case tx.ProblemSubmission:
		if len(t.Data) != types.HashSize {
			return fmt.Errorf("%w: problem_hash must be %d bytes, got %d", ErrZeroProblemHash, types.HashSize, len(t.Data))
		}
		var problemHash types.Hash
		copy(problemHash[:], t.Data)
		if problemHash.IsZero() {
			return ErrZeroProblemHash
		}
		id := EscrowID(t.From, problemHash, blockIndex)
		if _, existed, err := snap.Escrow(id); err != nil {
			return err
		} else if existed {
			return fmt.Errorf("%w: %s", ErrEscrowAlreadyExists, id)
		}
		undo.recordEscrow(id, nil, false)
		snap.PutEscrow(&Escrow{
			ID:           id,
			Submitter:    t.From,
			Amount:       t.Amount,
			ProblemHash:  problemHash,
			CreatedBlock: blockIndex,
			ExpiryBlock:  blockIndex + config.EscrowExpiryBlocks,
			State:        EscrowLocked,
		})

	case tx.BountyPayment:
		if t.Amount != 0 {
			return fmt.Errorf("%w: amount must be 0, got %d", ErrBadBountyAction, t.Amount)
		}
		if err := applyBountyPayment(t, blockIndex, snap, undo); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %d", ErrUnknownTxType, t.TxType)
	}

	producerShare, burnShare, treasuryShare := splitFee(t.Fee)
	if err := credit(snap, undo, miner, producerShare, t.Timestamp); err != nil {
		return fmt.Errorf("fee to producer: %w", err)
	}
	if err := credit(snap, undo, types.BurnAddress, burnShare, t.Timestamp); err != nil {
		return fmt.Errorf("fee to burn: %w", err)
	}
	if err := credit(snap, undo, types.TreasuryAddress, treasuryShare, t.Timestamp); err != nil {
		return fmt.Errorf("fee to treasury: %w", err)
	}
	return nil
}

// applyBountyPayment settles an existing escrow: release credits the
// data-supplied recipient (the submitter authorizes the solver's payout by
// submitting this transaction, since verifying a solution is outside the
// state machine's scope — see DESIGN.md); refund returns the amount to the
// submitter and requires the escrow to have reached its expiry block.
func applyBountyPayment(t *tx.Transaction, blockIndex uint64, snap *Snapshot, undo *UndoLog) error {
	const dataLen = types.HashSize + 1 + types.AddressSize
	if len(t.Data) != dataLen {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrBadBountyAction, dataLen, len(t.Data))
	}
	var id types.Hash
	copy(id[:], t.Data[:types.HashSize])
	action := t.Data[types.HashSize]
	var recipient types.Address
	copy(recipient[:], t.Data[types.HashSize+1:])

	escrow, existed, err := snap.Escrow(id)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("%w: %s", ErrEscrowNotFound, id)
	}
	undo.recordEscrow(id, escrow, true)
	if escrow.State != EscrowLocked {
		return fmt.Errorf("%w: escrow %s", ErrEscrowNotLocked, id)
	}
	if t.From != escrow.Submitter {
		return fmt.Errorf("%w: only the submitter may settle escrow %s", ErrBadBountyAction, id)
	}

	switch action {
	case bountyRelease:
		escrow.State = EscrowReleased
		escrow.Recipient = recipient
	case bountyRefund:
		if blockIndex < escrow.ExpiryBlock {
			return fmt.Errorf("%w: escrow %s expires at %d, block is %d", ErrEscrowNotExpired, id, escrow.ExpiryBlock, blockIndex)
		}
		escrow.State = EscrowRefunded
		escrow.Recipient = escrow.Submitter
		recipient = escrow.Submitter
	default:
		return fmt.Errorf("%w: unknown action byte %d", ErrBadBountyAction, action)
	}
	escrow.SettledBlock = blockIndex
	escrow.SettlementTx = t.Hash()
	snap.PutEscrow(escrow)

	return credit(snap, undo, recipient, escrow.Amount, t.Timestamp)
}

func touch(a *Account, now int64) {
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func credit(snap *Snapshot, undo *UndoLog, addr types.Address, amount uint64, now int64) error {
	acct, err := snap.Account(addr)
	if err != nil {
		return err
	}
	undo.recordAccount(acct)
	if amount == 0 {
		// A zero-amount credit (e.g. an empty fee share) is not "first
		// crediting" and must not lazily create the account.
		return nil
	}
	if acct.Balance > ^uint64(0)-amount {
		return fmt.Errorf("%w: %s", ErrCreditOverflow, addr)
	}
	acct.Balance += amount
	touch(acct, now)
	snap.PutAccount(acct)
	return nil
}
