package state

import (
	"errors"
	"testing"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/internal/storage"
	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/tx"
	"github.com/coinjecture/coinjecture/pkg/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func hash(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func newTestSnapshot(t *testing.T, seed map[types.Address]uint64) *Snapshot {
	t.Helper()
	snap := NewSnapshot(storage.NewMemory())
	for a, bal := range seed {
		snap.PutAccount(&Account{Address: a, Balance: bal})
	}
	return snap
}

func testBlock(blockIndex uint32, miner types.Address, txs ...*tx.Transaction) *block.Block {
	return &block.Block{
		Header: &block.Header{
			BlockIndex:   blockIndex,
			Timestamp:    1_770_000_000,
			MinerAddress: miner,
		},
		Transactions: txs,
	}
}

func TestApply_Transfer_Success(t *testing.T) {
	sender, recipient, miner := addr(1), addr(2), addr(3)
	parent := newTestSnapshot(t, map[types.Address]uint64{sender: 1_000_000})

	transfer := &tx.Transaction{
		TxType: tx.Transfer,
		From:   sender,
		To:     recipient,
		Amount: 500_000,
		Fee:    1_000,
		Nonce:  0,
	}
	blk := testBlock(1, miner, transfer)

	snap, undo, err := Apply(blk, parent)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	senderAcct, _ := snap.Account(sender)
	if want := uint64(1_000_000 - 501_000); senderAcct.Balance != want {
		t.Errorf("sender balance = %d, want %d", senderAcct.Balance, want)
	}
	if senderAcct.Nonce != 1 {
		t.Errorf("sender nonce = %d, want 1", senderAcct.Nonce)
	}

	recipientAcct, _ := snap.Account(recipient)
	if recipientAcct.Balance != 500_000 {
		t.Errorf("recipient balance = %d, want 500000", recipientAcct.Balance)
	}

	producer, burn, treasury := splitFee(1_000)
	minerAcct, _ := snap.Account(miner)
	wantMiner := producer + BlockReward(1)
	if minerAcct.Balance != wantMiner {
		t.Errorf("miner balance = %d, want %d", minerAcct.Balance, wantMiner)
	}
	burnAcct, _ := snap.Account(types.BurnAddress)
	if burnAcct.Balance != burn {
		t.Errorf("burn balance = %d, want %d", burnAcct.Balance, burn)
	}
	treasuryAcct, _ := snap.Account(types.TreasuryAddress)
	if treasuryAcct.Balance != treasury {
		t.Errorf("treasury balance = %d, want %d", treasuryAcct.Balance, treasury)
	}

	if _, ok := undo.PrevAccounts[sender]; !ok {
		t.Error("undo log must record sender's pre-block state")
	}
}

func TestApply_NonceMismatch(t *testing.T) {
	sender := addr(1)
	parent := newTestSnapshot(t, map[types.Address]uint64{sender: 1000})
	txn := &tx.Transaction{TxType: tx.Transfer, From: sender, To: addr(2), Nonce: 5}
	blk := testBlock(1, addr(9), txn)

	if _, _, err := Apply(blk, parent); !errors.Is(err, ErrNonceMismatch) {
		t.Errorf("err = %v, want ErrNonceMismatch", err)
	}
}

func TestApply_InsufficientBalance(t *testing.T) {
	sender := addr(1)
	parent := newTestSnapshot(t, map[types.Address]uint64{sender: 10})
	txn := &tx.Transaction{TxType: tx.Transfer, From: sender, To: addr(2), Amount: 100, Nonce: 0}
	blk := testBlock(1, addr(9), txn)

	if _, _, err := Apply(blk, parent); !errors.Is(err, ErrInsufficientBal) {
		t.Errorf("err = %v, want ErrInsufficientBal", err)
	}
}

func TestApply_UnknownTxType(t *testing.T) {
	sender := addr(1)
	parent := newTestSnapshot(t, map[types.Address]uint64{sender: 1000})
	txn := &tx.Transaction{TxType: tx.Type(99), From: sender, Nonce: 0}
	blk := testBlock(1, addr(9), txn)

	if _, _, err := Apply(blk, parent); !errors.Is(err, ErrUnknownTxType) {
		t.Errorf("err = %v, want ErrUnknownTxType", err)
	}
}

func TestApply_ProblemSubmission_CreatesEscrow(t *testing.T) {
	submitter, miner := addr(1), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1_000_000})
	problemHash := hash(0x42)

	txn := &tx.Transaction{
		TxType: tx.ProblemSubmission,
		From:   submitter,
		Amount: 200_000,
		Nonce:  0,
		Data:   problemHash[:],
	}
	blk := testBlock(7, miner, txn)

	snap, _, err := Apply(blk, parent)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	id := EscrowID(submitter, problemHash, 7)
	es, found, err := snap.Escrow(id)
	if err != nil {
		t.Fatalf("Escrow: %v", err)
	}
	if !found {
		t.Fatal("expected escrow to exist")
	}
	if es.State != EscrowLocked {
		t.Errorf("escrow state = %v, want EscrowLocked", es.State)
	}
	if es.Amount != 200_000 {
		t.Errorf("escrow amount = %d, want 200000", es.Amount)
	}
	if es.ExpiryBlock != 7+config.EscrowExpiryBlocks {
		t.Errorf("expiry block = %d, want %d", es.ExpiryBlock, 7+config.EscrowExpiryBlocks)
	}
}

func TestApply_ProblemSubmission_ZeroHashRejected(t *testing.T) {
	submitter := addr(1)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1000})
	txn := &tx.Transaction{
		TxType: tx.ProblemSubmission,
		From:   submitter,
		Nonce:  0,
		Data:   make([]byte, types.HashSize),
	}
	blk := testBlock(1, addr(9), txn)

	if _, _, err := Apply(blk, parent); !errors.Is(err, ErrZeroProblemHash) {
		t.Errorf("err = %v, want ErrZeroProblemHash", err)
	}
}

func TestApply_ProblemSubmission_DuplicateEscrowRejected(t *testing.T) {
	submitter, miner := addr(1), addr(9)
	problemHash := hash(0x42)
	submission := &tx.Transaction{
		TxType: tx.ProblemSubmission,
		From:   submitter,
		Amount: 1,
		Nonce:  0,
		Data:   problemHash[:],
	}
	// Two submissions in the same block, same submitter/problem/block_index
	// collide on EscrowID.
	dup := &tx.Transaction{
		TxType: tx.ProblemSubmission,
		From:   submitter,
		Amount: 1,
		Nonce:  1,
		Data:   problemHash[:],
	}
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1000})
	blk := testBlock(7, miner, submission, dup)

	if _, _, err := Apply(blk, parent); !errors.Is(err, ErrEscrowAlreadyExists) {
		t.Errorf("err = %v, want ErrEscrowAlreadyExists", err)
	}
}

func bountyData(id types.Hash, action byte, recipient types.Address) []byte {
	d := make([]byte, types.HashSize+1+types.AddressSize)
	copy(d[:types.HashSize], id[:])
	d[types.HashSize] = action
	copy(d[types.HashSize+1:], recipient[:])
	return d
}

func submitProblem(t *testing.T, submitter, miner types.Address, amount uint64, blockIndex uint32, parent *Snapshot) (*Snapshot, types.Hash) {
	t.Helper()
	problemHash := hash(0x77)
	txn := &tx.Transaction{
		TxType: tx.ProblemSubmission,
		From:   submitter,
		Amount: amount,
		Nonce:  0,
		Data:   problemHash[:],
	}
	blk := testBlock(blockIndex, miner, txn)
	snap, _, err := Apply(blk, parent)
	if err != nil {
		t.Fatalf("submitProblem Apply: %v", err)
	}
	return snap, EscrowID(submitter, problemHash, uint64(blockIndex))
}

func TestApply_BountyPayment_Release(t *testing.T) {
	submitter, solver, miner := addr(1), addr(2), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1_000_000})
	afterSubmit, escrowID := submitProblem(t, submitter, miner, 300_000, 10, parent)

	release := &tx.Transaction{
		TxType: tx.BountyPayment,
		From:   submitter,
		Nonce:  1,
		Data:   bountyData(escrowID, bountyRelease, solver),
	}
	blk := testBlock(11, miner, release)

	snap, _, err := Apply(blk, afterSubmit)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	es, found, err := snap.Escrow(escrowID)
	if err != nil || !found {
		t.Fatalf("Escrow: found=%v err=%v", found, err)
	}
	if es.State != EscrowReleased {
		t.Errorf("escrow state = %v, want EscrowReleased", es.State)
	}
	if es.Recipient != solver {
		t.Errorf("escrow recipient = %v, want %v", es.Recipient, solver)
	}

	solverAcct, _ := snap.Account(solver)
	if solverAcct.Balance != 300_000 {
		t.Errorf("solver balance = %d, want 300000", solverAcct.Balance)
	}
}

func TestApply_BountyPayment_RefundBeforeExpiry_Rejected(t *testing.T) {
	submitter, miner := addr(1), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1_000_000})
	afterSubmit, escrowID := submitProblem(t, submitter, miner, 300_000, 10, parent)

	refund := &tx.Transaction{
		TxType: tx.BountyPayment,
		From:   submitter,
		Nonce:  1,
		Data:   bountyData(escrowID, bountyRefund, submitter),
	}
	blk := testBlock(11, miner, refund)

	if _, _, err := Apply(blk, afterSubmit); !errors.Is(err, ErrEscrowNotExpired) {
		t.Errorf("err = %v, want ErrEscrowNotExpired", err)
	}
}

func TestApply_BountyPayment_RefundAfterExpiry(t *testing.T) {
	submitter, miner := addr(1), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1_000_000})
	afterSubmit, escrowID := submitProblem(t, submitter, miner, 300_000, 10, parent)

	expiry := 10 + config.EscrowExpiryBlocks
	refund := &tx.Transaction{
		TxType: tx.BountyPayment,
		From:   submitter,
		Nonce:  1,
		Data:   bountyData(escrowID, bountyRefund, submitter),
	}
	blk := testBlock(uint32(expiry), miner, refund)

	snap, _, err := Apply(blk, afterSubmit)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	es, _, _ := snap.Escrow(escrowID)
	if es.State != EscrowRefunded {
		t.Errorf("escrow state = %v, want EscrowRefunded", es.State)
	}
	submitterAcct, _ := snap.Account(submitter)
	// 1_000_000 - 300_000 (locked) + 300_000 (refunded) == 1_000_000
	if submitterAcct.Balance != 1_000_000 {
		t.Errorf("submitter balance = %d, want 1000000", submitterAcct.Balance)
	}
}

func TestApply_BountyPayment_WrongSubmitterRejected(t *testing.T) {
	submitter, impostor, miner := addr(1), addr(4), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{
		submitter: 1_000_000,
		impostor:  1_000,
	})
	afterSubmit, escrowID := submitProblem(t, submitter, miner, 300_000, 10, parent)

	release := &tx.Transaction{
		TxType: tx.BountyPayment,
		From:   impostor,
		Nonce:  0,
		Data:   bountyData(escrowID, bountyRelease, impostor),
	}
	blk := testBlock(11, miner, release)

	if _, _, err := Apply(blk, afterSubmit); !errors.Is(err, ErrBadBountyAction) {
		t.Errorf("err = %v, want ErrBadBountyAction", err)
	}
}

func TestApply_BountyPayment_AmountMustBeZero(t *testing.T) {
	submitter, miner := addr(1), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1_000_000})
	afterSubmit, escrowID := submitProblem(t, submitter, miner, 300_000, 10, parent)

	release := &tx.Transaction{
		TxType: tx.BountyPayment,
		From:   submitter,
		Amount: 1,
		Nonce:  1,
		Data:   bountyData(escrowID, bountyRelease, submitter),
	}
	blk := testBlock(11, miner, release)

	if _, _, err := Apply(blk, afterSubmit); !errors.Is(err, ErrBadBountyAction) {
		t.Errorf("err = %v, want ErrBadBountyAction", err)
	}
}

func TestApply_BountyPayment_EscrowNotFound(t *testing.T) {
	submitter, miner := addr(1), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1000})
	release := &tx.Transaction{
		TxType: tx.BountyPayment,
		From:   submitter,
		Nonce:  0,
		Data:   bountyData(hash(0xEE), bountyRelease, submitter),
	}
	blk := testBlock(1, miner, release)

	if _, _, err := Apply(blk, parent); !errors.Is(err, ErrEscrowNotFound) {
		t.Errorf("err = %v, want ErrEscrowNotFound", err)
	}
}

func TestApply_BountyPayment_AlreadySettledRejected(t *testing.T) {
	submitter, solver, miner := addr(1), addr(2), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1_000_000})
	afterSubmit, escrowID := submitProblem(t, submitter, miner, 300_000, 10, parent)

	release := &tx.Transaction{
		TxType: tx.BountyPayment,
		From:   submitter,
		Nonce:  1,
		Data:   bountyData(escrowID, bountyRelease, solver),
	}
	afterRelease, _, err := Apply(testBlock(11, miner, release), afterSubmit)
	if err != nil {
		t.Fatalf("Apply release: %v", err)
	}

	secondRelease := &tx.Transaction{
		TxType: tx.BountyPayment,
		From:   submitter,
		Nonce:  2,
		Data:   bountyData(escrowID, bountyRelease, solver),
	}
	_, _, err = Apply(testBlock(12, miner, secondRelease), afterRelease)
	if !errors.Is(err, ErrEscrowNotLocked) {
		t.Errorf("err = %v, want ErrEscrowNotLocked", err)
	}
}

func TestRevert_UndoesApply(t *testing.T) {
	sender, recipient, miner := addr(1), addr(2), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{sender: 1_000_000})

	txn := &tx.Transaction{TxType: tx.Transfer, From: sender, To: recipient, Amount: 500, Fee: 10, Nonce: 0}
	blk := testBlock(1, miner, txn)

	post, undo, err := Apply(blk, parent)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	reverted := Revert(post, undo)

	senderBefore, _ := parent.Account(sender)
	senderAfter, _ := reverted.Account(sender)
	if *senderBefore != *senderAfter {
		t.Errorf("reverted sender = %+v, want %+v", senderAfter, senderBefore)
	}

	recipientAfter, _ := reverted.Account(recipient)
	if recipientAfter.Exists() {
		t.Errorf("reverted recipient should not exist (lazily created), got %+v", recipientAfter)
	}

	minerAfter, _ := reverted.Account(miner)
	if minerAfter.Exists() {
		t.Errorf("reverted miner should not exist (lazily created), got %+v", minerAfter)
	}
}

func TestBlockReward_Halving(t *testing.T) {
	if r := BlockReward(0); r != config.InitialBlockReward {
		t.Errorf("BlockReward(0) = %d, want %d", r, config.InitialBlockReward)
	}
	if r := BlockReward(config.HalvingInterval); r != config.InitialBlockReward/2 {
		t.Errorf("BlockReward(HalvingInterval) = %d, want %d", r, config.InitialBlockReward/2)
	}
	if r := BlockReward(config.HalvingInterval * 1000); r != config.MinBlockReward {
		t.Errorf("BlockReward at deep halving = %d, want floor %d", r, config.MinBlockReward)
	}
}

func TestConservation_BalancesPlusLocked(t *testing.T) {
	submitter, solver, miner := addr(1), addr(2), addr(9)
	parent := newTestSnapshot(t, map[types.Address]uint64{submitter: 1_000_000})

	fee := uint64(1_000)
	txn := &tx.Transaction{
		TxType: tx.ProblemSubmission,
		From:   submitter,
		Amount: 200_000,
		Fee:    fee,
		Nonce:  0,
		Data:   func() []byte { h := hash(0x11); return h[:] }(),
	}
	blk := testBlock(3, miner, txn)

	snap, _, err := Apply(blk, parent)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	sum := func(s *Snapshot) uint64 {
		var total uint64
		for _, a := range []types.Address{submitter, solver, miner, types.TreasuryAddress} {
			acct, _ := s.Account(a)
			total += acct.Balance
		}
		id := EscrowID(submitter, hash(0x11), 3)
		if es, found, _ := s.Escrow(id); found {
			total += es.Amount
		}
		return total
	}

	before := sum(parent)
	after := sum(snap)

	_, burnShare, _ := splitFee(fee)
	reward := BlockReward(3)
	want := before + reward - burnShare
	if after != want {
		t.Errorf("balances+locked after = %d, want %d (before=%d reward=%d burn=%d)", after, want, before, reward, burnShare)
	}
}
