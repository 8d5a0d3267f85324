package state

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// UndoLog captures, for every account/escrow touched by one Apply call, the
// value it held immediately before that block. Revert uses it to roll a
// committed (on-disk) snapshot back to its pre-block content without
// needing the original in-memory parent snapshot to still be around —
// this is what internal/chain's reorg path replays across potentially many
// blocks when walking back to a common ancestor.
type UndoLog struct {
	// A nil value means the entry did not exist before this block (it was
	// lazily created), so Revert must tombstone it rather than restore it.
	PrevAccounts map[types.Address]*Account
	PrevEscrows  map[types.Hash]*Escrow
}

func newUndoLog() *UndoLog {
	return &UndoLog{
		PrevAccounts: make(map[types.Address]*Account),
		PrevEscrows:  make(map[types.Hash]*Escrow),
	}
}

// recordAccount saves the pre-block value on first touch only, so repeated
// mutation of the same account within a block still undoes to the
// snapshot's value at block entry, not to an intermediate value.
func (u *UndoLog) recordAccount(prior *Account) {
	if _, seen := u.PrevAccounts[prior.Address]; seen {
		return
	}
	if !prior.Exists() {
		u.PrevAccounts[prior.Address] = nil
		return
	}
	cp := *prior
	u.PrevAccounts[prior.Address] = &cp
}

func (u *UndoLog) recordEscrow(id types.Hash, prior *Escrow, existed bool) {
	if _, seen := u.PrevEscrows[id]; seen {
		return
	}
	if !existed {
		u.PrevEscrows[id] = nil
		return
	}
	cp := *prior
	u.PrevEscrows[id] = &cp
}

// Revert rolls a block's effects back out of post (a snapshot that already
// has them applied, typically reloaded fresh from disk after commit),
// returning a new snapshot equal to the pre-block state.
func Revert(post *Snapshot, undo *UndoLog) *Snapshot {
	s := post.Clone()
	for addr, prev := range undo.PrevAccounts {
		if prev == nil {
			s.DeleteAccount(addr)
			continue
		}
		s.PutAccount(prev)
	}
	for id, prev := range undo.PrevEscrows {
		if prev == nil {
			s.DeleteEscrow(id)
			continue
		}
		s.PutEscrow(prev)
	}
	return s
}

// Encode returns the canonical wire encoding of an undo log, for storage
// alongside the block it undoes. Entries are sorted by key so the encoding
// is deterministic across runs of the same Apply call.
func (u *UndoLog) Encode() []byte {
	addrs := make([]types.Address, 0, len(u.PrevAccounts))
	for a := range u.PrevAccounts {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	ids := make([]types.Hash, 0, len(u.PrevEscrows))
	for id := range u.PrevEscrows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	e := codec.NewEncoder(64)
	e.WriteSeqHeader(len(addrs))
	for _, addr := range addrs {
		e.WriteFixed(addr[:])
		prior := u.PrevAccounts[addr]
		if prior == nil {
			e.WriteUint8(0)
			continue
		}
		e.WriteUint8(1)
		e.WriteVarBytes(prior.Encode())
	}

	e.WriteSeqHeader(len(ids))
	for _, id := range ids {
		e.WriteFixed(id[:])
		prior := u.PrevEscrows[id]
		if prior == nil {
			e.WriteUint8(0)
			continue
		}
		e.WriteUint8(1)
		e.WriteVarBytes(prior.Encode())
	}
	return e.Bytes()
}

// DecodeUndoLog strict-decodes an undo log from its canonical encoding.
func DecodeUndoLog(b []byte) (*UndoLog, error) {
	d := codec.NewDecoder(b)
	u := newUndoLog()

	accountCount, err := d.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("account count: %w", err)
	}
	for i := uint32(0); i < accountCount; i++ {
		addrBytes, err := d.ReadFixed(types.AddressSize)
		if err != nil {
			return nil, fmt.Errorf("account[%d] address: %w", i, err)
		}
		var addr types.Address
		copy(addr[:], addrBytes)

		present, err := d.ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("account[%d] present flag: %w", i, err)
		}
		if present == 0 {
			u.PrevAccounts[addr] = nil
			continue
		}
		raw, err := d.ReadVarBytes()
		if err != nil {
			return nil, fmt.Errorf("account[%d] value: %w", i, err)
		}
		acct, err := DecodeAccount(raw)
		if err != nil {
			return nil, fmt.Errorf("account[%d] decode: %w", i, err)
		}
		u.PrevAccounts[addr] = acct
	}

	escrowCount, err := d.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("escrow count: %w", err)
	}
	for i := uint32(0); i < escrowCount; i++ {
		idBytes, err := d.ReadFixed(types.HashSize)
		if err != nil {
			return nil, fmt.Errorf("escrow[%d] id: %w", i, err)
		}
		var id types.Hash
		copy(id[:], idBytes)

		present, err := d.ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("escrow[%d] present flag: %w", i, err)
		}
		if present == 0 {
			u.PrevEscrows[id] = nil
			continue
		}
		raw, err := d.ReadVarBytes()
		if err != nil {
			return nil, fmt.Errorf("escrow[%d] value: %w", i, err)
		}
		es, err := DecodeEscrow(raw)
		if err != nil {
			return nil, fmt.Errorf("escrow[%d] decode: %w", i, err)
		}
		u.PrevEscrows[id] = es
	}

	if err := d.Done(); err != nil {
		return nil, err
	}
	return u, nil
}
