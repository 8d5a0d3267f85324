package state

import (
	"fmt"

	"github.com/coinjecture/coinjecture/internal/storage"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Keyspace prefixes for the state store (see persisted state layout).
var (
	prefixAccount = []byte("account:")
	prefixEscrow  = []byte("escrow:")
)

// Snapshot is a copy-on-write view over persisted account/escrow state.
// Reads check the overlay first, then fall through to the base store;
// writes land only in the overlay until Commit flushes them as one atomic
// batch. Apply builds its result via Clone, so a candidate block that fails
// mid-application can be discarded without mutating its parent snapshot.
type Snapshot struct {
	db       storage.DB
	accounts map[types.Address]*Account
	escrows  map[types.Hash]*Escrow

	// deletedAccounts/deletedEscrows are tombstones for entries that must
	// be erased from the base store on Commit. Only Revert produces these
	// (undoing a lazily-created account/escrow that didn't exist before
	// the reverted block) — normal Apply never deletes, matching the
	// never-destroyed account lifecycle.
	deletedAccounts map[types.Address]bool
	deletedEscrows  map[types.Hash]bool
}

// NewSnapshot wraps db (typically a storage.PrefixDB scoped to the "state"
// keyspace) with an empty overlay.
func NewSnapshot(db storage.DB) *Snapshot {
	return &Snapshot{
		db:              db,
		accounts:        make(map[types.Address]*Account),
		escrows:         make(map[types.Hash]*Escrow),
		deletedAccounts: make(map[types.Address]bool),
		deletedEscrows:  make(map[types.Hash]bool),
	}
}

// Clone returns a new snapshot over the same base store, seeded with copies
// of this snapshot's dirty entries so mutations on the clone never affect it.
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot(s.db)
	for addr, a := range s.accounts {
		cp := *a
		c.accounts[addr] = &cp
	}
	for id, e := range s.escrows {
		cp := *e
		c.escrows[id] = &cp
	}
	for addr := range s.deletedAccounts {
		c.deletedAccounts[addr] = true
	}
	for id := range s.deletedEscrows {
		c.deletedEscrows[id] = true
	}
	return c
}

// Account returns a copy of the account at addr, or the zero-value (absent)
// account if it has never been touched.
func (s *Snapshot) Account(addr types.Address) (*Account, error) {
	if a, ok := s.accounts[addr]; ok {
		cp := *a
		return &cp, nil
	}
	if s.deletedAccounts[addr] {
		return &Account{Address: addr}, nil
	}
	found, err := s.db.Has(accountKey(addr))
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", addr, err)
	}
	if !found {
		return &Account{Address: addr}, nil
	}
	raw, err := s.db.Get(accountKey(addr))
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", addr, err)
	}
	a, err := DecodeAccount(raw)
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", addr, err)
	}
	return a, nil
}

// PutAccount writes a copy of acct into the overlay, clearing any tombstone.
func (s *Snapshot) PutAccount(acct *Account) {
	cp := *acct
	s.accounts[acct.Address] = &cp
	delete(s.deletedAccounts, acct.Address)
}

// DeleteAccount tombstones addr so Commit erases it from the base store.
func (s *Snapshot) DeleteAccount(addr types.Address) {
	delete(s.accounts, addr)
	s.deletedAccounts[addr] = true
}

// Escrow returns a copy of the escrow with the given id. The second return
// value is false if no such escrow has ever been created.
func (s *Snapshot) Escrow(id types.Hash) (*Escrow, bool, error) {
	if e, ok := s.escrows[id]; ok {
		cp := *e
		return &cp, true, nil
	}
	if s.deletedEscrows[id] {
		return nil, false, nil
	}
	found, err := s.db.Has(escrowKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("escrow %s: %w", id, err)
	}
	if !found {
		return nil, false, nil
	}
	raw, err := s.db.Get(escrowKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("escrow %s: %w", id, err)
	}
	e, err := DecodeEscrow(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode escrow %s: %w", id, err)
	}
	return e, true, nil
}

// PutEscrow writes a copy of es into the overlay, clearing any tombstone.
func (s *Snapshot) PutEscrow(es *Escrow) {
	cp := *es
	s.escrows[es.ID] = &cp
	delete(s.deletedEscrows, es.ID)
}

// DeleteEscrow tombstones id so Commit erases it from the base store.
func (s *Snapshot) DeleteEscrow(id types.Hash) {
	delete(s.escrows, id)
	s.deletedEscrows[id] = true
}

// Commit flushes every overlay entry and tombstone to the base store as a
// single atomic batch when the store supports one, falling back to
// sequential writes otherwise (e.g. a bare storage.DB with no Batcher).
func (s *Snapshot) Commit() error {
	batcher, ok := s.db.(storage.Batcher)
	if !ok {
		return s.commitUnbatched()
	}
	batch := batcher.NewBatch()
	for _, a := range s.accounts {
		if err := batch.Put(accountKey(a.Address), a.Encode()); err != nil {
			return fmt.Errorf("batch put account %s: %w", a.Address, err)
		}
	}
	for addr := range s.deletedAccounts {
		if err := batch.Delete(accountKey(addr)); err != nil {
			return fmt.Errorf("batch delete account %s: %w", addr, err)
		}
	}
	for _, e := range s.escrows {
		if err := batch.Put(escrowKey(e.ID), e.Encode()); err != nil {
			return fmt.Errorf("batch put escrow %s: %w", e.ID, err)
		}
	}
	for id := range s.deletedEscrows {
		if err := batch.Delete(escrowKey(id)); err != nil {
			return fmt.Errorf("batch delete escrow %s: %w", id, err)
		}
	}
	return batch.Commit()
}

func (s *Snapshot) commitUnbatched() error {
	for _, a := range s.accounts {
		if err := s.db.Put(accountKey(a.Address), a.Encode()); err != nil {
			return fmt.Errorf("put account %s: %w", a.Address, err)
		}
	}
	for addr := range s.deletedAccounts {
		if err := s.db.Delete(accountKey(addr)); err != nil {
			return fmt.Errorf("delete account %s: %w", addr, err)
		}
	}
	for _, e := range s.escrows {
		if err := s.db.Put(escrowKey(e.ID), e.Encode()); err != nil {
			return fmt.Errorf("put escrow %s: %w", e.ID, err)
		}
	}
	for id := range s.deletedEscrows {
		if err := s.db.Delete(escrowKey(id)); err != nil {
			return fmt.Errorf("delete escrow %s: %w", id, err)
		}
	}
	return nil
}
