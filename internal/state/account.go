// Package state implements the account/nonce balance state machine: lazy
// account creation, escrow locking, and the per-block fee/reward split. A
// Snapshot is the unit of transition — Apply never mutates its input, so a
// candidate block can be discarded without touching committed state.
package state

import (
	"fmt"

	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Account holds an address's balance, nonce, and lifecycle timestamps.
// An account with Balance==0, Nonce==0, and zero timestamps is equivalent
// to the absent account — it is never written to the store in that state.
type Account struct {
	Address   types.Address
	Balance   uint64
	Nonce     uint64
	CreatedAt int64
	UpdatedAt int64
}

// Exists reports whether this account has ever been touched.
func (a *Account) Exists() bool {
	return a.Balance != 0 || a.Nonce != 0 || a.CreatedAt != 0
}

// Encode returns the canonical wire encoding used for storage.
func (a *Account) Encode() []byte {
	e := codec.NewEncoder(32 + 8 + 8 + 8 + 8)
	e.WriteFixed(a.Address[:])
	e.WriteUint64(a.Balance)
	e.WriteUint64(a.Nonce)
	e.WriteInt64(a.CreatedAt)
	e.WriteInt64(a.UpdatedAt)
	return e.Bytes()
}

// DecodeAccount strict-decodes an Account from its canonical encoding.
func DecodeAccount(b []byte) (*Account, error) {
	d := codec.NewDecoder(b)
	a := &Account{}

	addr, err := d.ReadFixed(types.AddressSize)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	copy(a.Address[:], addr)

	if a.Balance, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	if a.Nonce, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	if a.CreatedAt, err = d.ReadInt64(); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if a.UpdatedAt, err = d.ReadInt64(); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return a, nil
}

func accountKey(addr types.Address) []byte {
	key := make([]byte, len(prefixAccount)+types.AddressSize)
	n := copy(key, prefixAccount)
	copy(key[n:], addr[:])
	return key
}
