package consensus

import (
	"fmt"

	"github.com/coinjecture/coinjecture/internal/storage"
	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// validator records are consensus-critical (a banned validator must stay
// banned across a restart), unlike the teacher's in-memory-only liveness
// tracker, so Registry persists each record under its own key rather than
// keeping slashing state in memory alone.
var prefixValidator = []byte("v/")

func validatorKey(addr types.Address) []byte {
	return append(append([]byte(nil), prefixValidator...), addr[:]...)
}

func encodeValidator(v *Validator) []byte {
	e := codec.NewEncoder(types.AddressSize + 8 + 8 + 1 + 8)
	e.WriteFixed(v.Address[:])
	e.WriteInt64(v.Reputation)
	e.WriteUint64(v.JailUntil)
	if v.Banned {
		e.WriteUint8(1)
	} else {
		e.WriteUint8(0)
	}
	e.WriteUint64(v.CumulativeSeverity)
	return e.Bytes()
}

func decodeValidator(b []byte) (*Validator, error) {
	d := codec.NewDecoder(b)
	v := &Validator{}
	addr, err := d.ReadFixed(types.AddressSize)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	copy(v.Address[:], addr)
	if v.Reputation, err = d.ReadInt64(); err != nil {
		return nil, fmt.Errorf("reputation: %w", err)
	}
	if v.JailUntil, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("jail_until: %w", err)
	}
	banned, err := d.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("banned: %w", err)
	}
	v.Banned = banned != 0
	if v.CumulativeSeverity, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("cumulative_severity: %w", err)
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return v, nil
}

// SaveTo persists every validator record under db. Call after any slash or
// reputation-recovery event that must survive a restart.
func (r *Registry) SaveTo(db storage.DB) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.validators {
		if err := db.Put(validatorKey(v.Address), encodeValidator(v)); err != nil {
			return fmt.Errorf("save validator %s: %w", v.Address, err)
		}
	}
	return nil
}

// LoadFrom overlays any persisted validator records found in db onto r,
// restoring slashing state across a restart. Addresses with no persisted
// record keep their genesis defaults.
func (r *Registry) LoadFrom(db storage.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return db.ForEach(prefixValidator, func(key, value []byte) error {
		v, err := decodeValidator(value)
		if err != nil {
			return fmt.Errorf("decode validator at %x: %w", key, err)
		}
		if _, ok := r.validators[v.Address]; !ok {
			return nil // not in the current genesis set; ignore stale records.
		}
		r.validators[v.Address] = v
		return nil
	})
}
