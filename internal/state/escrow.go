package state

import (
	"fmt"

	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// EscrowState is the lifecycle stage of a bounty escrow.
type EscrowState uint8

const (
	EscrowLocked   EscrowState = 0
	EscrowReleased EscrowState = 1
	EscrowRefunded EscrowState = 2
)

// Escrow locks a submitter's bounty against a posted problem until it is
// released to a solver or refunded after expiry. Once State leaves
// EscrowLocked no further transition is permitted.
type Escrow struct {
	ID            types.Hash
	Submitter     types.Address
	Amount        uint64
	ProblemHash   types.Hash
	CreatedBlock  uint64
	ExpiryBlock   uint64
	State         EscrowState
	Recipient     types.Address
	SettledBlock  uint64
	SettlementTx  types.Hash
}

// EscrowID derives the deterministic escrow identity: SHA256(submitter ||
// problem_hash || created_block).
func EscrowID(submitter types.Address, problemHash types.Hash, createdBlock uint64) types.Hash {
	e := codec.NewEncoder(types.AddressSize + types.HashSize + 8)
	e.WriteFixed(submitter[:])
	e.WriteFixed(problemHash[:])
	e.WriteUint64(createdBlock)
	return crypto.Hash(e.Bytes())
}

// Encode returns the canonical wire encoding used for storage.
func (es *Escrow) Encode() []byte {
	e := codec.NewEncoder(32*4 + 8*3 + 1)
	e.WriteFixed(es.ID[:])
	e.WriteFixed(es.Submitter[:])
	e.WriteUint64(es.Amount)
	e.WriteFixed(es.ProblemHash[:])
	e.WriteUint64(es.CreatedBlock)
	e.WriteUint64(es.ExpiryBlock)
	e.WriteUint8(uint8(es.State))
	e.WriteFixed(es.Recipient[:])
	e.WriteUint64(es.SettledBlock)
	e.WriteFixed(es.SettlementTx[:])
	return e.Bytes()
}

// DecodeEscrow strict-decodes an Escrow from its canonical encoding.
func DecodeEscrow(b []byte) (*Escrow, error) {
	d := codec.NewDecoder(b)
	es := &Escrow{}

	if f, err := d.ReadFixed(types.HashSize); err != nil {
		return nil, fmt.Errorf("id: %w", err)
	} else {
		copy(es.ID[:], f)
	}
	if f, err := d.ReadFixed(types.AddressSize); err != nil {
		return nil, fmt.Errorf("submitter: %w", err)
	} else {
		copy(es.Submitter[:], f)
	}
	var err error
	if es.Amount, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if f, err := d.ReadFixed(types.HashSize); err != nil {
		return nil, fmt.Errorf("problem_hash: %w", err)
	} else {
		copy(es.ProblemHash[:], f)
	}
	if es.CreatedBlock, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("created_block: %w", err)
	}
	if es.ExpiryBlock, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("expiry_block: %w", err)
	}
	state, err := d.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	es.State = EscrowState(state)
	if f, err := d.ReadFixed(types.AddressSize); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	} else {
		copy(es.Recipient[:], f)
	}
	if es.SettledBlock, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("settled_block: %w", err)
	}
	if f, err := d.ReadFixed(types.HashSize); err != nil {
		return nil, fmt.Errorf("settlement_tx: %w", err)
	} else {
		copy(es.SettlementTx[:], f)
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return es, nil
}

func escrowKey(id types.Hash) []byte {
	key := make([]byte, len(prefixEscrow)+types.HashSize)
	n := copy(key, prefixEscrow)
	copy(key[n:], id[:])
	return key
}
