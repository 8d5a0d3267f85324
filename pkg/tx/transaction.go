// Package tx defines the account-model transaction type and its
// structural validation.
package tx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Type tags the purpose of a transaction.
type Type uint8

const (
	// Transfer moves value from one account to another.
	Transfer Type = 1
	// ProblemSubmission creates an escrow against a posted NP-complete problem.
	ProblemSubmission Type = 2
	// BountyPayment settles an existing escrow (release or refund).
	BountyPayment Type = 3
)

// Transaction is a signed, nonce-ordered account-model instruction.
// Hash, PubKey are not part of the canonical signing surface: Hash is
// derived, PubKey is carried alongside Signature purely so verifiers do not
// need an external key lookup (see DESIGN.md's public-key sizing note).
type Transaction struct {
	From      types.Address `json:"from"`
	To        types.Address `json:"to"`
	Amount    uint64        `json:"amount"`
	Fee       uint64        `json:"fee"`
	Nonce     uint64        `json:"nonce"`
	GasLimit  uint64        `json:"gas_limit"`
	GasPrice  uint64        `json:"gas_price"`
	TxType    Type          `json:"tx_type"`
	Data      []byte        `json:"data,omitempty"`
	Timestamp int64         `json:"timestamp"`
	Signature []byte        `json:"signature,omitempty"` // 64-byte Schnorr signature
	PubKey    []byte        `json:"pubkey,omitempty"`    // 33-byte compressed secp256k1 public key
}

// SigningBytes returns the canonical bytes signed by From's private key.
// Excludes Signature and PubKey, which are not part of the signed surface.
func (t *Transaction) SigningBytes() []byte {
	e := codec.NewEncoder(96 + len(t.Data))
	e.WriteUint8(uint8(t.TxType))
	e.WriteFixed(t.From[:])
	e.WriteFixed(t.To[:])
	e.WriteUint64(t.Amount)
	e.WriteUint64(t.Fee)
	e.WriteUint64(t.Nonce)
	e.WriteUint64(t.GasLimit)
	e.WriteUint64(t.GasPrice)
	e.WriteInt64(t.Timestamp)
	e.WriteVarBytes(t.Data)
	return e.Bytes()
}

// Encode returns the full canonical wire encoding, including Signature and
// PubKey, for storage and transmission.
func (t *Transaction) Encode() []byte {
	e := codec.NewEncoder(96 + len(t.Data) + len(t.Signature) + len(t.PubKey))
	e.WriteUint8(uint8(t.TxType))
	e.WriteFixed(t.From[:])
	e.WriteFixed(t.To[:])
	e.WriteUint64(t.Amount)
	e.WriteUint64(t.Fee)
	e.WriteUint64(t.Nonce)
	e.WriteUint64(t.GasLimit)
	e.WriteUint64(t.GasPrice)
	e.WriteInt64(t.Timestamp)
	e.WriteVarBytes(t.Data)
	e.WriteVarBytes(t.Signature)
	e.WriteVarBytes(t.PubKey)
	return e.Bytes()
}

// Decode strict-decodes a Transaction from its canonical wire encoding.
func Decode(b []byte) (*Transaction, error) {
	d := codec.NewDecoder(b)
	t := &Transaction{}

	typ, err := d.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("tx_type: %w", err)
	}
	t.TxType = Type(typ)

	from, err := d.ReadFixed(types.AddressSize)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	copy(t.From[:], from)

	to, err := d.ReadFixed(types.AddressSize)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	copy(t.To[:], to)

	if t.Amount, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if t.Fee, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	if t.Nonce, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	if t.GasLimit, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("gas_limit: %w", err)
	}
	if t.GasPrice, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("gas_price: %w", err)
	}
	if t.Timestamp, err = d.ReadInt64(); err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	if t.Data, err = d.ReadVarBytes(); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	if t.Signature, err = d.ReadVarBytes(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	if t.PubKey, err = d.ReadVarBytes(); err != nil {
		return nil, fmt.Errorf("pubkey: %w", err)
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return t, nil
}

// Hash computes the transaction ID: SHA256 of the full wire encoding.
// Unlike the signing surface, the hash includes the signature so that two
// transactions that differ only by signature are distinguishable on-chain.
func (t *Transaction) Hash() types.Hash {
	return crypto.Hash(t.Encode())
}

// Cost returns amount+fee, the total debited from the sender, with an
// explicit overflow check.
func (t *Transaction) Cost() (uint64, error) {
	if t.Amount > ^uint64(0)-t.Fee {
		return 0, fmt.Errorf("tx cost overflow: amount=%d fee=%d", t.Amount, t.Fee)
	}
	return t.Amount + t.Fee, nil
}

// txJSON mirrors Transaction for marshaling with hex byte fields.
type txJSON struct {
	From      types.Address `json:"from"`
	To        types.Address `json:"to"`
	Amount    uint64        `json:"amount"`
	Fee       uint64        `json:"fee"`
	Nonce     uint64        `json:"nonce"`
	GasLimit  uint64        `json:"gas_limit"`
	GasPrice  uint64        `json:"gas_price"`
	TxType    uint8         `json:"tx_type"`
	Data      string        `json:"data,omitempty"`
	Timestamp int64         `json:"timestamp"`
	Signature string        `json:"signature,omitempty"`
	PubKey    string        `json:"pubkey,omitempty"`
}

// MarshalJSON encodes the transaction with hex-encoded byte fields.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	j := txJSON{
		From:      t.From,
		To:        t.To,
		Amount:    t.Amount,
		Fee:       t.Fee,
		Nonce:     t.Nonce,
		GasLimit:  t.GasLimit,
		GasPrice:  t.GasPrice,
		TxType:    uint8(t.TxType),
		Timestamp: t.Timestamp,
	}
	if t.Data != nil {
		j.Data = hex.EncodeToString(t.Data)
	}
	if t.Signature != nil {
		j.Signature = hex.EncodeToString(t.Signature)
	}
	if t.PubKey != nil {
		j.PubKey = hex.EncodeToString(t.PubKey)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a transaction with hex-encoded byte fields.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var j txJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	t.From = j.From
	t.To = j.To
	t.Amount = j.Amount
	t.Fee = j.Fee
	t.Nonce = j.Nonce
	t.GasLimit = j.GasLimit
	t.GasPrice = j.GasPrice
	t.TxType = Type(j.TxType)
	t.Timestamp = j.Timestamp
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return err
		}
		t.Data = b
	}
	if j.Signature != "" {
		b, err := hex.DecodeString(j.Signature)
		if err != nil {
			return err
		}
		t.Signature = b
	}
	if j.PubKey != "" {
		b, err := hex.DecodeString(j.PubKey)
		if err != nil {
			return err
		}
		t.PubKey = b
	}
	return nil
}
