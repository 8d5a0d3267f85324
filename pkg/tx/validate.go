package tx

import (
	"errors"
	"fmt"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/crypto"
)

// Validation errors.
var (
	ErrInvalidTxType      = errors.New("invalid tx_type")
	ErrZeroFromAddress    = errors.New("from address is zero")
	ErrSelfTransfer       = errors.New("from and to addresses are identical")
	ErrZeroAmountNoData   = errors.New("transfer has zero amount and no data")
	ErrCostOverflow       = errors.New("amount+fee overflows")
	ErrDataTooLarge       = errors.New("tx data too large")
	ErrMissingSignature   = errors.New("missing signature")
	ErrMissingPubKey      = errors.New("missing public key")
	ErrWrongSignatureSize = errors.New("signature must be 64 bytes")
	ErrWrongPubKeySize    = errors.New("public key must be 33 bytes (compressed)")
	ErrPubKeyAddrMismatch = errors.New("public key does not derive from address")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrGasLimitZero       = errors.New("gas_limit is zero")
)

// ValidateStructure checks transaction structure and basic rules that do
// not require account state: tx_type range, size limits, self-consistency
// of From/PubKey. It does NOT check nonce, balance, or escrow existence
// (that requires account state, see internal/state) and does NOT verify
// the signature (see VerifySignature).
func (t *Transaction) ValidateStructure() error {
	switch t.TxType {
	case Transfer, ProblemSubmission, BountyPayment:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidTxType, t.TxType)
	}

	if t.From.IsZero() {
		return ErrZeroFromAddress
	}
	if t.From == t.To {
		return ErrSelfTransfer
	}
	if t.TxType == Transfer && t.Amount == 0 && len(t.Data) == 0 {
		return ErrZeroAmountNoData
	}
	if len(t.Data) > config.MaxTxDataSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrDataTooLarge, len(t.Data), config.MaxTxDataSize)
	}
	if t.GasLimit == 0 {
		return ErrGasLimitZero
	}
	if _, err := t.Cost(); err != nil {
		return fmt.Errorf("%w: %v", ErrCostOverflow, err)
	}

	if len(t.Signature) == 0 {
		return ErrMissingSignature
	}
	if len(t.Signature) != 64 {
		return fmt.Errorf("%w: got %d", ErrWrongSignatureSize, len(t.Signature))
	}
	if len(t.PubKey) == 0 {
		return ErrMissingPubKey
	}
	if len(t.PubKey) != 33 {
		return fmt.Errorf("%w: got %d", ErrWrongPubKeySize, len(t.PubKey))
	}
	if crypto.AddressFromPubKey(t.PubKey) != t.From {
		return ErrPubKeyAddrMismatch
	}

	return nil
}

// VerifySignature checks that Signature is a valid Schnorr signature by
// PubKey over the hash of SigningBytes.
func (t *Transaction) VerifySignature() error {
	hash := crypto.Hash(t.SigningBytes())
	if !crypto.VerifySignature(hash[:], t.Signature, t.PubKey) {
		return ErrInvalidSignature
	}
	return nil
}

// Validate runs ValidateStructure followed by VerifySignature. Callers that
// verify many transactions from the same batch may prefer to call
// ValidateStructure first and defer signature verification to a worker
// pool; Validate is the convenience entry point for one-off checks.
func (t *Transaction) Validate() error {
	if err := t.ValidateStructure(); err != nil {
		return err
	}
	return t.VerifySignature()
}

// Sign populates Signature and PubKey (and derives From) from key, over
// the hash of SigningBytes.
func (t *Transaction) Sign(key *crypto.PrivateKey) error {
	t.PubKey = key.PublicKey()
	t.From = crypto.AddressFromPubKey(t.PubKey)
	hash := crypto.Hash(t.SigningBytes())
	sig, err := key.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	t.Signature = sig
	return nil
}
