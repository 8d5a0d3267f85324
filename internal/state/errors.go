package state

import "errors"

// Malformed errors: the transaction or block itself is invalid, independent
// of which account happens to be processing it. No state change occurs.
var (
	ErrUnknownTxType   = errors.New("unknown tx_type")
	ErrNonceMismatch   = errors.New("sender nonce does not match account nonce")
	ErrCostOverflow    = errors.New("amount+fee overflows")
	ErrInsufficientBal = errors.New("insufficient balance")
	ErrCreditOverflow  = errors.New("credit overflows recipient balance")
)

// Policy errors: the transaction is well-formed but violates an escrow or
// submission rule that depends on chain state beyond the sender's account.
var (
	ErrEscrowNotFound      = errors.New("escrow not found")
	ErrEscrowNotLocked     = errors.New("escrow state is not LOCKED")
	ErrEscrowNotExpired    = errors.New("escrow has not reached its expiry block")
	ErrEscrowAlreadyExists = errors.New("escrow id already exists")
	ErrBadBountyAction     = errors.New("bounty payment data does not encode a valid action")
	ErrZeroProblemHash     = errors.New("problem submission requires a non-zero problem hash")
)
