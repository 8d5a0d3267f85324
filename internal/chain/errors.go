package chain

import "errors"

var (
	ErrNilBlock            = errors.New("chain: block is nil")
	ErrBlockKnown          = errors.New("chain: block already known")
	ErrParentNotFound      = errors.New("chain: parent block not found")
	ErrBadBlockIndex       = errors.New("chain: block_index does not follow parent")
	ErrBadParentHash       = errors.New("chain: parent_hash does not match stored parent")
	ErrTimestampRegression = errors.New("chain: timestamp does not exceed parent timestamp")
	ErrBadReveal           = errors.New("chain: malformed commit-reveal payload")
	ErrCommitmentMismatch  = errors.New("chain: revealed payload does not match header commitment")
	ErrProblemMismatch     = errors.New("chain: revealed problem is not the epoch-canonical instance")
	ErrSolutionInvalid     = errors.New("chain: revealed solution failed verification")
	ErrDifficultyMismatch  = errors.New("chain: header difficulty_target does not match expected target")
	ErrWorkScoreTooLow     = errors.New("chain: work score does not meet difficulty target")
	ErrReplaySeen          = errors.New("chain: commitment already used by this miner")
	ErrApplyState          = errors.New("chain: state transition rejected block")
	ErrForkDetected         = errors.New("chain: block extends a non-tip parent")
	ErrReorgTooDeep         = errors.New("chain: reorg exceeds maximum depth")
	ErrGenesisReorg         = errors.New("chain: reorg would revert past genesis")
)
