package block

import (
	"errors"
	"fmt"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/merkle"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader       = errors.New("block has nil header")
	ErrBadCodecVersion = errors.New("unsupported codec_version")
	ErrZeroTimestamp   = errors.New("block timestamp is zero")
	ErrZeroParentHash  = errors.New("parent_hash is zero for non-genesis block")
	ErrBadMerkleRoot   = errors.New("merkle root mismatch")
	ErrTooManyTxs      = errors.New("too many transactions in block")
	ErrBlockGasOverCap = errors.New("block gas exceeds per-block cap")
	ErrExtraDataTooBig = errors.New("extra_data too large")
)

// ValidateStructure checks block structure and internal consistency that
// requires no account state: codec_version, parent_hash non-zero-ness,
// merkle root, per-block size/gas caps, and each transaction's structural
// validity and signature. It does NOT check nonces, balances, escrow
// existence, PoA miner/schedule membership, or commit-reveal/work-score —
// those require account state or validator-set context (internal/state,
// internal/consensus).
func (b *Block) ValidateStructure() error {
	if b.Header == nil {
		return ErrNilHeader
	}
	h := b.Header

	if h.CodecVersion != codec.Version {
		return fmt.Errorf("%w: got %d, want %d", ErrBadCodecVersion, h.CodecVersion, codec.Version)
	}
	if h.Timestamp == 0 {
		return ErrZeroTimestamp
	}
	if h.BlockIndex > 0 && h.ParentHash.IsZero() {
		return ErrZeroParentHash
	}
	if len(h.ExtraData) > config.MaxExtraData {
		return fmt.Errorf("%w: %d bytes, max %d", ErrExtraDataTooBig, len(h.ExtraData), config.MaxExtraData)
	}

	if len(b.Transactions) > config.MaxBlockTxs {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions), config.MaxBlockTxs)
	}

	var gasSum uint64
	txHashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
		txHashes[i] = t.Hash()

		next := gasSum + t.GasLimit
		if next < gasSum {
			return fmt.Errorf("tx %d: %w", i, ErrBlockGasOverCap)
		}
		gasSum = next
	}
	if gasSum > config.MaxBlockGas {
		return fmt.Errorf("%w: %d, max %d", ErrBlockGasOverCap, gasSum, config.MaxBlockGas)
	}

	expectedRoot := merkle.ComputeRoot(txHashes)
	if h.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, h.MerkleRoot, expectedRoot)
	}

	return nil
}
