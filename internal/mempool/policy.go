package mempool

import (
	"fmt"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/tx"
)

// DefaultMaxTxSize is the maximum transaction size in bytes (signing bytes).
const DefaultMaxTxSize = 100_000

// Policy defines transaction acceptance rules that can vary per node,
// separate from the consensus-critical checks in Pool.Add.
type Policy struct {
	MaxTxSize   int    // Maximum transaction size in signing bytes.
	MaxGasLimit uint64 // Maximum gas_limit a single transaction may request.
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxTxSize:   DefaultMaxTxSize,
		MaxGasLimit: config.MaxBlockGas,
	}
}

// Check validates a transaction against policy rules. This is separate
// from consensus validation — policy rules can vary per node. Also
// enforces consensus limits as defense-in-depth (reject early before full
// validation).
func (p *Policy) Check(transaction *tx.Transaction) error {
	size := len(transaction.SigningBytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	if len(transaction.Data) > config.MaxTxDataSize {
		return fmt.Errorf("data too large: %d bytes, max %d", len(transaction.Data), config.MaxTxDataSize)
	}
	if p.MaxGasLimit > 0 && transaction.GasLimit > p.MaxGasLimit {
		return fmt.Errorf("gas_limit %d exceeds policy max %d", transaction.GasLimit, p.MaxGasLimit)
	}
	return nil
}
