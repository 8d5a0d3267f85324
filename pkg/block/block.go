// Package block defines block types and their structural validation.
package block

import (
	"github.com/coinjecture/coinjecture/pkg/tx"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Block is a header plus the ordered sequence of transactions it carries.
// There is no coinbase transaction: the block reward and fee split are
// credited directly to accounts during state application (internal/state),
// since an account-model ledger has no UTXO to mint into.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Hash returns the block header hash, which is the block's identity.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}
