// Package api exposes the typed entry points an external collaborator
// (an RPC server, a CLI, a light client) drives a running node through.
// It is deliberately just a thin pass-through over *node.Node: no
// transport framing (HTTP, JSON-RPC) is implemented here, since that
// framing is an external collaborator's concern, not the core's.
package api

import (
	"github.com/coinjecture/coinjecture/internal/node"
	"github.com/coinjecture/coinjecture/internal/state"
	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/merkle"
	"github.com/coinjecture/coinjecture/pkg/tx"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// API is the method surface a collaborator wraps in whatever transport
// it needs. Constructing one does not start or stop the underlying
// node; that lifecycle is the caller's responsibility via node.New,
// Start, and Stop.
type API struct {
	n *node.Node
}

// New wraps an already-constructed node.
func New(n *node.Node) *API {
	return &API{n: n}
}

// SubmitTransaction admits a transaction to the mempool.
func (a *API) SubmitTransaction(transaction *tx.Transaction) error {
	return a.n.SubmitTransaction(transaction)
}

// SubmitBlock hands an externally-received block to the node for
// validation and acceptance.
func (a *API) SubmitBlock(blk *block.Block) error {
	return a.n.SubmitBlock(blk)
}

// QueryBlock returns a block by hash.
func (a *API) QueryBlock(hash types.Hash) (*block.Block, error) {
	return a.n.QueryBlock(hash)
}

// QueryAccount returns an account's committed state.
func (a *API) QueryAccount(addr types.Address) (*state.Account, error) {
	return a.n.QueryAccount(addr)
}

// QueryEscrow returns an escrow's committed state, and whether it exists.
func (a *API) QueryEscrow(id types.Hash) (*state.Escrow, bool, error) {
	return a.n.QueryEscrow(id)
}

// CurrentTip returns the current canonical tip height and hash.
func (a *API) CurrentTip() (uint64, types.Hash) {
	return a.n.CurrentTip()
}

// Subscribe returns a channel that receives every block accepted onto
// the canonical tip.
func (a *API) Subscribe() <-chan *block.Block {
	return a.n.Subscribe()
}

// VerifyProof checks a merkle inclusion proof against a block's merkle
// root.
func (a *API) VerifyProof(leaf types.Hash, proof merkle.Proof, root types.Hash) bool {
	return a.n.VerifyProof(leaf, proof, root)
}
