// Package mempool manages pending transactions waiting for block inclusion.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coinjecture/coinjecture/internal/state"
	"github.com/coinjecture/coinjecture/pkg/tx"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists     = errors.New("transaction already in mempool")
	ErrConflict          = errors.New("a transaction from this sender already occupies this nonce")
	ErrPoolFull          = errors.New("mempool is full")
	ErrValidation        = errors.New("transaction failed validation")
	ErrGasPriceTooLow    = errors.New("gas_price below minimum")
	ErrNonceTooLow       = errors.New("nonce already used by a confirmed account state")
	ErrInsufficientFunds = errors.New("sender balance insufficient for amount+fee")
)

// AccountReader is the read-only account view the pool checks admission
// against: current nonce (to reject already-used nonces) and balance (to
// reject transactions the sender cannot cover). A nil AccountReader (the
// default) disables both checks, same as the teacher's optional utxos
// provider.
type AccountReader interface {
	Account(addr types.Address) (*state.Account, error)
}

// entry wraps a transaction with its admission metadata.
type entry struct {
	tx      *tx.Transaction
	txHash  types.Hash
	fee     uint64
	arrival time.Time
}

// senderNonce is the conflict-index key: exactly one pending transaction
// may occupy a given (sender, nonce) pair at a time, mirroring the
// teacher's one-spender-per-outpoint rule.
type senderNonce struct {
	from  types.Address
	nonce uint64
}

// Pool holds unconfirmed transactions, admission-ordered by
// (gas_price desc, arrival asc).
type Pool struct {
	mu       sync.RWMutex
	txs      map[types.Hash]*entry
	bySender map[senderNonce]types.Hash // conflict index
	maxSize  int

	minGasPrice uint64        // 0 = no minimum.
	maxAge      time.Duration // 0 = no age-based eviction.
	accounts    AccountReader // nil = admission-time balance/nonce checks disabled.
}

// New creates a new mempool with the given max size (<=0 uses a default).
func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &Pool{
		txs:      make(map[types.Hash]*entry),
		bySender: make(map[senderNonce]types.Hash),
		maxSize:  maxSize,
	}
}

// SetMinGasPrice sets the minimum gas_price (base units per gas unit) for
// transaction acceptance.
func (p *Pool) SetMinGasPrice(price uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minGasPrice = price
}

// MinGasPrice returns the current minimum gas_price.
func (p *Pool) MinGasPrice() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minGasPrice
}

// SetMaxAge enables age-based eviction: PruneExpired removes entries older
// than maxAge. maxAge<=0 disables age-based eviction.
func (p *Pool) SetMaxAge(maxAge time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxAge = maxAge
}

// SetAccountReader enables admission-time nonce/balance checks against
// accounts. Pass nil to disable (the default).
func (p *Pool) SetAccountReader(accounts AccountReader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = accounts
}

// Add validates and adds a transaction to the mempool. Returns the
// transaction's fee. Rejects duplicates, same-(sender,nonce) conflicts,
// and — when an AccountReader is set — already-used nonces and
// insufficient balances.
func (p *Pool) Add(transaction *tx.Transaction) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := transaction.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	txHash := transaction.Hash()
	if _, exists := p.txs[txHash]; exists {
		return 0, ErrAlreadyExists
	}

	key := senderNonce{from: transaction.From, nonce: transaction.Nonce}
	if conflictHash, exists := p.bySender[key]; exists {
		return 0, fmt.Errorf("%w: %s nonce %d already held by %s", ErrConflict, transaction.From, transaction.Nonce, conflictHash)
	}

	cost, err := transaction.Cost()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if p.accounts != nil {
		acct, err := p.accounts.Account(transaction.From)
		if err != nil {
			return 0, fmt.Errorf("%w: account lookup: %v", ErrValidation, err)
		}
		if transaction.Nonce < acct.Nonce {
			return 0, fmt.Errorf("%w: tx nonce %d, account nonce %d", ErrNonceTooLow, transaction.Nonce, acct.Nonce)
		}
		if acct.Balance < cost {
			return 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, acct.Balance, cost)
		}
	}

	if p.minGasPrice > 0 && transaction.GasPrice < p.minGasPrice {
		return 0, fmt.Errorf("%w: got %d, need %d", ErrGasPriceTooLow, transaction.GasPrice, p.minGasPrice)
	}

	// Check pool capacity — evict the lowest-priority entry if the new tx
	// outranks it.
	if len(p.txs) >= p.maxSize {
		lowestHash, lowestEntry := p.findLowestPriority()
		if lowestEntry != nil && !higherPriority(transaction.GasPrice, time.Now(), lowestEntry.tx.GasPrice, lowestEntry.arrival) {
			return 0, ErrPoolFull
		}
		p.removeLocked(lowestHash)
	}

	e := &entry{
		tx:      transaction,
		txHash:  txHash,
		fee:     transaction.Fee,
		arrival: time.Now(),
	}
	p.txs[txHash] = e
	p.bySender[key] = txHash

	return transaction.Fee, nil
}

// Remove removes a transaction from the mempool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	delete(p.bySender, senderNonce{from: e.tx.From, nonce: e.tx.Nonce})
	delete(p.txs, txHash)
}

// RemoveConfirmed removes all transactions that were included in a block.
func (p *Pool) RemoveConfirmed(transactions []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range transactions {
		p.removeLocked(t.Hash())
	}
}

// PruneExpired removes entries older than the configured max age.
// No-op if SetMaxAge was never called. Returns the number removed.
func (p *Pool) PruneExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxAge <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-p.maxAge)
	var stale []types.Hash
	for h, e := range p.txs {
		if e.arrival.Before(cutoff) {
			stale = append(stale, h)
		}
	}
	for _, h := range stale {
		p.removeLocked(h)
	}
	return len(stale)
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[txHash]
	return exists
}

// Get retrieves a transaction from the mempool.
func (p *Pool) Get(txHash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return nil
	}
	return e.tx
}

// GetFee returns the fee for a transaction in the mempool (0 if not found).
func (p *Pool) GetFee(txHash types.Hash) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[txHash]
	if !exists {
		return 0
	}
	return e.fee
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns the hashes of all transactions in the mempool.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

// higherPriority reports whether (gasPriceA, arrivalA) outranks
// (gasPriceB, arrivalB) under (gas_price desc, arrival asc).
func higherPriority(gasPriceA uint64, arrivalA time.Time, gasPriceB uint64, arrivalB time.Time) bool {
	if gasPriceA != gasPriceB {
		return gasPriceA > gasPriceB
	}
	return arrivalA.Before(arrivalB)
}

// findLowestPriority returns the hash and entry with the lowest admission
// priority. Must be called with p.mu held.
func (p *Pool) findLowestPriority() (types.Hash, *entry) {
	var lowestHash types.Hash
	var lowest *entry
	for h, e := range p.txs {
		if lowest == nil || higherPriority(lowest.tx.GasPrice, lowest.arrival, e.tx.GasPrice, e.arrival) {
			lowest = e
			lowestHash = h
		}
	}
	return lowestHash, lowest
}

// SelectForBlock returns transactions ordered by (gas_price desc, arrival
// asc), up to the given limit.
func (p *Pool) SelectForBlock(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return higherPriority(entries[i].tx.GasPrice, entries[i].arrival, entries[j].tx.GasPrice, entries[j].arrival)
	})

	if limit > len(entries) || limit < 0 {
		limit = len(entries)
	}

	result := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		result[i] = entries[i].tx
	}
	return result
}
