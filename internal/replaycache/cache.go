// Package replaycache enforces the anti-grinding rule that a given
// (miner_address, commitment) pair may be revealed and accepted at most
// once: a miner who tries to resubmit a previously-accepted commitment,
// inside a bounded trailing window of blocks, is rejected without needing
// to replay the full chain to discover the collision.
package replaycache

import (
	"encoding/binary"
	"fmt"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/internal/storage"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Key prefixes, mirroring the chain block store's b/, h/, x/ convention:
// a short logical tag followed by the natural key for that record.
var (
	prefixSeen   = []byte("r/") // r/<miner(32)><commitment(32)> -> LE64(block_index)
	prefixExpiry = []byte("e/") // e/<block_index(8)><miner(32)><commitment(32)> -> empty
)

// Cache records the first block_index at which each (miner, commitment)
// pair was accepted, and lets a caller evict entries whose TTL
// (config.EpochReplayTTL blocks) has elapsed relative to the current tip.
type Cache struct {
	db storage.DB
}

// New wraps db (expected to be a storage.PrefixDB scoped to this cache's
// own keyspace) as a replay Cache.
func New(db storage.DB) *Cache {
	return &Cache{db: db}
}

func seenKey(miner types.Address, commitment types.Hash) []byte {
	key := make([]byte, len(prefixSeen)+types.AddressSize+types.HashSize)
	copy(key, prefixSeen)
	copy(key[len(prefixSeen):], miner[:])
	copy(key[len(prefixSeen)+types.AddressSize:], commitment[:])
	return key
}

func expiryKey(blockIndex uint64, miner types.Address, commitment types.Hash) []byte {
	key := make([]byte, len(prefixExpiry)+8+types.AddressSize+types.HashSize)
	copy(key, prefixExpiry)
	binary.BigEndian.PutUint64(key[len(prefixExpiry):], blockIndex)
	copy(key[len(prefixExpiry)+8:], miner[:])
	copy(key[len(prefixExpiry)+8+types.AddressSize:], commitment[:])
	return key
}

// Seen reports whether (miner, commitment) has already been recorded, and
// if so, at which block_index it was first accepted.
func (c *Cache) Seen(miner types.Address, commitment types.Hash) (blockIndex uint64, found bool, err error) {
	found, err = c.db.Has(seenKey(miner, commitment))
	if err != nil || !found {
		return 0, found, err
	}
	raw, err := c.db.Get(seenKey(miner, commitment))
	if err != nil {
		return 0, false, fmt.Errorf("replaycache: get seen entry: %w", err)
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("replaycache: corrupt seen entry (%d bytes)", len(raw))
	}
	return binary.LittleEndian.Uint64(raw), true, nil
}

// Record stores (miner, commitment) as seen at blockIndex. Callers must
// check Seen first: Record unconditionally overwrites, so a caller that
// skips the check would silently let a second, later block_index replace
// the first-seen one.
func (c *Cache) Record(miner types.Address, commitment types.Hash, blockIndex uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], blockIndex)
	if err := c.db.Put(seenKey(miner, commitment), buf[:]); err != nil {
		return fmt.Errorf("replaycache: put seen entry: %w", err)
	}
	if err := c.db.Put(expiryKey(blockIndex, miner, commitment), nil); err != nil {
		return fmt.Errorf("replaycache: put expiry index: %w", err)
	}
	return nil
}

// Prune removes every entry whose block_index is more than
// config.EpochReplayTTL blocks behind tipIndex, returning the count
// removed. Call this once per accepted block so the cache stays bounded
// instead of growing for the life of the chain.
func (c *Cache) Prune(tipIndex uint64) (int, error) {
	if tipIndex <= config.EpochReplayTTL {
		return 0, nil
	}
	cutoff := tipIndex - config.EpochReplayTTL

	var toDelete [][]byte
	err := c.db.ForEach(prefixExpiry, func(key, _ []byte) error {
		miner, commitment, idx, ok := splitExpiryKey(key)
		if !ok {
			return nil
		}
		if idx >= cutoff {
			return nil
		}
		k := make([]byte, len(key))
		copy(k, key)
		toDelete = append(toDelete, k)
		toDelete = append(toDelete, seenKey(miner, commitment))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replaycache: scan for prune: %w", err)
	}

	removed := 0
	for _, k := range toDelete {
		if err := c.db.Delete(k); err != nil {
			return removed, fmt.Errorf("replaycache: delete during prune: %w", err)
		}
		removed++
	}
	return removed / 2, nil
}

func splitExpiryKey(key []byte) (miner types.Address, commitment types.Hash, blockIndex uint64, ok bool) {
	body := key[len(prefixExpiry):]
	want := 8 + types.AddressSize + types.HashSize
	if len(body) != want {
		return miner, commitment, 0, false
	}
	blockIndex = binary.BigEndian.Uint64(body[:8])
	copy(miner[:], body[8:8+types.AddressSize])
	copy(commitment[:], body[8+types.AddressSize:])
	return miner, commitment, blockIndex, true
}
