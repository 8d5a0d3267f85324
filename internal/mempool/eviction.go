package mempool

import "sort"

// Evict removes the lowest-priority transactions until the pool is at or
// below maxSize, for callers (e.g. a maxSize config change) that need to
// reassert the capacity invariant outside of Add's per-insert eviction.
func (p *Pool) Evict() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.txs) <= p.maxSize {
		return 0
	}

	// Collect entries and sort by priority ascending (lowest first).
	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return higherPriority(entries[j].tx.GasPrice, entries[j].arrival, entries[i].tx.GasPrice, entries[i].arrival)
	})

	evicted := 0
	for len(p.txs) > p.maxSize && evicted < len(entries) {
		p.removeLocked(entries[evicted].txHash)
		evicted++
	}
	return evicted
}
